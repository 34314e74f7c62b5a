// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsentry/internal/console"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/interceptor"
	"github.com/xkilldash9x/domsentry/internal/notify"
	"github.com/xkilldash9x/domsentry/internal/remediator"
	"github.com/xkilldash9x/domsentry/internal/reporting"
	"github.com/xkilldash9x/domsentry/internal/scanner"
	"github.com/xkilldash9x/domsentry/internal/snapshot"
	"github.com/xkilldash9x/domsentry/internal/store"
)

// Components holds every initialized engine part for one process. It
// centralizes their lifecycle so commands only deal with the console.
type Components struct {
	Blobs       store.BlobStore
	Host        document.Host
	Notifier    notify.Notifier
	Output      *interceptor.Console
	Interceptor *interceptor.Interceptor
	Scanner     *scanner.Scanner
	Remediator  *remediator.Remediator
	Snapshots   *snapshot.Store
	Exporter    *reporting.Exporter
	Console     *console.Console

	// Logger tees into the interceptor's history.
	Logger *zap.Logger

	closeHost func()
}

// Shutdown releases the components in reverse dependency order. It is safe on
// a partially built set.
func (c *Components) Shutdown() {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	// 1. Stop deferred work first so nothing touches the host or the store afterwards.
	if c.Console != nil {
		c.Console.Close()
		logger.Debug("Console closed, follow-up sagas cancelled.")
	} else if c.Remediator != nil {
		c.Remediator.Close()
	}

	// 2. Restore the console sinks.
	if c.Interceptor != nil {
		c.Interceptor.Uninstall()
		logger.Debug("Runtime log interceptor uninstalled.")
	}

	// 3. Release the document host (closes the browser for live pages).
	if c.closeHost != nil {
		c.closeHost()
		logger.Debug("Document host closed.")
	}

	// 4. Close the blob store last; the interceptor persisted into it until now.
	if c.Blobs != nil {
		if err := c.Blobs.Close(); err != nil {
			logger.Warn("Error closing blob store.", zap.Error(err))
		} else {
			logger.Debug("Blob store closed.")
		}
	}
}
