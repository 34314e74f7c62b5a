// File: internal/service/initializers.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/interceptor"
	"github.com/xkilldash9x/domsentry/internal/notify"
	"github.com/xkilldash9x/domsentry/internal/store"
)

// errNoSource is returned when no document source is configured.
var errNoSource = errors.New("document source is not configured (hint: pass --document or set DOMSENTRY_DOCUMENT_SOURCE)")

// openStore and newChromeHost are variables so tests can substitute them.
var (
	openStore     = store.Open
	newChromeHost = func(ctx context.Context, source, locationHost string, timeout time.Duration, logger *zap.Logger) (document.Host, func(), error) {
		h, err := document.NewChromeHost(ctx, source, locationHost, timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return h, h.Close, nil
	}
)

// InitializeStore opens the configured blob store backend.
func InitializeStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (store.BlobStore, error) {
	blobs, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s store: %w", cfg.Driver, err)
	}
	logger.Debug("Blob store initialized.", zap.String("driver", cfg.Driver))
	return blobs, nil
}

// InitializeInterceptor installs the runtime log interceptor over output and
// returns it with a logger whose entries are also recorded in its history. An
// unreadable history is logged and otherwise ignored.
func InitializeInterceptor(ctx context.Context, output *interceptor.Console, blobs store.BlobStore, cfg config.Interface, logger *zap.Logger) (*interceptor.Interceptor, *zap.Logger) {
	ic := interceptor.New(output, blobs, interceptor.OptionsFromConfig(cfg.Interceptor(), cfg.Storage().Namespace))
	if err := ic.Install(ctx); err != nil {
		logger.Warn("Previous log history could not be loaded.", zap.Error(err))
	}
	wrapped := logger.WithOptions(zap.WrapCore(ic.WrapCore))
	logger.Debug("Runtime log interceptor installed.", zap.Int("entries", ic.Len()))
	return ic, wrapped
}

// InitializeNotifier logs notifications and, when configured, rate limits them.
func InitializeNotifier(cfg config.NotifyConfig, logger *zap.Logger) notify.Notifier {
	base := notify.NewLogNotifier(logger)
	if cfg.RatePerSecond <= 0 {
		return base
	}
	return notify.NewThrottled(base, cfg.RatePerSecond, cfg.Burst)
}

// InitializeHost opens the document named by cfg.Source. The returned func
// releases the host and is never nil.
func InitializeHost(ctx context.Context, cfg config.DocumentConfig, logger *zap.Logger) (document.Host, func(), error) {
	if cfg.Source == "" {
		return nil, nil, errNoSource
	}
	if document.IsChromeSource(cfg.Source) {
		host, closeFn, err := newChromeHost(ctx, cfg.Source, cfg.LocationHost, cfg.ChromeTimeout, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open live document: %w", err)
		}
		return host, closeFn, nil
	}

	locationHost := cfg.LocationHost
	if locationHost == "" {
		locationHost = "localhost"
	}
	return document.NewFileHost(cfg.Source, locationHost), func() {}, nil
}
