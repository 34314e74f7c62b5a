package console

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/xkilldash9x/domsentry/api/schemas"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of events one editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// ScanResult is delivered after every re-scan triggered by Watch.
type ScanResult struct {
	Issues     int
	Statistics *schemas.ScanStatistics
	Err        error
}

// Watch re-scans the document file at path whenever it changes, until ctx is
// done. The parent directory is watched so atomic replace-by-rename saves are
// seen too. onScan may be nil.
func (c *Console) Watch(ctx context.Context, path string, debounce time.Duration, onScan func(ScanResult)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	c.logger.Info("Watching document for changes.", zap.String("path", target))

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Watch stopped.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, target) {
				continue
			}
			c.logger.Debug("Document changed.", zap.String("op", event.Op.String()))
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("File watcher error.", zap.Error(err))

		case <-timer.C:
			issues, stats, err := c.Scan(ctx)
			if err != nil {
				c.logger.Error("Re-scan after change failed.", zap.Error(err))
			}
			if onScan != nil {
				onScan(ScanResult{Issues: issues, Statistics: stats, Err: err})
			}
		}
	}
}

func relevant(event fsnotify.Event, target string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == target
}
