// Package console is the control surface of the engine. Every control maps
// onto exactly one engine operation; the CLI and the HTTP server both drive
// it.
package console

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/interceptor"
	"github.com/xkilldash9x/domsentry/internal/logview"
	"github.com/xkilldash9x/domsentry/internal/remediator"
	"github.com/xkilldash9x/domsentry/internal/reporting"
	"github.com/xkilldash9x/domsentry/internal/scanner"
	"github.com/xkilldash9x/domsentry/internal/snapshot"
	"go.uber.org/zap"
)

// Confirmer asks the user before a destructive control runs.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// AlwaysConfirm approves every prompt. Used for non-interactive callers.
var AlwaysConfirm = ConfirmFunc(func(string) bool { return true })

// Prompts shown by the confirming controls.
const (
	PromptCreateSnapshot = "Create a snapshot of the current document? The previous snapshot will be overwritten."
	PromptDeleteSnapshot = "Delete the saved snapshot? This cannot be undone."
)

// ErrDeclined is returned when the user answers no to a confirmation.
var ErrDeclined = errors.New("action declined")

// Deps are the engine components the console drives.
type Deps struct {
	Scanner     *scanner.Scanner
	Remediator  *remediator.Remediator
	Snapshots   *snapshot.Store
	Exporter    *reporting.Exporter
	Interceptor *interceptor.Interceptor
	// Output receives the test events; it is the console the interceptor wraps.
	Output *interceptor.Console
	// LogSink receives exported log histories.
	LogSink   reporting.ArtifactSink
	Confirmer Confirmer
}

// Badge is the snapshot status line.
type Badge struct {
	HasSnapshot bool      `json:"hasSnapshot"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
	Size        int       `json:"size,omitempty"`
	Text        string    `json:"text"`
}

// Console serializes control operations; concurrent callers run one at a time
// in arrival order.
type Console struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	badge Badge
}

func New(deps Deps, logger *zap.Logger) *Console {
	if deps.Confirmer == nil {
		deps.Confirmer = AlwaysConfirm
	}
	c := &Console{
		deps:   deps,
		logger: logger.Named("console"),
		now:    time.Now,
	}
	c.badge = Badge{Text: noSnapshotText}
	return c
}

// -- Snapshot controls --

func (c *Console) CreateSnapshot(ctx context.Context) (bool, error) {
	if !c.deps.Confirmer.Confirm(PromptCreateSnapshot) {
		return false, ErrDeclined
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.refreshLocked(ctx)
	return c.deps.Snapshots.Capture(ctx), nil
}

func (c *Console) RestoreSnapshot(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.refreshLocked(ctx)
	return c.deps.Snapshots.Restore(ctx)
}

func (c *Console) DeleteSnapshot(ctx context.Context) (bool, error) {
	if !c.deps.Confirmer.Confirm(PromptDeleteSnapshot) {
		return false, ErrDeclined
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.refreshLocked(ctx)
	return c.deps.Snapshots.Delete(ctx), nil
}

// SnapshotInfo reads the slot metadata without touching the badge.
func (c *Console) SnapshotInfo(ctx context.Context) (schemas.SnapshotInfo, bool) {
	return c.deps.Snapshots.Info(ctx)
}

// -- Engine controls --

func (c *Console) Scan(ctx context.Context) (int, *schemas.ScanStatistics, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.refreshLocked(ctx)
	return c.deps.Scanner.Scan(ctx)
}

// Fix runs one remediation pass. The follow-up saga, if any, is returned so
// callers can wait for it; it is cancelled by Close.
func (c *Console) Fix(ctx context.Context) (int, *remediator.Saga, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.refreshLocked(ctx)

	before := c.deps.Remediator.LastSaga()
	fixed, err := c.deps.Remediator.FixJunkCode(ctx)
	saga := c.deps.Remediator.LastSaga()
	if saga == before {
		saga = nil
	}
	return fixed, saga, err
}

func (c *Console) Export(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.refreshLocked(ctx)
	return c.deps.Exporter.ExportScanStatistics(ctx)
}

// -- Log controls --

// TestEvents emits one error, one warning and one success line through the
// intercepted console.
func (c *Console) TestEvents() {
	c.deps.Output.Error("Test error", errors.New("this is a test error"))
	c.deps.Output.Warn("Test warning", map[string]any{"code": 299, "source": "test events"})
	c.deps.Output.Log("✓ Test success event")
}

func (c *Console) Logs(q logview.Query) ([]schemas.LogEntry, logview.Counts) {
	all := c.deps.Interceptor.Entries()
	return logview.Filter(all, q), logview.Count(all)
}

func (c *Console) ClearLogs(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deps.Interceptor.Clear(ctx)
}

// LogExport renders the full history as the logs-<RFC3339>.json artifact.
func (c *Console) LogExport() (string, []byte, error) {
	return logview.ExportJSON(c.deps.Interceptor.Entries(), c.now())
}

// ExportLogs writes LogExport to the log sink.
func (c *Console) ExportLogs(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name, data, err := c.LogExport()
	if err != nil {
		return "", err
	}
	if c.deps.LogSink == nil {
		return "", fmt.Errorf("no log export destination configured")
	}
	path, err := c.deps.LogSink.Write(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("failed to export logs: %w", err)
	}
	c.logger.Info("✓ Logs exported", zap.String("path", path), zap.Int("entries", c.deps.Interceptor.Len()))
	return path, nil
}

// -- Status badge --

const noSnapshotText = "No snapshot"

// Status returns the badge as of the last control operation or Refresh.
func (c *Console) Status() Badge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.badge
}

// Refresh re-reads the snapshot slot into the badge.
func (c *Console) Refresh(ctx context.Context) Badge {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked(ctx)
	return c.badge
}

func (c *Console) refreshLocked(ctx context.Context) {
	info, ok := c.deps.Snapshots.Info(ctx)
	if !ok {
		c.badge = Badge{Text: noSnapshotText}
		return
	}
	c.badge = Badge{
		HasSnapshot: true,
		Timestamp:   info.Timestamp,
		Size:        info.Size,
		Text: fmt.Sprintf("Last snapshot: %s (%s)",
			humanize.RelTime(info.Timestamp, c.now(), "ago", "from now"),
			humanize.Bytes(uint64(info.Size))),
	}
}

// Close cancels outstanding follow-up sagas and waits for them.
func (c *Console) Close() {
	c.deps.Remediator.Close()
}
