// Package interceptor records every runtime log call and process failure into a
// bounded, persisted history while forwarding the call unchanged.
package interceptor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/store"
)

// DefaultCapacity is the number of entries kept before the oldest are evicted.
// It is also the upper bound.
const DefaultCapacity = config.MaxLogCapacity

// DefaultSuccessMarkers promote a plain log line to the success level.
var DefaultSuccessMarkers = []string{"✓", "success"}

// Options configures an Interceptor.
type Options struct {
	Capacity       int
	SuccessMarkers []string
	Source         string
	CaptureStack   bool
	// Key is the storage key of the persisted history.
	Key string
}

func OptionsFromConfig(cfg config.InterceptorConfig, namespace string) Options {
	return Options{
		Capacity:       cfg.Capacity,
		SuccessMarkers: cfg.SuccessMarkers,
		Source:         cfg.Source,
		CaptureStack:   cfg.CaptureStack,
		Key:            store.Key(namespace, "logbuffer"),
	}
}

// Interceptor wraps a Console and keeps the LogBuffer: most recent entry first,
// never longer than Capacity, written to the store after every append.
type Interceptor struct {
	console *Console
	blobs   store.BlobStore
	opts    Options

	mu      sync.Mutex
	entries []schemas.LogEntry

	installed bool
	// orig holds the sinks that were installed before ours.
	orig    sinks
	persist context.Context

	attachOnce sync.Once

	newID func() string
	now   func() time.Time
	stack func() string
}

func New(console *Console, blobs store.BlobStore, opts Options) *Interceptor {
	if opts.Capacity <= 0 || opts.Capacity > DefaultCapacity {
		opts.Capacity = DefaultCapacity
	}
	if opts.Key == "" {
		opts.Key = store.Key("domsentry", "logbuffer")
	}
	if opts.SuccessMarkers == nil {
		opts.SuccessMarkers = DefaultSuccessMarkers
	}
	return &Interceptor{
		console: console,
		blobs:   blobs,
		opts:    opts,
		newID:   uuid.NewString,
		now:     time.Now,
		stack:   func() string { return string(debug.Stack()) },
	}
}

// Install loads the persisted history and wraps the console entry points. It
// is idempotent. The interceptor is always installed on return; a returned
// error only reports that the previous history could not be read.
func (i *Interceptor) Install(ctx context.Context) error {
	i.mu.Lock()
	if i.installed {
		i.mu.Unlock()
		return nil
	}
	i.persist = context.WithoutCancel(ctx)
	loadErr := i.loadLocked(ctx)
	i.installed = true
	i.console.replace(func(current sinks) sinks {
		i.orig = current
		return sinks{
			error: i.wrap(current.error, func(string) schemas.Level { return schemas.LevelError }),
			warn:  i.wrap(current.warn, func(string) schemas.Level { return schemas.LevelWarning }),
			log:   i.wrap(current.log, i.classifyLog),
		}
	})
	i.mu.Unlock()

	// The failure listeners are process-wide and cannot be detached, so they
	// are attached once per interceptor no matter how often Install runs.
	i.attachOnce.Do(func() { attach(i) })
	return loadErr
}

// Uninstall restores the original console sinks. The failure listeners stay attached.
func (i *Interceptor) Uninstall() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.installed {
		return
	}
	i.installed = false
	i.console.replace(func(sinks) sinks { return i.orig })
}

// Installed reports whether the console sinks are currently wrapped.
func (i *Interceptor) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.installed
}

func (i *Interceptor) loadLocked(ctx context.Context) error {
	raw, err := i.blobs.Get(ctx, i.opts.Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load log history: %w", err)
	}

	var saved []schemas.LogEntry
	if err := json.Unmarshal(raw, &saved); err != nil {
		// Written straight to the underlying console; the wrappers are not installed yet.
		i.console.Warn("Failed to load saved logs:", err.Error())
		return nil
	}
	if len(saved) > i.opts.Capacity {
		saved = saved[:i.opts.Capacity]
	}
	i.entries = saved
	return nil
}

// -- Console wrappers --

// wrap records every call, then forwards it unchanged to orig.
func (i *Interceptor) wrap(orig Sink, classify func(msg string) schemas.Level) Sink {
	return func(args ...any) {
		msg := messageText(args)
		i.record(classify(msg), msg, formatArgs(args), i.opts.Source, "")
		orig(args...)
	}
}

func formatArgs(args []any) string {
	if len(args) < 2 {
		return ""
	}
	return formatDetails(args[1:])
}

// classifyLog promotes a generic log line to success when it carries a marker.
func (i *Interceptor) classifyLog(msg string) schemas.Level {
	for _, marker := range i.opts.SuccessMarkers {
		if marker != "" && strings.Contains(msg, marker) {
			return schemas.LevelSuccess
		}
	}
	return schemas.LevelInfo
}

// -- Buffer --

// record appends one entry and persists the buffer before returning.
func (i *Interceptor) record(level schemas.Level, message, details, source, stack string) {
	if stack == "" && i.opts.CaptureStack {
		stack = i.stack()
	}
	entry := schemas.LogEntry{
		ID:         i.newID(),
		Timestamp:  i.now(),
		Level:      level,
		Message:    message,
		Details:    details,
		Source:     source,
		StackTrace: stack,
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	entries := make([]schemas.LogEntry, 0, min(len(i.entries)+1, i.opts.Capacity))
	entries = append(entries, entry)
	for _, e := range i.entries {
		if len(entries) == i.opts.Capacity {
			break
		}
		entries = append(entries, e)
	}
	i.entries = entries

	if err := i.saveLocked(); err != nil {
		// Reported to the unwrapped sink so the failure is never itself recorded.
		if i.orig.error != nil {
			i.orig.error("domsentry: failed to persist log history:", err.Error())
		}
	}
}

func (i *Interceptor) saveLocked() error {
	raw, err := json.Marshal(i.entries)
	if err != nil {
		return fmt.Errorf("failed to encode log history: %w", err)
	}
	ctx := i.persist
	if ctx == nil {
		ctx = context.Background()
	}
	if err := i.blobs.Put(ctx, i.opts.Key, raw); err != nil {
		return fmt.Errorf("failed to store log history: %w", err)
	}
	return nil
}

// Entries returns a copy of the buffer, most recent first.
func (i *Interceptor) Entries() []schemas.LogEntry {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]schemas.LogEntry, len(i.entries))
	copy(out, i.entries)
	return out
}

// Len is the current number of buffered entries.
func (i *Interceptor) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Clear empties the buffer and its persisted copy.
func (i *Interceptor) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = nil
	if err := i.blobs.Delete(ctx, i.opts.Key); err != nil {
		return fmt.Errorf("failed to clear log history: %w", err)
	}
	return nil
}
