package interceptor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/xkilldash9x/domsentry/api/schemas"
)

// Process-wide failure listeners. Interceptors attach on their first Install
// and are never detached.
var (
	listenersMu sync.RWMutex
	listeners   []*Interceptor
)

func attach(i *Interceptor) {
	listenersMu.Lock()
	defer listenersMu.Unlock()
	listeners = append(listeners, i)
}

func attached() []*Interceptor {
	listenersMu.RLock()
	defer listenersMu.RUnlock()
	return append([]*Interceptor(nil), listeners...)
}

// panicDetails is the structured context of an uncaught panic.
type panicDetails struct {
	Value     string `json:"value"`
	Goroutine string `json:"goroutine"`
}

// ReportPanic records a recovered panic as an uncaught failure.
func ReportPanic(recovered any) {
	stack := string(debug.Stack())
	details := formatValue(panicDetails{Value: rawString(recovered), Goroutine: firstLine(stack)})
	msg := messageText([]any{recovered})
	if err, ok := recovered.(error); ok {
		msg = err.Error()
	}
	for _, i := range attached() {
		i.record(schemas.LevelError, msg, details, i.opts.Source, stack)
	}
}

// ReportRejection records a failure of background work that nobody awaited.
func ReportRejection(reason any) {
	details := formatValue(reason)
	for _, i := range attached() {
		i.record(schemas.LevelError, "Unhandled rejection", details, i.opts.Source, "")
	}
}

// Guard runs fn and reports a panic instead of letting it escape.
func Guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			ReportPanic(r)
		}
	}()
	fn()
}

// Go runs fn in a goroutine. A panic is reported as uncaught and a returned
// error, other than cancellation, as a rejection. The returned channel closes
// when fn is done.
func Go(ctx context.Context, fn func(ctx context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		Guard(func() {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				ReportRejection(fmt.Errorf("background task failed: %w", err))
			}
		})
	}()
	return done
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
