package interceptor

import (
	"fmt"
	"io"
	"sync"
)

// Sink is one console entry point. It receives the raw call arguments.
type Sink func(args ...any)

// Console is the process's three logging entry points. Each call goes through
// whichever sink is currently installed, so an Interceptor can wrap and later
// restore them.
type Console struct {
	mu    sync.RWMutex
	error Sink
	warn  Sink
	log   Sink
}

// NewConsole writes every call as one line to w.
func NewConsole(w io.Writer) *Console {
	var mu sync.Mutex
	line := func(prefix string) Sink {
		return func(args ...any) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(w, append([]any{prefix}, args...)...)
		}
	}
	return NewConsoleWithSinks(line("[error]"), line("[warn]"), line("[log]"))
}

// NewConsoleWithSinks builds a console over explicit sinks. Nil sinks discard.
func NewConsoleWithSinks(errorSink, warnSink, logSink Sink) *Console {
	return &Console{error: orDiscard(errorSink), warn: orDiscard(warnSink), log: orDiscard(logSink)}
}

func (c *Console) Error(args ...any) { c.sink(&c.error)(args...) }
func (c *Console) Warn(args ...any)  { c.sink(&c.warn)(args...) }
func (c *Console) Log(args ...any)   { c.sink(&c.log)(args...) }

func (c *Console) sink(which *Sink) Sink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *which
}

// sinks is the set of entry points installed at one time.
type sinks struct {
	error, warn, log Sink
}

// replace installs the sinks built from the current ones. No call can observe
// a half-installed set.
func (c *Console) replace(build func(current sinks) sinks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := build(sinks{error: c.error, warn: c.warn, log: c.log})
	c.error, c.warn, c.log = orDiscard(next.error), orDiscard(next.warn), orDiscard(next.log)
}

func orDiscard(s Sink) Sink {
	if s == nil {
		return func(...any) {}
	}
	return s
}
