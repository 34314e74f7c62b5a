// Package notify delivers short, non-blocking user notifications (toasts).
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Kind is the visual severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
	KindError   Kind = "error"
)

// Notification is a title with an optional description.
type Notification struct {
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Time        time.Time `json:"time"`
}

// Notifier shows notifications to the user. Implementations must not block.
type Notifier interface {
	Success(title, description string)
	Warning(title, description string)
	Info(title, description string)
	Error(title, description string)
}

// -- Log Notifier --

// LogNotifier renders notifications as structured log lines.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

// Success lines carry a check mark so the runtime interceptor records them as
// success entries.
func (n *LogNotifier) Success(title, description string) {
	n.logger.Info("✓ "+title, zap.String("description", description))
}

func (n *LogNotifier) Warning(title, description string) {
	n.logger.Warn(title, zap.String("description", description))
}

func (n *LogNotifier) Info(title, description string) {
	n.logger.Info(title, zap.String("description", description))
}

func (n *LogNotifier) Error(title, description string) {
	n.logger.Error(title, zap.String("description", description))
}

// -- Recorder --

// Recorder keeps every notification in memory. The HTTP surface returns them to
// clients and tests assert on them.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) add(kind Kind, title, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Kind: kind, Title: title, Description: description, Time: r.now()})
}

func (r *Recorder) Success(title, description string) { r.add(KindSuccess, title, description) }
func (r *Recorder) Warning(title, description string) { r.add(KindWarning, title, description) }
func (r *Recorder) Info(title, description string)    { r.add(KindInfo, title, description) }
func (r *Recorder) Error(title, description string)   { r.add(KindError, title, description) }

// All returns a copy of the recorded notifications, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Drain returns and forgets the recorded notifications.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

// -- Fan-out --

// Multi forwards every notification to each member.
type Multi []Notifier

func (m Multi) Success(title, description string) {
	for _, n := range m {
		n.Success(title, description)
	}
}

func (m Multi) Warning(title, description string) {
	for _, n := range m {
		n.Warning(title, description)
	}
}

func (m Multi) Info(title, description string) {
	for _, n := range m {
		n.Info(title, description)
	}
}

func (m Multi) Error(title, description string) {
	for _, n := range m {
		n.Error(title, description)
	}
}

// -- Throttling --

// Throttled drops success, warning and info notifications beyond the configured
// rate so a burst of operations (watch mode, a busy HTTP client) cannot flood the
// user. Errors are never dropped.
type Throttled struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewThrottled wraps next. A non-positive perSecond disables throttling and
// returns next unchanged.
func NewThrottled(next Notifier, perSecond float64, burst int) Notifier {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *Throttled) Success(title, description string) {
	if t.limiter.Allow() {
		t.next.Success(title, description)
	}
}

func (t *Throttled) Warning(title, description string) {
	if t.limiter.Allow() {
		t.next.Warning(title, description)
	}
}

func (t *Throttled) Info(title, description string) {
	if t.limiter.Allow() {
		t.next.Info(title, description)
	}
}

func (t *Throttled) Error(title, description string) {
	t.next.Error(title, description)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Success(string, string) {}
func (Nop) Warning(string, string) {}
func (Nop) Info(string, string)    {}
func (Nop) Error(string, string)   {}
