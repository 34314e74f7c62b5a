package remediator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/interceptor"
	"github.com/xkilldash9x/domsentry/internal/notify"
	"go.uber.org/zap"
)

// Rescanner re-runs the scanner after a fix.
type Rescanner interface {
	Scan(ctx context.Context) (int, *schemas.ScanStatistics, error)
}

// Exporter writes the report once a follow-up scan comes back clean.
type Exporter interface {
	ExportScanStatistics(ctx context.Context) ([]string, error)
}

// Options tunes the remediation pass and its follow-up.
type Options struct {
	Plan        PlanOptions
	RescanDelay time.Duration
	ExportDelay time.Duration
	AutoExport  bool
}

func OptionsFromConfig(cfg config.RemediatorConfig) Options {
	plan := DefaultPlanOptions()
	plan.StyleFixLimit = cfg.StyleFixLimit
	return Options{
		Plan:        plan,
		RescanDelay: cfg.RescanDelay,
		ExportDelay: cfg.ExportDelay,
		AutoExport:  cfg.AutoExport,
	}
}

// Remediator runs fix passes and owns the follow-up sagas they start.
type Remediator struct {
	host     document.Host
	scanner  Rescanner
	exporter Exporter
	notifier notify.Notifier
	logger   *zap.Logger
	opts     Options

	// report receives saga failures; it defaults to the process-wide
	// unhandled-failure signal.
	report func(reason any)

	lifetime context.Context
	cancel   context.CancelFunc

	mu    sync.Mutex
	sagas map[*Saga]struct{}
	last  *Saga
}

// New builds a remediator. exporter may be nil, which disables auto export.
func New(host document.Host, scanner Rescanner, exporter Exporter, notifier notify.Notifier, logger *zap.Logger, opts Options) *Remediator {
	lifetime, cancel := context.WithCancel(context.Background())
	return &Remediator{
		host:     host,
		scanner:  scanner,
		exporter: exporter,
		notifier: notifier,
		logger:   logger.Named("remediator"),
		opts:     opts,
		report:   interceptor.ReportRejection,
		lifetime: lifetime,
		cancel:   cancel,
		sagas:    make(map[*Saga]struct{}),
	}
}

// FixJunkCode runs one remediation pass against the host document and returns
// the number of fixes. When anything was fixed it commits the tree and starts
// the follow-up saga, available through LastSaga.
func (r *Remediator) FixJunkCode(ctx context.Context) (int, error) {
	doc, err := r.host.Load(ctx)
	if err != nil {
		r.notifier.Error("Fix failed", err.Error())
		return 0, fmt.Errorf("failed to load document: %w", err)
	}

	plan := BuildPlan(doc, r.opts.Plan)
	if plan.Protected > 0 {
		r.logger.Debug("Overlay predicate could not be evaluated; elements left untouched.",
			zap.Int("elements", plan.Protected))
	}
	fixed := Apply(plan)

	if fixed == 0 {
		r.notifier.Info("Nothing to fix", "No issues can be fixed automatically")
		return 0, nil
	}

	if err := r.host.Commit(ctx, doc); err != nil {
		r.notifier.Error("Fix failed", err.Error())
		return fixed, fmt.Errorf("failed to commit document: %w", err)
	}

	r.logger.Info(fmt.Sprintf("✓ Fixed %d issues", fixed),
		zap.Int("empty_removed", len(plan.RemoveEmpty)),
		zap.Int("unwrapped", len(plan.Unwrap)),
		zap.Int("styles", len(plan.Styles)),
	)
	r.notifier.Success(fmt.Sprintf("Fixed %d issues", fixed), "Removed empty elements and deprecated tags, normalized styles")

	r.startSaga()
	return fixed, nil
}

// LastSaga returns the saga started by the most recent successful fix, or nil.
func (r *Remediator) LastSaga() *Saga {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Close cancels every outstanding saga and waits for them to stop.
func (r *Remediator) Close() {
	r.cancel()
	r.mu.Lock()
	pending := make([]*Saga, 0, len(r.sagas))
	for s := range r.sagas {
		pending = append(pending, s)
	}
	r.mu.Unlock()
	for _, s := range pending {
		s.Wait()
	}
}

// -- Follow-up Saga --

// Outcome records what a saga did.
type Outcome struct {
	Rescanned bool
	Issues    int
	Exported  []string
	Err       error
}

// Saga is the deferred two-step follow-up of a fix: a re-scan after RescanDelay
// and, when that scan is clean, an export after ExportDelay.
type Saga struct {
	cancel  context.CancelFunc
	done    chan struct{}
	outcome Outcome
}

// Cancel stops the saga at its next step boundary.
func (s *Saga) Cancel() { s.cancel() }

// Wait blocks until the saga has finished and returns its outcome.
func (s *Saga) Wait() Outcome {
	<-s.done
	return s.outcome
}

// Done is closed when the saga finishes.
func (s *Saga) Done() <-chan struct{} { return s.done }

func (r *Remediator) startSaga() {
	ctx, cancel := context.WithCancel(r.lifetime)
	s := &Saga{cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.sagas[s] = struct{}{}
	r.last = s
	r.mu.Unlock()

	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				s.outcome.Err = fmt.Errorf("follow-up panicked: %v", recovered)
				r.report(s.outcome.Err)
			}
			cancel()
			r.mu.Lock()
			delete(r.sagas, s)
			r.mu.Unlock()
			close(s.done)
		}()
		s.outcome = r.runSaga(ctx)
		if s.outcome.Err != nil && !errors.Is(s.outcome.Err, context.Canceled) {
			r.report(s.outcome.Err)
		}
	}()
}

func (r *Remediator) runSaga(ctx context.Context) Outcome {
	var out Outcome
	if err := sleep(ctx, r.opts.RescanDelay); err != nil {
		out.Err = err
		return out
	}

	issues, _, err := r.scanner.Scan(ctx)
	if err != nil {
		out.Err = fmt.Errorf("deferred re-scan failed: %w", err)
		return out
	}
	out.Rescanned = true
	out.Issues = issues

	if issues != 0 || !r.opts.AutoExport || r.exporter == nil {
		return out
	}
	if err := sleep(ctx, r.opts.ExportDelay); err != nil {
		out.Err = err
		return out
	}

	paths, err := r.exporter.ExportScanStatistics(ctx)
	if err != nil {
		out.Err = fmt.Errorf("deferred export failed: %w", err)
		return out
	}
	out.Exported = paths
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
