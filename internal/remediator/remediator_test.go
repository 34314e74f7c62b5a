package remediator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/notify"
	"github.com/xkilldash9x/domsentry/internal/scanner"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func wrap(body string) string {
	return "<html><head></head><body>" + body + "</body></html>"
}

func parse(t *testing.T, body string) *document.Document {
	t.Helper()
	doc, err := document.ParseString(wrap(body), "localhost")
	require.NoError(t, err)
	return doc
}

func bodyHTML(t *testing.T, doc *document.Document) string {
	t.Helper()
	out, err := doc.Render()
	require.NoError(t, err)
	start := strings.Index(out, "<body>") + len("<body>")
	end := strings.Index(out, "</body>")
	return out[start:end]
}

// -- Test doubles --

type fakeScanner struct {
	mu     sync.Mutex
	calls  int
	issues int
	err    error
	panics bool
}

func (f *fakeScanner) Scan(ctx context.Context) (int, *schemas.ScanStatistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("scanner exploded")
	}
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.issues, &schemas.ScanStatistics{Issues: f.issues}, nil
}

type fakeExporter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeExporter) ExportScanStatistics(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []string{"scan-report-2026-03-14.md", "scan-report-2026-03-14.json"}, nil
}

type reports struct {
	mu      sync.Mutex
	reasons []any
}

func (r *reports) report(reason any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *reports) all() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.reasons...)
}

type fixture struct {
	host     *document.MemoryHost
	scanner  *fakeScanner
	exporter *fakeExporter
	notes    *notify.Recorder
	reports  *reports
	r        *Remediator
}

func newFixture(t *testing.T, body string, opts Options) *fixture {
	t.Helper()
	host, err := document.NewMemoryHost(wrap(body), "localhost")
	require.NoError(t, err)
	f := &fixture{
		host:     host,
		scanner:  &fakeScanner{},
		exporter: &fakeExporter{},
		notes:    notify.NewRecorder(),
		reports:  &reports{},
	}
	f.r = New(host, f.scanner, f.exporter, f.notes, zap.NewNop(), opts)
	f.r.report = f.reports.report
	t.Cleanup(f.r.Close)
	return f
}

func fastOptions() Options {
	return Options{Plan: DefaultPlanOptions(), AutoExport: true}
}

// -- Plan and Apply --

func TestScenarioA(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, strings.Repeat("<div></div>", 6)+"<marquee>Hi</marquee>", fastOptions())

	fixed, err := f.r.FixJunkCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, fixed)

	doc, err := f.host.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hi", bodyHTML(t, doc))
	assert.Empty(t, doc.ElementsByTag("div"))
	assert.Empty(t, doc.ElementsByTag("marquee"))

	last, ok := f.notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.KindSuccess, last.Kind)
	assert.Equal(t, "Fixed 7 issues", last.Title)

	require.NotNil(t, f.r.LastSaga())
	f.r.LastSaga().Wait()
}

func TestEmptyLeafConfluence(t *testing.T) {
	doc := parse(t, `<main><p>keep</p>`+strings.Repeat("<div>  </div>", 8)+
		`<div id="anchor"></div><div><img src="a.png"></div><div><button>go</button></div>`+
		`<div data-radix-portal></div></main>`)

	first := scanner.Classify(doc, scanner.DefaultOptions(), time.Time{})
	require.Equal(t, 10, first.Statistics.EmptyDivs)

	plan := BuildPlan(doc, DefaultPlanOptions())
	assert.Len(t, plan.RemoveEmpty, 8, "id, media, control and portal divs are kept")
	assert.Equal(t, 8, Apply(plan))

	second := scanner.Classify(doc, scanner.DefaultOptions(), time.Time{})
	for _, issue := range second.Issues {
		assert.NotEqual(t, schemas.CategoryEmptyDiv, issue.Category)
	}
	assert.Len(t, doc.ElementsByTag("img"), 1)
	assert.Len(t, doc.ElementsByTag("button"), 1)
}

func TestEmptyLeafConfluence_NestedWrappers(t *testing.T) {
	doc := parse(t, strings.Repeat("<section><div><div> </div></div></section>", 6)+
		`<div class="outer"><div id="anchor"></div></div><div><div><p>text</p></div></div>`)

	first := scanner.Classify(doc, scanner.DefaultOptions(), time.Time{})
	require.Equal(t, 7, first.Statistics.EmptyDivs)

	plan := BuildPlan(doc, DefaultPlanOptions())
	assert.Len(t, plan.RemoveEmpty, 12, "each wrapper goes with the empty div it holds")
	assert.Equal(t, 12, Apply(plan))

	second := scanner.Classify(doc, scanner.DefaultOptions(), time.Time{})
	assert.Equal(t, 1, second.Statistics.EmptyDivs, "only the anchored div remains empty")
	for _, issue := range second.Issues {
		assert.NotEqual(t, schemas.CategoryEmptyDiv, issue.Category)
	}
	assert.Len(t, doc.ElementsByTag("section"), 6)
	assert.Len(t, doc.ElementsByTag("div"), 4, "the anchored div, its wrapper and the text wrappers stay")

	again := BuildPlan(doc, DefaultPlanOptions())
	assert.Empty(t, again.RemoveEmpty, "a second pass finds nothing new")
}

func TestUnwrapKeepsPosition(t *testing.T) {
	doc := parse(t, `<p>a<font color="red">b<b>c</b></font>d</p><center>mid</center><frame>`)

	plan := BuildPlan(doc, DefaultPlanOptions())
	assert.Len(t, plan.Unwrap, 2)
	assert.Equal(t, 2, Apply(plan))

	assert.Equal(t, "<p>abcd</p>mid", bodyHTML(t, doc))
}

func TestNestedDeprecatedTagsCountOnce(t *testing.T) {
	doc := parse(t, `<center><font>inner</font></center>`)

	plan := BuildPlan(doc, DefaultPlanOptions())
	require.Len(t, plan.Unwrap, 2)
	assert.Equal(t, 1, Apply(plan), "the inner tag left the tree with its parent")
	assert.Equal(t, "inner", bodyHTML(t, doc))
}

func TestStyleNormalization(t *testing.T) {
	doc := parse(t, `<p class="note" style="display: none">a</p>`+
		`<p style="visibility:hidden;color:red">b</p>`+
		`<p style="color:red">c</p>`+
		`<p style="display:none" data-state="open">d</p>`+
		`<div data-radix-portal><p style="display:none">e</p></div>`+
		`<section data-sonner-toaster><span style="visibility:hidden">f</span></section>`)

	plan := BuildPlan(doc, DefaultPlanOptions())
	require.Len(t, plan.Styles, 2)
	assert.Equal(t, ClassHidden, plan.Styles[0].Class)
	assert.Equal(t, ClassInvisible, plan.Styles[1].Class)
	assert.Equal(t, 2, Apply(plan))

	ps := doc.ElementsByTag("p")
	class, _ := document.Attr(ps[0], "class")
	assert.Equal(t, "note hidden", class)
	assert.False(t, document.HasAttr(ps[0], "style"))
	class, _ = document.Attr(ps[1], "class")
	assert.Equal(t, "invisible", class)
	assert.True(t, document.HasAttr(ps[2], "style"), "a visible style is left alone")
	assert.True(t, document.HasAttr(ps[3], "style"), "framework-managed state is left alone")
	assert.True(t, document.HasAttr(ps[4], "style"), "portal content is left alone")
	assert.True(t, document.HasAttr(doc.ElementsByTag("span")[0], "style"), "toast content is left alone")
}

func TestStyleFixLimit(t *testing.T) {
	doc := parse(t, strings.Repeat(`<p style="display:none">x</p>`, 15))

	plan := BuildPlan(doc, DefaultPlanOptions())
	assert.Len(t, plan.Styles, DefaultStyleFixLimit)

	opts := DefaultPlanOptions()
	opts.StyleFixLimit = 3
	assert.Len(t, BuildPlan(doc, opts).Styles, 3)

	opts.StyleFixLimit = 0
	assert.Empty(t, BuildPlan(doc, opts).Styles)
}

func TestMalformedOverlayFailsClosed(t *testing.T) {
	doc := parse(t, `<p style="display:none">a</p><p style="visibility:hidden">b</p>`)

	opts := DefaultPlanOptions()
	opts.Overlay = document.ByClosestAncestor{Inner: document.ByAttribute{}}
	plan := BuildPlan(doc, opts)

	assert.Empty(t, plan.Styles)
	assert.Equal(t, 2, plan.Protected)
	assert.Zero(t, Apply(plan))
	for _, p := range doc.ElementsByTag("p") {
		assert.True(t, document.HasAttr(p, "style"))
	}
}

func TestStyleInsideRemovedOrUnwrappedIsSkipped(t *testing.T) {
	doc := parse(t, `<marquee><span style="display:none">x</span></marquee>`)

	plan := BuildPlan(doc, DefaultPlanOptions())
	assert.Empty(t, plan.Styles)
	assert.Equal(t, 1, Apply(plan))
	assert.Equal(t, "x", bodyHTML(t, doc))
}

// -- FixJunkCode --

func TestNothingToFix(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, `<main><p>clean</p></main>`, fastOptions())

	fixed, err := f.r.FixJunkCode(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fixed)
	assert.Nil(t, f.r.LastSaga(), "no follow-up without fixes")

	last, ok := f.notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.KindInfo, last.Kind)
	assert.Equal(t, "Nothing to fix", last.Title)
}

type brokenHost struct {
	document.Host
	loadErr, commitErr error
}

func (b brokenHost) Load(ctx context.Context) (*document.Document, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.Host.Load(ctx)
}

func (b brokenHost) Commit(ctx context.Context, doc *document.Document) error {
	return b.commitErr
}

func TestHostFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	live, err := document.NewMemoryHost(wrap("<div></div>"), "localhost")
	require.NoError(t, err)

	t.Run("load", func(t *testing.T) {
		notes := notify.NewRecorder()
		r := New(brokenHost{Host: live, loadErr: errors.New("tab closed")}, &fakeScanner{}, nil, notes, zap.NewNop(), fastOptions())
		defer r.Close()

		_, err := r.FixJunkCode(context.Background())
		assert.ErrorContains(t, err, "tab closed")
		last, _ := notes.Last()
		assert.Equal(t, notify.KindError, last.Kind)
	})

	t.Run("commit", func(t *testing.T) {
		notes := notify.NewRecorder()
		r := New(brokenHost{Host: live, commitErr: errors.New("read-only")}, &fakeScanner{}, nil, notes, zap.NewNop(), fastOptions())
		defer r.Close()

		fixed, err := r.FixJunkCode(context.Background())
		assert.ErrorContains(t, err, "read-only")
		assert.Equal(t, 1, fixed)
		assert.Nil(t, r.LastSaga())
	})
}

// -- Follow-up saga --

func TestSagaRescansThenExports(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, "<div></div>", fastOptions())
	_, err := f.r.FixJunkCode(context.Background())
	require.NoError(t, err)

	out := f.r.LastSaga().Wait()
	require.NoError(t, out.Err)
	assert.True(t, out.Rescanned)
	assert.Zero(t, out.Issues)
	assert.Len(t, out.Exported, 2)
	assert.Equal(t, 1, f.scanner.calls)
	assert.Equal(t, 1, f.exporter.calls)
	assert.Empty(t, f.reports.all())
}

func TestSagaSkipsExport(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("issues remain", func(t *testing.T) {
		f := newFixture(t, "<div></div>", fastOptions())
		f.scanner.issues = 2
		_, err := f.r.FixJunkCode(context.Background())
		require.NoError(t, err)

		out := f.r.LastSaga().Wait()
		assert.True(t, out.Rescanned)
		assert.Equal(t, 2, out.Issues)
		assert.Zero(t, f.exporter.calls)
	})

	t.Run("auto export disabled", func(t *testing.T) {
		opts := fastOptions()
		opts.AutoExport = false
		f := newFixture(t, "<div></div>", opts)
		_, err := f.r.FixJunkCode(context.Background())
		require.NoError(t, err)

		f.r.LastSaga().Wait()
		assert.Zero(t, f.exporter.calls)
	})
}

func TestSagaFailuresAreReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("scan error", func(t *testing.T) {
		f := newFixture(t, "<div></div>", fastOptions())
		f.scanner.err = errors.New("host went away")

		fixed, err := f.r.FixJunkCode(context.Background())
		require.NoError(t, err, "saga failures never reach the caller")
		assert.Equal(t, 1, fixed)

		out := f.r.LastSaga().Wait()
		assert.ErrorContains(t, out.Err, "deferred re-scan failed")
		require.Len(t, f.reports.all(), 1)
	})

	t.Run("export error", func(t *testing.T) {
		f := newFixture(t, "<div></div>", fastOptions())
		f.exporter.err = errors.New("disk full")
		_, err := f.r.FixJunkCode(context.Background())
		require.NoError(t, err)

		out := f.r.LastSaga().Wait()
		assert.ErrorContains(t, out.Err, "deferred export failed")
		require.Len(t, f.reports.all(), 1)
	})

	t.Run("panic", func(t *testing.T) {
		f := newFixture(t, "<div></div>", fastOptions())
		f.scanner.panics = true
		_, err := f.r.FixJunkCode(context.Background())
		require.NoError(t, err)

		out := f.r.LastSaga().Wait()
		assert.ErrorContains(t, out.Err, "scanner exploded")
		require.Len(t, f.reports.all(), 1)
	})
}

func TestSagaCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	opts := fastOptions()
	opts.RescanDelay = time.Hour

	t.Run("cancel", func(t *testing.T) {
		f := newFixture(t, "<div></div>", opts)
		_, err := f.r.FixJunkCode(context.Background())
		require.NoError(t, err)

		saga := f.r.LastSaga()
		saga.Cancel()
		out := saga.Wait()
		assert.ErrorIs(t, out.Err, context.Canceled)
		assert.False(t, out.Rescanned)
		assert.Empty(t, f.reports.all(), "cancellation is not a failure")
	})

	t.Run("close", func(t *testing.T) {
		f := newFixture(t, "<div></div>", opts)
		_, err := f.r.FixJunkCode(context.Background())
		require.NoError(t, err)
		saga := f.r.LastSaga()

		f.r.Close()
		select {
		case <-saga.Done():
		default:
			t.Fatal("Close must wait for outstanding sagas")
		}
		assert.Zero(t, f.scanner.calls)
	})
}
