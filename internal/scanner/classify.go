// Package scanner inspects a document tree for structural and quality defects.
package scanner

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xkilldash9x/domsentry/api/schemas"
	"github.com/xkilldash9x/domsentry/internal/config"
	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/parser"
	"golang.org/x/net/html"
)

// DeprecatedTags lists the obsolete presentational tags, in report order.
var DeprecatedTags = []string{"marquee", "blink", "center", "font", "frame", "frameset"}

// maxExamples caps the illustrative sub-entries attached to an aggregate issue.
const maxExamples = 3

// Options holds the classification thresholds. Aggregate categories are only
// reported when their count strictly exceeds the threshold.
type Options struct {
	InlineScriptMaxLen int
	EmptyDivThreshold  int
	InlineStyleLimit   int
	MaxClasses         int
	CommentLimit       int
	DataAttrMaxLen     int
	HiddenLimit        int
	// Ignore excludes framework-managed elements from the class-count check.
	Ignore document.Predicate
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.NewDefaultConfig().Scanner())
}

func OptionsFromConfig(cfg config.ScannerConfig) Options {
	return Options{
		InlineScriptMaxLen: cfg.InlineScriptMaxLen,
		EmptyDivThreshold:  cfg.EmptyDivThreshold,
		InlineStyleLimit:   cfg.InlineStyleLimit,
		MaxClasses:         cfg.MaxClasses,
		CommentLimit:       cfg.CommentLimit,
		DataAttrMaxLen:     cfg.DataAttrMaxLen,
		HiddenLimit:        cfg.HiddenLimit,
		Ignore:             document.FrameworkManaged(cfg.IgnoreAttrPrefixes, cfg.IgnoreRoles),
	}
}

// Result is the outcome of one classification pass.
type Result struct {
	Issues     []schemas.Issue
	Statistics schemas.ScanStatistics
	// IgnoreErrors counts elements whose ignore check could not be evaluated.
	// Those elements were treated as not ignored.
	IgnoreErrors int
}

// tally accumulates counts during the traversal.
type tally struct {
	scriptIssues []schemas.Issue
	deprecated   map[string]int
	manyClasses  []*html.Node
	classCounts  []int
	ignoreErrors int
	stats        schemas.ScanStatistics
}

// Classify walks the tree once and never mutates it.
func Classify(doc *document.Document, opts Options, now time.Time) Result {
	t := &tally{deprecated: make(map[string]int)}

	doc.Walk(func(n *html.Node) bool {
		switch n.Type {
		case html.CommentNode:
			t.stats.Comments++
		case html.ElementNode:
			t.element(n, doc.LocationHost, opts)
		}
		return true
	})

	issues := t.issues(opts)

	stats := t.stats
	stats.IssuesList = []string{}
	for _, issue := range issues {
		stats.IssuesList = append(stats.IssuesList, issue.Lines()...)
	}
	stats.Issues = len(stats.IssuesList)
	stats.Timestamp = now

	return Result{Issues: issues, Statistics: stats, IgnoreErrors: t.ignoreErrors}
}

func (t *tally) element(n *html.Node, locationHost string, opts Options) {
	t.stats.TotalElements++
	tag := document.Tag(n)

	if tag == "script" {
		t.script(n, locationHost, opts)
	}
	for _, deprecated := range DeprecatedTags {
		if tag == deprecated {
			t.deprecated[tag]++
			t.stats.DeprecatedTags++
		}
	}
	if tag == "div" && isEmptyLeaf(n) {
		t.stats.EmptyDivs++
	}

	style, hasStyle := document.Attr(n, "style")
	if hasStyle {
		t.stats.InlineStyles++
	}

	if classes := len(document.Classes(n)); classes > opts.MaxClasses {
		ignored, err := ignoreMatch(opts.Ignore, n)
		if err != nil {
			// Fail open: an element we cannot judge is still reported.
			t.ignoreErrors++
		}
		if !ignored {
			t.manyClasses = append(t.manyClasses, n)
			t.classCounts = append(t.classCounts, classes)
		}
	}

	for _, a := range n.Attr {
		if strings.HasPrefix(strings.ToLower(a.Key), "data-") && utf8.RuneCountInString(a.Val) > opts.DataAttrMaxLen {
			t.stats.LongDataAttrs++
			break
		}
	}

	if document.HasAttr(n, "hidden") {
		t.stats.HiddenElements++
	} else if hasStyle {
		inline := parser.ParseInline(style)
		if inline.DisplayNone() || inline.VisibilityHidden() {
			t.stats.HiddenElements++
		}
	}
}

func (t *tally) script(n *html.Node, locationHost string, opts Options) {
	t.stats.Scripts++
	index := t.stats.Scripts

	if src, ok := document.Attr(n, "src"); ok && src != "" && isForeign(src, locationHost) {
		t.scriptIssues = append(t.scriptIssues, schemas.Issue{
			Category: schemas.CategoryForeignScript,
			Message:  fmt.Sprintf("Foreign script #%d: %s", index, src),
			Count:    1,
		})
	}
	if body := utf8.RuneCountInString(document.TextContent(n)); body > opts.InlineScriptMaxLen {
		t.scriptIssues = append(t.scriptIssues, schemas.Issue{
			Category: schemas.CategoryLargeInlineScript,
			Message:  fmt.Sprintf("Large inline script #%d: %d characters", index, body),
			Count:    1,
		})
	}
}

// issues assembles the report in a fixed category order.
func (t *tally) issues(opts Options) []schemas.Issue {
	issues := append([]schemas.Issue{}, t.scriptIssues...)

	for _, tag := range DeprecatedTags {
		if count := t.deprecated[tag]; count > 0 {
			issues = append(issues, schemas.Issue{
				Category: schemas.CategoryDeprecatedTag,
				Message:  fmt.Sprintf("Deprecated tag <%s>: %d found", tag, count),
				Count:    count,
			})
		}
	}

	s := t.stats
	if s.EmptyDivs > opts.EmptyDivThreshold {
		issues = append(issues, schemas.Issue{
			Category: schemas.CategoryEmptyDiv,
			Message:  fmt.Sprintf("Empty <div> elements: %d found", s.EmptyDivs),
			Count:    s.EmptyDivs,
		})
	}
	if s.InlineStyles > opts.InlineStyleLimit {
		issues = append(issues, schemas.Issue{
			Category: schemas.CategoryInlineStyles,
			Message:  fmt.Sprintf("Too many inline styles: %d elements", s.InlineStyles),
			Count:    s.InlineStyles,
		})
	}

	t.stats.ElementsWithManyClasses = len(t.manyClasses)
	if len(t.manyClasses) > 0 {
		issue := schemas.Issue{
			Category: schemas.CategoryManyClasses,
			Message:  fmt.Sprintf("Elements with excessive classes: %d found", len(t.manyClasses)),
			Count:    len(t.manyClasses),
		}
		for i, n := range t.manyClasses {
			if i == maxExamples {
				break
			}
			issue.Examples = append(issue.Examples,
				fmt.Sprintf("%s (%d classes) at %s", document.Tag(n), t.classCounts[i], document.XPath(n)))
		}
		issues = append(issues, issue)
	}

	if s.Comments > opts.CommentLimit {
		issues = append(issues, schemas.Issue{
			Category: schemas.CategoryHTMLComments,
			Message:  fmt.Sprintf("HTML comments: %d found", s.Comments),
			Count:    s.Comments,
		})
	}
	if s.LongDataAttrs > 0 {
		issues = append(issues, schemas.Issue{
			Category: schemas.CategoryLongDataAttr,
			Message:  fmt.Sprintf("data-* attributes over %d characters: %d elements", opts.DataAttrMaxLen, s.LongDataAttrs),
			Count:    s.LongDataAttrs,
		})
	}
	if s.HiddenElements > opts.HiddenLimit {
		issues = append(issues, schemas.Issue{
			Category: schemas.CategoryHiddenElements,
			Message:  fmt.Sprintf("Hidden elements: %d found", s.HiddenElements),
			Count:    s.HiddenElements,
		})
	}
	return issues
}

// isEmptyLeaf reports a div with no element children and only whitespace text.
// Without element children it cannot hold a media descendant either.
func isEmptyLeaf(n *html.Node) bool {
	return document.ElementChildren(n) == 0 && strings.TrimSpace(document.TextContent(n)) == ""
}

// isForeign reports whether src loads from a host other than locationHost.
// Relative and protocol-less paths are same-origin.
func isForeign(src, locationHost string) bool {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		// An unparseable src cannot be attributed to the document's own host.
		return true
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	return !strings.EqualFold(host, locationHost)
}

func ignoreMatch(p document.Predicate, n *html.Node) (bool, error) {
	if p == nil {
		return false, nil
	}
	return p.Match(n)
}
