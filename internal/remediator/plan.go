// Package remediator fixes the subset of scanner-detectable defects that can be
// repaired mechanically.
package remediator

import (
	"strings"

	"github.com/xkilldash9x/domsentry/internal/document"
	"github.com/xkilldash9x/domsentry/internal/parser"
	"golang.org/x/net/html"
)

// DefaultStyleFixLimit bounds how many inline-style candidates one pass examines.
const DefaultStyleFixLimit = 10

// UnwrapTags are the deprecated tags replaced by their text. frame and frameset
// are reported by the scanner but carry no text worth keeping.
var UnwrapTags = []string{"marquee", "blink", "center", "font"}

// mediaTags protect an otherwise empty div from removal.
var mediaTags = map[string]struct{}{
	"img": {}, "svg": {}, "video": {}, "iframe": {}, "canvas": {},
	"input": {}, "button": {}, "select": {}, "textarea": {},
}

// Utility classes that replace inline hiding styles.
const (
	ClassHidden    = "hidden"
	ClassInvisible = "invisible"
)

// StyleFix replaces a node's inline hiding style with a utility class.
type StyleFix struct {
	Node  *html.Node
	Class string
}

// Plan is an explicit list of node references to mutate, derived before any
// mutation happens.
type Plan struct {
	RemoveEmpty []*html.Node
	Unwrap      []*html.Node
	Styles      []StyleFix
	// Protected counts style candidates skipped because the overlay predicate
	// could not be evaluated.
	Protected int
}

// Len is the number of planned actions.
func (p Plan) Len() int {
	return len(p.RemoveEmpty) + len(p.Unwrap) + len(p.Styles)
}

// PlanOptions controls plan derivation.
type PlanOptions struct {
	StyleFixLimit int
	// Overlay matches subtrees whose inline styles belong to a UI framework.
	Overlay document.Predicate
}

// DefaultPlanOptions protects portal roots and toast containers.
func DefaultPlanOptions() PlanOptions {
	return PlanOptions{
		StyleFixLimit: DefaultStyleFixLimit,
		Overlay: document.ByClosestAncestor{Inner: document.AnyOf{
			document.ByAttribute{Name: "data-radix-portal"},
			document.ByAttribute{Name: "data-sonner-toaster"},
		}},
	}
}

// BuildPlan derives every action from the unmodified tree. It acts on every
// qualifying element, independent of scanner report thresholds.
func BuildPlan(doc *document.Document, opts PlanOptions) Plan {
	var plan Plan
	removed := make(map[*html.Node]struct{})
	verdicts := make(map[*html.Node]bool)

	// Document order puts an empty wrapper before the empty divs it holds.
	for _, div := range doc.ElementsByTag("div") {
		if removableEmpty(div, verdicts) {
			plan.RemoveEmpty = append(plan.RemoveEmpty, div)
			removed[div] = struct{}{}
		}
	}

	for _, tag := range UnwrapTags {
		plan.Unwrap = append(plan.Unwrap, doc.ElementsByTag(tag)...)
	}

	examined := 0
	for _, el := range doc.Elements() {
		if examined >= opts.StyleFixLimit {
			break
		}
		if !document.HasAttr(el, "style") || document.HasAttr(el, "data-state") {
			continue
		}
		if _, ok := removed[el]; ok || insideUnwrapped(el) {
			continue
		}
		if opts.Overlay != nil {
			inOverlay, err := opts.Overlay.Match(el)
			if err != nil {
				// Fail closed: an element we cannot judge is never touched.
				plan.Protected++
				continue
			}
			if inOverlay {
				continue
			}
		}
		examined++

		style, _ := document.Attr(el, "style")
		inline := parser.ParseInline(style)
		switch {
		case inline.DisplayNone():
			plan.Styles = append(plan.Styles, StyleFix{Node: el, Class: ClassHidden})
		case inline.VisibilityHidden():
			plan.Styles = append(plan.Styles, StyleFix{Node: el, Class: ClassInvisible})
		}
	}
	return plan
}

// Apply mutates the tree and returns the number of fixes made. Actions whose
// node has already been detached by an earlier action are skipped.
func Apply(plan Plan) int {
	fixed := 0
	// Innermost first, so every planned div of a nested chain is still attached
	// when its turn comes.
	for i := len(plan.RemoveEmpty) - 1; i >= 0; i-- {
		div := plan.RemoveEmpty[i]
		if !document.Attached(div) {
			continue
		}
		document.Detach(div)
		fixed++
	}
	for _, el := range plan.Unwrap {
		if el.Parent == nil || !document.Attached(el) {
			continue
		}
		text := &html.Node{Type: html.TextNode, Data: document.TextContent(el)}
		el.Parent.InsertBefore(text, el)
		document.Detach(el)
		fixed++
	}
	for _, fix := range plan.Styles {
		if !document.Attached(fix.Node) {
			continue
		}
		addClass(fix.Node, fix.Class)
		document.RemoveAttr(fix.Node, "style")
		fixed++
	}
	return fixed
}

// removableEmpty is the scanner's empty-leaf test widened to form controls,
// minus elements that carry an id or mark a portal root. A div whose only
// element children are themselves removable counts as empty too, since it
// becomes a leaf once they go.
func removableEmpty(div *html.Node, verdicts map[*html.Node]bool) bool {
	if v, ok := verdicts[div]; ok {
		return v
	}
	v := emptyWrapper(div, verdicts)
	verdicts[div] = v
	return v
}

func emptyWrapper(div *html.Node, verdicts map[*html.Node]bool) bool {
	if document.HasAttr(div, "id") || document.HasAttr(div, "data-radix-portal") {
		return false
	}
	if hasMedia(div) || strings.TrimSpace(document.TextContent(div)) != "" {
		return false
	}
	for c := div.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if document.Tag(c) != "div" || !removableEmpty(c, verdicts) {
			return false
		}
	}
	return true
}

func hasMedia(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if _, ok := mediaTags[document.Tag(c)]; ok {
			return true
		}
		if hasMedia(c) {
			return true
		}
	}
	return false
}

func insideUnwrapped(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		tag := document.Tag(p)
		for _, unwrap := range UnwrapTags {
			if tag == unwrap {
				return true
			}
		}
	}
	return false
}

func addClass(n *html.Node, class string) {
	existing := document.Classes(n)
	for _, c := range existing {
		if c == class {
			return
		}
	}
	document.SetAttr(n, "class", strings.TrimSpace(strings.Join(append(existing, class), " ")))
}
