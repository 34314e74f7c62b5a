package document

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// anchorAttrs name an element independently of its position, most stable first.
// Test ids survive the markup churn that makes positional paths go stale.
var anchorAttrs = []string{"id", "data-testid", "data-test", "data-component"}

// XPath returns an expression that selects exactly node. It starts at the
// closest ancestor-or-self whose anchor attribute is unique in the document,
// falling back to the root, and indexes a step only when siblings share its tag.
// Scan issues use it to point at offending elements.
func XPath(node *html.Node) string {
	if node == nil || node.Type != html.ElementNode {
		return ""
	}
	root := node
	for root.Parent != nil {
		root = root.Parent
	}

	var steps []string
	for n := node; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if anchor, ok := uniqueAnchor(root, n); ok {
			return anchor + joinSteps(steps)
		}
		steps = append(steps, step(n))
	}
	return joinSteps(steps)
}

// uniqueAnchor is "//tag[@attr='v']" for the first anchor attribute of n that
// selects n alone.
func uniqueAnchor(root, n *html.Node) (string, bool) {
	for _, attr := range anchorAttrs {
		val, ok := Attr(n, attr)
		if !ok || val == "" {
			continue
		}
		lit, ok := literal(val)
		if !ok {
			continue
		}
		expr := fmt.Sprintf("//%s[@%s=%s]", Tag(n), attr, lit)
		matches, err := htmlquery.QueryAll(root, expr)
		if err == nil && len(matches) == 1 && matches[0] == n {
			return expr, true
		}
	}
	return "", false
}

// step is the tag, with a 1-based index when a sibling shares it.
func step(n *html.Node) string {
	tag := Tag(n)
	index, total := 0, 0
	if n.Parent == nil {
		return tag
	}
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || Tag(c) != tag {
			continue
		}
		total++
		if c == n {
			index = total
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s[%d]", tag, index)
	}
	return tag
}

// joinSteps renders steps collected leaf-first as an absolute path.
func joinSteps(leafFirst []string) string {
	var b strings.Builder
	for i := len(leafFirst) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(leafFirst[i])
	}
	return b.String()
}

// literal quotes s for XPath 1.0, which has no escape sequences.
func literal(s string) (string, bool) {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'", true
	case !strings.Contains(s, `"`):
		return `"` + s + `"`, true
	default:
		return "", false
	}
}

// Query evaluates an XPath expression against the document.
func (d *Document) Query(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.Root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return nodes, nil
}
