package document

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Tag returns the lowercase tag name of an element, or "" for other node types.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Attr returns the named attribute and whether it is present. An attribute
// present with an empty value reports ("", true).
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func HasAttr(n *html.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr sets or adds an attribute.
func SetAttr(n *html.Node, name, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(name), Val: val})
}

// RemoveAttr deletes every occurrence of the named attribute.
func RemoveAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// Classes returns the whitespace-separated entries of the class attribute.
func Classes(n *html.Node) []string {
	return strings.Fields(htmlquery.SelectAttr(n, "class"))
}

// TextContent concatenates the text of n and all its descendants.
func TextContent(n *html.Node) string {
	return htmlquery.InnerText(n)
}

// ElementChildren counts the direct children of n that are elements.
func ElementChildren(n *html.Node) int {
	count := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			count++
		}
	}
	return count
}

// Detach removes n from its parent. Detaching an already detached node is a no-op.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Attached reports whether n is still reachable from a document root.
func Attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.DocumentNode {
			return true
		}
	}
	return false
}

// Describe renders an element as a short selector-like label, e.g. "div#main.card".
func Describe(n *html.Node) string {
	var b strings.Builder
	b.WriteString(Tag(n))
	if id := htmlquery.SelectAttr(n, "id"); id != "" {
		b.WriteString("#")
		b.WriteString(id)
	}
	for _, c := range Classes(n) {
		b.WriteString(".")
		b.WriteString(c)
	}
	return b.String()
}
