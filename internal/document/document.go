// Package document wraps a parsed HTML tree with the traversal and mutation
// helpers the diagnostics engine needs, and defines the Hosts that own the tree.
package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Document is a view over a host-owned node tree. LocationHost is the host name
// the document was served from; scripts loaded from any other host are foreign.
type Document struct {
	Root         *html.Node
	LocationHost string
}

// Parse reads an HTML document. The html5 parser never rejects input, so errors
// only come from the reader.
func Parse(r io.Reader, locationHost string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{Root: root, LocationHost: locationHost}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(markup, locationHost string) (*Document, error) {
	return Parse(strings.NewReader(markup), locationHost)
}

// Render serializes the full tree back to markup.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.Root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

// Clone returns a deep copy that shares no nodes with d.
func (d *Document) Clone() *Document {
	return &Document{Root: cloneNode(d.Root), LocationHost: d.LocationHost}
}

// ReplaceRoot swaps the whole tree in place, so callers holding d observe the new content.
func (d *Document) ReplaceRoot(other *Document) {
	d.Root = other.Root
}

// Walk visits every node in document order. Returning false from fn skips the
// node's subtree. Children are captured before descending, so fn may detach the
// node it is visiting.
func (d *Document) Walk(fn func(n *html.Node) bool) {
	walk(d.Root, fn)
}

func walk(n *html.Node, fn func(n *html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		walk(c, fn)
		c = next
	}
}

// Elements returns every element node in document order.
func (d *Document) Elements() []*html.Node {
	var out []*html.Node
	d.Walk(func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
		return true
	})
	return out
}

// ElementsByTag returns the elements whose tag name matches one of tags.
func (d *Document) ElementsByTag(tags ...string) []*html.Node {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[strings.ToLower(t)] = struct{}{}
	}
	var out []*html.Node
	d.Walk(func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if _, ok := set[Tag(n)]; ok {
				out = append(out, n)
			}
		}
		return true
	})
	return out
}

func cloneNode(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}
