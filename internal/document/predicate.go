package document

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrMalformedPredicate is returned when a predicate was built with a
// definition it cannot evaluate, such as an empty attribute prefix.
var ErrMalformedPredicate = errors.New("malformed predicate")

// Predicate tests an element. Predicates are typed so that a bad definition is
// a reportable error rather than a silently non-matching selector string.
type Predicate interface {
	Match(n *html.Node) (bool, error)
	String() string
}

// ByAttributePrefix matches elements carrying any attribute whose name starts
// with Prefix, e.g. "data-radix" matches data-radix-popper-content-wrapper.
type ByAttributePrefix struct {
	Prefix string
}

func (p ByAttributePrefix) Match(n *html.Node) (bool, error) {
	if strings.TrimSpace(p.Prefix) == "" {
		return false, fmt.Errorf("%w: empty attribute prefix", ErrMalformedPredicate)
	}
	prefix := strings.ToLower(p.Prefix)
	for _, a := range n.Attr {
		if strings.HasPrefix(strings.ToLower(a.Key), prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (p ByAttributePrefix) String() string { return "[" + p.Prefix + "*]" }

// ByAttribute matches elements carrying the named attribute, whatever its value.
type ByAttribute struct {
	Name string
}

func (p ByAttribute) Match(n *html.Node) (bool, error) {
	if strings.TrimSpace(p.Name) == "" {
		return false, fmt.Errorf("%w: empty attribute name", ErrMalformedPredicate)
	}
	return HasAttr(n, p.Name), nil
}

func (p ByAttribute) String() string { return "[" + p.Name + "]" }

// ByRole matches elements whose role attribute equals Role.
type ByRole struct {
	Role string
}

func (p ByRole) Match(n *html.Node) (bool, error) {
	if strings.TrimSpace(p.Role) == "" {
		return false, fmt.Errorf("%w: empty role", ErrMalformedPredicate)
	}
	v, ok := Attr(n, "role")
	return ok && strings.EqualFold(strings.TrimSpace(v), p.Role), nil
}

func (p ByRole) String() string { return `[role="` + p.Role + `"]` }

// ByClosestAncestor matches an element when Inner matches it or any of its
// element ancestors.
type ByClosestAncestor struct {
	Inner Predicate
}

func (p ByClosestAncestor) Match(n *html.Node) (bool, error) {
	if p.Inner == nil {
		return false, fmt.Errorf("%w: closest() without inner predicate", ErrMalformedPredicate)
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		ok, err := p.Inner.Match(cur)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p ByClosestAncestor) String() string {
	if p.Inner == nil {
		return "closest(<nil>)"
	}
	return "closest(" + p.Inner.String() + ")"
}

// AnyOf matches when any member matches. Evaluation stops at the first error.
type AnyOf []Predicate

func (p AnyOf) Match(n *html.Node) (bool, error) {
	for _, inner := range p {
		if inner == nil {
			return false, fmt.Errorf("%w: nil member", ErrMalformedPredicate)
		}
		ok, err := inner.Match(n)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p AnyOf) String() string {
	parts := make([]string, 0, len(p))
	for _, inner := range p {
		if inner == nil {
			parts = append(parts, "<nil>")
			continue
		}
		parts = append(parts, inner.String())
	}
	return strings.Join(parts, ", ")
}

// FrameworkManaged builds the predicate for elements owned by UI frameworks:
// the element or an ancestor carries one of the attribute prefixes or roles.
func FrameworkManaged(prefixes, roles []string) Predicate {
	var members AnyOf
	for _, prefix := range prefixes {
		members = append(members, ByAttributePrefix{Prefix: prefix})
	}
	for _, role := range roles {
		members = append(members, ByRole{Role: role})
	}
	return ByClosestAncestor{Inner: members}
}
