package memdoc

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/domtailor/docrt"
)

// match resolves a target to its current node set. Unresolvable targets
// (stale addresses, selectors matching nothing) yield an empty set, never an
// error; only an unparsable selector fails.
func (r *Runtime) match(t docrt.Target) ([]*html.Node, error) {
	var nodes []*html.Node
	switch {
	case !t.Address.IsZero():
		if n := r.resolveAddress(t.Address); n != nil {
			nodes = []*html.Node{n}
		}
	case t.Selector != "":
		sel, err := cascadia.Compile(t.Selector)
		if err != nil {
			return nil, fmt.Errorf("memdoc: selector %q: %w", t.Selector, err)
		}
		nodes = sel.MatchAll(r.doc)
	default:
		return nil, nil
	}
	if t.MaxFontPx > 0 {
		kept := nodes[:0]
		for _, n := range nodes {
			if fontPx(n) < t.MaxFontPx {
				kept = append(kept, n)
			}
		}
		nodes = kept
	}
	return nodes, nil
}

// matchFirst resolves a target to its first matching node, or nil.
func (r *Runtime) matchFirst(t docrt.Target) (*html.Node, error) {
	nodes, err := r.match(t)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// resolveAddress walks an address against the current tree. A path step
// that no longer exists resolves to nil.
func (r *Runtime) resolveAddress(a docrt.Address) *html.Node {
	if a.ID != "" {
		var found *html.Node
		walk(r.doc, func(n *html.Node) bool {
			if attr(n, "id") == a.ID {
				found = n
				return false
			}
			return true
		})
		return found
	}
	if len(a.Steps) == 0 {
		return nil
	}

	root := findFirstTag(r.doc, "html")
	if root == nil || a.Steps[0].Tag != "html" {
		return nil
	}
	cur := root
	for _, step := range a.Steps[1:] {
		cur = childAt(cur, step)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// childAt picks the element child named by a step: by ordinal when the step
// carries one, by tag for the bare head/body steps.
func childAt(parent *html.Node, step docrt.Step) *html.Node {
	ord := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		ord++
		if step.Ordinal > 0 {
			if ord == step.Ordinal {
				if c.Data != step.Tag {
					return nil
				}
				return c
			}
			continue
		}
		if c.Data == step.Tag {
			return c
		}
	}
	return nil
}
