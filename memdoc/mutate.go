package memdoc

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domtailor/docrt"
)

func (r *Runtime) setStyles(m docrt.Mutation) (*docrt.Result, error) {
	nodes, err := r.match(m.Target)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		mergeStyles(n, m.Styles)
	}
	return &docrt.Result{Count: len(nodes)}, nil
}

func (r *Runtime) setAttrs(m docrt.Mutation) (*docrt.Result, error) {
	nodes, err := r.match(m.Target)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		for k, v := range m.Attrs {
			setAttr(n, k, v)
		}
	}
	return &docrt.Result{Count: len(nodes)}, nil
}

func (r *Runtime) removeAttrs(m docrt.Mutation) (*docrt.Result, error) {
	nodes, err := r.match(m.Target)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		for _, k := range m.AttrKeys {
			removeAttr(n, k)
		}
	}
	return &docrt.Result{Count: len(nodes)}, nil
}

func (r *Runtime) removeNodes(m docrt.Mutation) (*docrt.Result, error) {
	nodes, err := r.match(m.Target)
	if err != nil {
		return nil, err
	}
	removed := 0
	for _, n := range nodes {
		if n.Parent == nil {
			continue
		}
		n.Parent.RemoveChild(n)
		removed++
	}
	return &docrt.Result{Count: removed}, nil
}

func (r *Runtime) replaceContent(m docrt.Mutation) (*docrt.Result, error) {
	nodes, err := r.match(m.Target)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		kids, err := parseFragment(m.Fragment, n)
		if err != nil {
			return nil, err
		}
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		for _, kid := range kids {
			n.AppendChild(kid)
		}
	}
	return &docrt.Result{Count: len(nodes)}, nil
}

// parseFragment parses HTML in the context of the node whose content it will
// become, so table/list fragments keep their structure.
func parseFragment(frag string, ctx *html.Node) ([]*html.Node, error) {
	context := &html.Node{
		Type:     html.ElementNode,
		Data:     ctx.Data,
		DataAtom: ctx.DataAtom,
	}
	kids, err := html.ParseFragment(strings.NewReader(frag), context)
	if err != nil {
		return nil, fmt.Errorf("memdoc: parse fragment: %w", err)
	}
	return kids, nil
}

func (r *Runtime) moveNodes(m docrt.Mutation) (*docrt.Result, error) {
	if !docrt.ValidPosition(m.Position) {
		return nil, fmt.Errorf("memdoc: move: bad position %q", m.Position)
	}
	nodes, err := r.match(m.Target)
	if err != nil {
		return nil, err
	}
	dest, err := r.matchFirst(docrt.Target{Selector: m.Dest})
	if err != nil {
		return nil, err
	}
	if dest == nil {
		// Missing destination is a no-op, not a failure.
		return &docrt.Result{}, nil
	}

	moved := 0
	refAfter := dest.NextSibling
	for _, n := range nodes {
		if n == dest || contains(n, dest) || n.Parent == nil {
			continue
		}
		if n == refAfter {
			refAfter = refAfter.NextSibling
		}
		n.Parent.RemoveChild(n)
		switch m.Position {
		case docrt.PosBefore, docrt.PosReplace:
			dest.Parent.InsertBefore(n, dest)
		case docrt.PosAfter:
			dest.Parent.InsertBefore(n, refAfter)
		case docrt.PosAppend:
			dest.AppendChild(n)
		case docrt.PosPrepend:
			dest.InsertBefore(n, dest.FirstChild)
		}
		moved++
	}
	if m.Position == docrt.PosReplace && moved > 0 && dest.Parent != nil {
		dest.Parent.RemoveChild(dest)
	}
	return &docrt.Result{Count: moved}, nil
}

// contains reports whether inner sits in outer's subtree.
func contains(outer, inner *html.Node) bool {
	for p := inner; p != nil; p = p.Parent {
		if p == outer {
			return true
		}
	}
	return false
}
