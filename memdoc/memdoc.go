// Package memdoc implements the document runtime protocol over a parsed
// HTML tree held in memory.
//
// It backs tests, offline transformation of fetched pages, and the CLI's
// file mode. The full query and mutation surface of docrt is supported with
// one approximation: computed styles are derived from inline style
// attributes only (plus per-tag defaults), since there is no layout engine
// behind the tree. Listener mutations record the active mode and touch no
// nodes.
//
// A runtime is safe for use by one session at a time; calls serialize on an
// internal mutex.
package memdoc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/domtailor/docrt"
)

// Runtime is an in-memory docrt.Runtime.
type Runtime struct {
	mu     sync.Mutex
	url    string
	src    string
	doc    *html.Node
	mode   string
	closed bool
}

// Option configures a Runtime at parse time.
type Option func(*Runtime)

// WithURL sets the URL reported by Info.
func WithURL(u string) Option {
	return func(r *Runtime) { r.url = u }
}

// Parse builds a runtime from an HTML source string. The source is kept so
// a reset mutation can restore the pristine tree.
func Parse(src string, opts ...Option) (*Runtime, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("memdoc: parse: %w", err)
	}
	r := &Runtime{src: src, doc: doc}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Info reports the document URL and title.
func (r *Runtime) Info(ctx context.Context) (*docrt.DocInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errClosed
	}
	return &docrt.DocInfo{URL: r.url, Title: r.title()}, nil
}

// Query executes a read against the tree.
func (r *Runtime) Query(ctx context.Context, q docrt.Query) (*docrt.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errClosed
	}
	switch q.Kind {
	case docrt.QueryCount:
		nodes, err := r.match(q.Target)
		if err != nil {
			return nil, err
		}
		return &docrt.Result{Count: len(nodes)}, nil
	case docrt.QueryDescribe:
		return r.describe(q)
	case docrt.QueryStructural:
		return r.listStructural(q.Limit)
	case docrt.QueryText:
		return r.text(q.Target)
	case docrt.QueryHTML:
		return r.outerHTML(q.Target)
	case docrt.QuerySummary:
		return r.summary(q.Summary)
	case docrt.QueryMetrics:
		return r.metrics(q.Metrics)
	default:
		return nil, fmt.Errorf("memdoc: unsupported query kind %q", q.Kind)
	}
}

// Mutate executes a write against the tree.
func (r *Runtime) Mutate(ctx context.Context, m docrt.Mutation) (*docrt.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errClosed
	}
	switch m.Kind {
	case docrt.MutSetStyles:
		return r.setStyles(m)
	case docrt.MutSetAttrs:
		return r.setAttrs(m)
	case docrt.MutRemoveAttrs:
		return r.removeAttrs(m)
	case docrt.MutRemoveNodes:
		return r.removeNodes(m)
	case docrt.MutReplaceContent:
		return r.replaceContent(m)
	case docrt.MutMoveNodes:
		return r.moveNodes(m)
	case docrt.MutSetListeners:
		r.mode = m.Mode
		return &docrt.Result{}, nil
	case docrt.MutReset:
		doc, err := html.Parse(strings.NewReader(r.src))
		if err != nil {
			return nil, fmt.Errorf("memdoc: reset: %w", err)
		}
		r.doc = doc
		r.mode = ""
		return &docrt.Result{}, nil
	default:
		return nil, fmt.Errorf("memdoc: unsupported mutation kind %q", m.Kind)
	}
}

// Close marks the runtime unusable. Idempotent.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Mode reports the interaction mode set by the last listener mutation.
func (r *Runtime) Mode() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// Render serializes the current tree back to HTML.
func (r *Runtime) Render() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sb strings.Builder
	if err := html.Render(&sb, r.doc); err != nil {
		return "", fmt.Errorf("memdoc: render: %w", err)
	}
	return sb.String(), nil
}

var errClosed = fmt.Errorf("memdoc: runtime closed")

func (r *Runtime) title() string {
	n := findFirstTag(r.doc, "title")
	if n == nil {
		return ""
	}
	return collapse(textContent(n))
}
