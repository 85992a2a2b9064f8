package roddoc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/domtailor/docrt"
)

const bindingName = "__domtailor_push"

// Runtime is a docrt.Runtime bound to one live page.
type Runtime struct {
	page   *rod.Page
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	events chan docrt.Event
	cancel context.CancelFunc
}

var _ docrt.Runtime = (*Runtime)(nil)
var _ docrt.EventSource = (*Runtime)(nil)

func newRuntime(page *rod.Page, logger *slog.Logger) (*Runtime, error) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		page:   page,
		logger: logger,
		events: make(chan docrt.Event, 64),
		cancel: cancel,
	}
	if err := rt.inject(); err != nil {
		cancel()
		return nil, err
	}
	go rt.listenBinding(ctx)
	return rt, nil
}

// inject installs the helper library and the JS→Go binding. Reload-safe:
// called again after every reset.
func (rt *Runtime) inject() error {
	err := proto.RuntimeAddBinding{Name: bindingName}.Call(rt.page)
	if err != nil {
		rt.logger.Warn("roddoc: add binding failed (may already exist)", "error", err)
	}
	if _, err := rt.page.Eval(libJS); err != nil {
		return fmt.Errorf("roddoc: inject library: %w", err)
	}
	return nil
}

// listenBinding receives interaction events pushed from the page.
func (rt *Runtime) listenBinding(ctx context.Context) {
	rt.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var ev docrt.Event
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			rt.logger.Warn("roddoc: parse binding payload", "error", err)
			return
		}
		select {
		case rt.events <- ev:
		default:
			// Interaction bursts beyond the buffer are dropped; the
			// selection state lives page-side in the engine, not here.
			rt.logger.Debug("roddoc: event dropped", "kind", ev.Kind)
		}
	})()
	close(rt.events)
}

// Events returns the page interaction stream. Closed when the runtime
// closes.
func (rt *Runtime) Events() <-chan docrt.Event { return rt.events }

// Info reports the page URL and title.
func (rt *Runtime) Info(ctx context.Context) (*docrt.DocInfo, error) {
	info, err := rt.page.Context(ctx).Info()
	if err != nil {
		return nil, fmt.Errorf("roddoc: page info: %w", err)
	}
	return &docrt.DocInfo{URL: info.URL, Title: info.Title}, nil
}

// Query evaluates a read in the page and decodes the structured reply.
func (rt *Runtime) Query(ctx context.Context, q docrt.Query) (*docrt.Result, error) {
	wire := wireQuery{
		Kind:      string(q.Kind),
		CSS:       targetCSS(q.Target),
		MaxFontPx: q.Target.MaxFontPx,
		Limit:     q.Limit,
		Summary:   q.Summary,
		Metrics:   q.Metrics,
	}
	return rt.eval(ctx, `q => window.__domtailor.query(q)`, wire)
}

// Mutate evaluates a write in the page and decodes the structured reply.
func (rt *Runtime) Mutate(ctx context.Context, m docrt.Mutation) (*docrt.Result, error) {
	if m.Kind == docrt.MutReset {
		return rt.reset(ctx)
	}
	wire := wireMutation{
		Kind:      string(m.Kind),
		CSS:       targetCSS(m.Target),
		MaxFontPx: m.Target.MaxFontPx,
		Styles:    m.Styles,
		Attrs:     m.Attrs,
		AttrKeys:  m.AttrKeys,
		Fragment:  m.Fragment,
		Dest:      m.Dest,
		Position:  string(m.Position),
		Mode:      m.Mode,
		Binding:   bindingName,
	}
	return rt.eval(ctx, `m => window.__domtailor.mutate(m)`, wire)
}

// reset reloads the page and reinstalls the helper library.
func (rt *Runtime) reset(ctx context.Context) (*docrt.Result, error) {
	if err := rt.page.Context(ctx).Reload(); err != nil {
		return nil, fmt.Errorf("roddoc: reload: %w", err)
	}
	if err := rt.page.Context(ctx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("roddoc: wait load after reload: %w", err)
	}
	if err := rt.inject(); err != nil {
		return nil, err
	}
	return &docrt.Result{}, nil
}

func (rt *Runtime) eval(ctx context.Context, entry string, arg any) (*docrt.Result, error) {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return nil, fmt.Errorf("roddoc: runtime closed")
	}
	rt.mu.Unlock()

	res, err := rt.page.Context(ctx).Eval(entry, arg)
	if err != nil {
		return nil, err
	}
	var out docrt.Result
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &out); err != nil {
		return nil, fmt.Errorf("roddoc: decode result: %w", err)
	}
	return &out, nil
}

// Close releases the page. Idempotent.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil
	}
	rt.closed = true
	rt.cancel()
	return rt.page.Close()
}

func targetCSS(t docrt.Target) string {
	if t.IsZero() {
		return ""
	}
	return t.CSS()
}

// wireQuery is the flattened query sent into the page: addresses are
// pre-rendered to their canonical CSS form so the page script never needs
// address internals.
type wireQuery struct {
	Kind      string             `json:"kind"`
	CSS       string             `json:"css,omitempty"`
	MaxFontPx float64            `json:"max_font_px,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Summary   *docrt.SummarySpec `json:"summary,omitempty"`
	Metrics   *docrt.MetricsSpec `json:"metrics,omitempty"`
}

type wireMutation struct {
	Kind      string            `json:"kind"`
	CSS       string            `json:"css,omitempty"`
	MaxFontPx float64           `json:"max_font_px,omitempty"`
	Styles    map[string]string `json:"styles,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	AttrKeys  []string          `json:"attr_keys,omitempty"`
	Fragment  string            `json:"fragment,omitempty"`
	Dest      string            `json:"dest,omitempty"`
	Position  string            `json:"position,omitempty"`
	Mode      string            `json:"mode,omitempty"`
	Binding   string            `json:"binding,omitempty"`
}
