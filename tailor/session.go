package tailor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/hazyhaar/domtailor/docrt"
)

// Mode is one interaction mode. At most one mode's listeners are installed
// on the document at a time.
type Mode string

const (
	// ModeInspect shows a transient hover overlay; no persistent change.
	ModeInspect Mode = "inspect"

	// ModeSelect toggles selection membership on click.
	ModeSelect Mode = "select"

	// ModeRestructure intercepts nothing; transformations are issued
	// programmatically.
	ModeRestructure Mode = "restructure"

	// ModeStyle behaves like select, feeding the styling surface.
	ModeStyle Mode = "style"
)

// ValidMode reports whether m is one of the four interaction modes.
func ValidMode(m Mode) bool {
	switch m {
	case ModeInspect, ModeSelect, ModeRestructure, ModeStyle:
		return true
	}
	return false
}

// markerAttr marks selected nodes in the document so markers can be
// stripped with one attribute selector regardless of how selection grew.
const markerAttr = "data-tailor-selected"

var markerStyles = map[string]string{
	"outline":        "2px solid #4f8ff7",
	"outline-offset": "1px",
}

var markerClear = map[string]string{
	"outline":        "",
	"outline-offset": "",
}

// SelectedElement is one member of a session's selection.
type SelectedElement struct {
	Address string `json:"address"`
	Tag     string `json:"tag"`
	Text    string `json:"text,omitempty"`
}

// Session binds one attached document to its interaction state: the active
// mode, the ordered selection, and the append-only transformation log. All
// document round trips serialize through one mutex; operations are issued
// and awaited in order, never pipelined.
type Session struct {
	id     string
	rt     docrt.Runtime
	url    string
	title  string
	logger *slog.Logger
	conv   *converter.Converter

	analysis AnalysisConfig
	advisor  AdvisorConfig

	mu       sync.Mutex
	mode     Mode
	selected []SelectedElement
	log      []Rule
}

func newSession(id string, rt docrt.Runtime, info *docrt.DocInfo, cfg *Config, conv *converter.Converter, logger *slog.Logger) *Session {
	return &Session{
		id:       id,
		rt:       rt,
		url:      info.URL,
		title:    info.Title,
		logger:   logger,
		conv:     conv,
		analysis: cfg.Analysis,
		advisor:  cfg.Advisor,
		mode:     ModeRestructure,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// URL returns the url of the bound document as observed at attach time.
func (s *Session) URL() string { return s.url }

// Title returns the title of the bound document as observed at attach time.
func (s *Session) Title() string { return s.title }

// Mode returns the active interaction mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode replaces the active interaction mode. The runtime removes every
// listener and visual artifact of the previous mode before installing the
// new one; selection markers belong to the selection and survive.
func (s *Session) SetMode(ctx context.Context, mode Mode) error {
	if !ValidMode(mode) {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rt.Mutate(ctx, docrt.Mutation{
		Kind: docrt.MutSetListeners,
		Mode: string(mode),
	}); err != nil {
		return fmt.Errorf("tailor: set mode: %w", err)
	}
	s.mode = mode
	return nil
}

// Select adds every node matching target to the selection and marks it.
// Nodes already selected stay selected; zero matches is a no-op.
func (s *Session) Select(ctx context.Context, target string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectLocked(ctx, ruleTarget(target))
}

// Deselect removes every node matching target from the selection and strips
// its marker.
func (s *Session) Deselect(ctx context.Context, target string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deselectLocked(ctx, ruleTarget(target))
}

// Selected returns the current selection in insertion order.
func (s *Session) Selected() []SelectedElement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SelectedElement, len(s.selected))
	copy(out, s.selected)
	return out
}

// ClearSelection strips the marker from every selected node and empties the
// selection. Mode-independent; always leaves an empty set.
func (s *Session) ClearSelection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := docrt.TargetSelector("[" + markerAttr + "]")
	if _, err := s.rt.Mutate(ctx, docrt.Mutation{
		Kind:   docrt.MutSetStyles,
		Target: marked,
		Styles: markerClear,
	}); err != nil {
		return fmt.Errorf("tailor: clear selection: %w", err)
	}
	if _, err := s.rt.Mutate(ctx, docrt.Mutation{
		Kind:     docrt.MutRemoveAttrs,
		Target:   marked,
		AttrKeys: []string{markerAttr},
	}); err != nil {
		return fmt.Errorf("tailor: clear selection: %w", err)
	}
	s.selected = nil
	return nil
}

// Reset restores the document to its pristine state and clears the
// selection and the transformation log. The only undo path.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rt.Mutate(ctx, docrt.Mutation{Kind: docrt.MutReset}); err != nil {
		return fmt.Errorf("tailor: reset: %w", err)
	}
	s.selected = nil
	s.log = nil
	s.mode = ModeRestructure
	return nil
}

// Log returns a copy of the session's transformation log in application
// order.
func (s *Session) Log() []Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Rule, len(s.log))
	copy(out, s.log)
	return out
}

// selectLocked marks matches and records their addresses. Caller holds mu.
func (s *Session) selectLocked(ctx context.Context, target docrt.Target) (int, error) {
	res, err := s.rt.Query(ctx, docrt.Query{
		Kind:   docrt.QueryDescribe,
		Target: target,
		Limit:  s.analysis.ListLimit,
	})
	if err != nil {
		return 0, fmt.Errorf("tailor: select: %w", err)
	}
	if len(res.Elements) == 0 {
		return 0, nil
	}

	if _, err := s.rt.Mutate(ctx, docrt.Mutation{
		Kind:   docrt.MutSetAttrs,
		Target: target,
		Attrs:  map[string]string{markerAttr: "1"},
	}); err != nil {
		return 0, fmt.Errorf("tailor: select: %w", err)
	}
	if _, err := s.rt.Mutate(ctx, docrt.Mutation{
		Kind:   docrt.MutSetStyles,
		Target: target,
		Styles: markerStyles,
	}); err != nil {
		return 0, fmt.Errorf("tailor: select: %w", err)
	}

	added := 0
	for _, el := range res.Elements {
		if s.selectionIndex(el.Address) >= 0 {
			continue
		}
		s.selected = append(s.selected, SelectedElement{
			Address: el.Address,
			Tag:     el.Tag,
			Text:    el.Text,
		})
		added++
	}
	return added, nil
}

// deselectLocked strips markers from matches and drops their addresses.
// Caller holds mu.
func (s *Session) deselectLocked(ctx context.Context, target docrt.Target) (int, error) {
	res, err := s.rt.Query(ctx, docrt.Query{
		Kind:   docrt.QueryDescribe,
		Target: target,
		Limit:  s.analysis.ListLimit,
	})
	if err != nil {
		return 0, fmt.Errorf("tailor: deselect: %w", err)
	}
	if len(res.Elements) == 0 {
		return 0, nil
	}

	if _, err := s.rt.Mutate(ctx, docrt.Mutation{
		Kind:   docrt.MutSetStyles,
		Target: target,
		Styles: markerClear,
	}); err != nil {
		return 0, fmt.Errorf("tailor: deselect: %w", err)
	}
	if _, err := s.rt.Mutate(ctx, docrt.Mutation{
		Kind:     docrt.MutRemoveAttrs,
		Target:   target,
		AttrKeys: []string{markerAttr},
	}); err != nil {
		return 0, fmt.Errorf("tailor: deselect: %w", err)
	}

	removed := 0
	for _, el := range res.Elements {
		if i := s.selectionIndex(el.Address); i >= 0 {
			s.selected = append(s.selected[:i], s.selected[i+1:]...)
			removed++
		}
	}
	return removed, nil
}

func (s *Session) selectionIndex(address string) int {
	for i, el := range s.selected {
		if el.Address == address {
			return i
		}
	}
	return -1
}

// consumeEvents funnels page-side interactions into the selection. Runs
// until the runtime closes its event channel.
func (s *Session) consumeEvents(src docrt.EventSource) {
	for ev := range src.Events() {
		switch ev.Kind {
		case docrt.EventToggle:
			s.toggle(ev)
		case docrt.EventHover:
			s.logger.Debug("tailor: hover", "session_id", s.id, "address", ev.Address)
		}
	}
}

// toggle flips one node's selection membership in response to a page click.
func (s *Session) toggle(ev docrt.Event) {
	ctx := context.Background()
	addr, err := docrt.ParseAddress(ev.Address)
	if err != nil {
		s.logger.Warn("tailor: toggle with bad address", "session_id", s.id, "address", ev.Address)
		return
	}
	target := docrt.TargetAddress(addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectionIndex(ev.Address) >= 0 {
		if _, err := s.deselectLocked(ctx, target); err != nil {
			s.logger.Warn("tailor: toggle deselect", "session_id", s.id, "error", err)
		}
		return
	}
	if _, err := s.selectLocked(ctx, target); err != nil {
		s.logger.Warn("tailor: toggle select", "session_id", s.id, "error", err)
	}
}
