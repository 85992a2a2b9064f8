package tailor

import (
	"context"
	"fmt"

	"github.com/hazyhaar/domtailor/docrt"
)

// highlight appearance applied by RuleHighlight.
var highlightStyles = map[string]string{
	"outline":          "3px solid #f59e0b",
	"background-color": "rgba(245, 158, 11, 0.15)",
}

// Apply executes one rule against the document and returns the number of
// nodes affected. Zero matches is a successful no-op. Rules that touch at
// least one node are appended, unmodified, to the session's transformation
// log.
func (s *Session) Apply(ctx context.Context, r Rule) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, r)
}

// applyLocked dispatches one validated rule. Caller holds mu.
func (s *Session) applyLocked(ctx context.Context, r Rule) (int, error) {
	m, err := ruleMutation(r)
	if err != nil {
		return 0, err
	}
	res, err := s.rt.Mutate(ctx, m)
	if err != nil {
		return 0, fmt.Errorf("tailor: apply %s: %w", r.Kind, err)
	}
	if res.Count >= 1 {
		s.log = append(s.log, r)
	}
	return res.Count, nil
}

// ruleMutation translates a rule into its document mutation.
func ruleMutation(r Rule) (docrt.Mutation, error) {
	target := ruleTarget(r.Target)
	switch r.Kind {
	case RuleHide:
		return docrt.Mutation{
			Kind:   docrt.MutSetStyles,
			Target: target,
			Styles: map[string]string{"display": "none"},
		}, nil
	case RuleRemove:
		return docrt.Mutation{
			Kind:   docrt.MutRemoveNodes,
			Target: target,
		}, nil
	case RuleHighlight:
		return docrt.Mutation{
			Kind:   docrt.MutSetStyles,
			Target: target,
			Styles: highlightStyles,
		}, nil
	case RuleStyle:
		return docrt.Mutation{
			Kind:   docrt.MutSetStyles,
			Target: target,
			Styles: r.Styles,
		}, nil
	case RuleReplace:
		return docrt.Mutation{
			Kind:     docrt.MutReplaceContent,
			Target:   target,
			Fragment: r.Fragment,
		}, nil
	case RuleMove:
		return docrt.Mutation{
			Kind:     docrt.MutMoveNodes,
			Target:   target,
			Dest:     r.Dest,
			Position: docrt.InsertPosition(r.Position),
		}, nil
	}
	return docrt.Mutation{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
}

// RuleApplication reports one rule's outcome during a template replay.
type RuleApplication struct {
	RuleID string `json:"rule_id"`
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// TemplateApplication is the outcome of replaying one template.
type TemplateApplication struct {
	TemplateID string            `json:"template_id"`
	Name       string            `json:"name"`
	Total      int               `json:"total"`
	Rules      []RuleApplication `json:"rules"`
}

// ApplyTemplate replays a template's rules in order. Each rule is
// independently subject to the zero-match no-op policy; stale targets cause
// partial application, never an aborted sequence. Per-rule failures are
// recorded and replay continues.
func (s *Session) ApplyTemplate(ctx context.Context, tpl *Template) (*TemplateApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &TemplateApplication{
		TemplateID: tpl.ID,
		Name:       tpl.Name,
		Rules:      make([]RuleApplication, 0, len(tpl.Rules)),
	}
	for _, r := range tpl.Rules {
		app := RuleApplication{RuleID: r.ID, Kind: string(r.Kind)}
		if err := r.Validate(); err != nil {
			app.Error = err.Error()
			out.Rules = append(out.Rules, app)
			continue
		}
		n, err := s.applyLocked(ctx, r)
		if err != nil {
			app.Error = err.Error()
		}
		app.Count = n
		out.Total += n
		out.Rules = append(out.Rules, app)
	}
	return out, nil
}
