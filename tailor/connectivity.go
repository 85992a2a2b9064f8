package tailor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/domtailor/connectivity"
)

// RegisterConnectivity registers tailor service handlers on a connectivity
// Router. The router is also retained for outbound calls: PlanSuggestions
// dispatches through it to the configured planner route.
//
// Registered services:
//
//	tailor_analyze        - inspect a session's document
//	tailor_apply          - apply one transformation rule
//	tailor_suggest        - run the readability advisor
//	tailor_digest         - convert a document region to Markdown
//	tailor_templates      - list stored templates
//	tailor_apply_template - replay a stored template
//	tailor_stats          - get tailor statistics
func (e *Engine) RegisterConnectivity(router *connectivity.Router) {
	e.router = router
	router.RegisterLocal("tailor_analyze", e.handleAnalyze)
	router.RegisterLocal("tailor_apply", e.handleApply)
	router.RegisterLocal("tailor_suggest", e.handleSuggest)
	router.RegisterLocal("tailor_digest", e.handleDigest)
	router.RegisterLocal("tailor_templates", e.handleTemplates)
	router.RegisterLocal("tailor_apply_template", e.handleApplyTemplate)
	router.RegisterLocal("tailor_stats", e.handleStats)
}

func (e *Engine) handleAnalyze(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	analysis, err := e.Analyze(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(analysis)
}

func (e *Engine) handleApply(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		SessionID string            `json:"session_id"`
		Kind      string            `json:"kind"`
		Target    string            `json:"target"`
		Styles    map[string]string `json:"styles"`
		Fragment  string            `json:"fragment"`
		Dest      string            `json:"dest"`
		Position  string            `json:"position"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	rule, err := NewRule(RuleKind(req.Kind), req.Target, req.Styles, req.Fragment, req.Dest, req.Position)
	if err != nil {
		return nil, err
	}
	count, err := e.Apply(ctx, req.SessionID, rule)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]any{"rule_id": rule.ID, "count": count})
}

func (e *Engine) handleSuggest(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	suggestions, err := e.Suggest(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(suggestions)
}

func (e *Engine) handleDigest(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		SessionID string `json:"session_id"`
		Selector  string `json:"selector"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	md, err := e.Digest(ctx, req.SessionID, req.Selector)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"markdown": md})
}

func (e *Engine) handleTemplates(ctx context.Context, _ []byte) ([]byte, error) {
	templates, err := e.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(templates)
}

func (e *Engine) handleApplyTemplate(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		SessionID  string `json:"session_id"`
		TemplateID string `json:"template_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	app, err := e.ApplyTemplate(ctx, req.SessionID, req.TemplateID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(app)
}

func (e *Engine) handleStats(ctx context.Context, _ []byte) ([]byte, error) {
	stats, err := e.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stats)
}
