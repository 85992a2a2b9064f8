package tailor

import (
	"context"
	"encoding/json"
	"fmt"
)

// plannerRequest is the payload posted to the configured planner route.
type plannerRequest struct {
	URL      string        `json:"url"`
	Title    string        `json:"title"`
	Analysis *PageAnalysis `json:"analysis"`
	Digest   string        `json:"digest"`
}

// PlanSuggestions sends the session's analysis and Markdown digest to the
// planner route and returns the planner's reply verbatim. Routing errors
// propagate unmodified, including connectivity.ErrServiceNotFound when no
// planner route exists; there is no retry. The deterministic Suggest battery
// never depends on this path.
func (e *Engine) PlanSuggestions(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if e.router == nil {
		return nil, fmt.Errorf("tailor: plan: no connectivity router registered")
	}
	s, err := e.Session(sessionID)
	if err != nil {
		return nil, err
	}

	analysis, err := s.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	digest, err := s.Digest(ctx, "")
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(plannerRequest{
		URL:      s.URL(),
		Title:    s.Title(),
		Analysis: analysis,
		Digest:   digest,
	})
	if err != nil {
		return nil, fmt.Errorf("tailor: plan: %w", err)
	}
	return e.router.Call(ctx, e.cfg.PlannerRoute, payload)
}
