package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domtailor/tailor"
)

const pageHTML = `<!DOCTYPE html>
<html><head><title>Field Notes</title></head>
<body>
<header class="site-header"><nav>Home</nav></header>
<main>
<article>
<h1>Field Notes</h1>
<p>First paragraph of the article body.</p>
<p>Second paragraph with more detail.</p>
</article>
</main>
<aside class="sidebar"><div class="ad">Buy now</div></aside>
<footer>Footer</footer>
</body></html>`

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &tailor.Config{DBPath: filepath.Join(t.TempDir(), "tailor.db")}
	e, err := tailor.New(cfg, slog.Default())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return apiRouter(e, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func attachPage(t *testing.T, h http.Handler) string {
	t.Helper()
	w := doJSON(t, h, "POST", "/api/sessions", map[string]string{
		"html": pageHTML,
		"url":  "https://example.com/notes/compost",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("attach: got %d, body %s", w.Code, w.Body.String())
	}
	var view sessionView
	decodeBody(t, w, &view)
	if !strings.HasPrefix(view.SessionID, "ses_") {
		t.Fatalf("session id: got %q, want ses_ prefix", view.SessionID)
	}
	return view.SessionID
}

func TestServe_SecurityHeaders(t *testing.T) {
	// WHAT: Responses carry the shield security headers.
	// WHY: Without shield, no X-Frame-Options, X-Content-Type-Options, or X-Trace-ID.
	h := testRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	checks := map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
	}
	for header, expected := range checks {
		if got := w.Header().Get(header); got != expected {
			t.Errorf("%s: got %q, want %q", header, got, expected)
		}
	}

	traceID := w.Header().Get("X-Trace-ID")
	if len(traceID) != 8 {
		t.Errorf("X-Trace-ID: got %q (len %d), want 8 hex chars", traceID, len(traceID))
	}
}

func TestServe_SessionLifecycle(t *testing.T) {
	h := testRouter(t)
	id := attachPage(t, h)

	w := doJSON(t, h, "GET", "/api/sessions", nil)
	var list []sessionView
	decodeBody(t, w, &list)
	if len(list) != 1 || list[0].SessionID != id {
		t.Fatalf("session list: got %+v", list)
	}
	if list[0].Title != "Field Notes" {
		t.Errorf("title: got %q, want %q", list[0].Title, "Field Notes")
	}

	w = doJSON(t, h, "GET", "/api/sessions/"+id+"/analysis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analysis: got %d, body %s", w.Code, w.Body.String())
	}
	var analysis struct {
		Title     string `json:"title"`
		WordCount int    `json:"word_count"`
	}
	decodeBody(t, w, &analysis)
	if analysis.Title != "Field Notes" || analysis.WordCount == 0 {
		t.Errorf("analysis: got %+v", analysis)
	}

	w = doJSON(t, h, "POST", "/api/sessions/"+id+"/rules", map[string]any{
		"kind":   "hide",
		"target": ".sidebar",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("apply rule: got %d, body %s", w.Code, w.Body.String())
	}
	var applied struct {
		RuleID string `json:"rule_id"`
		Count  int    `json:"count"`
	}
	decodeBody(t, w, &applied)
	if !strings.HasPrefix(applied.RuleID, "rul_") || applied.Count != 1 {
		t.Errorf("apply: got %+v", applied)
	}

	w = doJSON(t, h, "GET", "/api/sessions/"+id+"/html?selector=.sidebar", nil)
	var html struct {
		HTML string `json:"html"`
	}
	decodeBody(t, w, &html)
	if !strings.Contains(html.HTML, "display: none") {
		t.Errorf("sidebar html: got %q, want display: none", html.HTML)
	}

	w = doJSON(t, h, "DELETE", "/api/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detach: got %d", w.Code)
	}
	w = doJSON(t, h, "GET", "/api/sessions/"+id+"/analysis", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("analysis after detach: got %d, want 404", w.Code)
	}
}

func TestServe_SelectionEndpoints(t *testing.T) {
	h := testRouter(t)
	id := attachPage(t, h)

	w := doJSON(t, h, "POST", "/api/sessions/"+id+"/selection", map[string]string{"target": "article p"})
	var added struct {
		Added int `json:"added"`
	}
	decodeBody(t, w, &added)
	if added.Added != 2 {
		t.Fatalf("select: got %d, want 2", added.Added)
	}

	w = doJSON(t, h, "GET", "/api/sessions/"+id+"/selection", nil)
	var selected []json.RawMessage
	decodeBody(t, w, &selected)
	if len(selected) != 2 {
		t.Errorf("selected: got %d entries, want 2", len(selected))
	}

	w = doJSON(t, h, "DELETE", "/api/sessions/"+id+"/selection", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear selection: got %d", w.Code)
	}
	w = doJSON(t, h, "GET", "/api/sessions/"+id+"/selection", nil)
	selected = nil
	decodeBody(t, w, &selected)
	if len(selected) != 0 {
		t.Errorf("selection after clear: got %d entries, want 0", len(selected))
	}
}

func TestServe_TemplateFlow(t *testing.T) {
	h := testRouter(t)
	id := attachPage(t, h)

	w := doJSON(t, h, "POST", "/api/sessions/"+id+"/rules", map[string]any{
		"kind":   "remove",
		"target": ".ad",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("apply rule: got %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, "POST", "/api/templates", map[string]string{
		"session_id":  id,
		"name":        "reader",
		"url_pattern": "https://example.com/*",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("save template: got %d, body %s", w.Code, w.Body.String())
	}
	var tpl struct {
		ID    string `json:"id"`
		Rules []struct {
			ID string `json:"id"`
		} `json:"rules"`
	}
	decodeBody(t, w, &tpl)
	if !strings.HasPrefix(tpl.ID, "tpl_") || len(tpl.Rules) != 1 {
		t.Fatalf("template: got %+v", tpl)
	}

	w = doJSON(t, h, "GET", "/api/templates", nil)
	var templates []json.RawMessage
	decodeBody(t, w, &templates)
	if len(templates) != 1 {
		t.Fatalf("template list: got %d, want 1", len(templates))
	}

	second := attachPage(t, h)
	w = doJSON(t, h, "POST", "/api/sessions/"+second+"/templates/"+tpl.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("apply template: got %d, body %s", w.Code, w.Body.String())
	}
	var app struct {
		TemplateID string `json:"template_id"`
		Total      int    `json:"total"`
	}
	decodeBody(t, w, &app)
	if app.TemplateID != tpl.ID || app.Total != 1 {
		t.Errorf("application: got %+v", app)
	}

	w = doJSON(t, h, "POST", "/api/templates/"+tpl.ID+"/default", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("set default: got %d", w.Code)
	}

	w = doJSON(t, h, "DELETE", "/api/templates/"+tpl.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete template: got %d", w.Code)
	}
	w = doJSON(t, h, "GET", "/api/templates/"+tpl.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted template: got %d, want 404", w.Code)
	}
}

func TestServe_ImportTemplate(t *testing.T) {
	h := testRouter(t)

	body := `{"name": "declutter", "url_pattern": "*", "rules": [{"kind": "hide", "target": ".ad"}]}`
	req := httptest.NewRequest("POST", "/api/templates/import", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("import: got %d, body %s", w.Code, w.Body.String())
	}
	var tpl struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	decodeBody(t, w, &tpl)
	if !strings.HasPrefix(tpl.ID, "tpl_") || tpl.Name != "declutter" {
		t.Errorf("imported template: got %+v", tpl)
	}

	// Unknown fields are rejected, same as the directory importer.
	req = httptest.NewRequest("POST", "/api/templates/import", strings.NewReader(`{"name": "x", "bogus": true}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("import with unknown field: got %d, want 400", w.Code)
	}
}

func TestServe_BadRequests(t *testing.T) {
	h := testRouter(t)

	w := doJSON(t, h, "POST", "/api/sessions", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty attach: got %d, want 400", w.Code)
	}

	w = doJSON(t, h, "GET", "/api/sessions/ses_missing/analysis", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session: got %d, want 404", w.Code)
	}

	id := attachPage(t, h)
	w = doJSON(t, h, "POST", "/api/sessions/"+id+"/rules", map[string]any{
		"kind":   "sparkle",
		"target": "p",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad rule kind: got %d, want 400", w.Code)
	}

	w = doJSON(t, h, "PUT", "/api/sessions/"+id+"/mode", map[string]string{"mode": "chaotic"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad mode: got %d, want 400", w.Code)
	}
}

func TestServe_DigestEndpoint(t *testing.T) {
	h := testRouter(t)
	id := attachPage(t, h)

	w := doJSON(t, h, "GET", "/api/sessions/"+id+"/digest?selector=article", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("digest: got %d, body %s", w.Code, w.Body.String())
	}
	var digest struct {
		Markdown string `json:"markdown"`
	}
	decodeBody(t, w, &digest)
	if !strings.Contains(digest.Markdown, "Field Notes") {
		t.Errorf("digest: got %q, want the article heading", digest.Markdown)
	}
}

func TestServe_StatsEndpoint(t *testing.T) {
	h := testRouter(t)
	attachPage(t, h)

	w := doJSON(t, h, "GET", "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: got %d, body %s", w.Code, w.Body.String())
	}
	var stats struct {
		ActiveSessions int `json:"active_sessions"`
	}
	decodeBody(t, w, &stats)
	if stats.ActiveSessions != 1 {
		t.Errorf("active sessions: got %d, want 1", stats.ActiveSessions)
	}
}
