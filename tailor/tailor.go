// Package tailor is the page customization engine.
//
// It binds rendered documents to sessions and rewrites them in place: hide,
// remove, restyle, replace, and move nodes, with named templates replaying
// whole transformation recipes across visits. The pipeline:
//
//	runtime (memdoc/roddoc) → session → rules → templates → store
//
// Key features:
//   - Interaction modes: inspect, select, restructure, style
//   - Six rule kinds, persisted as templates and replayed by id
//   - Default templates auto-applied by URL pattern at attach time
//   - Readability advisor: metrics-driven suggestion battery
//   - Markdown digest of any document region
//   - Template import pipeline: watched drop folder, sanitized, queued
//   - MCP tools and connectivity handlers for inter-service routing
//
// Usage:
//
//	e, err := tailor.New(cfg, logger)
//	defer e.Close()
//	s, err := e.Attach(ctx, rt)  // rt from memdoc.Parse or roddoc
//	e.RegisterMCP(mcpServer)
//	e.RegisterConnectivity(router)
//	e.Start(ctx)
package tailor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/hazyhaar/domtailor/connectivity"
	"github.com/hazyhaar/domtailor/dbopen"
	"github.com/hazyhaar/domtailor/docrt"
	"github.com/hazyhaar/domtailor/idgen"
	"github.com/hazyhaar/domtailor/memdoc"
	"github.com/hazyhaar/domtailor/observability"
	"github.com/hazyhaar/domtailor/tailor/internal/importer"
	"github.com/hazyhaar/domtailor/tailor/internal/store"
	"github.com/hazyhaar/domtailor/vtq"
)

var (
	newSessionID  = idgen.Prefixed("ses_", idgen.Default)
	newTemplateID = idgen.Prefixed("tpl_", idgen.Default)
)

// retentionInterval is how often the event log retention sweep runs.
const retentionInterval = time.Hour

// OpenFunc navigates to a URL and returns a runtime bound to the loaded
// page. roddoc.Manager.Open satisfies it.
type OpenFunc func(ctx context.Context, url string) (docrt.Runtime, error)

// Engine is the main tailor orchestrator.
type Engine struct {
	store    *store.Store
	events   *observability.EventLogger
	queue    *vtq.Q
	importer *importer.Importer
	router   *connectivity.Router
	conv     *converter.Converter
	open     OpenFunc
	logger   *slog.Logger
	cfg      *Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates an Engine. Opens the SQLite database and initialises the
// template store, event log, and import queue.
func New(cfg *Config, logger *slog.Logger) (*Engine, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tailor: config: %w", err)
	}

	var dbOpts []dbopen.Option
	if cfg.TraceSQL {
		dbOpts = append(dbOpts, dbopen.WithTrace())
	}
	s, err := store.Open(cfg.DBPath, dbOpts...)
	if err != nil {
		return nil, err
	}
	if err := observability.Init(s.DB); err != nil {
		s.Close()
		return nil, err
	}

	q := vtq.New(s.DB, vtq.Options{
		Queue:        "tailor_imports",
		Visibility:   cfg.Importer.Visibility,
		PollInterval: cfg.Importer.PollInterval,
		MaxAttempts:  cfg.Importer.MaxAttempts,
		Logger:       logger,
	})
	if err := q.EnsureTable(context.Background()); err != nil {
		s.Close()
		return nil, err
	}

	imp := importer.New(s, q, importer.Config{
		Dir:          cfg.ImportDir,
		MaxFileBytes: cfg.Importer.MaxFileBytes,
		MaxAttempts:  cfg.Importer.MaxAttempts,
	}, logger)

	return &Engine{
		store:    s,
		events:   observability.NewEventLogger(s.DB),
		queue:    q,
		importer: imp,
		conv:     newDigestConverter(),
		logger:   logger,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}, nil
}

// Start launches background goroutines: the import watcher and consumer when
// an import directory is configured, and the event log retention sweep when
// retention is enabled.
func (e *Engine) Start(ctx context.Context) {
	if e.cfg.ImportDir != "" {
		go func() {
			if err := e.importer.Watch(ctx); err != nil {
				e.logger.Error("tailor: import watcher", "error", err)
			}
		}()
		go e.importer.Run(ctx)
	}
	if e.cfg.Retention.EventLogsDays > 0 {
		go e.retentionLoop(ctx)
	}
	e.logger.Info("tailor: started", "db", e.cfg.DBPath)
}

// Close detaches every session and closes the database. Runtime close errors
// are logged, not returned; the database close error is.
func (e *Engine) Close() error {
	e.mu.Lock()
	for id, s := range e.sessions {
		if err := s.rt.Close(); err != nil {
			e.logger.Warn("tailor: close runtime", "session_id", id, "error", err)
		}
	}
	e.sessions = make(map[string]*Session)
	e.mu.Unlock()

	if e.router != nil {
		e.router.Close()
	}
	return e.store.Close()
}

// Store returns the underlying store for direct access (testing, admin).
func (e *Engine) Store() *store.Store {
	return e.store
}

// Attach binds a document runtime to a new session. If a default template
// matches the document's URL it is applied immediately; a failing default is
// logged and skipped, never fatal. Interactive runtimes start feeding
// page-side events into the session's selection.
func (e *Engine) Attach(ctx context.Context, rt docrt.Runtime) (*Session, error) {
	info, err := rt.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("tailor: attach: %w", err)
	}

	s := newSession(newSessionID(), rt, info, e.cfg, e.conv, e.logger)
	e.mu.Lock()
	e.sessions[s.id] = s
	e.mu.Unlock()

	if src, ok := rt.(docrt.EventSource); ok {
		go s.consumeEvents(src)
	}

	if tpl, err := e.store.MatchDefault(ctx, info.URL); err != nil {
		e.logger.Warn("tailor: default template lookup", "session_id", s.id, "error", err)
	} else if tpl != nil {
		app, err := s.ApplyTemplate(ctx, tpl)
		if err != nil {
			e.logger.Warn("tailor: default template", "session_id", s.id, "template_id", tpl.ID, "error", err)
		} else {
			e.logger.Info("tailor: default template applied",
				"session_id", s.id, "template_id", tpl.ID, "nodes", app.Total)
		}
	}

	if _, err := e.store.IncrPref(ctx, "pages_attached"); err != nil {
		e.logger.Warn("tailor: attach counter", "error", err)
	}
	e.logEvent(ctx, "session", s.id, s.id, "attach", map[string]string{"url": info.URL}, true)
	e.logger.Info("tailor: session attached", "session_id", s.id, "url", info.URL)
	return s, nil
}

// SetOpener wires a page opener for AttachURL. Call during setup, before
// Start; typically the open method of a roddoc.Manager.
func (e *Engine) SetOpener(open OpenFunc) {
	e.open = open
}

// AttachURL navigates the configured browser to url and attaches the
// resulting page.
func (e *Engine) AttachURL(ctx context.Context, url string) (*Session, error) {
	if e.open == nil {
		return nil, fmt.Errorf("tailor: no browser configured")
	}
	rt, err := e.open(ctx, url)
	if err != nil {
		return nil, err
	}
	s, err := e.Attach(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return s, nil
}

// AttachHTML parses an HTML document into an in-memory runtime and attaches
// it. Offline counterpart of AttachURL: no browser involved, QueryHTML
// returns the transformed result.
func (e *Engine) AttachHTML(ctx context.Context, src, url string) (*Session, error) {
	rt, err := memdoc.Parse(src, memdoc.WithURL(url))
	if err != nil {
		return nil, fmt.Errorf("tailor: parse html: %w", err)
	}
	return e.Attach(ctx, rt)
}

// Detach closes a session's runtime and forgets the session. The document
// keeps whatever transformations were applied; only the handle is released.
func (e *Engine) Detach(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	if ok {
		delete(e.sessions, sessionID)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}

	if err := s.rt.Close(); err != nil {
		e.logger.Warn("tailor: close runtime", "session_id", sessionID, "error", err)
	}
	e.logEvent(ctx, "session", sessionID, sessionID, "detach", nil, true)
	e.logger.Info("tailor: session detached", "session_id", sessionID)
	return nil
}

// Session resolves a session by id. Unknown ids are an error, never a
// silent no-op.
func (e *Engine) Session(sessionID string) (*Session, error) {
	e.mu.RLock()
	s, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	return s, nil
}

// Sessions returns the attached sessions ordered by id.
func (e *Engine) Sessions() []*Session {
	e.mu.RLock()
	out := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Analyze inspects the session's document.
func (e *Engine) Analyze(ctx context.Context, sessionID string) (*PageAnalysis, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx)
}

// SetMode switches a session's interaction mode.
func (e *Engine) SetMode(ctx context.Context, sessionID string, mode Mode) error {
	s, err := e.Session(sessionID)
	if err != nil {
		return err
	}
	if err := s.SetMode(ctx, mode); err != nil {
		return err
	}
	if err := e.store.SetPref(ctx, "last_mode", string(mode)); err != nil {
		e.logger.Warn("tailor: persist last mode", "error", err)
	}
	return nil
}

// Select adds matching nodes to a session's selection.
func (e *Engine) Select(ctx context.Context, sessionID, target string) (int, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return 0, err
	}
	return s.Select(ctx, target)
}

// Deselect removes matching nodes from a session's selection.
func (e *Engine) Deselect(ctx context.Context, sessionID, target string) (int, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return 0, err
	}
	return s.Deselect(ctx, target)
}

// ClearSelection empties a session's selection and strips its markers.
func (e *Engine) ClearSelection(ctx context.Context, sessionID string) error {
	s, err := e.Session(sessionID)
	if err != nil {
		return err
	}
	return s.ClearSelection(ctx)
}

// Reset restores a session's document to its pristine state.
func (e *Engine) Reset(ctx context.Context, sessionID string) error {
	s, err := e.Session(sessionID)
	if err != nil {
		return err
	}
	return s.Reset(ctx)
}

// Apply executes one rule against a session's document.
func (e *Engine) Apply(ctx context.Context, sessionID string, r Rule) (int, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return 0, err
	}
	return s.Apply(ctx, r)
}

// SmartRestructure applies one of the named restructuring batches.
func (e *Engine) SmartRestructure(ctx context.Context, sessionID string, kind RestructureKind) (int, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return 0, err
	}
	return s.SmartRestructure(ctx, kind)
}

// Suggest runs the readability advisor against a session's document.
func (e *Engine) Suggest(ctx context.Context, sessionID string) ([]string, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.Suggest(ctx)
}

// Digest converts a session's document (or the given region) to Markdown.
func (e *Engine) Digest(ctx context.Context, sessionID, selector string) (string, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return "", err
	}
	return s.Digest(ctx, selector)
}

// SaveTemplate snapshots a session's transformation log as a named template.
// The session log is left untouched; the snapshot is independent.
func (e *Engine) SaveTemplate(ctx context.Context, sessionID, name, urlPattern string) (*Template, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("tailor: template name required")
	}

	tpl := &Template{
		ID:          newTemplateID(),
		Name:        name,
		URLPattern:  urlPattern,
		SourceURL:   s.URL(),
		SourceTitle: s.Title(),
		Rules:       s.Log(),
	}
	if err := e.store.InsertTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	e.logEvent(ctx, "template", tpl.ID, sessionID, "save", map[string]string{"name": name}, true)
	e.logger.Info("tailor: template saved",
		"template_id", tpl.ID, "name", name, "rules", len(tpl.Rules))
	return tpl, nil
}

// ApplyTemplate replays a stored template against a session's document.
func (e *Engine) ApplyTemplate(ctx context.Context, sessionID, templateID string) (*TemplateApplication, error) {
	s, err := e.Session(sessionID)
	if err != nil {
		return nil, err
	}
	tpl, err := e.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	app, err := s.ApplyTemplate(ctx, tpl)
	if err != nil {
		return nil, err
	}
	e.logEvent(ctx, "template", templateID, sessionID, "apply",
		map[string]string{"nodes": strconv.Itoa(app.Total)}, true)
	return app, nil
}

// GetTemplate retrieves a stored template by id.
func (e *Engine) GetTemplate(ctx context.Context, id string) (*Template, error) {
	tpl, err := e.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return tpl, nil
}

// ListTemplates lists stored templates in creation order.
func (e *Engine) ListTemplates(ctx context.Context) ([]*Template, error) {
	return e.store.ListTemplates(ctx)
}

// DeleteTemplate removes a stored template.
func (e *Engine) DeleteTemplate(ctx context.Context, id string) error {
	found, err := e.store.DeleteTemplate(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	e.logEvent(ctx, "template", id, "", "delete", nil, true)
	return nil
}

// SetDefaultTemplate flags a template as the default for its URL pattern,
// unflagging any previous default for the same pattern.
func (e *Engine) SetDefaultTemplate(ctx context.Context, id string) error {
	found, err := e.store.SetDefault(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	e.logEvent(ctx, "template", id, "", "set_default", nil, true)
	return nil
}

// ImportTemplate ingests a template interchange document (the same JSON
// format the drop folder accepts): fragments are sanitized, every rule is
// re-validated and the template gets a fresh id.
func (e *Engine) ImportTemplate(ctx context.Context, data []byte) (*Template, error) {
	imp := e.importer
	if imp == nil {
		imp = importer.New(e.store, nil, importer.Config{}, e.logger)
	}
	tpl, err := imp.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("tailor: import template: %w", err)
	}
	if err := e.store.InsertTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	e.logEvent(ctx, "template", tpl.ID, "", "import",
		map[string]string{"name": tpl.Name}, true)
	e.logger.Info("tailor: template imported",
		"template_id", tpl.ID, "name", tpl.Name, "rules", len(tpl.Rules))
	return tpl, nil
}

// Stats returns current engine counts.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	templates, err := e.store.CountTemplates(ctx)
	if err != nil {
		return nil, err
	}
	var attached int64
	if v, err := e.store.GetPref(ctx, "pages_attached"); err != nil {
		return nil, err
	} else if v != "" {
		attached, _ = strconv.ParseInt(v, 10, 64)
	}

	e.mu.RLock()
	active := len(e.sessions)
	e.mu.RUnlock()

	return &Stats{
		ActiveSessions: active,
		Templates:      templates,
		PagesAttached:  attached,
	}, nil
}

// Stats holds tailor counts.
type Stats struct {
	ActiveSessions int   `json:"active_sessions"`
	Templates      int   `json:"templates"`
	PagesAttached  int64 `json:"pages_attached"`
}

// logEvent records a business event; details marshal failures degrade to an
// empty details field.
func (e *Engine) logEvent(ctx context.Context, entityType, entityID, sessionID, action string, details map[string]string, success bool) {
	var detailsJSON string
	if len(details) > 0 {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	e.events.LogEvent(ctx, observability.BusinessEvent{
		EventType:   entityType + "_" + action,
		ServiceName: "tailor",
		EntityType:  entityType,
		EntityID:    entityID,
		SessionID:   sessionID,
		Action:      action,
		Details:     detailsJSON,
		Success:     success,
	})
}

// retentionLoop sweeps expired business events on a fixed cadence. The first
// sweep runs immediately so short-lived processes still clean up.
func (e *Engine) retentionLoop(ctx context.Context) {
	sweep := func() {
		err := observability.Cleanup(ctx, e.store.DB, observability.RetentionConfig{
			EventLogsDays: e.cfg.Retention.EventLogsDays,
		})
		if err != nil {
			e.logger.Warn("tailor: event log cleanup", "error", err)
			return
		}
		if err := e.store.SetPref(ctx, "events_last_cleanup", time.Now().UTC().Format(time.RFC3339)); err != nil {
			e.logger.Warn("tailor: record cleanup time", "error", err)
		}
	}

	sweep()
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
