// Package importer ingests template files dropped into a watched folder.
//
// The pipeline is crash-safe: the watcher enqueues file names on a SQLite
// visibility-timeout queue and the consumer claims, parses, sanitizes and
// stores them. Malformed files are retried up to the attempt cap, then
// marked rejected and dropped so they never poison the queue.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/domtailor/guard"
	"github.com/hazyhaar/domtailor/idgen"
	"github.com/hazyhaar/domtailor/tailor/internal/store"
	"github.com/hazyhaar/domtailor/vtq"
)

// Config bounds the import pipeline.
type Config struct {
	// Dir is the flat drop folder to watch for *.json template files.
	Dir string

	// MaxFileBytes caps how much of a dropped file is read.
	MaxFileBytes int64

	// MaxAttempts is the per-file retry cap before the file is rejected.
	MaxAttempts int
}

// newJobID generates queue job ids.
var newJobID = idgen.Prefixed("imp_", idgen.Default)

// Importer consumes the import queue and writes sanitized templates to the
// store.
type Importer struct {
	store  *store.Store
	queue  *vtq.Q
	cfg    Config
	logger *slog.Logger
	policy *bluemonday.Policy
	newID  func() string
}

// New creates an Importer. The queue carries file names relative to
// cfg.Dir.
func New(st *store.Store, q *vtq.Q, cfg Config, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 1 << 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Importer{
		store:  st,
		queue:  q,
		cfg:    cfg,
		logger: logger,
		policy: bluemonday.UGCPolicy(),
		newID:  idgen.Prefixed("tpl_", idgen.Default),
	}
}

// Run consumes import jobs until ctx is cancelled.
func (imp *Importer) Run(ctx context.Context) {
	imp.queue.Run(ctx, imp.process)
}

// importFile is the on-disk template interchange format. Decoding is
// strict: unknown fields reject the file.
type importFile struct {
	Name        string       `json:"name"`
	URLPattern  string       `json:"url_pattern"`
	SourceURL   string       `json:"source_url"`
	SourceTitle string       `json:"source_title"`
	Rules       []store.Rule `json:"rules"`
}

// process handles one queued file. A nil return acks the job; an error
// nacks it for redelivery until the attempt cap.
func (imp *Importer) process(ctx context.Context, job *vtq.Job) error {
	name := string(job.Payload)

	path, err := guard.SafePath(imp.cfg.Dir, name)
	if err != nil {
		// Traversal attempts are never retried.
		imp.logger.Error("importer: unsafe path, dropping", "name", name, "error", err)
		return nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		imp.logger.Warn("importer: file vanished before import", "name", name)
		return nil
	}
	if err != nil {
		return imp.fail(job, path, fmt.Errorf("open: %w", err))
	}
	data, err := guard.LimitedReadAll(f, imp.cfg.MaxFileBytes)
	f.Close()
	if err != nil {
		return imp.fail(job, path, fmt.Errorf("read: %w", err))
	}

	tpl, err := imp.Decode(data)
	if err != nil {
		return imp.fail(job, path, err)
	}

	if err := imp.store.InsertTemplate(ctx, tpl); err != nil {
		return imp.fail(job, path, fmt.Errorf("insert: %w", err))
	}

	if err := os.Remove(path); err != nil {
		imp.logger.Warn("importer: cannot remove imported file", "name", name, "error", err)
	}
	imp.logger.Info("importer: template imported",
		"template_id", tpl.ID, "name", tpl.Name, "rules", len(tpl.Rules), "file", name)
	return nil
}

// Decode strict-parses an import file, sanitizes replace fragments and
// re-validates every rule. The template and any id-less rules get fresh
// ids: imports never overwrite existing entities.
func (imp *Importer) Decode(data []byte) (*store.Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var in importFile
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("decode: template name is required")
	}

	for i := range in.Rules {
		r := &in.Rules[i]
		if r.ID == "" {
			r.ID = idgen.Prefixed("rul_", idgen.Default)()
		}
		if r.Kind == store.RuleReplace {
			r.Fragment = imp.policy.Sanitize(r.Fragment)
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Kind, err)
		}
	}

	return &store.Template{
		ID:          imp.newID(),
		Name:        in.Name,
		URLPattern:  in.URLPattern,
		SourceURL:   in.SourceURL,
		SourceTitle: in.SourceTitle,
		Rules:       in.Rules,
	}, nil
}

// fail nacks the job and, on the final attempt, marks the file rejected so
// the startup scan skips it.
func (imp *Importer) fail(job *vtq.Job, path string, err error) error {
	if job.Attempts >= imp.cfg.MaxAttempts {
		if renameErr := os.Rename(path, path+".rejected"); renameErr == nil {
			imp.logger.Error("importer: rejected after final attempt",
				"file", path, "attempts", job.Attempts, "error", err)
		} else if !os.IsNotExist(renameErr) {
			imp.logger.Error("importer: cannot mark file rejected",
				"file", path, "error", renameErr)
		}
	}
	return err
}
