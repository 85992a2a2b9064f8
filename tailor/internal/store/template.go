package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/domtailor/dbopen"
)

// Template is a named, replayable snapshot of transformation rules plus the
// identity of the page it was recorded on. The rule list is immutable after
// creation; re-saving a name creates a distinct template.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URLPattern  string `json:"url_pattern"`
	SourceURL   string `json:"source_url,omitempty"`
	SourceTitle string `json:"source_title,omitempty"`
	Rules       []Rule `json:"rules"`
	IsDefault   bool   `json:"is_default"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// InsertTemplate inserts a new template.
func (s *Store) InsertTemplate(ctx context.Context, t *Template) error {
	rules, _ := json.Marshal(t.Rules)
	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.URLPattern == "" {
		t.URLPattern = "*"
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO templates
			(id, name, url_pattern, source_url, source_title, rules, is_default, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Name, t.URLPattern, t.SourceURL, t.SourceTitle, string(rules),
		boolInt(t.IsDefault), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTemplate retrieves a template by ID. Returns (nil, nil) when the id is
// unknown or the stored row is corrupt.
func (s *Store) GetTemplate(ctx context.Context, id string) (*Template, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, url_pattern, source_url, source_title, rules, is_default, created_at, updated_at
		FROM templates WHERE id = ?`, id)

	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if errors.Is(err, errCorruptRules) {
		slog.Warn("store: corrupt template rules, dropping row", "template_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTemplates returns all templates in creation order. Rows whose rules
// column fails to decode are skipped with a warning; corruption never
// propagates to callers.
func (s *Store) ListTemplates(ctx context.Context) ([]*Template, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, url_pattern, source_url, source_title, rules, is_default, created_at, updated_at
		FROM templates ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if errors.Is(err, errCorruptRules) {
			slog.Warn("store: corrupt template rules, skipping row", "template_id", t.ID)
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// DeleteTemplate removes a template by ID. Reports whether a row existed.
func (s *Store) DeleteTemplate(ctx context.Context, id string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetDefault flags the template as the default for its url pattern,
// clearing the flag from every other template sharing that pattern.
// Reports whether the id existed.
func (s *Store) SetDefault(ctx context.Context, id string) (bool, error) {
	found := false
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		found = false
		var pattern string
		err := tx.QueryRowContext(ctx, `SELECT url_pattern FROM templates WHERE id = ?`, id).Scan(&pattern)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		now := time.Now().UnixMilli()
		if _, err := tx.ExecContext(ctx, `
			UPDATE templates SET is_default = 0, updated_at = ?
			WHERE url_pattern = ? AND is_default = 1`, now, pattern); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE templates SET is_default = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// MatchDefault returns the most recently flagged default template whose url
// pattern GLOB-matches the given url, or (nil, nil) when none matches.
func (s *Store) MatchDefault(ctx context.Context, pageURL string) (*Template, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, url_pattern, source_url, source_title, rules, is_default, created_at, updated_at
		FROM templates
		WHERE is_default = 1 AND ? GLOB url_pattern
		ORDER BY updated_at DESC LIMIT 1`, pageURL)

	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if errors.Is(err, errCorruptRules) {
		slog.Warn("store: corrupt default template rules, skipping", "template_id", t.ID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CountTemplates returns the number of stored templates.
func (s *Store) CountTemplates(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates`).Scan(&n)
	return n, err
}

// errCorruptRules marks a row whose rules column does not decode.
var errCorruptRules = errors.New("store: corrupt rules column")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	t := &Template{}
	var rules string
	var isDefault int

	if err := row.Scan(
		&t.ID, &t.Name, &t.URLPattern, &t.SourceURL, &t.SourceTitle,
		&rules, &isDefault, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return t, err
	}
	t.IsDefault = isDefault != 0
	if err := json.Unmarshal([]byte(rules), &t.Rules); err != nil {
		return t, errCorruptRules
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
