package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// GetPref returns the value stored under key, or "" when the key is unset.
func (s *Store) GetPref(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetPref stores value under key, last write wins.
func (s *Store) SetPref(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO prefs (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// IncrPref increments the integer counter stored under key and returns the
// new value. A missing or non-numeric value counts as zero.
func (s *Store) IncrPref(ctx context.Context, key string) (int64, error) {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO prefs (key, value, updated_at) VALUES (?, '1', ?)
		ON CONFLICT(key) DO UPDATE SET
			value = CAST(CAST(value AS INTEGER) + 1 AS TEXT),
			updated_at = excluded.updated_at`,
		key, now)
	if err != nil {
		return 0, err
	}
	v, err := s.GetPref(ctx, key)
	if err != nil {
		return 0, err
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n, nil
}
