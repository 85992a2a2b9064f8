package store

// Schema contains the complete DDL for the tailor tables.
const Schema = `
-- Templates: named, replayable snapshots of a session's transformation log
CREATE TABLE IF NOT EXISTS templates (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    url_pattern  TEXT NOT NULL DEFAULT '*',
    source_url   TEXT NOT NULL DEFAULT '',
    source_title TEXT NOT NULL DEFAULT '',
    rules        TEXT NOT NULL DEFAULT '[]',
    is_default   INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_templates_name ON templates(name);
CREATE INDEX IF NOT EXISTS idx_templates_default ON templates(is_default) WHERE is_default = 1;

-- Prefs: keyed bookkeeping (last mode, visit counters, import scan marks)
CREATE TABLE IF NOT EXISTS prefs (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`
