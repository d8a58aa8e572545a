// Package storetest opens throwaway in-memory databases for tests. The
// store's queries use $N placeholders and Go-side timestamps, so they run
// unchanged against both Postgres and sqlite.
package storetest

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"planreview/internal/store"
)

// Schema mirrors the Postgres migration in sqlite dialect.
const Schema = `
CREATE TABLE projects (
    id              TEXT PRIMARY KEY,
    enterprise_name TEXT NOT NULL,
    project_name    TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    team_members    TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'processing',
    total_score     REAL,
    review_result   TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
);
CREATE TABLE business_plans (
    id            TEXT PRIMARY KEY,
    project_id    TEXT NOT NULL,
    file_name     TEXT NOT NULL,
    file_size     INTEGER NOT NULL,
    object_ref    TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'processing',
    error_message TEXT NOT NULL DEFAULT '',
    upload_time   TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);
CREATE TABLE scores (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    dimension  TEXT NOT NULL,
    score      REAL NOT NULL,
    max_score  REAL NOT NULL,
    comments   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE score_details (
    id            TEXT PRIMARY KEY,
    score_id      TEXT NOT NULL,
    sub_dimension TEXT NOT NULL,
    score         REAL NOT NULL,
    max_score     REAL NOT NULL,
    comments      TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL
);
CREATE TABLE missing_information (
    id               TEXT PRIMARY KEY,
    project_id       TEXT NOT NULL,
    dimension        TEXT NOT NULL,
    information_type TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL,
    status           TEXT NOT NULL DEFAULT 'pending',
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL
);
CREATE TABLE review_history (
    id                 TEXT PRIMARY KEY,
    project_id         TEXT NOT NULL,
    total_score        REAL NOT NULL,
    dimensions         TEXT NOT NULL,
    modified_by        TEXT NOT NULL,
    modification_notes TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMP NOT NULL
);
`

// New returns a store backed by a fresh in-memory database, torn down with
// the test.
func New(t *testing.T) *store.Store {
	s, _ := NewDB(t)
	return s
}

// NewDB additionally exposes the raw handle, for tests that need to damage
// or inspect the schema directly.
func NewDB(t *testing.T) (*store.Store, *sqlx.DB) {
	t.Helper()
	dbx, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })
	_, err = dbx.Exec(Schema)
	require.NoError(t, err)
	return store.New(dbx), dbx
}
