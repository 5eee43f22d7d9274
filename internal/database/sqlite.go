package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feedsync/internal/database/migrations"
	"feedsync/internal/feed"
	"feedsync/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements feed.Journal using SQLite.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

var _ feed.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal opens the journal at path and migrates it to the latest
// schema. path can be a file path or ":memory:".
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking journal schema: %w", err)
	}

	return &SQLiteJournal{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Concurrent CLI invocations share the file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (j *SQLiteJournal) Record(ctx context.Context, rec *model.MutationRecord) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO mutations (id, kind, entity_id, outcome, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.EntityID, rec.Outcome, rec.Error,
		rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("recording mutation %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first. A limit <= 0 returns all.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]*model.MutationRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, entity_id, outcome, error, started_at, finished_at
		 FROM mutations
		 ORDER BY finished_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing mutations: %w", err)
	}
	defer rows.Close()

	var out []*model.MutationRecord
	for rows.Next() {
		var (
			rec               model.MutationRecord
			started, finished int64
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.EntityID, &rec.Outcome, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning mutation: %w", err)
		}
		rec.StartedAt = time.Unix(0, started).UTC()
		rec.FinishedAt = time.Unix(0, finished).UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing mutations: %w", err)
	}
	return out, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
