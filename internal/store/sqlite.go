package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayprograms/workbrief/internal/brief"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("sqlite store: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS findings (
			session    TEXT NOT NULL,
			domain     TEXT NOT NULL,
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (session, domain)
		);

		CREATE TABLE IF NOT EXISTS correlations (
			session    TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// WriteFindings upserts f under (session, f.Domain).
func (s *SQLiteStore) WriteFindings(ctx context.Context, session string, f *brief.Findings) error {
	if err := checkFindings(session, f); err != nil {
		return err
	}
	data, err := encodeFindings(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO findings (session, domain, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session, domain) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		session, string(f.Domain), string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite store: write findings: %w", err)
	}
	return nil
}

// ReadFindings returns the findings for (session, domain).
func (s *SQLiteStore) ReadFindings(ctx context.Context, session string, domain brief.Domain) (*brief.Findings, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM findings WHERE session = ? AND domain = ?`, session, string(domain)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: read findings: %w", err)
	}
	return decodeFindings([]byte(body))
}

// ReadAllFindings returns every findings record of session.
func (s *SQLiteStore) ReadAllFindings(ctx context.Context, session string) ([]*brief.Findings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM findings WHERE session = ?`, session)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: read findings: %w", err)
	}
	defer rows.Close()

	out := []*brief.Findings{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("sqlite store: scan findings: %w", err)
		}
		f, err := decodeFindings([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: iterate findings: %w", err)
	}
	sortByDomain(out)
	return out, nil
}

// WriteCorrelations replaces the correlations of session.
func (s *SQLiteStore) WriteCorrelations(ctx context.Context, session string, cs []brief.Correlation) error {
	data, err := encodeCorrelations(cs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO correlations (session, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		session, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite store: write correlations: %w", err)
	}
	return nil
}

// ReadCorrelations returns the correlations of session.
func (s *SQLiteStore) ReadCorrelations(ctx context.Context, session string) ([]brief.Correlation, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM correlations WHERE session = ?`, session).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return []brief.Correlation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: read correlations: %w", err)
	}
	return decodeCorrelations([]byte(body))
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
