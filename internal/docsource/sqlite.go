package docsource

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	cas        INTEGER NOT NULL DEFAULT 0,
	expiration INTEGER NOT NULL DEFAULT 0,
	flags      INTEGER NOT NULL DEFAULT 0,
	nru        INTEGER NOT NULL DEFAULT 0,
	byseqno    INTEGER NOT NULL DEFAULT 0,
	revseqno   INTEGER NOT NULL DEFAULT 0,
	locktime   INTEGER NOT NULL DEFAULT 0,
	body       TEXT NOT NULL
)`

// SQLite reads documents from the documents table of a SQLite database,
// ordered by sequence number.
type SQLite struct {
	DB *sql.DB
}

var _ Source = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the
// documents table exists.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening document database %q: %w", path, err)
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	return initSQLite(db)
}

// OpenSQLiteMemory creates an in-memory document database for testing.
func OpenSQLiteMemory() (*SQLite, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory document database: %w", err)
	}
	// Every connection to :memory: is its own database.
	db.SetMaxOpenConns(1)
	return initSQLite(db)
}

func initSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}
	return &SQLite{DB: db}, nil
}

// Put inserts or replaces a document.
func (s *SQLite) Put(ctx context.Context, d Document) error {
	m := d.Meta
	_, err := s.DB.ExecContext(ctx, `INSERT OR REPLACE INTO documents
		(id, cas, expiration, flags, nru, byseqno, revseqno, locktime, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, int64(m.Cas), m.Expiration, m.Flags, m.Nru, int64(m.BySeqno), int64(m.RevSeqno), m.LockTime, string(d.Body))
	if err != nil {
		return fmt.Errorf("storing document %q: %w", m.ID, err)
	}
	return nil
}

// Each streams every document ordered by byseqno, then id.
func (s *SQLite) Each(ctx context.Context, fn func(Document) error) error {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, cas, expiration, flags, nru, byseqno, revseqno, locktime, body
		FROM documents ORDER BY byseqno, id`)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			d                      Document
			cas, bySeqno, revSeqno int64
			body                   string
		)
		m := &d.Meta
		if err := rows.Scan(&m.ID, &cas, &m.Expiration, &m.Flags, &m.Nru, &bySeqno, &revSeqno, &m.LockTime, &body); err != nil {
			return fmt.Errorf("scanning document: %w", err)
		}
		m.Cas, m.BySeqno, m.RevSeqno = uint64(cas), uint64(bySeqno), uint64(revSeqno)
		d.Body = []byte(body)
		if err := fn(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}
