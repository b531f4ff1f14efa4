package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in an append-only SQLite table keyed by
// a dense offset. SQLite gives durable single-file storage with real
// transactional appends where JSONL is not enough.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) a SQLite-backed record store at
// the given path. Use ":memory:" for an ephemeral store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	// The ledger serializes appends itself; a single connection keeps
	// SQLite's own locking out of the picture.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS ledger_records (
		offset INTEGER PRIMARY KEY,
		record BLOB NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("ledger: migrate sqlite: %w", err)
	}
	return nil
}

// AppendRecord stores the record at the next offset.
func (s *SQLiteStore) AppendRecord(ctx context.Context, record []byte) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger: begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var offset int64
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(offset)+1, 0) FROM ledger_records`)
	if err := row.Scan(&offset); err != nil {
		return 0, fmt.Errorf("ledger: next offset: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_records (offset, record) VALUES (?, ?)`, offset, record); err != nil {
		return 0, fmt.Errorf("ledger: insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger: commit append: %w", err)
	}
	return offset, nil
}

// ReadRange returns records with offsets in [from, to).
func (s *SQLiteStore) ReadRange(ctx context.Context, from, to int64) ([][]byte, error) {
	if from < 0 || from > to {
		return nil, fmt.Errorf("ledger: read range [%d, %d) out of bounds", from, to)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM ledger_records WHERE offset >= ? AND offset < ? ORDER BY offset`, from, to)
	if err != nil {
		return nil, fmt.Errorf("ledger: query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([][]byte, 0, to-from)
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("ledger: scan record: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate records: %w", err)
	}
	if int64(len(out)) != to-from {
		return nil, fmt.Errorf("ledger: table holds %d records in [%d, %d)", len(out), from, to)
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_records`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: count records: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
