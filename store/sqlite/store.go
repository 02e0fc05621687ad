package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/mwantia/fsindex/data"
	"github.com/mwantia/fsindex/store"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore keeps the index table in a SQLite database file
// (or ":memory:" for an in-process database).
type SQLiteStore struct {
	mu    sync.RWMutex
	db    *sql.DB
	table store.Table
}

// NewSQLiteStore opens the database at dbPath and creates the index table
// if it does not exist yet.
func NewSQLiteStore(dbPath string, table store.Table) (*SQLiteStore, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite only supports one writer at a time, and every connection to
	// ":memory:" would see its own database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:    db,
		table: table,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the database schema.
func (s *SQLiteStore) initSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		directory TEXT,
		full_directory TEXT,
		file TEXT
	);
	CREATE INDEX IF NOT EXISTS %[2]s ON %[3]s(directory);
	`, s.quotedTable(), s.quotedIndex(), quote(s.table.Name))

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) quotedTable() string {
	if s.table.Schema == "" {
		return quote(s.table.Name)
	}
	return quote(s.table.Schema) + "." + quote(s.table.Name)
}

func (s *SQLiteStore) quotedIndex() string {
	index := quote("idx_" + s.table.Name + "_directory")
	if s.table.Schema == "" {
		return index
	}
	return quote(s.table.Schema) + "." + index
}

// quote only needs to wrap identifiers, since store.Table rejects anything
// that is not a plain identifier.
func quote(identifier string) string {
	return `"` + identifier + `"`
}

// Name returns the identifier name defined for this store
func (*SQLiteStore) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this store.
func (s *SQLiteStore) Open(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Verify database connection
	return s.db.PingContext(ctx)
}

// Close is part of the lifecycle behaviour and gets called when closing this store.
func (s *SQLiteStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

func (s *SQLiteStore) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}

	return &sqliteTx{tx: tx, table: s.quotedTable()}, nil
}

type sqliteTx struct {
	tx    *sql.Tx
	table string
	done  bool
}

func (t *sqliteTx) Insert(ctx context.Context, row data.IndexRow) error {
	if t.done {
		return data.ErrTxDone
	}

	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO "+t.table+" (directory, full_directory, file) VALUES (?, ?, ?)",
		row.Directory, row.FullDirectory, nullString(row.File))
	if err != nil {
		return fmt.Errorf("failed to insert row %s: %w", row, err)
	}

	return nil
}

func (t *sqliteTx) Delete(ctx context.Context, pred *store.Predicate) (int64, error) {
	if t.done {
		return 0, data.ErrTxDone
	}

	query := "DELETE FROM " + t.table
	where, args := pred.Where(store.QuestionPlaceholder)
	if where != "" {
		query += " WHERE " + where
	}

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows: %w", err)
	}

	return result.RowsAffected()
}

func (t *sqliteTx) Select(ctx context.Context, pred *store.Predicate) ([]data.IndexRow, error) {
	if t.done {
		return nil, data.ErrTxDone
	}

	query := "SELECT directory, full_directory, file FROM " + t.table
	where, args := pred.Where(store.QuestionPlaceholder)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY rowid"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select rows: %w", err)
	}
	defer rows.Close()

	result := make([]data.IndexRow, 0)
	for rows.Next() {
		var row data.IndexRow
		var file sql.NullString
		if err := rows.Scan(&row.Directory, &row.FullDirectory, &file); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if file.Valid {
			row.File = &file.String
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

func (t *sqliteTx) Commit(ctx context.Context) error {
	if t.done {
		return data.ErrTxDone
	}

	t.done = true
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}

	t.done = true
	return t.tx.Rollback()
}

func nullString(val *string) sql.NullString {
	if val == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *val, Valid: true}
}
