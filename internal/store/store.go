package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/cleared-dev/ledger/internal/model"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate")

const timeFormat = time.RFC3339Nano

// Store manages the SQLite database holding every tenant's ledger.
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Open opens a SQLite database and initializes the schema.
// WAL mode, foreign keys and a busy timeout are enabled. The pool is limited
// to a single connection so writers queue in process instead of failing with
// SQLITE_BUSY. Transactions begin IMMEDIATE: a writer holds the database
// lock from its first read, so checks made inside a transaction hold across
// processes sharing the file.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// SetClock overrides the time source used for created/imported timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Transaction executes fn within a transaction. If fn returns an error the
// transaction is rolled back, otherwise it is committed. Inside fn only tx may
// be used: the pool holds a single connection.
func (s *Store) Transaction(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, fmt.Errorf("beginning transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		// Never classified as transient: the caller cannot know whether the
		// commit landed.
		return fmt.Errorf("committing %s: %w", op, err)
	}
	return nil
}

// classify turns lock contention into a TransientStoreError and unique
// violations into ErrDuplicate. Other errors pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if model.IsTransient(err) || errors.Is(err, ErrDuplicate) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked:
			return &model.TransientStoreError{Op: op, Err: err}
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
		}
	}
	return err
}

func formatDay(t time.Time) string {
	return model.Day(t).Format(model.DateFormat)
}

func parseDay(s string) (time.Time, error) {
	t, err := model.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeFormat), Valid: true}
}

func parseTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeFormat, ns.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", ns.String, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
