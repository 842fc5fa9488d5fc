// Package sqlite provides a SQLite implementation of the object store.
//
// # Calling Conventions
//
// The store is a pure data access layer. Outside RunInTransaction each
// method runs its statement in autocommit mode; inside, the statements
// are bound to the transaction. The manager decides atomicity:
// every mutation it performs writes the object row and the slot row
// together inside one transaction.
//
//	err := store.RunInTransaction(ctx, func(tx interpreter.Store) error {
//	    if err := tx.SaveSlot(ctx, state); err != nil {
//	        return err // triggers rollback
//	    }
//	    return tx.SaveObject(ctx, obj, "") // commits if nil
//	})
//
// # Concurrency Model
//
// The manager serialises writers with its own lock, so there is no
// writer contention at the database level and the default DEFERRED
// transaction type suffices. File databases are opened in WAL mode.
//
// # Prepared Statements
//
// All SQL is prepared once when the store is opened. RunInTransaction
// binds the master statements to the transaction with tx.StmtContext.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/frobware/go-hostif/interpreter"
)

// msec formats a duration as milliseconds with 3 decimal places.
func msec(d time.Duration) string {
	return fmt.Sprintf("%.3f", float64(d.Microseconds())/1000)
}

//go:embed schema.sql
var schemaSQL string

// pragma is a connection pragma applied through the driver DSN.
type pragma struct{ name, value string }

var (
	filePragmas = []pragma{
		{"journal_mode", "WAL"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	memoryPragmas = []pragma{
		{"foreign_keys", "1"},
	}
)

// sqliteStore implements interpreter.Store using SQLite.
type sqliteStore struct {
	db     *sql.DB // used for BeginTx and preparing statements
	logger *slog.Logger

	// Prepared statements for object operations
	stmtGetObject    *sql.Stmt
	stmtSaveObject   *sql.Stmt
	stmtDeleteObject *sql.Stmt
	stmtListObjects  *sql.Stmt

	// Prepared statements for slot operations
	stmtSaveSlot  *sql.Stmt
	stmtListSlots *sql.Stmt
}

// New creates a new SQLite store at the given path.
func New(ctx context.Context, dbPath string, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(driverName, dsn(dbPath, filePragmas))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened database", "path", dbPath)
	return s, nil
}

// NewInMemory creates an in-memory SQLite store for testing.
func NewInMemory(ctx context.Context, logger *slog.Logger) (interpreter.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", ":memory:")

	db, err := sql.Open(driverName, dsn(":memory:", memoryPragmas))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every connection to :memory: is a distinct database.
	db.SetMaxOpenConns(1)

	s, err := open(ctx, db, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opened in-memory database")
	return s, nil
}

func open(ctx context.Context, db *sql.DB, logger *slog.Logger) (*sqliteStore, error) {
	s := &sqliteStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.prepareStatements(ctx); err != nil {
		s.closeStatements()
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

// Close closes all prepared statements and the database connection.
func (s *sqliteStore) Close() error {
	s.closeStatements()
	return s.db.Close()
}

// closeStatements closes all prepared statements. Each close error
// is silently ignored because the database is about to be closed.
func (s *sqliteStore) closeStatements() {
	stmts := []*sql.Stmt{
		s.stmtGetObject,
		s.stmtSaveObject,
		s.stmtDeleteObject,
		s.stmtListObjects,
		s.stmtSaveSlot,
		s.stmtListSlots,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// RunInTransaction executes the callback within a database transaction.
// If the callback returns nil, the transaction commits.
// If the callback returns an error, the transaction rolls back.
//
// The transaction-bound statements are lightweight handles onto the
// master statements prepared at open time and become invalid once the
// transaction ends.
func (s *sqliteStore) RunInTransaction(ctx context.Context, fn func(interpreter.Store) error) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStore := &sqliteStore{
		db:     s.db,
		logger: s.logger,
		// Object statements
		stmtGetObject:    tx.StmtContext(ctx, s.stmtGetObject),
		stmtSaveObject:   tx.StmtContext(ctx, s.stmtSaveObject),
		stmtDeleteObject: tx.StmtContext(ctx, s.stmtDeleteObject),
		stmtListObjects:  tx.StmtContext(ctx, s.stmtListObjects),
		// Slot statements
		stmtSaveSlot:  tx.StmtContext(ctx, s.stmtSaveSlot),
		stmtListSlots: tx.StmtContext(ctx, s.stmtListSlots),
	}

	if err := fn(txStore); err != nil {
		s.logger.Debug("sql", "stmt", "ROLLBACK", "duration_ms", msec(time.Since(start)), "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("sql", "stmt", "COMMIT", "duration_ms", msec(time.Since(start)))
	return nil
}
