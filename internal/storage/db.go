package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
	connection *sql.DB
	log        *zap.Logger
}

func NewDB(dataSourceName string, log *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Connection pool tuning
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DB{connection: db, log: log}, nil
}

func (db *DB) Close() {
	if err := db.connection.Close(); err != nil {
		db.log.Warn("error closing database connection", zap.Error(err))
	}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.connection.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx so every Store method
// works inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Store exposes all persistence operations over either the pool or one
// transaction.
type Store struct {
	q   querier
	log *zap.Logger
}

// Store returns a Store bound to the connection pool.
func (db *DB) Store() *Store {
	return &Store{q: db.connection, log: db.log}
}

// TxStore returns a Store bound to tx; all its operations join that
// transaction.
func (db *DB) TxStore(tx *sql.Tx) *Store {
	return &Store{q: tx, log: db.log}
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func (db *DB) WithTx(ctx context.Context, fn func(s *Store) error) error {
	tx, err := db.connection.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(db.TxStore(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// AdvisoryLock takes a transaction-scoped advisory lock keyed on an arbitrary
// string. It serializes concurrent ingestions of the same identity so two
// "no match" resolutions cannot both create a candidate. Only meaningful on a
// Store bound to a transaction.
func (s *Store) AdvisoryLock(ctx context.Context, key string) error {
	if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

// GetConnection returns the underlying database handle for advanced queries.
func (db *DB) GetConnection() *sql.DB {
	return db.connection
}
