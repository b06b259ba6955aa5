package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/opositaprep/checkout-service/pkg/logger"
)

// TxManager is the transaction lifecycle the services depend on.
type TxManager interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	CommitTx(tx *sqlx.Tx) error
	RollbackTx(tx *sqlx.Tx)
}

// DBClient wraps the database handle and transaction helpers.
type DBClient struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewDBClient connects to Postgres, retrying with exponential backoff so
// the service survives the database coming up after it.
func NewDBClient(dsn string, log *logger.Logger) (*DBClient, error) {
	var db *sqlx.DB

	connect := func() error {
		var err error
		db, err = sqlx.Connect("pgx", dsn)
		if err != nil {
			log.Warnw("Database not reachable yet, retrying", "error", err)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(connect, bo); err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("db: failed to connect: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &DBClient{db: db, log: log}, nil
}

// DB returns the underlying sqlx handle.
func (dc *DBClient) DB() *sqlx.DB {
	return dc.db
}

// Close closes the database connection.
func (dc *DBClient) Close() error {
	if err := dc.db.Close(); err != nil {
		dc.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("db: failed to close connection: %w", err)
	}
	return nil
}

// BeginTx starts a transaction.
func (dc *DBClient) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := dc.db.BeginTxx(ctx, nil)
	if err != nil {
		dc.log.Errorw("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("db: failed to begin transaction: %w", err)
	}
	return tx, nil
}

// CommitTx commits a transaction.
func (dc *DBClient) CommitTx(tx *sqlx.Tx) error {
	if err := tx.Commit(); err != nil {
		dc.log.Errorw("Failed to commit transaction", "error", err)
		return fmt.Errorf("db: failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTx rolls a transaction back. Safe to call after commit; the
// resulting ErrTxDone is swallowed.
func (dc *DBClient) RollbackTx(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		dc.log.Errorw("Failed to rollback transaction", "error", err)
	}
}
