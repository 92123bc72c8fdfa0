// Package store persists the catalog, sales and staff accounts through sqlx.
//
// Every repository is built over a sqlx.ExtContext so the same code runs against
// the connection pool or inside a transaction opened by TxManager.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"pharmapos/m/domain"
)

// TxManager runs fn inside one database transaction. fn's error, or a failed
// commit, rolls back every write fn made.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error
}

type SQLTx struct {
	db *sqlx.DB
}

func NewTxManager(db *sqlx.DB) *SQLTx {
	return &SQLTx{db: db}
}

var _ TxManager = (*SQLTx)(nil)

func (m *SQLTx) WithTransaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

func persistence(op string, err error) error {
	return &domain.PersistenceError{Op: op, Err: errors.WithStack(err)}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(domain.ErrNotFound, format, args...)
	}
	return persistence(fmt.Sprintf(format, args...), err)
}
