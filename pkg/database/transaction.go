package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Ramsey-B/clover/pkg/logging"
)

type txContextKey string

const txKey = txContextKey("tx-context-key")

type Tx interface {
	Querier
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// transaction wraps sqlx.Tx. Commit and Rollback only act for the
// creator; nested GetTx calls receive a participant handle whose
// Commit/Rollback are no-ops, so the outermost caller controls the
// transaction boundary.
type transaction struct {
	*sqlx.Tx
	logger   logging.Logger
	isClosed bool
	owner    bool
}

func openTxFromContext(ctx context.Context) Tx {
	tx, ok := ctx.Value(txKey).(*transaction)
	if !ok || tx == nil || tx.isClosed {
		return nil
	}
	return &transaction{Tx: tx.Tx, logger: tx.logger, owner: false}
}

func getTx(ctx context.Context, logger logging.Logger, db *sqlx.DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if existing, ok := ctx.Value(txKey).(*transaction); ok && existing != nil && !existing.isClosed {
		return ctx, &transaction{Tx: existing.Tx, logger: logger, owner: false}, nil
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("error while beginning transaction")
		return ctx, nil, fmt.Errorf("error while beginning transaction")
	}

	newTx := &transaction{Tx: tx, logger: logger, owner: true}
	ctx = context.WithValue(ctx, txKey, newTx)
	return ctx, newTx, nil
}

func (t *transaction) IsOpen() bool {
	return !t.isClosed
}

func (t *transaction) Commit(ctx context.Context) error {
	if !t.owner || t.isClosed {
		return nil
	}

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("error while committing transaction")
		return fmt.Errorf("error while committing transaction")
	}

	t.isClosed = true
	return nil
}

func (t *transaction) Rollback(ctx context.Context) error {
	if !t.owner || t.isClosed {
		return nil
	}

	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction")
	}

	t.isClosed = true
	return nil
}
