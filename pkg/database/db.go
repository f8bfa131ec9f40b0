// Package database wraps sqlx with context-carried transactions and
// Postgres-flavored query builders.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/logging"
)

// Querier is the read/write surface shared by the connection pool and
// open transactions. Repositories run all statements through it so they
// transparently join a transaction carried in the context.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

type DB interface {
	Querier

	// Q returns the open transaction carried in ctx, or the pool.
	Q(ctx context.Context) Querier

	// GetTx returns the transaction carried in ctx if one is open,
	// otherwise it begins a new one and stores it in the returned context.
	// Only the creator's Commit/Rollback close the transaction.
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)

	PingContext(ctx context.Context) error
	Close() error
	SQLX() *sqlx.DB
}

type Config struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type databaseInstance struct {
	*sqlx.DB
	logger logging.Logger
}

// Connect opens and pings a database connection.
func Connect(ctx context.Context, cfg Config, logger logging.Logger) (DB, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &databaseInstance{DB: db, logger: logger}, nil
}

// NewDB wraps an existing sqlx handle.
func NewDB(db *sqlx.DB, logger logging.Logger) DB {
	return &databaseInstance{DB: db, logger: logger}
}

func (db *databaseInstance) Q(ctx context.Context) Querier {
	if tx := openTxFromContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}

func (db *databaseInstance) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return getTx(ctx, db.logger, db.DB, opts)
}

func (db *databaseInstance) SQLX() *sqlx.DB {
	return db.DB
}
