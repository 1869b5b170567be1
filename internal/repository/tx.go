package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by writes that matched no row. Reads report a
// missing row as (nil, nil).
var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories groups the repositories bound to one connection or transaction
type Repositories struct {
	Users UserRepository
	Books BookRepository
}

// NewRepositories binds every repository to db
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Users: NewUserRepository(db),
		Books: NewBookRepository(db),
	}
}

// Transactor runs a unit of work atomically
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

type pgxTransactor struct {
	db DBTX
}

// NewTransactor creates a Transactor over db
func NewTransactor(db DBTX) Transactor {
	return &pgxTransactor{db: db}
}

// WithinTx commits when fn returns nil and rolls everything back otherwise
func (t *pgxTransactor) WithinTx(ctx context.Context, fn func(Repositories) error) (err error) {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(NewRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
