package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both pgx.Tx and *pgxpool.Pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	pool   *pgxpool.Pool
	policy RetryPolicy
}

// NewPostgresStore returns a Store running SERIALIZABLE transactions on pool.
func NewPostgresStore(pool *pgxpool.Pool, policy RetryPolicy) Store {
	return &postgresStore{pool: pool, policy: policy}
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return Retry(ctx, s.policy, func(ctx context.Context) error {
		return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
	})
}

func (s *postgresStore) View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}, fn)
}

func (s *postgresStore) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return mapPgError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return mapPgError(err)
	}
	return mapPgError(tx.Commit(ctx))
}

// mapPgError translates serialization failures into ErrWriteConflict.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return fmt.Errorf("%w: %s (%s)", ErrWriteConflict, pgErr.Message, pgErr.Code)
		case "25006":
			return fmt.Errorf("%w: %s", ErrReadOnly, pgErr.Message)
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type pgTx struct {
	q querier
}

func (t *pgTx) Accounts() AccountRepository { return &accountRepository{q: t.q} }
func (t *pgTx) Tickets() TicketRepository { return &ticketRepository{q: t.q} }
func (t *pgTx) Offers() OfferRepository { return &offerRepository{q: t.q} }
func (t *pgTx) Actions() ActionRepository { return &actionRepository{q: t.q} }
func (t *pgTx) CashRequests() CashRequestRepository { return &cashRequestRepository{q: t.q} }
func (t *pgTx) Ledger() LedgerRepository { return &ledgerRepository{q: t.q} }
func (t *pgTx) History() TicketHistoryRepository { return &ticketHistoryRepository{q: t.q} }
