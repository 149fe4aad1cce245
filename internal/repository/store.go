package repository

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrWriteConflict means a concurrent commit invalidated the unit of work; it is safe to retry.
	ErrWriteConflict = errors.New("repository: write conflict")
	// ErrReadOnly is returned when a write is attempted inside View.
	ErrReadOnly = errors.New("repository: read-only transaction")
)

// Tx exposes the repositories bound to one unit of work.
type Tx interface {
	Accounts() AccountRepository
	Tickets() TicketRepository
	Offers() OfferRepository
	Actions() ActionRepository
	CashRequests() CashRequestRepository
	Ledger() LedgerRepository
	History() TicketHistoryRepository
}

// Store runs units of work against the backing database.
type Store interface {
	// WithinTx runs fn atomically. A write conflict reruns fn from scratch under
	// the store's retry policy; any other error aborts without retry.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn over a read-only snapshot.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
