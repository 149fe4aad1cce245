// Package memstore is an in-process repository.Store with optimistic
// concurrency: transactions record the version of every row they read and
// commit only if none of those rows changed in the meantime.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/repository"
)

var (
	errNotFound = repository.ErrNotFound
	errReadOnly = repository.ErrReadOnly
)

func errDuplicate(id string) error {
	return fmt.Errorf("%w: duplicate id %s", repository.ErrWriteConflict, id)
}

// Store keeps all records in memory.
type Store struct {
	mu      sync.Mutex
	version uint64
	policy  repository.RetryPolicy

	accounts     *table[domain.Account]
	tickets      *table[domain.Ticket]
	offers       *table[domain.Offer]
	actions      *table[domain.ActionRecord]
	cashRequests *table[domain.CashRequest]
	ledger       *table[domain.LedgerTransaction]
	history      *table[domain.TicketHistory]
}

// New returns an empty store that reruns conflicting transactions under policy.
func New(policy repository.RetryPolicy) *Store {
	return &Store{
		policy:       policy,
		accounts:     newTable[domain.Account](nil),
		tickets:      newTable[domain.Ticket](nil),
		offers:       newTable(cloneOffer),
		actions:      newTable[domain.ActionRecord](nil),
		cashRequests: newTable[domain.CashRequest](nil),
		ledger:       newTable(cloneLedgerTransaction),
		history:      newTable[domain.TicketHistory](nil),
	}
}

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return repository.Retry(ctx, s.policy, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := s.begin(false)
		if err := fn(ctx, tx); err != nil {
			// A decision made on rows that have since changed is rerun like a conflict.
			if !s.consistent(tx) {
				return fmt.Errorf("%w: %v", repository.ErrWriteConflict, err)
			}
			return err
		}
		return s.commit(tx)
	})
}

// View implements repository.Store.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.begin(true))
}

func (s *Store) begin(readOnly bool) *txn {
	tx := &txn{store: s, readOnly: readOnly}
	tx.accounts = newTxTable(tx, s.accounts)
	tx.tickets = newTxTable(tx, s.tickets)
	tx.offers = newTxTable(tx, s.offers)
	tx.actions = newTxTable(tx, s.actions)
	tx.cashRequests = newTxTable(tx, s.cashRequests)
	tx.ledger = newTxTable(tx, s.ledger)
	tx.history = newTxTable(tx, s.history)
	return tx
}

func (s *Store) consistent(tx *txn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tx.tables() {
		if !t.validate() {
			return false
		}
	}
	return true
}

func (s *Store) commit(tx *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := false
	for _, t := range tx.tables() {
		if !t.validate() {
			return repository.ErrWriteConflict
		}
		dirty = dirty || t.dirty()
	}
	if !dirty {
		return nil
	}
	next := func() uint64 {
		s.version++
		return s.version
	}
	for _, t := range tx.tables() {
		t.apply(next)
	}
	return nil
}

type tableOps interface {
	validate() bool
	apply(next func() uint64)
	dirty() bool
}

type txn struct {
	store    *Store
	readOnly bool

	accounts     *txTable[domain.Account]
	tickets      *txTable[domain.Ticket]
	offers       *txTable[domain.Offer]
	actions      *txTable[domain.ActionRecord]
	cashRequests *txTable[domain.CashRequest]
	ledger       *txTable[domain.LedgerTransaction]
	history      *txTable[domain.TicketHistory]
}

func (t *txn) tables() []tableOps {
	return []tableOps{t.accounts, t.tickets, t.offers, t.actions, t.cashRequests, t.ledger, t.history}
}

func (t *txn) Accounts() repository.AccountRepository { return accountRepo{t.accounts} }
func (t *txn) Tickets() repository.TicketRepository { return ticketRepo{t.tickets} }
func (t *txn) Offers() repository.OfferRepository { return offerRepo{t.offers} }
func (t *txn) Actions() repository.ActionRepository { return actionRepo{t.actions} }
func (t *txn) CashRequests() repository.CashRequestRepository { return cashRequestRepo{t.cashRequests} }
func (t *txn) Ledger() repository.LedgerRepository { return ledgerRepo{t.ledger} }
func (t *txn) History() repository.TicketHistoryRepository { return historyRepo{t.history} }

func cloneOffer(o domain.Offer) domain.Offer {
	return *o.Clone()
}

func cloneLedgerTransaction(t domain.LedgerTransaction) domain.LedgerTransaction {
	t.Entries = append([]domain.LedgerEntry(nil), t.Entries...)
	return t
}
