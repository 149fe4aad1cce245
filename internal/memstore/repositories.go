package memstore

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/repository"
)

var errNegativeBalance = errors.New("memstore: account balance must not be negative")

type accountRepo struct{ t *txTable[domain.Account] }

func (r accountRepo) Create(_ context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.Balance.IsNegative() {
		return errNegativeBalance
	}
	return r.t.insert(account.ID, *account)
}

func (r accountRepo) Update(_ context.Context, account *domain.Account) error {
	if account.Balance.IsNegative() {
		return errNegativeBalance
	}
	return r.t.update(account.ID, *account)
}

func (r accountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	account, ok := r.t.get(id)
	if !ok {
		return nil, errNotFound
	}
	return &account, nil
}

func (r accountRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.Account, error) {
	accounts := r.t.scan(func(a *domain.Account) bool { return a.Role == role })
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

type ticketRepo struct{ t *txTable[domain.Ticket] }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	return r.t.insert(ticket.ID, *ticket)
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	return r.t.update(ticket.ID, *ticket)
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.t.get(id)
	if !ok {
		return nil, errNotFound
	}
	return &ticket, nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets := r.t.scan(func(t *domain.Ticket) bool { return filter.Matches(t) })
	sort.SliceStable(tickets, func(i, j int) bool { return tickets[i].UpdatedAt.After(tickets[j].UpdatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(tickets) {
		return nil, nil
	}
	end := offset + limit
	if end > len(tickets) {
		end = len(tickets)
	}
	return tickets[offset:end], nil
}

type offerRepo struct{ t *txTable[domain.Offer] }

func (r offerRepo) Create(_ context.Context, offer *domain.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	return r.t.insert(offer.ID, *offer)
}

func (r offerRepo) Update(_ context.Context, offer *domain.Offer) error {
	return r.t.update(offer.ID, *offer)
}

func (r offerRepo) GetByID(_ context.Context, id string) (*domain.Offer, error) {
	offer, ok := r.t.get(id)
	if !ok {
		return nil, errNotFound
	}
	return &offer, nil
}

func (r offerRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Offer, error) {
	offers := r.t.scan(func(o *domain.Offer) bool { return o.TicketID == ticketID })
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].CreatedAt.Before(offers[j].CreatedAt) })
	return offers, nil
}

type actionRepo struct{ t *txTable[domain.ActionRecord] }

func (r actionRepo) Create(_ context.Context, action *domain.ActionRecord) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	return r.t.insert(action.ID, *action)
}

func (r actionRepo) Update(_ context.Context, action *domain.ActionRecord) error {
	return r.t.update(action.ID, *action)
}

func (r actionRepo) GetByID(_ context.Context, id string) (*domain.ActionRecord, error) {
	action, ok := r.t.get(id)
	if !ok {
		return nil, errNotFound
	}
	return &action, nil
}

func (r actionRepo) ListByUser(_ context.Context, userID string) ([]domain.ActionRecord, error) {
	actions := r.t.scan(func(a *domain.ActionRecord) bool { return a.UserID == userID })
	reverse(actions)
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].CreatedAt.After(actions[j].CreatedAt) })
	return actions, nil
}

type cashRequestRepo struct{ t *txTable[domain.CashRequest] }

func (r cashRequestRepo) Create(_ context.Context, req *domain.CashRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return r.t.insert(req.ID, *req)
}

func (r cashRequestRepo) Update(_ context.Context, req *domain.CashRequest) error {
	return r.t.update(req.ID, *req)
}

func (r cashRequestRepo) GetByID(_ context.Context, id string) (*domain.CashRequest, error) {
	req, ok := r.t.get(id)
	if !ok {
		return nil, errNotFound
	}
	return &req, nil
}

func (r cashRequestRepo) List(_ context.Context, filter repository.CashRequestFilter) ([]domain.CashRequest, error) {
	reqs := r.t.scan(func(c *domain.CashRequest) bool { return filter.Matches(c) })
	reverse(reqs)
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

type ledgerRepo struct{ t *txTable[domain.LedgerTransaction] }

func (r ledgerRepo) Append(_ context.Context, txn *domain.LedgerTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	return r.t.insert(txn.ID, *txn)
}

func (r ledgerRepo) GetByID(_ context.Context, id string) (*domain.LedgerTransaction, error) {
	txn, ok := r.t.get(id)
	if !ok {
		return nil, errNotFound
	}
	return &txn, nil
}

func (r ledgerRepo) ListByAccount(_ context.Context, accountID string, limit int) ([]domain.LedgerTransaction, error) {
	txns := r.t.scan(func(t *domain.LedgerTransaction) bool {
		for _, e := range t.Entries {
			if e.AccountID == accountID {
				return true
			}
		}
		return false
	})
	reverse(txns)
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].CreatedAt.After(txns[j].CreatedAt) })
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

type historyRepo struct{ t *txTable[domain.TicketHistory] }

func (r historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	return r.t.insert(history.ID, *history)
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	entries := r.t.scan(func(h *domain.TicketHistory) bool { return h.TicketID == ticketID })
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })
	return entries, nil
}

// reverse flips insertion order so stable newest-first sorts break ties by recency.
func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
