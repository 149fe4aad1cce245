package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/memstore"
	"github.com/neighborfix/maintenance-service/internal/repository"
)

const (
	testCategory = "plumbing"
	testDistrict = "north"
)

type fixture struct {
	store       *memstore.Store
	dispatcher  events.Dispatcher
	accounts    *AccountService
	tickets     *TicketService
	negotiation *NegotiationService
	ledger      *LedgerService
	actions     *ActionService

	resident domain.Actor
	staff    domain.Actor
	staff2   domain.Actor
	admin    domain.Actor
}

func newFixture(t *testing.T, residentBalance int64) *fixture {
	t.Helper()
	store := memstore.New(repository.RetryPolicy{MaxAttempts: 20, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	deps := Dependencies{Store: store, Dispatcher: events.NewInMemoryDispatcher()}
	f := &fixture{
		store:       store,
		dispatcher:  deps.Dispatcher,
		accounts:    NewAccountService(deps),
		tickets:     NewTicketService(deps),
		negotiation: NewNegotiationService(deps),
		ledger:      NewLedgerService(deps),
	}
	f.actions = NewActionService(deps, f.ledger)

	ctx := context.Background()
	if _, err := f.accounts.EnsurePlatformAccount(ctx); err != nil {
		t.Fatalf("platform account: %v", err)
	}
	f.resident = f.provision(t, ProvisionInput{ID: "res-1", Name: "Rana", Role: domain.RoleResident, District: testDistrict, OpeningBalance: decimal.NewFromInt(residentBalance)})
	f.staff = f.provision(t, ProvisionInput{ID: "staff-1", Name: "Sami", Role: domain.RoleStaff, ServiceCategory: testCategory, District: testDistrict})
	f.staff2 = f.provision(t, ProvisionInput{ID: "staff-2", Name: "Tariq", Role: domain.RoleStaff, ServiceCategory: testCategory, District: testDistrict})
	f.admin = f.provision(t, ProvisionInput{ID: "admin-1", Name: "Office", Role: domain.RoleAdministrator})
	return f
}

func (f *fixture) provision(t *testing.T, input ProvisionInput) domain.Actor {
	t.Helper()
	account, _, err := f.accounts.Provision(context.Background(), input)
	if err != nil {
		t.Fatalf("provision %s: %v", input.ID, err)
	}
	return domain.Actor{ID: account.ID, Role: account.Role}
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return account.Balance
}

func (f *fixture) ticket(t *testing.T, id string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.GetTicket(context.Background(), f.resident, id)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	return ticket
}

func (f *fixture) openTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.CreateTicket(context.Background(), f.resident, TicketCreateInput{
		Category:    testCategory,
		ServiceType: "leak",
		Description: "kitchen sink leaking",
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

// completedTicket walks a ticket from creation to PendingApproval at price.
func (f *fixture) completedTicket(t *testing.T, price int64) (*domain.Ticket, *domain.ActionRecord) {
	t.Helper()
	ctx := context.Background()
	ticket := f.openTicket(t)
	offer, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(price))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.negotiation.AcceptOffer(ctx, f.resident, offer.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.tickets.StartWork(ctx, f.staff, ticket.ID); err != nil {
		t.Fatalf("start work: %v", err)
	}
	ticket, action, err := f.tickets.MarkComplete(ctx, f.staff, ticket.ID)
	if err != nil {
		t.Fatalf("mark complete: %v", err)
	}
	return ticket, action
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
