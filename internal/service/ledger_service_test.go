package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

func totalBalance(t *testing.T, f *fixture, ids ...string) decimal.Decimal {
	t.Helper()
	sum := decimal.Zero
	for _, id := range ids {
		sum = sum.Add(f.balance(t, id))
	}
	return sum
}

func TestSettleMovesMoneyAndConserves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	ticket, action := f.completedTicket(t, 500)
	parties := []string{f.resident.ID, f.staff.ID, DefaultPlatformAccountID}
	before := totalBalance(t, f, parties...)

	result, err := f.actions.Accept(ctx, f.resident, action.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if got := f.balance(t, f.resident.ID); !got.Equal(dec("475")) {
		t.Fatalf("resident: expected 475, got %s", got)
	}
	if got := f.balance(t, f.staff.ID); !got.Equal(dec("500")) {
		t.Fatalf("staff: expected 500, got %s", got)
	}
	if got := f.balance(t, DefaultPlatformAccountID); !got.Equal(dec("25")) {
		t.Fatalf("platform: expected 25, got %s", got)
	}
	if after := totalBalance(t, f, parties...); !after.Equal(before) {
		t.Fatalf("balances not conserved: before %s after %s", before, after)
	}
	if !result.Transaction.Net().IsZero() {
		t.Fatalf("settlement entries do not net to zero: %s", result.Transaction.Net())
	}

	receipt := result.Receipt
	if receipt.Kind != domain.ActionKindReceipt || receipt.AwaitingDecision() {
		t.Fatalf("expected a resolved receipt, got %+v", receipt)
	}
	if !receipt.Details.TotalCost.Equal(dec("525")) || !receipt.Details.SiteCharge.Equal(dec("25")) {
		t.Fatalf("unexpected receipt amounts: %+v", receipt.Details)
	}
	if !receipt.Details.PreviousBalance.Equal(dec("1000")) || !receipt.Details.NewBalance.Equal(dec("475")) {
		t.Fatalf("unexpected receipt balances: %+v", receipt.Details)
	}
	if receipt.Details.IssuedBy != "Sami" || receipt.Details.TransactionID != result.Transaction.ID {
		t.Fatalf("unexpected receipt issuer: %+v", receipt.Details)
	}
	if got := f.ticket(t, ticket.ID).Status; got != domain.TicketStatusResolved {
		t.Fatalf("expected RESOLVED, got %s", got)
	}

	t.Run("settling twice fails", func(t *testing.T) {
		_, err := f.ledger.Settle(ctx, f.resident, ticket.ID)
		if !errors.Is(err, apperrors.ErrInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
		if got := f.balance(t, f.resident.ID); !got.Equal(dec("475")) {
			t.Fatalf("resident charged twice: %s", got)
		}
	})

	t.Run("ledger lists the settlement", func(t *testing.T) {
		txns, err := f.ledger.ListLedger(ctx, f.staff, 10)
		if err != nil {
			t.Fatalf("list ledger: %v", err)
		}
		if len(txns) != 1 || txns[0].Kind != domain.LedgerKindTicketSettlement || txns[0].Reference != ticket.ID {
			t.Fatalf("unexpected ledger: %+v", txns)
		}
	})
}

func TestSettleFractionalSiteCharge(t *testing.T) {
	f := newFixture(t, 1000)
	ticket, _ := f.completedTicket(t, 333)

	result, err := f.ledger.Settle(context.Background(), f.resident, ticket.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !result.Receipt.Details.SiteCharge.Equal(dec("16.65")) {
		t.Fatalf("expected 16.65 site charge, got %s", result.Receipt.Details.SiteCharge)
	}
	if got := f.balance(t, f.resident.ID); !got.Equal(dec("650.35")) {
		t.Fatalf("resident: expected 650.35, got %s", got)
	}
}

func TestSettleInsufficientFundsChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 400)
	ticket, action := f.completedTicket(t, 500)

	_, err := f.actions.Accept(ctx, f.resident, action.ID)
	if !errors.Is(err, apperrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := f.balance(t, f.resident.ID); !got.Equal(dec("400")) {
		t.Fatalf("resident balance changed: %s", got)
	}
	if got := f.balance(t, f.staff.ID); !got.IsZero() {
		t.Fatalf("staff balance changed: %s", got)
	}
	if got := f.ticket(t, ticket.ID); got.Status != domain.TicketStatusPendingApproval || got.ResolutionActionID == nil {
		t.Fatalf("ticket changed: %+v", got)
	}
	actions, err := f.actions.List(ctx, f.resident)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	for _, a := range actions {
		if a.ID == action.ID && !a.AwaitingDecision() {
			t.Fatalf("approval request consumed by failed settlement")
		}
	}
	txns, err := f.ledger.ListLedger(ctx, f.resident, 0)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(txns))
	}
}

func TestSettleRequiresTicketResident(t *testing.T) {
	f := newFixture(t, 1000)
	ticket, _ := f.completedTicket(t, 100)

	_, err := f.ledger.Settle(context.Background(), f.staff, ticket.ID)
	if !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestCashInRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	req, err := f.ledger.RequestCashIn(ctx, f.resident, CashRequestInput{
		AdminID:               f.admin.ID,
		Amount:                decimal.NewFromInt(200),
		PaymentMethod:         "bkash",
		AccountNumber:         "01700000000",
		ExternalTransactionID: "EXT-1",
	})
	if err != nil {
		t.Fatalf("request cash-in: %v", err)
	}
	if req.Status != domain.CashRequestStatusPending {
		t.Fatalf("expected PENDING, got %s", req.Status)
	}

	resolved, err := f.ledger.Resolve(ctx, f.admin, req.ID, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := f.balance(t, f.resident.ID); !got.Equal(dec("300")) {
		t.Fatalf("resident: expected 300, got %s", got)
	}
	if got := f.balance(t, f.admin.ID); !got.Equal(dec("200")) {
		t.Fatalf("admin: expected 200, got %s", got)
	}
	if resolved.Notice.UserID != f.resident.ID || !resolved.Notice.Details.NewBalance.Equal(dec("300")) {
		t.Fatalf("unexpected notice: %+v", resolved.Notice)
	}

	if _, err := f.ledger.Resolve(ctx, f.admin, req.ID, ""); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state on second resolve, got %v", err)
	}

	reverted, err := f.ledger.Unresolve(ctx, f.admin, req.ID)
	if err != nil {
		t.Fatalf("unresolve: %v", err)
	}
	if reverted.Request.Status != domain.CashRequestStatusPending || reverted.Request.LedgerTransactionID != nil {
		t.Fatalf("unexpected request after unresolve: %+v", reverted.Request)
	}
	if reverted.Transaction.ReversesID == nil || *reverted.Transaction.ReversesID != resolved.Transaction.ID {
		t.Fatalf("reversal does not reference original: %+v", reverted.Transaction)
	}
	if got := f.balance(t, f.resident.ID); !got.Equal(dec("100")) {
		t.Fatalf("resident: expected 100, got %s", got)
	}
	if got := f.balance(t, f.admin.ID); !got.IsZero() {
		t.Fatalf("admin: expected 0, got %s", got)
	}

	txns, err := f.ledger.ListLedger(ctx, f.resident, 10)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(txns) != 2 || txns[0].ID != reverted.Transaction.ID {
		t.Fatalf("expected reversal first in ledger, got %+v", txns)
	}
}

func TestCashOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 300)
	seedAdmin, err := f.ledger.RequestCashIn(ctx, f.resident, CashRequestInput{
		AdminID: f.admin.ID, Amount: decimal.NewFromInt(100), PaymentMethod: "bank", AccountNumber: "1", ExternalTransactionID: "EXT-0",
	})
	if err != nil {
		t.Fatalf("seed cash-in: %v", err)
	}
	if _, err := f.ledger.Resolve(ctx, f.admin, seedAdmin.ID, ""); err != nil {
		t.Fatalf("seed resolve: %v", err)
	}

	t.Run("more than balance", func(t *testing.T) {
		_, err := f.ledger.RequestCashOut(ctx, f.resident, CashRequestInput{
			AdminID: f.admin.ID, Amount: decimal.NewFromInt(1000), PaymentMethod: "bank", AccountNumber: "1",
		})
		if !errors.Is(err, apperrors.ErrInsufficientFunds) {
			t.Fatalf("expected insufficient funds, got %v", err)
		}
	})

	t.Run("addressed to a non-admin", func(t *testing.T) {
		_, err := f.ledger.RequestCashOut(ctx, f.resident, CashRequestInput{
			AdminID: f.staff.ID, Amount: decimal.NewFromInt(10), PaymentMethod: "bank", AccountNumber: "1",
		})
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	req, err := f.ledger.RequestCashOut(ctx, f.resident, CashRequestInput{
		AdminID: f.admin.ID, Amount: decimal.NewFromInt(50), PaymentMethod: "bank", AccountNumber: "1",
	})
	if err != nil {
		t.Fatalf("request cash-out: %v", err)
	}

	t.Run("resolve needs a payout reference", func(t *testing.T) {
		if _, err := f.ledger.Resolve(ctx, f.admin, req.ID, " "); !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("other admin cannot resolve", func(t *testing.T) {
		other := f.provision(t, ProvisionInput{ID: "admin-2", Name: "Other", Role: domain.RoleAdministrator})
		if _, err := f.ledger.Resolve(ctx, other, req.ID, "PAY-1"); !errors.Is(err, apperrors.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
	})

	result, err := f.ledger.Resolve(ctx, f.admin, req.ID, "PAY-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if result.Request.ExternalTransactionID == nil || *result.Request.ExternalTransactionID != "PAY-1" {
		t.Fatalf("payout reference not recorded: %+v", result.Request)
	}
	if got := f.balance(t, f.resident.ID); !got.Equal(dec("350")) {
		t.Fatalf("resident: expected 350, got %s", got)
	}
	if got := f.balance(t, f.admin.ID); !got.Equal(dec("50")) {
		t.Fatalf("admin: expected 50, got %s", got)
	}

	t.Run("listing is scoped", func(t *testing.T) {
		pending := domain.CashRequestStatusResolved
		mine, err := f.ledger.ListCashRequests(ctx, f.resident, &pending)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(mine) != 2 {
			t.Fatalf("expected 2 resolved requests, got %d", len(mine))
		}
		none, err := f.ledger.ListCashRequests(ctx, f.staff, nil)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(none) != 0 {
			t.Fatalf("expected no requests for staff, got %d", len(none))
		}
	})
}

func TestCashInValidation(t *testing.T) {
	f := newFixture(t, 0)
	cases := []struct {
		name  string
		actor domain.Actor
		input CashRequestInput
		want  error
	}{
		{"missing external id", f.resident, CashRequestInput{AdminID: f.admin.ID, Amount: decimal.NewFromInt(1), PaymentMethod: "bank", AccountNumber: "1"}, apperrors.ErrValidation},
		{"zero amount", f.resident, CashRequestInput{AdminID: f.admin.ID, PaymentMethod: "bank", AccountNumber: "1", ExternalTransactionID: "x"}, apperrors.ErrValidation},
		{"missing method", f.resident, CashRequestInput{AdminID: f.admin.ID, Amount: decimal.NewFromInt(1), AccountNumber: "1", ExternalTransactionID: "x"}, apperrors.ErrValidation},
		{"admin cannot request", f.admin, CashRequestInput{AdminID: f.admin.ID, Amount: decimal.NewFromInt(1), PaymentMethod: "bank", AccountNumber: "1", ExternalTransactionID: "x"}, apperrors.ErrPermissionDenied},
		{"unknown admin", f.resident, CashRequestInput{AdminID: "nobody", Amount: decimal.NewFromInt(1), PaymentMethod: "bank", AccountNumber: "1", ExternalTransactionID: "x"}, apperrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RequestCashIn(context.Background(), tc.actor, tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
