package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

func TestNegotiationTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	ticket := f.openTicket(t)

	offer, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(300))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if got := f.ticket(t, ticket.ID).Status; got != domain.TicketStatusAwaitingResident {
		t.Fatalf("expected AWAITING_RESIDENT, got %s", got)
	}

	t.Run("staff cannot counter its own price", func(t *testing.T) {
		_, err := f.negotiation.CounterOffer(ctx, f.staff, offer.ID, decimal.NewFromInt(320), "")
		if !errors.Is(err, apperrors.ErrInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})

	offer, err = f.negotiation.CounterOffer(ctx, f.resident, offer.ID, decimal.NewFromInt(280), "cheaper please")
	if err != nil {
		t.Fatalf("resident counter: %v", err)
	}
	if offer.NextProposer() != domain.PartyStaff {
		t.Fatalf("expected staff to move next, got %s", offer.NextProposer())
	}

	t.Run("resident cannot counter twice", func(t *testing.T) {
		_, err := f.negotiation.CounterOffer(ctx, f.resident, offer.ID, decimal.NewFromInt(250), "")
		if !errors.Is(err, apperrors.ErrInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})

	t.Run("resident cannot accept own bargain", func(t *testing.T) {
		_, err := f.negotiation.AcceptOffer(ctx, f.resident, offer.ID)
		if !errors.Is(err, apperrors.ErrInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})

	t.Run("outsider is not a party", func(t *testing.T) {
		_, err := f.negotiation.AcceptOffer(ctx, f.staff2, offer.ID)
		if !errors.Is(err, apperrors.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
	})

	result, err := f.negotiation.AcceptOffer(ctx, f.staff, offer.ID)
	if err != nil {
		t.Fatalf("staff accept: %v", err)
	}
	if !result.Ticket.FinalPrice.Equal(decimal.NewFromInt(280)) {
		t.Fatalf("expected final price 280, got %s", result.Ticket.FinalPrice)
	}
	if result.Ticket.Status != domain.TicketStatusAssigned || !result.Ticket.IsAssignedTo(f.staff.ID) {
		t.Fatalf("unexpected ticket after accept: %+v", result.Ticket)
	}
}

func TestProposeOfferRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	ticket := f.openTicket(t)

	t.Run("resident cannot propose", func(t *testing.T) {
		_, err := f.negotiation.ProposeOffer(ctx, f.resident, ticket.ID, decimal.NewFromInt(100))
		if !errors.Is(err, apperrors.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
	})

	t.Run("non-positive price", func(t *testing.T) {
		_, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.Zero)
		if !errors.Is(err, apperrors.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("staff outside the district", func(t *testing.T) {
		outsider := f.provision(t, ProvisionInput{ID: "staff-south", Name: "Omar", Role: domain.RoleStaff, ServiceCategory: testCategory, District: "south"})
		_, err := f.negotiation.ProposeOffer(ctx, outsider, ticket.ID, decimal.NewFromInt(100))
		if !errors.Is(err, apperrors.ErrPermissionDenied) {
			t.Fatalf("expected permission denied, got %v", err)
		}
	})

	t.Run("one open offer per staff", func(t *testing.T) {
		if _, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(100)); err != nil {
			t.Fatalf("first propose: %v", err)
		}
		_, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(90))
		if !errors.Is(err, apperrors.ErrInvalidState) {
			t.Fatalf("expected invalid state, got %v", err)
		}
	})

	t.Run("staff see only their own offers", func(t *testing.T) {
		if _, err := f.negotiation.ProposeOffer(ctx, f.staff2, ticket.ID, decimal.NewFromInt(95)); err != nil {
			t.Fatalf("second staff propose: %v", err)
		}
		mine, err := f.negotiation.ListOffers(ctx, f.staff2, ticket.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(mine) != 1 || mine[0].StaffID != f.staff2.ID {
			t.Fatalf("expected only staff-2's offer, got %+v", mine)
		}
		all, err := f.negotiation.ListOffers(ctx, f.resident, ticket.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 offers for resident, got %d", len(all))
		}
	})
}

func TestAcceptSupersedesOtherOffers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	ticket := f.openTicket(t)

	a, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("propose a: %v", err)
	}
	b, err := f.negotiation.ProposeOffer(ctx, f.staff2, ticket.ID, decimal.NewFromInt(180))
	if err != nil {
		t.Fatalf("propose b: %v", err)
	}

	result, err := f.negotiation.AcceptOffer(ctx, f.resident, a.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(result.Superseded) != 1 || result.Superseded[0] != f.staff2.ID {
		t.Fatalf("expected staff-2 superseded, got %v", result.Superseded)
	}

	offers, err := f.negotiation.ListOffers(ctx, f.resident, ticket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, offer := range offers {
		want := domain.OfferStatusSuperseded
		if offer.ID == a.ID {
			want = domain.OfferStatusAccepted
		}
		if offer.Status != want {
			t.Fatalf("offer %s: expected %s, got %s", offer.ID, want, offer.Status)
		}
	}

	if _, err := f.negotiation.AcceptOffer(ctx, f.staff2, b.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state for superseded offer, got %v", err)
	}
}

func TestConcurrentAcceptsAssignOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	ticket := f.openTicket(t)

	a, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(200))
	if err != nil {
		t.Fatalf("propose a: %v", err)
	}
	b, err := f.negotiation.ProposeOffer(ctx, f.staff2, ticket.ID, decimal.NewFromInt(220))
	if err != nil {
		t.Fatalf("propose b: %v", err)
	}
	// Leaves staff-2 to move on offer b.
	if _, err := f.negotiation.CounterOffer(ctx, f.resident, b.ID, decimal.NewFromInt(190), ""); err != nil {
		t.Fatalf("counter b: %v", err)
	}

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*AcceptResult, 2)
		errs    = make([]error, 2)
	)
	accepts := []func() (*AcceptResult, error){
		func() (*AcceptResult, error) { return f.negotiation.AcceptOffer(ctx, f.resident, a.ID) },
		func() (*AcceptResult, error) { return f.negotiation.AcceptOffer(ctx, f.staff2, b.ID) },
	}
	for i, accept := range accepts {
		wg.Add(1)
		go func(i int, accept func() (*AcceptResult, error)) {
			defer wg.Done()
			<-start
			results[i], errs[i] = accept()
		}(i, accept)
	}
	close(start)
	wg.Wait()

	var winner *AcceptResult
	for i, err := range errs {
		switch {
		case err == nil:
			if winner != nil {
				t.Fatalf("both accepts succeeded")
			}
			winner = results[i]
		case !errors.Is(err, apperrors.ErrInvalidState):
			t.Fatalf("loser: expected invalid state, got %v", err)
		}
	}
	if winner == nil {
		t.Fatalf("no accept succeeded: %v", errs)
	}

	final := f.ticket(t, ticket.ID)
	if final.Status != domain.TicketStatusAssigned {
		t.Fatalf("expected ASSIGNED, got %s", final.Status)
	}
	if !final.IsAssignedTo(winner.Offer.StaffID) || !final.FinalPrice.Equal(winner.Offer.EffectivePrice()) {
		t.Fatalf("ticket does not reflect winning offer: %+v", final)
	}

	offers, err := f.negotiation.ListOffers(ctx, f.resident, ticket.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	accepted := 0
	for _, offer := range offers {
		if offer.Status == domain.OfferStatusAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted offer, got %d", accepted)
	}
}

func TestCancelNegotiationsReturnsToPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	ticket := f.openTicket(t)

	offer, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(150))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.tickets.CancelNegotiations(ctx, f.staff2, ticket.ID); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("expected permission denied for staff without an offer, got %v", err)
	}
	updated, err := f.tickets.CancelNegotiations(ctx, f.staff, ticket.ID)
	if err != nil {
		t.Fatalf("cancel negotiations: %v", err)
	}
	if updated.Status != domain.TicketStatusPending {
		t.Fatalf("expected PENDING, got %s", updated.Status)
	}
	if _, err := f.negotiation.AcceptOffer(ctx, f.resident, offer.ID); !errors.Is(err, apperrors.ErrInvalidState) {
		t.Fatalf("expected invalid state for withdrawn offer, got %v", err)
	}
	if _, err := f.negotiation.ProposeOffer(ctx, f.staff, ticket.ID, decimal.NewFromInt(140)); err != nil {
		t.Fatalf("re-propose after withdrawal: %v", err)
	}
}
