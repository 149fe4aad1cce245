package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/repository"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// NegotiationService runs the offer and bargain protocol.
type NegotiationService struct {
	base
}

// NewNegotiationService constructs the service.
func NewNegotiationService(deps Dependencies) *NegotiationService {
	return &NegotiationService{base: newBase(deps)}
}

// AcceptResult is the state committed by an accepted offer.
type AcceptResult struct {
	Ticket     *domain.Ticket
	Offer      *domain.Offer
	Superseded []string
}

// ProposeOffer files a staff member's price for an open ticket.
func (s *NegotiationService) ProposeOffer(ctx context.Context, actor domain.Actor, ticketID string, price decimal.Decimal) (*domain.Offer, error) {
	if err := requireRole(actor, domain.RoleStaff); err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, apperrors.NewValidationError("price must be positive", map[string]any{"price": price.String()})
	}
	price = price.Round(2)

	var (
		offer   *domain.Offer
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		ticket, err := getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		staff, err := getAccount(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		if !staffEligible(staff, ticket) {
			return apperrors.NewPermissionDenied("staff does not serve this ticket's category and district")
		}
		if !isOpenForOffers(ticket.Status) {
			return apperrors.NewInvalidState("ticket is not accepting offers", map[string]any{"status": ticket.Status})
		}
		existing, err := tx.Offers().ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if hasOpenOffer(actor, existing) {
			return apperrors.NewInvalidState("staff already has an open offer on this ticket", nil)
		}

		now := s.now()
		offer = &domain.Offer{
			TicketID:     ticket.ID,
			StaffID:      staff.ID,
			InitialPrice: price,
			Bargains:     []domain.Bargain{},
			Status:       domain.OfferStatusProposed,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Offers().Create(ctx, offer); err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusPending {
			event, err := s.transition(ctx, tx, ticket, domain.TicketStatusAwaitingResident, actor.ID, "offer proposed")
			if err != nil {
				return err
			}
			pending.add(event)
		}
		pending.add(offerEvent(events.EventOfferProposed, ticket, offer, actor.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	return offer, nil
}

// CounterOffer appends a bargain on the actor's turn.
func (s *NegotiationService) CounterOffer(ctx context.Context, actor domain.Actor, offerID string, amount decimal.Decimal, remarks string) (*domain.Offer, error) {
	if !amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount must be positive", map[string]any{"amount": amount.String()})
	}
	amount = amount.Round(2)

	var (
		offer   *domain.Offer
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		var (
			ticket *domain.Ticket
			party  domain.Party
			err    error
		)
		offer, ticket, party, err = s.loadNegotiation(ctx, tx, actor, offerID)
		if err != nil {
			return err
		}
		now := s.now()
		offer.Bargains = append(offer.Bargains, domain.Bargain{
			Amount:     amount,
			Remarks:    strings.TrimSpace(remarks),
			ProposedBy: party,
			Timestamp:  now,
		})
		offer.UpdatedAt = now
		if err := tx.Offers().Update(ctx, offer); err != nil {
			return err
		}
		pending.add(offerEvent(events.EventOfferCountered, ticket, offer, actor.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	return offer, nil
}

// AcceptOffer assigns the ticket at the offer's effective price. Every other open
// offer on the ticket is superseded in the same transaction.
func (s *NegotiationService) AcceptOffer(ctx context.Context, actor domain.Actor, offerID string) (*AcceptResult, error) {
	var (
		result  *AcceptResult
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		offer, ticket, _, err := s.loadNegotiation(ctx, tx, actor, offerID)
		if err != nil {
			return err
		}

		price := offer.EffectivePrice()
		now := s.now()
		offer.Status = domain.OfferStatusAccepted
		offer.UpdatedAt = now
		if err := tx.Offers().Update(ctx, offer); err != nil {
			return err
		}

		others, err := tx.Offers().ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		var superseded []string
		for i := range others {
			other := &others[i]
			if other.ID == offer.ID || !other.IsActive() {
				continue
			}
			other.Status = domain.OfferStatusSuperseded
			other.UpdatedAt = now
			if err := tx.Offers().Update(ctx, other); err != nil {
				return err
			}
			superseded = append(superseded, other.StaffID)
		}

		ticket.AssignedStaffID = ptr(offer.StaffID)
		ticket.FinalPrice = ptr(price)
		event, err := s.transition(ctx, tx, ticket, domain.TicketStatusAssigned, actor.ID, "offer accepted at "+price.StringFixed(2))
		if err != nil {
			return err
		}
		event.Audience = append(event.Audience, superseded...)
		pending.add(event)
		pending.add(offerEvent(events.EventOfferAccepted, ticket, offer, actor.ID))

		result = &AcceptResult{Ticket: ticket, Offer: offer, Superseded: superseded}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	s.logger.Info("offer accepted",
		zap.String("ticket_id", result.Ticket.ID),
		zap.String("offer_id", result.Offer.ID),
		zap.String("final_price", result.Ticket.FinalPrice.StringFixed(2)))
	return result, nil
}

// ListOffers returns the offers on a ticket. Staff only see their own.
func (s *NegotiationService) ListOffers(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.Offer, error) {
	var offers []domain.Offer
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		ticket, err := getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		all, err := tx.Offers().ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		switch {
		case actor.Role == domain.RoleAdministrator, isTicketResident(actor, ticket):
			offers = all
		case actor.Role == domain.RoleStaff:
			offers = []domain.Offer{}
			for _, offer := range all {
				if offer.StaffID == actor.ID {
					offers = append(offers, offer)
				}
			}
		default:
			return apperrors.NewPermissionDenied("offers not visible to caller")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	return offers, nil
}

// loadNegotiation reads an offer and its ticket and checks that the actor is a
// party whose turn it is on a live negotiation.
func (s *NegotiationService) loadNegotiation(ctx context.Context, tx repository.Tx, actor domain.Actor, offerID string) (*domain.Offer, *domain.Ticket, domain.Party, error) {
	offer, err := getOffer(ctx, tx, offerID)
	if err != nil {
		return nil, nil, "", err
	}
	ticket, err := getTicket(ctx, tx, offer.TicketID)
	if err != nil {
		return nil, nil, "", err
	}
	party, err := negotiationParty(actor, ticket, offer)
	if err != nil {
		return nil, nil, "", err
	}
	if ticket.Status != domain.TicketStatusAwaitingResident {
		return nil, nil, "", apperrors.NewInvalidState("ticket is not awaiting the resident", map[string]any{"status": ticket.Status})
	}
	if !offer.IsActive() {
		return nil, nil, "", apperrors.NewInvalidState("offer is no longer open", map[string]any{"offer_status": offer.Status})
	}
	if offer.NextProposer() != party {
		return nil, nil, "", apperrors.NewInvalidState("not your turn", map[string]any{"next_proposer": offer.NextProposer()})
	}
	return offer, ticket, party, nil
}

func offerEvent(eventType events.EventType, ticket *domain.Ticket, offer *domain.Offer, actorID string) events.Event {
	return events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Audience: []string{ticket.ResidentID, offer.StaffID},
		Payload: events.OfferPayload{
			OfferID:        offer.ID,
			StaffID:        offer.StaffID,
			EffectivePrice: offer.EffectivePrice(),
			NextProposer:   offer.NextProposer(),
		},
	}
}
