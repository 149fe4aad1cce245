package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/repository"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// TicketService drives the ticket lifecycle outside of negotiation and settlement.
type TicketService struct {
	base
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	return &TicketService{base: newBase(deps)}
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Category    string
	ServiceType string
	Description string
	Urgency     domain.TicketUrgency
}

// TicketScope selects which tickets a staff member lists.
type TicketScope string

const (
	TicketScopeAssigned  TicketScope = "assigned"
	TicketScopeAvailable TicketScope = "available"
)

// TicketListInput describes listing filters.
type TicketListInput struct {
	Scope    TicketScope
	Statuses []domain.TicketStatus
	Limit    int
	Offset   int
}

// CreateTicket opens a ticket for a resident in their district.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireRole(actor, domain.RoleResident); err != nil {
		return nil, err
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, apperrors.NewValidationError("category is required", nil)
	}
	if input.Urgency == "" {
		input.Urgency = domain.TicketUrgencyMedium
	}
	if !input.Urgency.Valid() {
		return nil, apperrors.NewValidationError("invalid urgency", map[string]any{"urgency": input.Urgency})
	}

	var (
		ticket  *domain.Ticket
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		resident, err := getAccount(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		now := s.now()
		ticket = &domain.Ticket{
			ResidentID:  resident.ID,
			Category:    category,
			ServiceType: strings.TrimSpace(input.ServiceType),
			Description: strings.TrimSpace(input.Description),
			Urgency:     input.Urgency,
			Status:      domain.TicketStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if resident.District != nil {
			ticket.District = *resident.District
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		if err := tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:  ticket.ID,
			ActorID:   actor.ID,
			ToStatus:  domain.TicketStatusPending,
			Comment:   "created",
			CreatedAt: now,
		}); err != nil {
			return err
		}
		pending.add(events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Audience: ticketAudience(ticket),
			Payload: events.TicketCreatedPayload{
				Category: ticket.Category,
				District: ticket.District,
				Urgency:  ticket.Urgency,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	return ticket, nil
}

// GetTicket returns a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		ticket, err = s.visibleTicket(ctx, tx, actor, ticketID)
		return err
	})
	return ticket, err
}

// ListTickets returns the tickets in the actor's scope.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, input TicketListInput) ([]domain.Ticket, error) {
	filter := repository.TicketFilter{
		Statuses: input.Statuses,
		Limit:    input.Limit,
		Offset:   input.Offset,
	}

	var tickets []domain.Ticket
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		switch actor.Role {
		case domain.RoleResident:
			filter.ResidentID = &actor.ID
		case domain.RoleAdministrator:
		case domain.RoleStaff:
			if input.Scope == TicketScopeAvailable {
				staff, err := getAccount(ctx, tx, actor.ID)
				if err != nil {
					return err
				}
				if staff.ServiceCategory == nil || staff.District == nil {
					tickets = []domain.Ticket{}
					return nil
				}
				filter.Category = staff.ServiceCategory
				filter.District = staff.District
				filter.Statuses = []domain.TicketStatus{domain.TicketStatusPending, domain.TicketStatusAwaitingResident}
			} else {
				filter.AssignedStaffID = &actor.ID
			}
		default:
			return apperrors.NewPermissionDenied("operation not permitted for role " + string(actor.Role))
		}
		var err error
		tickets, err = tx.Tickets().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// ListHistory returns the status audit trail of a visible ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	var history []domain.TicketHistory
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := s.visibleTicket(ctx, tx, actor, ticketID); err != nil {
			return err
		}
		var err error
		history, err = tx.History().ListByTicket(ctx, ticketID)
		return err
	})
	return history, err
}

// StartWork moves an assigned ticket into progress.
func (s *TicketService) StartWork(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	return s.simpleTransition(ctx, actor, ticketID, domain.TicketStatusInProgress, "work started", requireAssignedStaff)
}

// CancelTicket closes a ticket that is still under negotiation.
func (s *TicketService) CancelTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	var (
		ticket  *domain.Ticket
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		var err error
		ticket, err = getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := requireTicketResident(actor, ticket); err != nil {
			return err
		}
		withdrawn, err := s.withdrawOffers(ctx, tx, ticket.ID)
		if err != nil {
			return err
		}
		event, err := s.transition(ctx, tx, ticket, domain.TicketStatusCancelled, actor.ID, "cancelled by resident")
		if err != nil {
			return err
		}
		event.Audience = append(event.Audience, withdrawn...)
		pending.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	return ticket, nil
}

// CancelNegotiations withdraws every open offer and returns the ticket to Pending.
// The resident owner or any staff with an open offer may do this.
func (s *TicketService) CancelNegotiations(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	var (
		ticket  *domain.Ticket
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		var err error
		ticket, err = getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		offers, err := tx.Offers().ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if !isTicketResident(actor, ticket) && !hasOpenOffer(actor, offers) {
			return apperrors.NewPermissionDenied("only the resident or a negotiating staff member may cancel negotiations")
		}
		if ticket.Status != domain.TicketStatusAwaitingResident {
			return apperrors.NewInvalidState("ticket has no negotiation in progress", map[string]any{"status": ticket.Status})
		}
		withdrawn, err := s.withdrawOffers(ctx, tx, ticket.ID)
		if err != nil {
			return err
		}
		event, err := s.transition(ctx, tx, ticket, domain.TicketStatusPending, actor.ID, "negotiations cancelled")
		if err != nil {
			return err
		}
		pending.add(events.Event{
			Type:     events.EventNegotiationsCancelled,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Audience: ticketAudience(ticket, withdrawn...),
		})
		pending.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	return ticket, nil
}

// MarkComplete moves in-progress work to resident approval and files the approval request.
func (s *TicketService) MarkComplete(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, *domain.ActionRecord, error) {
	var (
		ticket  *domain.Ticket
		action  *domain.ActionRecord
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		var err error
		ticket, err = getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := requireAssignedStaff(actor, ticket); err != nil {
			return err
		}
		if !domain.CanTransition(ticket.Status, domain.TicketStatusPendingApproval) {
			return apperrors.NewInvalidState("ticket is not in progress", map[string]any{"status": ticket.Status})
		}
		if ticket.ResolutionActionID != nil {
			outstanding, err := tx.Actions().GetByID(ctx, *ticket.ResolutionActionID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if err == nil && outstanding.AwaitingDecision() {
				return apperrors.NewInvalidState("an approval request is already outstanding", map[string]any{"action_id": outstanding.ID})
			}
		}
		if ticket.FinalPrice == nil {
			return apperrors.NewInvalidState("ticket has no agreed price", nil)
		}
		staff, err := getAccount(ctx, tx, actor.ID)
		if err != nil {
			return err
		}

		now := s.now()
		action = &domain.ActionRecord{
			UserID:   ticket.ResidentID,
			TicketID: ptr(ticket.ID),
			Kind:     domain.ActionKindApprovalRequired,
			Title:    "Work completed",
			Body:     staff.Name + " marked the " + ticket.Category + " job as complete. Review and approve payment.",
			Details: domain.ActionDetails{
				FinalPrice: ptr(*ticket.FinalPrice),
				StaffID:    staff.ID,
				StaffName:  staff.Name,
				Category:   ticket.Category,
			},
			CreatedAt: now,
		}
		if err := tx.Actions().Create(ctx, action); err != nil {
			return err
		}
		ticket.ResolutionActionID = ptr(action.ID)
		event, err := s.transition(ctx, tx, ticket, domain.TicketStatusPendingApproval, actor.ID, "work completed")
		if err != nil {
			return err
		}
		pending.add(event)
		pending.add(actionCreatedEvent(action, actor.ID))
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, pending)
	return ticket, action, nil
}

func (s *TicketService) simpleTransition(ctx context.Context, actor domain.Actor, ticketID string, next domain.TicketStatus, comment string, guard func(domain.Actor, *domain.Ticket) error) (*domain.Ticket, error) {
	var (
		ticket  *domain.Ticket
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		var err error
		ticket, err = getTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if err := guard(actor, ticket); err != nil {
			return err
		}
		event, err := s.transition(ctx, tx, ticket, next, actor.ID, comment)
		if err != nil {
			return err
		}
		pending.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	s.logger.Debug("ticket transitioned", zap.String("ticket_id", ticketID), zap.String("status", string(next)))
	return ticket, nil
}

func (s *TicketService) visibleTicket(ctx context.Context, tx repository.Tx, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := getTicket(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	var account *domain.Account
	if actor.Role == domain.RoleStaff {
		if account, err = getAccount(ctx, tx, actor.ID); err != nil {
			return nil, err
		}
	}
	if !canViewTicket(actor, account, ticket) {
		return nil, apperrors.NewPermissionDenied("ticket not visible to caller")
	}
	return ticket, nil
}

// withdrawOffers marks every open offer on the ticket withdrawn and returns the affected staff.
func (s *TicketService) withdrawOffers(ctx context.Context, tx repository.Tx, ticketID string) ([]string, error) {
	offers, err := tx.Offers().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	var staff []string
	for i := range offers {
		offer := &offers[i]
		if !offer.IsActive() {
			continue
		}
		offer.Status = domain.OfferStatusWithdrawn
		offer.UpdatedAt = s.now()
		if err := tx.Offers().Update(ctx, offer); err != nil {
			return nil, err
		}
		staff = append(staff, offer.StaffID)
	}
	return staff, nil
}

func hasOpenOffer(actor domain.Actor, offers []domain.Offer) bool {
	if actor.Role != domain.RoleStaff {
		return false
	}
	for _, offer := range offers {
		if offer.StaffID == actor.ID && offer.IsActive() {
			return true
		}
	}
	return false
}

func actionCreatedEvent(action *domain.ActionRecord, actorID string) events.Event {
	event := events.Event{
		Type:     events.EventActionCreated,
		ActorID:  actorID,
		Audience: []string{action.UserID},
		Payload: events.ActionCreatedPayload{
			ActionID: action.ID,
			Kind:     action.Kind,
			Title:    action.Title,
		},
	}
	if action.TicketID != nil {
		event.TicketID = *action.TicketID
	}
	return event
}
