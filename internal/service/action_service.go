package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/repository"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// ActionService manages a user's action inbox and the approve or deny
// decision on completed work.
type ActionService struct {
	base
	ledger *LedgerService
}

// NewActionService constructs the service. Accepting an approval request
// settles the ticket through ledger.
func NewActionService(deps Dependencies, ledger *LedgerService) *ActionService {
	return &ActionService{base: newBase(deps), ledger: ledger}
}

// List returns the actor's actions, newest first.
func (s *ActionService) List(ctx context.Context, actor domain.Actor) ([]domain.ActionRecord, error) {
	var actions []domain.ActionRecord
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		actions, err = tx.Actions().ListByUser(ctx, actor.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []domain.ActionRecord{}
	}
	return actions, nil
}

// MarkAllRead flags the actor's actions read. Approval requests still
// awaiting a decision stay unread. It returns the number updated.
func (s *ActionService) MarkAllRead(ctx context.Context, actor domain.Actor) (int, error) {
	var updated int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		updated = 0
		actions, err := tx.Actions().ListByUser(ctx, actor.ID)
		if err != nil {
			return err
		}
		for i := range actions {
			action := &actions[i]
			if action.IsRead || action.AwaitingDecision() {
				continue
			}
			action.IsRead = true
			if err := tx.Actions().Update(ctx, action); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// Accept approves completed work and pays for it.
func (s *ActionService) Accept(ctx context.Context, actor domain.Actor, actionID string) (*SettlementResult, error) {
	return s.ledger.SettleAction(ctx, actor, actionID)
}

// DenyResult is the state committed by a denial.
type DenyResult struct {
	Ticket *domain.Ticket
	Action *domain.ActionRecord
}

// Deny rejects completed work, sending the ticket back to the assigned staff.
// The approval request becomes informational and cannot be decided again.
func (s *ActionService) Deny(ctx context.Context, actor domain.Actor, actionID string) (*DenyResult, error) {
	var (
		result  *DenyResult
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		action, err := getAction(ctx, tx, actionID)
		if err != nil {
			return err
		}
		if action.UserID != actor.ID {
			return apperrors.NewPermissionDenied("action is addressed to another user")
		}
		if !action.AwaitingDecision() || action.TicketID == nil {
			return apperrors.NewInvalidState("action is not awaiting a decision", map[string]any{"kind": action.Kind})
		}
		ticket, err := getTicket(ctx, tx, *action.TicketID)
		if err != nil {
			return err
		}
		if err := requireTicketResident(actor, ticket); err != nil {
			return err
		}
		if ticket.ResolutionActionID == nil || *ticket.ResolutionActionID != action.ID {
			return apperrors.NewInvalidState("action no longer governs this ticket", nil)
		}

		now := s.now()
		action.Kind = domain.ActionKindInformational
		action.Title = "Work denied"
		action.Body = "You denied completion of the " + ticket.Category + " job. The staff member has been asked to continue."
		action.ResolvedAt = ptr(now)
		action.IsRead = true
		if err := tx.Actions().Update(ctx, action); err != nil {
			return err
		}

		ticket.ResolutionActionID = nil
		event, err := s.transition(ctx, tx, ticket, domain.TicketStatusInProgress, actor.ID, "completion denied")
		if err != nil {
			return err
		}
		pending.add(event)

		if ticket.AssignedStaffID != nil {
			notice := &domain.ActionRecord{
				UserID:   *ticket.AssignedStaffID,
				TicketID: ptr(ticket.ID),
				Kind:     domain.ActionKindInformational,
				Title:    "Completion denied",
				Body:     "The resident denied completion of the " + ticket.Category + " job.",
				Details: domain.ActionDetails{
					Category: ticket.Category,
				},
				CreatedAt: now,
			}
			if err := tx.Actions().Create(ctx, notice); err != nil {
				return err
			}
			pending.add(actionCreatedEvent(notice, actor.ID))
		}
		result = &DenyResult{Ticket: ticket, Action: action}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	s.logger.Info("completion denied",
		zap.String("ticket_id", result.Ticket.ID),
		zap.String("action_id", result.Action.ID))
	return result, nil
}
