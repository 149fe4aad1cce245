package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/observability"
	"github.com/neighborfix/maintenance-service/internal/repository"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// DefaultPlatformAccountID receives site charges unless configured otherwise.
const DefaultPlatformAccountID = "PLATFORM_ACCOUNT"

// Dependencies bundles collaborators shared by the workflow services.
type Dependencies struct {
	Store             repository.Store
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
	Metrics           *observability.Metrics
	PlatformAccountID string
	Clock             func() time.Time
}

type base struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	platformID string
	clock      func() time.Time
}

func newBase(deps Dependencies) base {
	b := base{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		platformID: deps.PlatformAccountID,
		clock:      deps.Clock,
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.platformID == "" {
		b.platformID = DefaultPlatformAccountID
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	return b
}

func (b *base) now() time.Time {
	return b.clock().UTC()
}

// outbox collects events raised inside a transaction attempt; they are
// published only once the transaction commits.
type outbox []events.Event

func (o *outbox) add(event events.Event) {
	*o = append(*o, event)
}

func (o *outbox) reset() {
	*o = (*o)[:0]
}

func (b *base) publish(ctx context.Context, pending outbox) {
	if b.dispatcher == nil {
		return
	}
	for _, event := range pending {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = b.now()
		}
		if err := b.dispatcher.Publish(ctx, event); err != nil {
			b.logger.Warn("event delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

// transition moves ticket to next along the lifecycle graph, persisting the
// ticket and a history entry through tx.
func (b *base) transition(ctx context.Context, tx repository.Tx, ticket *domain.Ticket, next domain.TicketStatus, actorID, comment string) (events.Event, error) {
	if !domain.CanTransition(ticket.Status, next) {
		return events.Event{}, apperrors.NewInvalidState(
			fmt.Sprintf("ticket cannot move from %s to %s", ticket.Status, next),
			map[string]any{"ticket_id": ticket.ID, "status": ticket.Status},
		)
	}
	prev := ticket.Status
	now := b.now()
	ticket.Status = next
	ticket.UpdatedAt = now
	if err := tx.Tickets().Update(ctx, ticket); err != nil {
		return events.Event{}, err
	}
	if err := tx.History().Create(ctx, &domain.TicketHistory{
		TicketID:   ticket.ID,
		ActorID:    actorID,
		FromStatus: prev,
		ToStatus:   next,
		Comment:    comment,
		CreatedAt:  now,
	}); err != nil {
		return events.Event{}, err
	}
	return events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Audience: ticketAudience(ticket),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: prev,
			NewStatus: next,
			Comment:   comment,
		},
	}, nil
}

func ticketAudience(ticket *domain.Ticket, extra ...string) []string {
	audience := []string{ticket.ResidentID}
	if ticket.AssignedStaffID != nil {
		audience = append(audience, *ticket.AssignedStaffID)
	}
	return append(audience, extra...)
}

func notFoundAs(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return err
}

func getTicket(ctx context.Context, tx repository.Tx, id string) (*domain.Ticket, error) {
	ticket, err := tx.Tickets().GetByID(ctx, id)
	return ticket, notFoundAs(err, "ticket", id)
}

func getAccount(ctx context.Context, tx repository.Tx, id string) (*domain.Account, error) {
	account, err := tx.Accounts().GetByID(ctx, id)
	return account, notFoundAs(err, "account", id)
}

func getOffer(ctx context.Context, tx repository.Tx, id string) (*domain.Offer, error) {
	offer, err := tx.Offers().GetByID(ctx, id)
	return offer, notFoundAs(err, "offer", id)
}

func getAction(ctx context.Context, tx repository.Tx, id string) (*domain.ActionRecord, error) {
	action, err := tx.Actions().GetByID(ctx, id)
	return action, notFoundAs(err, "action", id)
}

func getCashRequest(ctx context.Context, tx repository.Tx, id string) (*domain.CashRequest, error) {
	req, err := tx.CashRequests().GetByID(ctx, id)
	return req, notFoundAs(err, "cash request", id)
}

func ptr[T any](v T) *T {
	return &v
}
