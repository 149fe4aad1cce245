package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/events"
)

// NotificationService logs notable domain events and forwards committed
// events to the per-account feed.
type NotificationService struct {
	dispatcher events.Dispatcher
	feed       events.Feed
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil feed only logs.
func NewNotificationService(dispatcher events.Dispatcher, feed events.Feed, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		feed:       feed,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketSettled, n.handleTicketSettled)
	n.dispatcher.Subscribe(events.EventCashRequestResolved, n.handleCashRequest)
	n.dispatcher.Subscribe(events.EventCashRequestUnresolved, n.handleCashRequest)
}

// Forward delivers event to every account in its audience.
func (n *NotificationService) Forward(ctx context.Context, event events.Event) error {
	if n.feed == nil {
		return nil
	}
	if err := n.feed.Deliver(ctx, event); err != nil {
		n.logger.Warn("feed delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

func (n *NotificationService) handleTicketSettled(_ context.Context, event events.Event) error {
	n.logger.Info("TicketSettled", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleCashRequest(_ context.Context, event events.Event) error {
	n.logger.Info("CashRequest",
		zap.String("event_type", string(event.Type)),
		zap.Strings("audience", event.Audience),
		zap.Any("payload", event.Payload))
	return nil
}
