package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventAny subscribes a handler to every event type.
	EventAny EventType = "*"

	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventOfferProposed         EventType = "offer_proposed"
	EventOfferCountered        EventType = "offer_countered"
	EventOfferAccepted         EventType = "offer_accepted"
	EventNegotiationsCancelled EventType = "negotiations_cancelled"
	EventActionCreated         EventType = "action_created"
	EventTicketSettled         EventType = "ticket_settled"
	EventCashRequestCreated    EventType = "cash_request_created"
	EventCashRequestResolved   EventType = "cash_request_resolved"
	EventCashRequestUnresolved EventType = "cash_request_unresolved"
)

// Event represents a change committed by a service. Audience lists the
// accounts whose views are affected.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	ActorID   string    `json:"actor_id"`
	Audience  []string  `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category string               `json:"category"`
	District string               `json:"district"`
	Urgency  domain.TicketUrgency `json:"urgency"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// OfferPayload describes an offer after a negotiation step.
type OfferPayload struct {
	OfferID        string          `json:"offer_id"`
	StaffID        string          `json:"staff_id"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	NextProposer   domain.Party    `json:"next_proposer"`
}

// ActionCreatedPayload payload.
type ActionCreatedPayload struct {
	ActionID string            `json:"action_id"`
	Kind     domain.ActionKind `json:"kind"`
	Title    string            `json:"title"`
}

// TicketSettledPayload payload.
type TicketSettledPayload struct {
	TransactionID string          `json:"transaction_id"`
	Cost          decimal.Decimal `json:"cost"`
	SiteCharge    decimal.Decimal `json:"site_charge"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// CashRequestPayload payload.
type CashRequestPayload struct {
	CashRequestID string                   `json:"cash_request_id"`
	Kind          domain.CashRequestKind   `json:"kind"`
	Amount        decimal.Decimal          `json:"amount"`
	Status        domain.CashRequestStatus `json:"status"`
}
