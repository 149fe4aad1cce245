package domain

import "time"

// TicketHistory is an immutable audit trail entry for a status transition.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActorID    string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Comment    string
	CreatedAt  time.Time
}
