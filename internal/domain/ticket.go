package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending          TicketStatus = "PENDING"
	TicketStatusAwaitingResident TicketStatus = "AWAITING_RESIDENT"
	TicketStatusAssigned         TicketStatus = "ASSIGNED"
	TicketStatusInProgress       TicketStatus = "IN_PROGRESS"
	TicketStatusPendingApproval  TicketStatus = "PENDING_APPROVAL"
	TicketStatusResolved         TicketStatus = "RESOLVED"
	TicketStatusCancelled        TicketStatus = "CANCELLED"
)

// TicketUrgency enumerates how soon the resident needs the work done.
type TicketUrgency string

const (
	TicketUrgencyLow       TicketUrgency = "LOW"
	TicketUrgencyMedium    TicketUrgency = "MEDIUM"
	TicketUrgencyHigh      TicketUrgency = "HIGH"
	TicketUrgencyEmergency TicketUrgency = "EMERGENCY"
)

// Valid reports whether u is a known urgency level.
func (u TicketUrgency) Valid() bool {
	switch u {
	case TicketUrgencyLow, TicketUrgencyMedium, TicketUrgencyHigh, TicketUrgencyEmergency:
		return true
	}
	return false
}

// Ticket is the aggregate for resident service requests.
type Ticket struct {
	ID                 string
	ResidentID         string
	AssignedStaffID    *string
	Category           string
	ServiceType        string
	Description        string
	Urgency            TicketUrgency
	District           string
	Status             TicketStatus
	FinalPrice         *decimal.Decimal
	ResolutionActionID *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsAssignedTo reports whether staffID is the ticket's assigned staff.
func (t *Ticket) IsAssignedTo(staffID string) bool {
	return t.AssignedStaffID != nil && *t.AssignedStaffID == staffID
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:          {TicketStatusAwaitingResident},
	TicketStatusAwaitingResident: {TicketStatusAssigned, TicketStatusPending, TicketStatusCancelled},
	TicketStatusAssigned:         {TicketStatusInProgress},
	TicketStatusInProgress:       {TicketStatusPendingApproval},
	TicketStatusPendingApproval:  {TicketStatusInProgress, TicketStatusResolved},
	TicketStatusResolved:         {},
	TicketStatusCancelled:        {},
}

// CanTransition reports whether the ticket graph permits current -> next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func (s TicketStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// AllTicketStatuses lists every status in lifecycle order.
func AllTicketStatuses() []TicketStatus {
	return []TicketStatus{
		TicketStatusPending,
		TicketStatusAwaitingResident,
		TicketStatusAssigned,
		TicketStatusInProgress,
		TicketStatusPendingApproval,
		TicketStatusResolved,
		TicketStatusCancelled,
	}
}
