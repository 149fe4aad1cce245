package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// CreateTicketRequest describes the payload to open a ticket.
type CreateTicketRequest struct {
	Category    string               `json:"category"`
	ServiceType string               `json:"service_type"`
	Description string               `json:"description"`
	Urgency     domain.TicketUrgency `json:"urgency"`
}

// TicketResponse is the API representation of a ticket.
type TicketResponse struct {
	ID                 string               `json:"id"`
	ResidentID         string               `json:"resident_id"`
	AssignedStaffID    *string              `json:"assigned_staff_id,omitempty"`
	Category           string               `json:"category"`
	ServiceType        string               `json:"service_type,omitempty"`
	Description        string               `json:"description,omitempty"`
	Urgency            domain.TicketUrgency `json:"urgency"`
	District           string               `json:"district"`
	Status             domain.TicketStatus  `json:"status"`
	FinalPrice         *decimal.Decimal     `json:"final_price,omitempty"`
	ResolutionActionID *string              `json:"resolution_action_id,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// TicketHistoryResponse is one status change.
type TicketHistoryResponse struct {
	ID         string              `json:"id"`
	ActorID    string              `json:"actor_id"`
	FromStatus domain.TicketStatus `json:"from_status,omitempty"`
	ToStatus   domain.TicketStatus `json:"to_status"`
	Comment    string              `json:"comment,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}
