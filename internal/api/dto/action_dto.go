package dto

import (
	"time"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// ActionResponse is an inbox entry.
type ActionResponse struct {
	ID         string               `json:"id"`
	TicketID   *string              `json:"ticket_id,omitempty"`
	Kind       domain.ActionKind    `json:"kind"`
	Title      string               `json:"title"`
	Body       string               `json:"body"`
	Details    domain.ActionDetails `json:"details"`
	IsRead     bool                 `json:"is_read"`
	Actionable bool                 `json:"actionable"`
	CreatedAt  time.Time            `json:"created_at"`
	ResolvedAt *time.Time           `json:"resolved_at,omitempty"`
}

// MarkReadResponse reports how many entries were flagged read.
type MarkReadResponse struct {
	Updated int `json:"updated"`
}
