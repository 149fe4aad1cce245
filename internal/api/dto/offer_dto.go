package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// ProposeOfferRequest carries a staff member's initial price.
type ProposeOfferRequest struct {
	Price decimal.Decimal `json:"price"`
}

// CounterOfferRequest carries a bargain.
type CounterOfferRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Remarks string          `json:"remarks"`
}

// OfferResponse is the API representation of an offer and its bargain history.
type OfferResponse struct {
	ID             string             `json:"id"`
	TicketID       string             `json:"ticket_id"`
	StaffID        string             `json:"staff_id"`
	InitialPrice   decimal.Decimal    `json:"initial_price"`
	EffectivePrice decimal.Decimal    `json:"effective_price"`
	NextProposer   domain.Party       `json:"next_proposer,omitempty"`
	Bargains       []domain.Bargain   `json:"bargains"`
	Status         domain.OfferStatus `json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// AcceptOfferResponse reports the assignment produced by an accept.
type AcceptOfferResponse struct {
	Ticket     TicketResponse `json:"ticket"`
	Offer      OfferResponse  `json:"offer"`
	Superseded []string       `json:"superseded_staff_ids"`
}
