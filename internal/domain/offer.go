package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Party identifies a side of a price negotiation.
type Party string

const (
	PartyResident Party = "resident"
	PartyStaff    Party = "staff"
)

// Opposite returns the other side of the negotiation.
func (p Party) Opposite() Party {
	if p == PartyResident {
		return PartyStaff
	}
	return PartyResident
}

// OfferStatus enumerates offer lifecycle states.
type OfferStatus string

const (
	OfferStatusProposed   OfferStatus = "PROPOSED"
	OfferStatusAccepted   OfferStatus = "ACCEPTED"
	OfferStatusSuperseded OfferStatus = "SUPERSEDED"
	OfferStatusWithdrawn  OfferStatus = "WITHDRAWN"
)

// Bargain is an immutable counter-proposal appended to an offer.
type Bargain struct {
	Amount     decimal.Decimal `json:"amount"`
	Remarks    string          `json:"remarks"`
	ProposedBy Party           `json:"proposed_by"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Offer is a staff member's price proposal for a ticket and its bargain log.
type Offer struct {
	ID           string
	TicketID     string
	StaffID      string
	InitialPrice decimal.Decimal
	Bargains     []Bargain
	Status       OfferStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LastProposer returns who made the latest entry; the initial price is the staff's.
func (o *Offer) LastProposer() Party {
	if n := len(o.Bargains); n > 0 {
		return o.Bargains[n-1].ProposedBy
	}
	return PartyStaff
}

// NextProposer returns the party whose turn it is to counter or accept.
func (o *Offer) NextProposer() Party {
	return o.LastProposer().Opposite()
}

// EffectivePrice is the latest amount in the log.
func (o *Offer) EffectivePrice() decimal.Decimal {
	if n := len(o.Bargains); n > 0 {
		return o.Bargains[n-1].Amount
	}
	return o.InitialPrice
}

// IsActive reports whether the offer can still be countered or accepted.
func (o *Offer) IsActive() bool {
	return o.Status == OfferStatusProposed
}

// Clone returns a copy that shares no bargain storage with o.
func (o *Offer) Clone() *Offer {
	cp := *o
	cp.Bargains = append([]Bargain(nil), o.Bargains...)
	return &cp
}
