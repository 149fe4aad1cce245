package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionKind distinguishes plain notifications from ones awaiting a decision.
type ActionKind string

const (
	ActionKindInformational    ActionKind = "INFORMATIONAL"
	ActionKindApprovalRequired ActionKind = "APPROVAL_REQUIRED"
	ActionKindReceipt          ActionKind = "RECEIPT"
)

// ActionDetails carries the structured payload of an action record.
// Approval records use the snapshot fields; receipts and balance notices use the audit fields.
type ActionDetails struct {
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`
	StaffID    string           `json:"staff_id,omitempty"`
	StaffName  string           `json:"staff_name,omitempty"`
	Category   string           `json:"category,omitempty"`

	Cost            *decimal.Decimal `json:"cost,omitempty"`
	SiteCharge      *decimal.Decimal `json:"site_charge,omitempty"`
	TotalCost       *decimal.Decimal `json:"total_cost,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	PreviousBalance *decimal.Decimal `json:"previous_balance,omitempty"`
	NewBalance      *decimal.Decimal `json:"new_balance,omitempty"`
	IssuedBy        string           `json:"issued_by,omitempty"`
	TransactionID   string           `json:"transaction_id,omitempty"`
}

// ActionRecord is a notification addressed to one user, optionally requiring a decision.
type ActionRecord struct {
	ID         string
	UserID     string
	TicketID   *string
	Kind       ActionKind
	Title      string
	Body       string
	Details    ActionDetails
	IsRead     bool
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// AwaitingDecision reports whether the record can still be accepted or denied.
func (a *ActionRecord) AwaitingDecision() bool {
	return a.Kind == ActionKindApprovalRequired && a.ResolvedAt == nil
}
