package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashRequestKind distinguishes top-ups from withdrawals.
type CashRequestKind string

const (
	CashRequestKindCashIn  CashRequestKind = "CASH_IN"
	CashRequestKindCashOut CashRequestKind = "CASH_OUT"
)

// CashRequestStatus enumerates admin review states.
type CashRequestStatus string

const (
	CashRequestStatusPending  CashRequestStatus = "PENDING"
	CashRequestStatusResolved CashRequestStatus = "RESOLVED"
)

// CashRequest is an admin-mediated movement of off-platform cash.
type CashRequest struct {
	ID                    string
	Kind                  CashRequestKind
	RequesterID           string
	AdminID               string
	Amount                decimal.Decimal
	PaymentMethod         string
	AccountNumber         string
	ExternalTransactionID *string
	// LedgerTransactionID points at the transaction applied by the latest resolve.
	LedgerTransactionID   *string
	Status                CashRequestStatus
	CreatedAt             time.Time
	ResolvedAt            *time.Time
}

// Sign returns +1 for cash-in and -1 for cash-out, the direction a resolve moves balances.
func (r *CashRequest) Sign() decimal.Decimal {
	if r.Kind == CashRequestKindCashOut {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}
