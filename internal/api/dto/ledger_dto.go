package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// CreateCashRequest describes a cash-in or cash-out request.
type CreateCashRequest struct {
	Kind                  domain.CashRequestKind `json:"kind"`
	AdminID               string                 `json:"admin_id"`
	Amount                decimal.Decimal        `json:"amount"`
	PaymentMethod         string                 `json:"payment_method"`
	AccountNumber         string                 `json:"account_number"`
	ExternalTransactionID string                 `json:"external_transaction_id"`
}

// ResolveCashRequest carries the admin's payout reference for cash-out.
type ResolveCashRequest struct {
	SettlementTransactionID string `json:"settlement_transaction_id"`
}

// CashRequestResponse is the API representation of a cash request.
type CashRequestResponse struct {
	ID                    string                   `json:"id"`
	Kind                  domain.CashRequestKind   `json:"kind"`
	RequesterID           string                   `json:"requester_id"`
	AdminID               string                   `json:"admin_id"`
	Amount                decimal.Decimal          `json:"amount"`
	PaymentMethod         string                   `json:"payment_method"`
	AccountNumber         string                   `json:"account_number"`
	ExternalTransactionID *string                  `json:"external_transaction_id,omitempty"`
	LedgerTransactionID   *string                  `json:"ledger_transaction_id,omitempty"`
	Status                domain.CashRequestStatus `json:"status"`
	CreatedAt             time.Time                `json:"created_at"`
	ResolvedAt            *time.Time               `json:"resolved_at,omitempty"`
}

// LedgerEntryResponse is one leg of a ledger transaction.
type LedgerEntryResponse struct {
	AccountID string          `json:"account_id"`
	Delta     decimal.Decimal `json:"delta"`
}

// LedgerTransactionResponse is an append-only ledger record.
type LedgerTransactionResponse struct {
	ID         string                       `json:"id"`
	Kind       domain.LedgerTransactionKind `json:"kind"`
	Reference  string                       `json:"reference"`
	ReversesID *string                      `json:"reverses_id,omitempty"`
	Entries    []LedgerEntryResponse        `json:"entries"`
	CreatedAt  time.Time                    `json:"created_at"`
}

// SettlementResponse reports a completed settlement.
type SettlementResponse struct {
	Ticket      TicketResponse            `json:"ticket"`
	Receipt     ActionResponse            `json:"receipt"`
	Transaction LedgerTransactionResponse `json:"transaction"`
}

// CashRequestResultResponse reports a resolve or unresolve.
type CashRequestResultResponse struct {
	Request     CashRequestResponse       `json:"request"`
	Transaction LedgerTransactionResponse `json:"transaction"`
}
