package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SiteChargeRate is the fixed platform fee applied to ticket settlements.
var SiteChargeRate = decimal.RequireFromString("0.05")

// SiteCharge returns the platform fee for price, rounded to cents.
func SiteCharge(price decimal.Decimal) decimal.Decimal {
	return price.Mul(SiteChargeRate).Round(2)
}

// LedgerTransactionKind enumerates the money-moving operation families.
type LedgerTransactionKind string

const (
	LedgerKindCashIn           LedgerTransactionKind = "CASH_IN"
	LedgerKindCashOut          LedgerTransactionKind = "CASH_OUT"
	LedgerKindTicketSettlement LedgerTransactionKind = "TICKET_SETTLEMENT"
)

// LedgerEntry is one account leg of a ledger transaction.
type LedgerEntry struct {
	AccountID string
	Delta     decimal.Decimal
}

// LedgerTransaction is an immutable record of balance changes committed together.
// A reversal is a new transaction with ReversesID set and negated deltas.
type LedgerTransaction struct {
	ID         string
	Kind       LedgerTransactionKind
	Reference  string
	ReversesID *string
	Entries    []LedgerEntry
	CreatedAt  time.Time
}

// Net sums the deltas of all entries.
func (t *LedgerTransaction) Net() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range t.Entries {
		sum = sum.Add(e.Delta)
	}
	return sum
}

// Reversal builds the equal-and-opposite transaction for t.
func (t *LedgerTransaction) Reversal() *LedgerTransaction {
	id := t.ID
	rev := &LedgerTransaction{
		Kind:       t.Kind,
		Reference:  t.Reference,
		ReversesID: &id,
		Entries:    make([]LedgerEntry, 0, len(t.Entries)),
	}
	for _, e := range t.Entries {
		rev.Entries = append(rev.Entries, LedgerEntry{AccountID: e.AccountID, Delta: e.Delta.Neg()})
	}
	return rev
}
