package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// LedgerRepository appends and reads immutable ledger transactions.
type LedgerRepository interface {
	Append(ctx context.Context, txn *domain.LedgerTransaction) error
	GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error)
	// ListByAccount returns transactions touching accountID, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.LedgerTransaction, error)
}

type ledgerRepository struct {
	q querier
}

func (r *ledgerRepository) Append(ctx context.Context, txn *domain.LedgerTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	const insertTxn = `
        INSERT INTO ledger_transactions (id, kind, reference, reverses_id, created_at)
        VALUES ($1,$2,$3,$4,$5)`
	if _, err := r.q.Exec(ctx, insertTxn, txn.ID, txn.Kind, txn.Reference, txn.ReversesID, txn.CreatedAt); err != nil {
		return err
	}

	const insertEntry = `
        INSERT INTO ledger_entries (transaction_id, position, account_id, delta)
        VALUES ($1,$2,$3,$4)`
	for i, entry := range txn.Entries {
		if _, err := r.q.Exec(ctx, insertEntry, txn.ID, i, entry.AccountID, entry.Delta); err != nil {
			return err
		}
	}
	return nil
}

func (r *ledgerRepository) GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	var txn domain.LedgerTransaction
	if err := r.q.QueryRow(ctx,
		`SELECT id, kind, reference, reverses_id, created_at FROM ledger_transactions WHERE id=$1`, id,
	).Scan(&txn.ID, &txn.Kind, &txn.Reference, &txn.ReversesID, &txn.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	entries, err := r.entries(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	txn.Entries = entries
	return &txn, nil
}

func (r *ledgerRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]domain.LedgerTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT t.id, t.kind, t.reference, t.reverses_id, t.created_at
        FROM ledger_transactions t
        WHERE EXISTS (SELECT 1 FROM ledger_entries e WHERE e.transaction_id = t.id AND e.account_id = $1)
        ORDER BY t.created_at DESC, t.id ASC
        LIMIT $2`
	rows, err := r.q.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	var result []domain.LedgerTransaction
	for rows.Next() {
		var txn domain.LedgerTransaction
		if err := rows.Scan(&txn.ID, &txn.Kind, &txn.Reference, &txn.ReversesID, &txn.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, txn)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		entries, err := r.entries(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Entries = entries
	}
	return result, nil
}

func (r *ledgerRepository) entries(ctx context.Context, txnID string) ([]domain.LedgerEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT account_id, delta FROM ledger_entries WHERE transaction_id=$1 ORDER BY position ASC`, txnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(&entry.AccountID, &entry.Delta); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
