package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// CashRequestFilter narrows cash request listings. Nil fields do not filter.
type CashRequestFilter struct {
	RequesterID *string
	AdminID     *string
	Status      *domain.CashRequestStatus
}

// Matches reports whether req satisfies the filter.
func (f CashRequestFilter) Matches(req *domain.CashRequest) bool {
	if f.RequesterID != nil && req.RequesterID != *f.RequesterID {
		return false
	}
	if f.AdminID != nil && req.AdminID != *f.AdminID {
		return false
	}
	if f.Status != nil && req.Status != *f.Status {
		return false
	}
	return true
}

// CashRequestRepository persists admin-mediated cash movements.
type CashRequestRepository interface {
	Create(ctx context.Context, req *domain.CashRequest) error
	Update(ctx context.Context, req *domain.CashRequest) error
	GetByID(ctx context.Context, id string) (*domain.CashRequest, error)
	List(ctx context.Context, filter CashRequestFilter) ([]domain.CashRequest, error)
}

type cashRequestRepository struct {
	q querier
}

const cashRequestColumns = `id, kind, requester_id, admin_id, amount, payment_method, account_number,
               external_transaction_id, ledger_transaction_id, status, created_at, resolved_at`

func (r *cashRequestRepository) Create(ctx context.Context, req *domain.CashRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO cash_requests (id, kind, requester_id, admin_id, amount, payment_method, account_number,
            external_transaction_id, ledger_transaction_id, status, created_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.q.Exec(ctx, query,
		req.ID,
		req.Kind,
		req.RequesterID,
		req.AdminID,
		req.Amount,
		req.PaymentMethod,
		req.AccountNumber,
		req.ExternalTransactionID,
		req.LedgerTransactionID,
		req.Status,
		req.CreatedAt,
		req.ResolvedAt,
	)
	return err
}

func (r *cashRequestRepository) Update(ctx context.Context, req *domain.CashRequest) error {
	const query = `
        UPDATE cash_requests SET external_transaction_id=$1, ledger_transaction_id=$2, status=$3, resolved_at=$4
        WHERE id=$5`
	cmd, err := r.q.Exec(ctx, query,
		req.ExternalTransactionID,
		req.LedgerTransactionID,
		req.Status,
		req.ResolvedAt,
		req.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cashRequestRepository) GetByID(ctx context.Context, id string) (*domain.CashRequest, error) {
	req, err := scanCashRequest(r.q.QueryRow(ctx, `SELECT `+cashRequestColumns+` FROM cash_requests WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (r *cashRequestRepository) List(ctx context.Context, filter CashRequestFilter) ([]domain.CashRequest, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AdminID != nil {
		args = append(args, *filter.AdminID)
		clauses = append(clauses, fmt.Sprintf("admin_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM cash_requests WHERE %s ORDER BY created_at DESC, id ASC`,
		cashRequestColumns, strings.Join(clauses, " AND "))
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CashRequest
	for rows.Next() {
		req, err := scanCashRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *req)
	}
	return result, rows.Err()
}

func scanCashRequest(row pgx.Row) (*domain.CashRequest, error) {
	var req domain.CashRequest
	if err := row.Scan(
		&req.ID,
		&req.Kind,
		&req.RequesterID,
		&req.AdminID,
		&req.Amount,
		&req.PaymentMethod,
		&req.AccountNumber,
		&req.ExternalTransactionID,
		&req.LedgerTransactionID,
		&req.Status,
		&req.CreatedAt,
		&req.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &req, nil
}
