package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// AccountRepository defines persistence access for ledger account holders.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Account, error)
}

type accountRepository struct {
	q querier
}

const accountColumns = `id, name, phone, role, balance, service_category, district, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO accounts (id, name, phone, role, balance, service_category, district, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.q.Exec(ctx, query,
		account.ID,
		account.Name,
		account.Phone,
		account.Role,
		account.Balance,
		account.ServiceCategory,
		account.District,
		account.CreatedAt,
		account.UpdatedAt,
	)
	return err
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts SET name=$1, phone=$2, balance=$3, service_category=$4, district=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := r.q.Exec(ctx, query,
		account.Name,
		account.Phone,
		account.Balance,
		account.ServiceCategory,
		account.District,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	if err := r.q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id).Scan(
		&account.ID,
		&account.Name,
		&account.Phone,
		&account.Role,
		&account.Balance,
		&account.ServiceCategory,
		&account.District,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

func (r *accountRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	rows, err := r.q.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE role=$1 ORDER BY name ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(
			&account.ID,
			&account.Name,
			&account.Phone,
			&account.Role,
			&account.Balance,
			&account.ServiceCategory,
			&account.District,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, rows.Err()
}
