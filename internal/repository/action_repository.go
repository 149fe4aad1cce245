package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// ActionRepository persists per-user notifications and approval requests.
type ActionRepository interface {
	Create(ctx context.Context, action *domain.ActionRecord) error
	Update(ctx context.Context, action *domain.ActionRecord) error
	GetByID(ctx context.Context, id string) (*domain.ActionRecord, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ActionRecord, error)
}

type actionRepository struct {
	q querier
}

const actionColumns = `id, user_id, ticket_id, kind, title, body, details, is_read, created_at, resolved_at`

func (r *actionRepository) Create(ctx context.Context, action *domain.ActionRecord) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	details, err := json.Marshal(action.Details)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO action_records (id, user_id, ticket_id, kind, title, body, details, is_read, created_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = r.q.Exec(ctx, query,
		action.ID,
		action.UserID,
		action.TicketID,
		action.Kind,
		action.Title,
		action.Body,
		details,
		action.IsRead,
		action.CreatedAt,
		action.ResolvedAt,
	)
	return err
}

func (r *actionRepository) Update(ctx context.Context, action *domain.ActionRecord) error {
	details, err := json.Marshal(action.Details)
	if err != nil {
		return err
	}
	const query = `
        UPDATE action_records SET kind=$1, title=$2, body=$3, details=$4, is_read=$5, resolved_at=$6
        WHERE id=$7`
	cmd, err := r.q.Exec(ctx, query,
		action.Kind,
		action.Title,
		action.Body,
		details,
		action.IsRead,
		action.ResolvedAt,
		action.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *actionRepository) GetByID(ctx context.Context, id string) (*domain.ActionRecord, error) {
	action, err := scanAction(r.q.QueryRow(ctx, `SELECT `+actionColumns+` FROM action_records WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return action, nil
}

func (r *actionRepository) ListByUser(ctx context.Context, userID string) ([]domain.ActionRecord, error) {
	rows, err := r.q.Query(ctx, `SELECT `+actionColumns+` FROM action_records WHERE user_id=$1 ORDER BY created_at DESC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActionRecord
	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *action)
	}
	return result, rows.Err()
}

func scanAction(row pgx.Row) (*domain.ActionRecord, error) {
	var (
		action  domain.ActionRecord
		details []byte
	)
	if err := row.Scan(
		&action.ID,
		&action.UserID,
		&action.TicketID,
		&action.Kind,
		&action.Title,
		&action.Body,
		&details,
		&action.IsRead,
		&action.CreatedAt,
		&action.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &action.Details); err != nil {
			return nil, fmt.Errorf("decode details for action %s: %w", action.ID, err)
		}
	}
	return &action, nil
}
