package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// OfferRepository persists offers and their bargain logs.
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.Offer) error
	Update(ctx context.Context, offer *domain.Offer) error
	GetByID(ctx context.Context, id string) (*domain.Offer, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Offer, error)
}

type offerRepository struct {
	q querier
}

const offerColumns = `id, ticket_id, staff_id, initial_price, bargains, status, created_at, updated_at`

func (r *offerRepository) Create(ctx context.Context, offer *domain.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	bargains, err := marshalBargains(offer.Bargains)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO offers (id, ticket_id, staff_id, initial_price, bargains, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.q.Exec(ctx, query,
		offer.ID,
		offer.TicketID,
		offer.StaffID,
		offer.InitialPrice,
		bargains,
		offer.Status,
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	return err
}

func (r *offerRepository) Update(ctx context.Context, offer *domain.Offer) error {
	bargains, err := marshalBargains(offer.Bargains)
	if err != nil {
		return err
	}
	const query = `UPDATE offers SET bargains=$1, status=$2, updated_at=$3 WHERE id=$4`
	cmd, err := r.q.Exec(ctx, query, bargains, offer.Status, offer.UpdatedAt, offer.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *offerRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	offer, err := scanOffer(r.q.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return offer, nil
}

func (r *offerRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Offer, error) {
	rows, err := r.q.Query(ctx, `SELECT `+offerColumns+` FROM offers WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *offer)
	}
	return result, rows.Err()
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var (
		offer    domain.Offer
		bargains []byte
	)
	if err := row.Scan(
		&offer.ID,
		&offer.TicketID,
		&offer.StaffID,
		&offer.InitialPrice,
		&bargains,
		&offer.Status,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(bargains) > 0 {
		if err := json.Unmarshal(bargains, &offer.Bargains); err != nil {
			return nil, fmt.Errorf("decode bargains for offer %s: %w", offer.ID, err)
		}
	}
	return &offer, nil
}

func marshalBargains(bargains []domain.Bargain) ([]byte, error) {
	if bargains == nil {
		bargains = []domain.Bargain{}
	}
	return json.Marshal(bargains)
}
