package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// TicketFilter captures listing parameters. Nil fields do not filter.
type TicketFilter struct {
	ResidentID      *string
	AssignedStaffID *string
	Category        *string
	District        *string
	Statuses        []domain.TicketStatus
	Limit           int
	Offset          int
}

// Matches reports whether ticket satisfies the filter, ignoring paging.
func (f TicketFilter) Matches(ticket *domain.Ticket) bool {
	if f.ResidentID != nil && ticket.ResidentID != *f.ResidentID {
		return false
	}
	if f.AssignedStaffID != nil && !ticket.IsAssignedTo(*f.AssignedStaffID) {
		return false
	}
	if f.Category != nil && ticket.Category != *f.Category {
		return false
	}
	if f.District != nil && ticket.District != *f.District {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, status := range f.Statuses {
			if ticket.Status == status {
				return true
			}
		}
		return false
	}
	return true
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	q querier
}

const ticketColumns = `id, resident_id, assigned_staff_id, category, service_type, description, urgency,
               district, status, final_price, resolution_action_id, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO tickets (id, resident_id, assigned_staff_id, category, service_type, description, urgency,
            district, status, final_price, resolution_action_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.q.Exec(ctx, query,
		ticket.ID,
		ticket.ResidentID,
		ticket.AssignedStaffID,
		ticket.Category,
		ticket.ServiceType,
		ticket.Description,
		ticket.Urgency,
		ticket.District,
		ticket.Status,
		nullDecimal(ticket.FinalPrice),
		ticket.ResolutionActionID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_staff_id=$1, status=$2, final_price=$3, resolution_action_id=$4, updated_at=$5
        WHERE id=$6`
	cmd, err := r.q.Exec(ctx, query,
		ticket.AssignedStaffID,
		ticket.Status,
		nullDecimal(ticket.FinalPrice),
		ticket.ResolutionActionID,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	row := r.q.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
	ticket, err := scanTicket(row)
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ResidentID != nil {
		args = append(args, *filter.ResidentID)
		clauses = append(clauses, fmt.Sprintf("resident_id=$%d", len(args)))
	}
	if filter.AssignedStaffID != nil {
		args = append(args, *filter.AssignedStaffID)
		clauses = append(clauses, fmt.Sprintf("assigned_staff_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.District != nil {
		args = append(args, *filter.District)
		clauses = append(clauses, fmt.Sprintf("district=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id ASC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		finalPrice decimal.NullDecimal
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ResidentID,
		&ticket.AssignedStaffID,
		&ticket.Category,
		&ticket.ServiceType,
		&ticket.Description,
		&ticket.Urgency,
		&ticket.District,
		&ticket.Status,
		&finalPrice,
		&ticket.ResolutionActionID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if finalPrice.Valid {
		price := finalPrice.Decimal
		ticket.FinalPrice = &price
	}
	return &ticket, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
