package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/neighborfix/maintenance-service/internal/domain"
)

// AccountResponse describes an account as seen by its holder.
type AccountResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone,omitempty"`
	Role            domain.Role     `json:"role"`
	Balance         decimal.Decimal `json:"balance"`
	ServiceCategory *string         `json:"service_category,omitempty"`
	District        *string         `json:"district,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AdminResponse is the public directory entry for an administrator.
type AdminResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}
