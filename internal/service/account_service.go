package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/repository"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// AccountService exposes account lookups and provisioning.
type AccountService struct {
	base
}

// NewAccountService constructs the service.
func NewAccountService(deps Dependencies) *AccountService {
	return &AccountService{base: newBase(deps)}
}

// ProvisionInput describes an account to create.
type ProvisionInput struct {
	ID              string
	Name            string
	Phone           string
	Role            domain.Role
	ServiceCategory string
	District        string
	OpeningBalance  decimal.Decimal
}

// Provision creates the account, or returns the existing one with the same id unchanged.
func (s *AccountService) Provision(ctx context.Context, input ProvisionInput) (*domain.Account, bool, error) {
	if !input.Role.Valid() {
		return nil, false, apperrors.NewValidationError("invalid role", map[string]any{"role": input.Role})
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, false, apperrors.NewValidationError("name is required", nil)
	}
	if input.OpeningBalance.IsNegative() {
		return nil, false, apperrors.NewValidationError("opening balance must not be negative", nil)
	}
	if input.Role == domain.RoleStaff && (strings.TrimSpace(input.ServiceCategory) == "" || strings.TrimSpace(input.District) == "") {
		return nil, false, apperrors.NewValidationError("staff require a service category and district", nil)
	}

	var (
		account *domain.Account
		created bool
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		created = false
		if input.ID != "" {
			existing, err := tx.Accounts().GetByID(ctx, input.ID)
			if err == nil {
				account = existing
				return nil
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		now := s.now()
		account = &domain.Account{
			ID:        input.ID,
			Name:      strings.TrimSpace(input.Name),
			Phone:     strings.TrimSpace(input.Phone),
			Role:      input.Role,
			Balance:   input.OpeningBalance,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if v := strings.TrimSpace(input.ServiceCategory); v != "" {
			account.ServiceCategory = &v
		}
		if v := strings.TrimSpace(input.District); v != "" {
			account.District = &v
		}
		created = true
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("account provisioned",
			zap.String("account_id", account.ID),
			zap.String("role", string(account.Role)))
	}
	return account, created, nil
}

// EnsurePlatformAccount provisions the fee-collection account if missing.
func (s *AccountService) EnsurePlatformAccount(ctx context.Context) (*domain.Account, error) {
	account, _, err := s.Provision(ctx, ProvisionInput{
		ID:   s.platformID,
		Name: "Platform",
		Role: domain.RolePlatform,
	})
	return account, err
}

// Get returns an account by id.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.Account, error) {
	var account *domain.Account
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		account, err = getAccount(ctx, tx, id)
		return err
	})
	return account, err
}

// ListAdmins returns the administrators cash requests can be addressed to.
func (s *AccountService) ListAdmins(ctx context.Context) ([]domain.Account, error) {
	var admins []domain.Account
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		admins, err = tx.Accounts().ListByRole(ctx, domain.RoleAdministrator)
		return err
	})
	return admins, err
}
