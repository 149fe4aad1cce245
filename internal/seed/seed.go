// Package seed provisions accounts from a YAML fixture and mints bearer
// tokens for them, for local development and demos.
package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/service"
)

// Fixture is the on-disk seed format.
type Fixture struct {
	Accounts []AccountFixture `yaml:"accounts"`
}

// AccountFixture describes one account to provision.
type AccountFixture struct {
	ID              string          `yaml:"id"`
	Name            string          `yaml:"name"`
	Phone           string          `yaml:"phone"`
	Role            domain.Role     `yaml:"role"`
	ServiceCategory string          `yaml:"service_category"`
	District        string          `yaml:"district"`
	Balance         decimal.Decimal `yaml:"balance"`
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Fixture, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	seen := make(map[string]struct{}, len(fixture.Accounts))
	for i, account := range fixture.Accounts {
		if account.ID == "" {
			return nil, fmt.Errorf("account %d: id is required", i)
		}
		if _, dup := seen[account.ID]; dup {
			return nil, fmt.Errorf("account %s: duplicate id", account.ID)
		}
		seen[account.ID] = struct{}{}
		if !account.Role.Valid() {
			return nil, fmt.Errorf("account %s: unknown role %q", account.ID, account.Role)
		}
	}
	return &fixture, nil
}

// TokenIssuer mints bearer tokens.
type TokenIssuer interface {
	GenerateToken(accountID string, role domain.Role) (string, time.Time, error)
}

// Result reports what happened to one fixture account.
type Result struct {
	Account *domain.Account
	Created bool
	Token   string
}

// Apply provisions the platform account and every fixture account. Accounts
// that already exist are left untouched. A nil issuer skips token minting.
func Apply(ctx context.Context, accounts *service.AccountService, issuer TokenIssuer, fixture *Fixture) ([]Result, error) {
	if _, err := accounts.EnsurePlatformAccount(ctx); err != nil {
		return nil, fmt.Errorf("platform account: %w", err)
	}
	results := make([]Result, 0, len(fixture.Accounts))
	for _, f := range fixture.Accounts {
		account, created, err := accounts.Provision(ctx, service.ProvisionInput{
			ID:              f.ID,
			Name:            f.Name,
			Phone:           f.Phone,
			Role:            f.Role,
			ServiceCategory: f.ServiceCategory,
			District:        f.District,
			OpeningBalance:  f.Balance,
		})
		if err != nil {
			return results, fmt.Errorf("provision %s: %w", f.ID, err)
		}
		result := Result{Account: account, Created: created}
		if issuer != nil {
			token, _, err := issuer.GenerateToken(account.ID, account.Role)
			if err != nil {
				return results, fmt.Errorf("token for %s: %w", f.ID, err)
			}
			result.Token = token
		}
		results = append(results, result)
	}
	return results, nil
}
