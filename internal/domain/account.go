package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role enumerates the kinds of ledger account holders.
type Role string

const (
	RoleResident      Role = "RESIDENT"
	RoleStaff         Role = "STAFF"
	RoleAdministrator Role = "ADMINISTRATOR"
	RolePlatform      Role = "PLATFORM"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleStaff, RoleAdministrator, RolePlatform:
		return true
	}
	return false
}

// Account holds a party's balance. Balance is only changed by ledger operations.
type Account struct {
	ID              string
	Name            string
	Phone           string
	Role            Role
	Balance         decimal.Decimal
	ServiceCategory *string
	District        *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Actor identifies the caller of a workflow operation.
type Actor struct {
	ID   string
	Role Role
}
