package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/neighborfix/maintenance-service/internal/domain"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

type fakeAccounts map[string]*domain.Account

func (f fakeAccounts) Get(_ context.Context, id string) (*domain.Account, error) {
	if acc, ok := f[id]; ok {
		return acc, nil
	}
	return nil, apperrors.NewNotFound("account", nil)
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expires, err := tm.GenerateToken("res-1", domain.RoleResident)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiry, got %s", expires)
	}
	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "res-1" || claims.Role != domain.RoleResident {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejections(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	token, _, _ := tm.GenerateToken("res-1", domain.RoleResident)

	t.Run("wrong secret", func(t *testing.T) {
		if _, err := NewTokenManager("other", 1).ParseToken(token); err == nil {
			t.Fatal("expected signature failure")
		}
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("secret", 1)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		if _, err := later.ParseToken(token); err == nil {
			t.Fatal("expected expiry failure")
		}
	})

	t.Run("unknown role", func(t *testing.T) {
		bad, _, _ := tm.GenerateToken("res-1", domain.Role("GUEST"))
		if _, err := tm.ParseToken(bad); err == nil {
			t.Fatal("expected role validation failure")
		}
	})
}

func newTestApp(tm *TokenManager, accounts fakeAccounts, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm, accounts).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.Actor().ID)
	})
	app.Get("/me", handlers...)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	accounts := fakeAccounts{
		"res-1":   {ID: "res-1", Role: domain.RoleResident},
		"staff-1": {ID: "staff-1", Role: domain.RoleStaff},
	}

	residentToken, _, _ := tm.GenerateToken("res-1", domain.RoleResident)
	forgedRole, _, _ := tm.GenerateToken("staff-1", domain.RoleAdministrator)
	ghost, _, _ := tm.GenerateToken("ghost", domain.RoleResident)

	cases := []struct {
		name   string
		header string
		guards []fiber.Handler
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "malformed header", header: "Token abc", status: http.StatusUnauthorized},
		{name: "unknown account", header: "Bearer " + ghost, status: http.StatusUnauthorized},
		{name: "role mismatch", header: "Bearer " + forgedRole, status: http.StatusUnauthorized},
		{name: "ok", header: "Bearer " + residentToken, status: http.StatusOK},
		{name: "guard rejects", header: "Bearer " + residentToken, guards: []fiber.Handler{RequireRole(domain.RoleAdministrator)}, status: http.StatusForbidden},
		{name: "guard accepts", header: "Bearer " + residentToken, guards: []fiber.Handler{RequireRole(domain.RoleResident, domain.RoleStaff)}, status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(tm, accounts, tc.guards...)
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}
