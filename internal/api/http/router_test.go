package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/api/http/handlers"
	"github.com/neighborfix/maintenance-service/internal/auth"
	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/memstore"
	"github.com/neighborfix/maintenance-service/internal/observability"
	"github.com/neighborfix/maintenance-service/internal/repository"
	"github.com/neighborfix/maintenance-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens map[string]string
}

func newTestServer(t *testing.T, residentBalance int64) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	store := memstore.New(repository.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	deps := service.Dependencies{Store: store, Dispatcher: events.NewInMemoryDispatcher(), Logger: logger, Metrics: metrics}

	accounts := service.NewAccountService(deps)
	ledger := service.NewLedgerService(deps)
	if _, err := accounts.EnsurePlatformAccount(ctx); err != nil {
		t.Fatalf("platform: %v", err)
	}
	tm := auth.NewTokenManager("test-secret", 5)
	srv := &testServer{tokens: map[string]string{}}
	for _, in := range []service.ProvisionInput{
		{ID: "res-1", Name: "Rana", Role: domain.RoleResident, District: "north", OpeningBalance: decimal.NewFromInt(residentBalance)},
		{ID: "staff-1", Name: "Sami", Role: domain.RoleStaff, ServiceCategory: "plumbing", District: "north"},
		{ID: "admin-1", Name: "Office", Role: domain.RoleAdministrator},
	} {
		account, _, err := accounts.Provision(ctx, in)
		if err != nil {
			t.Fatalf("provision %s: %v", in.ID, err)
		}
		token, _, err := tm.GenerateToken(account.ID, account.Role)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		srv.tokens[account.ID] = token
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("maintenance-service", "test", nil, nil),
		Accounts:       handlers.NewAccountsHandler(accounts),
		Tickets:        handlers.NewTicketsHandler(service.NewTicketService(deps), ledger),
		Offers:         handlers.NewOffersHandler(service.NewNegotiationService(deps)),
		Actions:        handlers.NewActionsHandler(service.NewActionService(deps, ledger)),
		Ledger:         handlers.NewLedgerHandler(ledger),
		Feed:           handlers.NewFeedHandler(events.NewLocalFeed(), logger),
		AuthMiddleware: auth.NewAuthMiddleware(tm, accounts),
		Gatherer:       registry,
	})
	srv.app = app
	return srv
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, as, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[as])
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return out
}

func TestPublicEndpoints(t *testing.T) {
	srv := newTestServer(t, 0)

	if status, _ := srv.do(t, http.MethodGet, "/health/live", "", ""); status != http.StatusOK {
		t.Fatalf("live: expected 200, got %d", status)
	}
	if status, _ := srv.do(t, http.MethodGet, "/health/ready", "", ""); status != http.StatusOK {
		t.Fatalf("ready: expected 200 with no external deps, got %d", status)
	}
	if status, _ := srv.do(t, http.MethodGet, "/metrics", "", ""); status != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", status)
	}
	status, env := srv.do(t, http.MethodGet, "/nowhere", "", "")
	if status != http.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("unknown route: got %d %+v", status, env.Error)
	}
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.do(t, http.MethodGet, "/v1/me", "", "")
	if status != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected 401 UNAUTHORIZED, got %d %+v", status, env.Error)
	}

	srv.tokens["ghost"] = "not-a-jwt"
	if status, _ := srv.do(t, http.MethodGet, "/v1/me", "ghost", ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", status)
	}

	status, env = srv.do(t, http.MethodGet, "/v1/me", "res-1", "")
	if status != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", status)
	}
	me := decodeData[map[string]any](t, env)
	if me["id"] != "res-1" || me["role"] != "RESIDENT" {
		t.Fatalf("unexpected me: %v", me)
	}

	status, env = srv.do(t, http.MethodPost, "/v1/tickets", "staff-1", `{"category":"plumbing"}`)
	if status != http.StatusForbidden || env.Error.Code != "PERMISSION_DENIED" {
		t.Fatalf("expected 403 for staff creating a ticket, got %d", status)
	}
}

func TestTicketToSettlementOverHTTP(t *testing.T) {
	srv := newTestServer(t, 1000)

	status, env := srv.do(t, http.MethodPost, "/v1/tickets", "res-1", `{"category":"plumbing","service_type":"leak","description":"sink","urgency":"HIGH"}`)
	if status != http.StatusCreated {
		t.Fatalf("create ticket: %d %+v", status, env.Error)
	}
	ticketID := decodeData[map[string]any](t, env)["id"].(string)

	status, env = srv.do(t, http.MethodPost, "/v1/tickets/"+ticketID+"/offers", "staff-1", `{"price":"300"}`)
	if status != http.StatusCreated {
		t.Fatalf("propose: %d %+v", status, env.Error)
	}
	offerID := decodeData[map[string]any](t, env)["id"].(string)

	status, env = srv.do(t, http.MethodPost, "/v1/offers/"+offerID+"/bargains", "res-1", `{"amount":280,"remarks":"less"}`)
	if status != http.StatusOK {
		t.Fatalf("counter: %d %+v", status, env.Error)
	}
	if next := decodeData[map[string]any](t, env)["next_proposer"]; next != "staff" {
		t.Fatalf("expected staff to move next, got %v", next)
	}

	status, env = srv.do(t, http.MethodPost, "/v1/offers/"+offerID+"/bargains", "res-1", `{"amount":270}`)
	if status != http.StatusConflict || env.Error.Code != "INVALID_STATE" {
		t.Fatalf("second resident counter: expected 409, got %d", status)
	}

	if status, env = srv.do(t, http.MethodPost, "/v1/offers/"+offerID+"/accept", "staff-1", ""); status != http.StatusOK {
		t.Fatalf("accept: %d %+v", status, env.Error)
	}
	if status, env = srv.do(t, http.MethodPost, "/v1/tickets/"+ticketID+"/start", "staff-1", ""); status != http.StatusOK {
		t.Fatalf("start: %d %+v", status, env.Error)
	}
	if status, env = srv.do(t, http.MethodPost, "/v1/tickets/"+ticketID+"/complete", "staff-1", ""); status != http.StatusOK {
		t.Fatalf("complete: %d %+v", status, env.Error)
	}

	status, env = srv.do(t, http.MethodGet, "/v1/actions", "res-1", "")
	if status != http.StatusOK {
		t.Fatalf("actions: %d", status)
	}
	inbox := decodeData[[]map[string]any](t, env)
	if len(inbox) != 1 || inbox[0]["actionable"] != true {
		t.Fatalf("expected one actionable approval, got %v", inbox)
	}
	actionID := inbox[0]["id"].(string)

	status, env = srv.do(t, http.MethodPost, "/v1/actions/"+actionID+"/accept", "res-1", "")
	if status != http.StatusOK {
		t.Fatalf("settle: %d %+v", status, env.Error)
	}
	settled := decodeData[struct {
		Ticket  map[string]any `json:"ticket"`
		Receipt struct {
			Kind    string `json:"kind"`
			Details struct {
				TotalCost  decimal.Decimal `json:"total_cost"`
				NewBalance decimal.Decimal `json:"new_balance"`
			} `json:"details"`
		} `json:"receipt"`
	}](t, env)
	if settled.Ticket["status"] != "RESOLVED" || settled.Receipt.Kind != "RECEIPT" {
		t.Fatalf("unexpected settlement: %+v", settled)
	}
	if !settled.Receipt.Details.TotalCost.Equal(decimal.NewFromInt(294)) || !settled.Receipt.Details.NewBalance.Equal(decimal.NewFromInt(706)) {
		t.Fatalf("unexpected receipt: %+v", settled.Receipt.Details)
	}

	status, env = srv.do(t, http.MethodGet, "/v1/ledger", "staff-1", "")
	if status != http.StatusOK || len(decodeData[[]map[string]any](t, env)) != 1 {
		t.Fatalf("ledger: %d %s", status, env.Data)
	}
}

func TestInsufficientFundsOverHTTP(t *testing.T) {
	srv := newTestServer(t, 100)

	_, env := srv.do(t, http.MethodPost, "/v1/tickets", "res-1", `{"category":"plumbing"}`)
	ticketID := decodeData[map[string]any](t, env)["id"].(string)
	_, env = srv.do(t, http.MethodPost, "/v1/tickets/"+ticketID+"/offers", "staff-1", `{"price":200}`)
	offerID := decodeData[map[string]any](t, env)["id"].(string)
	srv.do(t, http.MethodPost, "/v1/offers/"+offerID+"/accept", "res-1", "")
	srv.do(t, http.MethodPost, "/v1/tickets/"+ticketID+"/start", "staff-1", "")
	srv.do(t, http.MethodPost, "/v1/tickets/"+ticketID+"/complete", "staff-1", "")

	status, env := srv.do(t, http.MethodPost, "/v1/tickets/"+ticketID+"/settle", "res-1", "")
	if status != http.StatusUnprocessableEntity || env.Error == nil || env.Error.Code != "INSUFFICIENT_FUNDS" {
		t.Fatalf("expected 422 INSUFFICIENT_FUNDS, got %d %+v", status, env.Error)
	}
	if env.Error.Details["required"] != "210.00" {
		t.Fatalf("unexpected details: %v", env.Error.Details)
	}
}

func TestCashRequestsOverHTTP(t *testing.T) {
	srv := newTestServer(t, 0)

	status, env := srv.do(t, http.MethodPost, "/v1/cash-requests", "res-1", `{"kind":"CASH_SIDEWAYS","admin_id":"admin-1","amount":5}`)
	if status != http.StatusBadRequest {
		t.Fatalf("bad kind: expected 400, got %d", status)
	}

	status, env = srv.do(t, http.MethodPost, "/v1/cash-requests", "res-1",
		`{"kind":"CASH_IN","admin_id":"admin-1","amount":"75.50","payment_method":"bkash","account_number":"017","external_transaction_id":"EXT-9"}`)
	if status != http.StatusCreated {
		t.Fatalf("create: %d %+v", status, env.Error)
	}
	reqID := decodeData[map[string]any](t, env)["id"].(string)

	if status, _ = srv.do(t, http.MethodPost, "/v1/cash-requests/"+reqID+"/resolve", "res-1", ""); status != http.StatusForbidden {
		t.Fatalf("resident resolve: expected 403, got %d", status)
	}
	if status, env = srv.do(t, http.MethodPost, "/v1/cash-requests/"+reqID+"/resolve", "admin-1", ""); status != http.StatusOK {
		t.Fatalf("resolve: %d %+v", status, env.Error)
	}

	_, env = srv.do(t, http.MethodGet, "/v1/me", "res-1", "")
	balance := decodeData[struct {
		Balance decimal.Decimal `json:"balance"`
	}](t, env).Balance
	if !balance.Equal(decimal.RequireFromString("75.5")) {
		t.Fatalf("expected balance 75.50, got %s", balance)
	}

	status, env = srv.do(t, http.MethodGet, "/v1/cash-requests?status=RESOLVED", "admin-1", "")
	if status != http.StatusOK || len(decodeData[[]map[string]any](t, env)) != 1 {
		t.Fatalf("admin listing: %d %s", status, env.Data)
	}
	if status, _ = srv.do(t, http.MethodGet, "/v1/cash-requests?status=MAYBE", "admin-1", ""); status != http.StatusBadRequest {
		t.Fatalf("bad status filter: expected 400, got %d", status)
	}

	if status, env = srv.do(t, http.MethodPost, "/v1/cash-requests/"+reqID+"/unresolve", "admin-1", ""); status != http.StatusOK {
		t.Fatalf("unresolve: %d %+v", status, env.Error)
	}
	_, env = srv.do(t, http.MethodGet, "/v1/admins", "res-1", "")
	admins := decodeData[[]map[string]any](t, env)
	if len(admins) != 1 || admins[0]["id"] != "admin-1" {
		t.Fatalf("unexpected admins: %v", admins)
	}
}
