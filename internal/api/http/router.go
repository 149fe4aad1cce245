package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neighborfix/maintenance-service/internal/api/http/handlers"
	"github.com/neighborfix/maintenance-service/internal/auth"
	"github.com/neighborfix/maintenance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Tickets        *handlers.TicketsHandler
	Offers         *handlers.OffersHandler
	Actions        *handlers.ActionsHandler
	Ledger         *handlers.LedgerHandler
	Feed           *handlers.FeedHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	participants := auth.RequireRole(domain.RoleResident, domain.RoleStaff)

	v1.Get("/me", cfg.Accounts.Me)
	v1.Get("/admins", cfg.Accounts.Admins)

	v1.Post("/tickets", auth.RequireRole(domain.RoleResident), cfg.Tickets.CreateTicket)
	v1.Get("/tickets", cfg.Tickets.ListTickets)
	v1.Get("/tickets/:id", cfg.Tickets.GetTicket)
	v1.Get("/tickets/:id/history", cfg.Tickets.History)
	v1.Post("/tickets/:id/offers", auth.RequireRole(domain.RoleStaff), cfg.Offers.Propose)
	v1.Get("/tickets/:id/offers", cfg.Offers.List)
	v1.Post("/tickets/:id/negotiations/cancel", participants, cfg.Tickets.CancelNegotiations)
	v1.Post("/tickets/:id/cancel", auth.RequireRole(domain.RoleResident), cfg.Tickets.Cancel)
	v1.Post("/tickets/:id/start", auth.RequireRole(domain.RoleStaff), cfg.Tickets.StartWork)
	v1.Post("/tickets/:id/complete", auth.RequireRole(domain.RoleStaff), cfg.Tickets.Complete)
	v1.Post("/tickets/:id/settle", auth.RequireRole(domain.RoleResident), cfg.Tickets.Settle)

	v1.Post("/offers/:id/bargains", participants, cfg.Offers.Counter)
	v1.Post("/offers/:id/accept", participants, cfg.Offers.Accept)

	v1.Get("/actions", cfg.Actions.List)
	v1.Post("/actions/read", cfg.Actions.MarkAllRead)
	v1.Post("/actions/:id/accept", auth.RequireRole(domain.RoleResident), cfg.Actions.Accept)
	v1.Post("/actions/:id/deny", auth.RequireRole(domain.RoleResident), cfg.Actions.Deny)

	v1.Post("/cash-requests", participants, cfg.Ledger.CreateCashRequest)
	v1.Get("/cash-requests", cfg.Ledger.ListCashRequests)
	v1.Post("/cash-requests/:id/resolve", auth.RequireRole(domain.RoleAdministrator), cfg.Ledger.Resolve)
	v1.Post("/cash-requests/:id/unresolve", auth.RequireRole(domain.RoleAdministrator), cfg.Ledger.Unresolve)
	v1.Get("/ledger", cfg.Ledger.Ledger)

	v1.Get("/feed", cfg.Feed.Stream)
}
