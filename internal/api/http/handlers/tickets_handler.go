package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/neighborfix/maintenance-service/internal/api/dto"
	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/service"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
	ledger  *service.LedgerService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, ledgerService *service.LedgerService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, ledger: ledgerService}
}

// CreateTicket POST /v1/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Category:    req.Category,
		ServiceType: req.ServiceType,
		Description: req.Description,
		Urgency:     req.Urgency,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /v1/tickets?scope=assigned|available&status=A,B&page=&page_size=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	input := service.TicketListInput{Scope: service.TicketScope(c.Query("scope"))}
	for _, s := range splitList(c.Query("status")) {
		input.Statuses = append(input.Statuses, domain.TicketStatus(s))
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	input.Offset = (page - 1) * pageSize
	input.Limit = pageSize

	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// History GET /v1/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	history, err := h.tickets.ListHistory(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

// StartWork POST /v1/tickets/:id/start.
func (h *TicketsHandler) StartWork(c *fiber.Ctx) error {
	return h.ticketOp(c, h.tickets.StartWork)
}

// Cancel POST /v1/tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	return h.ticketOp(c, h.tickets.CancelTicket)
}

// CancelNegotiations POST /v1/tickets/:id/negotiations/cancel.
func (h *TicketsHandler) CancelNegotiations(c *fiber.Ctx) error {
	return h.ticketOp(c, h.tickets.CancelNegotiations)
}

// Complete POST /v1/tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, action, err := h.tickets.MarkComplete(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket": ticketResponse(ticket),
		"action": actionResponse(action),
	}})
}

// Settle POST /v1/tickets/:id/settle.
func (h *TicketsHandler) Settle(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	result, err := h.ledger.Settle(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": settlementResponse(result)})
}

type ticketOperation func(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)

func (h *TicketsHandler) ticketOp(c *fiber.Ctx, op ticketOperation) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := op(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func settlementResponse(result *service.SettlementResult) dto.SettlementResponse {
	return dto.SettlementResponse{
		Ticket:      ticketResponse(result.Ticket),
		Receipt:     actionResponse(result.Receipt),
		Transaction: ledgerTransactionResponse(result.Transaction),
	}
}
