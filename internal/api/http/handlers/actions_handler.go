package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/neighborfix/maintenance-service/internal/api/dto"
	"github.com/neighborfix/maintenance-service/internal/service"
)

// ActionsHandler serves the action inbox.
type ActionsHandler struct {
	service *service.ActionService
}

// NewActionsHandler constructs handler.
func NewActionsHandler(actionService *service.ActionService) *ActionsHandler {
	return &ActionsHandler{service: actionService}
}

// List GET /v1/actions.
func (h *ActionsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	actions, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.ActionResponse, 0, len(actions))
	for i := range actions {
		items = append(items, actionResponse(&actions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MarkAllRead POST /v1/actions/read.
func (h *ActionsHandler) MarkAllRead(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkAllRead(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkReadResponse{Updated: updated}})
}

// Accept POST /v1/actions/:id/accept.
func (h *ActionsHandler) Accept(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	result, err := h.service.Accept(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": settlementResponse(result)})
}

// Deny POST /v1/actions/:id/deny.
func (h *ActionsHandler) Deny(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	result, err := h.service.Deny(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket": ticketResponse(result.Ticket),
		"action": actionResponse(result.Action),
	}})
}
