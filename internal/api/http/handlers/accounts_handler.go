package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/neighborfix/maintenance-service/internal/api/dto"
	"github.com/neighborfix/maintenance-service/internal/service"
)

// AccountsHandler serves account lookups.
type AccountsHandler struct {
	service *service.AccountService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accountService *service.AccountService) *AccountsHandler {
	return &AccountsHandler{service: accountService}
}

// Me GET /v1/me. Balance is read fresh rather than from the token lookup.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	account, err := h.service.Get(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": accountResponse(account)})
}

// Admins GET /v1/admins.
func (h *AccountsHandler) Admins(c *fiber.Ctx) error {
	admins, err := h.service.ListAdmins(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.AdminResponse, 0, len(admins))
	for _, admin := range admins {
		items = append(items, dto.AdminResponse{ID: admin.ID, Name: admin.Name, Phone: admin.Phone})
	}
	return c.JSON(fiber.Map{"data": items})
}
