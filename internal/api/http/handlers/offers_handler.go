package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/neighborfix/maintenance-service/internal/api/dto"
	"github.com/neighborfix/maintenance-service/internal/service"
)

// OffersHandler serves price negotiation endpoints.
type OffersHandler struct {
	service *service.NegotiationService
}

// NewOffersHandler constructs handler.
func NewOffersHandler(negotiationService *service.NegotiationService) *OffersHandler {
	return &OffersHandler{service: negotiationService}
}

// Propose POST /v1/tickets/:id/offers.
func (h *OffersHandler) Propose(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ProposeOfferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	offer, err := h.service.ProposeOffer(c.UserContext(), actor, c.Params("id"), req.Price)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": offerResponse(offer)})
}

// List GET /v1/tickets/:id/offers.
func (h *OffersHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	offers, err := h.service.ListOffers(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.OfferResponse, 0, len(offers))
	for i := range offers {
		items = append(items, offerResponse(&offers[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Counter POST /v1/offers/:id/bargains.
func (h *OffersHandler) Counter(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CounterOfferRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	offer, err := h.service.CounterOffer(c.UserContext(), actor, c.Params("id"), req.Amount, req.Remarks)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": offerResponse(offer)})
}

// Accept POST /v1/offers/:id/accept.
func (h *OffersHandler) Accept(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	result, err := h.service.AcceptOffer(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	superseded := result.Superseded
	if superseded == nil {
		superseded = []string{}
	}
	return c.JSON(fiber.Map{"data": dto.AcceptOfferResponse{
		Ticket:     ticketResponse(result.Ticket),
		Offer:      offerResponse(result.Offer),
		Superseded: superseded,
	}})
}
