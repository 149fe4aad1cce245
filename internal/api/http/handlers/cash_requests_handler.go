package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/neighborfix/maintenance-service/internal/api/dto"
	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/service"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// LedgerHandler serves cash requests and ledger history.
type LedgerHandler struct {
	service *service.LedgerService
}

// NewLedgerHandler constructs handler.
func NewLedgerHandler(ledgerService *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: ledgerService}
}

// CreateCashRequest POST /v1/cash-requests.
func (h *LedgerHandler) CreateCashRequest(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateCashRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input := service.CashRequestInput{
		AdminID:               req.AdminID,
		Amount:                req.Amount,
		PaymentMethod:         req.PaymentMethod,
		AccountNumber:         req.AccountNumber,
		ExternalTransactionID: req.ExternalTransactionID,
	}

	var created *domain.CashRequest
	switch req.Kind {
	case domain.CashRequestKindCashIn:
		created, err = h.service.RequestCashIn(c.UserContext(), actor, input)
	case domain.CashRequestKindCashOut:
		created, err = h.service.RequestCashOut(c.UserContext(), actor, input)
	default:
		return apperrors.NewValidationError("kind must be CASH_IN or CASH_OUT", map[string]any{"kind": req.Kind})
	}
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": cashRequestResponse(created)})
}

// ListCashRequests GET /v1/cash-requests?status=PENDING|RESOLVED.
func (h *LedgerHandler) ListCashRequests(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var status *domain.CashRequestStatus
	switch s := domain.CashRequestStatus(c.Query("status")); s {
	case "":
	case domain.CashRequestStatusPending, domain.CashRequestStatusResolved:
		status = &s
	default:
		return apperrors.NewValidationError("invalid status", map[string]any{"status": s})
	}
	reqs, err := h.service.ListCashRequests(c.UserContext(), actor, status)
	if err != nil {
		return err
	}
	items := make([]dto.CashRequestResponse, 0, len(reqs))
	for i := range reqs {
		items = append(items, cashRequestResponse(&reqs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Resolve POST /v1/cash-requests/:id/resolve.
func (h *LedgerHandler) Resolve(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ResolveCashRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	result, err := h.service.Resolve(c.UserContext(), actor, c.Params("id"), req.SettlementTransactionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cashRequestResult(result)})
}

// Unresolve POST /v1/cash-requests/:id/unresolve.
func (h *LedgerHandler) Unresolve(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	result, err := h.service.Unresolve(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": cashRequestResult(result)})
}

// Ledger GET /v1/ledger?limit=.
func (h *LedgerHandler) Ledger(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	txns, err := h.service.ListLedger(c.UserContext(), actor, parseInt(c.Query("limit"), 50))
	if err != nil {
		return err
	}
	items := make([]dto.LedgerTransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, ledgerTransactionResponse(&txns[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func cashRequestResult(result *service.CashRequestResult) dto.CashRequestResultResponse {
	return dto.CashRequestResultResponse{
		Request:     cashRequestResponse(result.Request),
		Transaction: ledgerTransactionResponse(result.Transaction),
	}
}
