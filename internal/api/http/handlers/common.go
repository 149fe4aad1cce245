package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/neighborfix/maintenance-service/internal/api/dto"
	"github.com/neighborfix/maintenance-service/internal/auth"
	"github.com/neighborfix/maintenance-service/internal/domain"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Account == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func accountResponse(account *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:              account.ID,
		Name:            account.Name,
		Phone:           account.Phone,
		Role:            account.Role,
		Balance:         account.Balance,
		ServiceCategory: account.ServiceCategory,
		District:        account.District,
		CreatedAt:       account.CreatedAt,
	}
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                 ticket.ID,
		ResidentID:         ticket.ResidentID,
		AssignedStaffID:    ticket.AssignedStaffID,
		Category:           ticket.Category,
		ServiceType:        ticket.ServiceType,
		Description:        ticket.Description,
		Urgency:            ticket.Urgency,
		District:           ticket.District,
		Status:             ticket.Status,
		FinalPrice:         ticket.FinalPrice,
		ResolutionActionID: ticket.ResolutionActionID,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
	}
}

func historyResponses(history []domain.TicketHistory) []dto.TicketHistoryResponse {
	out := make([]dto.TicketHistoryResponse, 0, len(history))
	for _, h := range history {
		out = append(out, dto.TicketHistoryResponse{
			ID:         h.ID,
			ActorID:    h.ActorID,
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			Comment:    h.Comment,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out
}

func offerResponse(offer *domain.Offer) dto.OfferResponse {
	resp := dto.OfferResponse{
		ID:             offer.ID,
		TicketID:       offer.TicketID,
		StaffID:        offer.StaffID,
		InitialPrice:   offer.InitialPrice,
		EffectivePrice: offer.EffectivePrice(),
		Bargains:       offer.Bargains,
		Status:         offer.Status,
		CreatedAt:      offer.CreatedAt,
		UpdatedAt:      offer.UpdatedAt,
	}
	if resp.Bargains == nil {
		resp.Bargains = []domain.Bargain{}
	}
	if offer.IsActive() {
		resp.NextProposer = offer.NextProposer()
	}
	return resp
}

func actionResponse(action *domain.ActionRecord) dto.ActionResponse {
	return dto.ActionResponse{
		ID:         action.ID,
		TicketID:   action.TicketID,
		Kind:       action.Kind,
		Title:      action.Title,
		Body:       action.Body,
		Details:    action.Details,
		IsRead:     action.IsRead,
		Actionable: action.AwaitingDecision(),
		CreatedAt:  action.CreatedAt,
		ResolvedAt: action.ResolvedAt,
	}
}

func cashRequestResponse(req *domain.CashRequest) dto.CashRequestResponse {
	return dto.CashRequestResponse{
		ID:                    req.ID,
		Kind:                  req.Kind,
		RequesterID:           req.RequesterID,
		AdminID:               req.AdminID,
		Amount:                req.Amount,
		PaymentMethod:         req.PaymentMethod,
		AccountNumber:         req.AccountNumber,
		ExternalTransactionID: req.ExternalTransactionID,
		LedgerTransactionID:   req.LedgerTransactionID,
		Status:                req.Status,
		CreatedAt:             req.CreatedAt,
		ResolvedAt:            req.ResolvedAt,
	}
}

func ledgerTransactionResponse(txn *domain.LedgerTransaction) dto.LedgerTransactionResponse {
	entries := make([]dto.LedgerEntryResponse, 0, len(txn.Entries))
	for _, e := range txn.Entries {
		entries = append(entries, dto.LedgerEntryResponse{AccountID: e.AccountID, Delta: e.Delta})
	}
	return dto.LedgerTransactionResponse{
		ID:         txn.ID,
		Kind:       txn.Kind,
		Reference:  txn.Reference,
		ReversesID: txn.ReversesID,
		Entries:    entries,
		CreatedAt:  txn.CreatedAt,
	}
}
