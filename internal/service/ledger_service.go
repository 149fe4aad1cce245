package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/domain"
	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/repository"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

// LedgerService owns every balance mutation: settlements and cash requests.
type LedgerService struct {
	base
}

// NewLedgerService constructs the service.
func NewLedgerService(deps Dependencies) *LedgerService {
	return &LedgerService{base: newBase(deps)}
}

// SettlementResult is the state committed by a settlement.
type SettlementResult struct {
	Ticket      *domain.Ticket
	Receipt     *domain.ActionRecord
	Transaction *domain.LedgerTransaction
}

// CashRequestInput describes a cash-in or cash-out request.
type CashRequestInput struct {
	AdminID       string
	Amount        decimal.Decimal
	PaymentMethod string
	// AccountNumber is the sender number for cash-in and the receiver number for cash-out.
	AccountNumber         string
	ExternalTransactionID string
}

// CashRequestResult is the state committed by a resolve or unresolve.
type CashRequestResult struct {
	Request     *domain.CashRequest
	Transaction *domain.LedgerTransaction
	Notice      *domain.ActionRecord
}

// Settle pays for a ticket awaiting approval. The resident is charged the
// agreed price plus the site charge; staff and platform are credited.
func (s *LedgerService) Settle(ctx context.Context, actor domain.Actor, ticketID string) (*SettlementResult, error) {
	return s.settle(ctx, actor, func(ctx context.Context, tx repository.Tx) (*domain.Ticket, *domain.ActionRecord, error) {
		ticket, err := getTicket(ctx, tx, ticketID)
		if err != nil {
			return nil, nil, err
		}
		if err := requireTicketResident(actor, ticket); err != nil {
			return nil, nil, err
		}
		if ticket.Status != domain.TicketStatusPendingApproval || ticket.ResolutionActionID == nil {
			return nil, nil, apperrors.NewInvalidState("ticket is not awaiting approval", map[string]any{"status": ticket.Status})
		}
		action, err := getAction(ctx, tx, *ticket.ResolutionActionID)
		if err != nil {
			return nil, nil, err
		}
		return ticket, action, nil
	})
}

// SettleAction settles the ticket referenced by an approval request addressed to the actor.
func (s *LedgerService) SettleAction(ctx context.Context, actor domain.Actor, actionID string) (*SettlementResult, error) {
	return s.settle(ctx, actor, func(ctx context.Context, tx repository.Tx) (*domain.Ticket, *domain.ActionRecord, error) {
		action, err := getAction(ctx, tx, actionID)
		if err != nil {
			return nil, nil, err
		}
		if action.UserID != actor.ID {
			return nil, nil, apperrors.NewPermissionDenied("action is addressed to another user")
		}
		if !action.AwaitingDecision() || action.TicketID == nil {
			return nil, nil, apperrors.NewInvalidState("action is not awaiting a decision", map[string]any{"kind": action.Kind})
		}
		ticket, err := getTicket(ctx, tx, *action.TicketID)
		if err != nil {
			return nil, nil, err
		}
		if err := requireTicketResident(actor, ticket); err != nil {
			return nil, nil, err
		}
		if ticket.ResolutionActionID == nil || *ticket.ResolutionActionID != action.ID {
			return nil, nil, apperrors.NewInvalidState("action no longer governs this ticket", nil)
		}
		return ticket, action, nil
	})
}

type settlementTarget func(ctx context.Context, tx repository.Tx) (*domain.Ticket, *domain.ActionRecord, error)

func (s *LedgerService) settle(ctx context.Context, actor domain.Actor, load settlementTarget) (*SettlementResult, error) {
	var (
		result  *SettlementResult
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		ticket, action, err := load(ctx, tx)
		if err != nil {
			return err
		}
		if !action.AwaitingDecision() {
			return apperrors.NewInvalidState("approval request already consumed", map[string]any{"action_id": action.ID})
		}
		if !domain.CanTransition(ticket.Status, domain.TicketStatusResolved) {
			return apperrors.NewInvalidState("ticket is not awaiting approval", map[string]any{"status": ticket.Status})
		}
		if ticket.FinalPrice == nil || ticket.AssignedStaffID == nil {
			return apperrors.NewInvalidState("ticket has no agreed price or assignee", nil)
		}

		resident, err := getAccount(ctx, tx, ticket.ResidentID)
		if err != nil {
			return err
		}
		staff, err := getAccount(ctx, tx, *ticket.AssignedStaffID)
		if err != nil {
			return err
		}
		platform, err := getAccount(ctx, tx, s.platformID)
		if err != nil {
			return err
		}

		cost := *ticket.FinalPrice
		siteCharge := domain.SiteCharge(cost)
		total := cost.Add(siteCharge)
		previous := resident.Balance
		if previous.LessThan(total) {
			return apperrors.NewInsufficientFunds("balance does not cover the total cost", map[string]any{
				"required":  total.StringFixed(2),
				"available": previous.StringFixed(2),
			})
		}

		now := s.now()
		txn := &domain.LedgerTransaction{
			Kind:      domain.LedgerKindTicketSettlement,
			Reference: ticket.ID,
			Entries: []domain.LedgerEntry{
				{AccountID: resident.ID, Delta: total.Neg()},
				{AccountID: staff.ID, Delta: cost},
				{AccountID: platform.ID, Delta: siteCharge},
			},
			CreatedAt: now,
		}
		if err := applyEntries(ctx, tx, txn, now, resident, staff, platform); err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, txn); err != nil {
			return err
		}

		action.Kind = domain.ActionKindReceipt
		action.Title = "Payment receipt"
		action.Body = "Paid " + total.StringFixed(2) + " for " + ticket.Category + " service by " + staff.Name + "."
		action.Details.Cost = ptr(cost)
		action.Details.SiteCharge = ptr(siteCharge)
		action.Details.TotalCost = ptr(total)
		action.Details.PreviousBalance = ptr(previous)
		action.Details.NewBalance = ptr(resident.Balance)
		action.Details.IssuedBy = staff.Name
		action.Details.TransactionID = txn.ID
		action.IsRead = false
		action.ResolvedAt = ptr(now)
		if err := tx.Actions().Update(ctx, action); err != nil {
			return err
		}

		event, err := s.transition(ctx, tx, ticket, domain.TicketStatusResolved, actor.ID, "settled")
		if err != nil {
			return err
		}
		pending.add(event)
		pending.add(events.Event{
			Type:     events.EventTicketSettled,
			TicketID: ticket.ID,
			ActorID:  actor.ID,
			Audience: ticketAudience(ticket),
			Payload: events.TicketSettledPayload{
				TransactionID: txn.ID,
				Cost:          cost,
				SiteCharge:    siteCharge,
				TotalCost:     total,
			},
		})
		result = &SettlementResult{Ticket: ticket, Receipt: action, Transaction: txn}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	s.metrics.RecordSettlement()
	s.logger.Info("ticket settled",
		zap.String("ticket_id", result.Ticket.ID),
		zap.String("transaction_id", result.Transaction.ID),
		zap.String("total_cost", result.Receipt.Details.TotalCost.StringFixed(2)))
	return result, nil
}

// RequestCashIn records a resident's or staff member's attested off-platform payment.
func (s *LedgerService) RequestCashIn(ctx context.Context, actor domain.Actor, input CashRequestInput) (*domain.CashRequest, error) {
	if strings.TrimSpace(input.ExternalTransactionID) == "" {
		return nil, apperrors.NewValidationError("external transaction id is required", nil)
	}
	return s.createCashRequest(ctx, actor, domain.CashRequestKindCashIn, input)
}

// RequestCashOut asks an admin to pay out part of the requester's balance.
func (s *LedgerService) RequestCashOut(ctx context.Context, actor domain.Actor, input CashRequestInput) (*domain.CashRequest, error) {
	input.ExternalTransactionID = ""
	return s.createCashRequest(ctx, actor, domain.CashRequestKindCashOut, input)
}

func (s *LedgerService) createCashRequest(ctx context.Context, actor domain.Actor, kind domain.CashRequestKind, input CashRequestInput) (*domain.CashRequest, error) {
	if err := requireRole(actor, domain.RoleResident, domain.RoleStaff); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, apperrors.NewValidationError("amount must be positive", map[string]any{"amount": input.Amount.String()})
	}
	if strings.TrimSpace(input.AdminID) == "" || strings.TrimSpace(input.PaymentMethod) == "" || strings.TrimSpace(input.AccountNumber) == "" {
		return nil, apperrors.NewValidationError("admin, payment method and account number are required", nil)
	}
	amount := input.Amount.Round(2)

	var (
		req     *domain.CashRequest
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		admin, err := getAccount(ctx, tx, input.AdminID)
		if err != nil {
			return err
		}
		if admin.Role != domain.RoleAdministrator {
			return apperrors.NewValidationError("cash requests must be addressed to an administrator", map[string]any{"admin_id": admin.ID})
		}
		requester, err := getAccount(ctx, tx, actor.ID)
		if err != nil {
			return err
		}
		if kind == domain.CashRequestKindCashOut && requester.Balance.LessThan(amount) {
			return apperrors.NewInsufficientFunds("balance does not cover the withdrawal", map[string]any{
				"required":  amount.StringFixed(2),
				"available": requester.Balance.StringFixed(2),
			})
		}

		req = &domain.CashRequest{
			Kind:          kind,
			RequesterID:   requester.ID,
			AdminID:       admin.ID,
			Amount:        amount,
			PaymentMethod: strings.TrimSpace(input.PaymentMethod),
			AccountNumber: strings.TrimSpace(input.AccountNumber),
			Status:        domain.CashRequestStatusPending,
			CreatedAt:     s.now(),
		}
		if v := strings.TrimSpace(input.ExternalTransactionID); v != "" {
			req.ExternalTransactionID = &v
		}
		if err := tx.CashRequests().Create(ctx, req); err != nil {
			return err
		}
		pending.add(cashRequestEvent(events.EventCashRequestCreated, req, actor.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	return req, nil
}

// Resolve applies a pending cash request. Cash-in credits both the requester
// and the admin float; cash-out debits both and needs the admin's payout reference.
func (s *LedgerService) Resolve(ctx context.Context, actor domain.Actor, requestID, settlementTransactionID string) (*CashRequestResult, error) {
	settlementTransactionID = strings.TrimSpace(settlementTransactionID)

	var (
		result  *CashRequestResult
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		req, requester, admin, err := s.loadCashRequest(ctx, tx, actor, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.CashRequestStatusPending {
			return apperrors.NewInvalidState("cash request is not pending", map[string]any{"status": req.Status})
		}
		if req.Kind == domain.CashRequestKindCashOut {
			if settlementTransactionID == "" {
				return apperrors.NewValidationError("settlement transaction id is required to resolve a cash-out", nil)
			}
			req.ExternalTransactionID = &settlementTransactionID
		}

		delta := req.Amount.Mul(req.Sign())
		now := s.now()
		previous := requester.Balance
		txn := &domain.LedgerTransaction{
			Kind:      ledgerKindFor(req.Kind),
			Reference: req.ID,
			Entries: []domain.LedgerEntry{
				{AccountID: requester.ID, Delta: delta},
				{AccountID: admin.ID, Delta: delta},
			},
			CreatedAt: now,
		}
		if err := applyEntries(ctx, tx, txn, now, requester, admin); err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, txn); err != nil {
			return err
		}

		req.Status = domain.CashRequestStatusResolved
		req.ResolvedAt = ptr(now)
		req.LedgerTransactionID = ptr(txn.ID)
		if err := tx.CashRequests().Update(ctx, req); err != nil {
			return err
		}

		title := "Cash-in approved"
		if req.Kind == domain.CashRequestKindCashOut {
			title = "Cash-out completed"
		}
		notice, err := s.balanceNotice(ctx, tx, req, admin, txn, title, previous, requester.Balance, now)
		if err != nil {
			return err
		}
		pending.add(cashRequestEvent(events.EventCashRequestResolved, req, actor.ID))
		pending.add(actionCreatedEvent(notice, actor.ID))
		result = &CashRequestResult{Request: req, Transaction: txn, Notice: notice}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	s.metrics.RecordCashOperation(string(result.Request.Kind), "resolve")
	s.logger.Info("cash request resolved",
		zap.String("cash_request_id", result.Request.ID),
		zap.String("kind", string(result.Request.Kind)),
		zap.String("amount", result.Request.Amount.StringFixed(2)))
	return result, nil
}

// Unresolve reverses the latest resolve of a cash request exactly and returns it to pending.
func (s *LedgerService) Unresolve(ctx context.Context, actor domain.Actor, requestID string) (*CashRequestResult, error) {
	var (
		result  *CashRequestResult
		pending outbox
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		pending.reset()
		req, requester, admin, err := s.loadCashRequest(ctx, tx, actor, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.CashRequestStatusResolved || req.LedgerTransactionID == nil {
			return apperrors.NewInvalidState("cash request is not resolved", map[string]any{"status": req.Status})
		}
		original, err := tx.Ledger().GetByID(ctx, *req.LedgerTransactionID)
		if err != nil {
			return notFoundAs(err, "ledger transaction", *req.LedgerTransactionID)
		}

		now := s.now()
		previous := requester.Balance
		reversal := original.Reversal()
		reversal.CreatedAt = now
		if err := applyEntries(ctx, tx, reversal, now, requester, admin); err != nil {
			return err
		}
		if err := tx.Ledger().Append(ctx, reversal); err != nil {
			return err
		}

		req.Status = domain.CashRequestStatusPending
		req.ResolvedAt = nil
		req.LedgerTransactionID = nil
		if req.Kind == domain.CashRequestKindCashOut {
			req.ExternalTransactionID = nil
		}
		if err := tx.CashRequests().Update(ctx, req); err != nil {
			return err
		}

		title := "Cash-in reversed"
		if req.Kind == domain.CashRequestKindCashOut {
			title = "Cash-out reversed"
		}
		notice, err := s.balanceNotice(ctx, tx, req, admin, reversal, title, previous, requester.Balance, now)
		if err != nil {
			return err
		}
		pending.add(cashRequestEvent(events.EventCashRequestUnresolved, req, actor.ID))
		pending.add(actionCreatedEvent(notice, actor.ID))
		result = &CashRequestResult{Request: req, Transaction: reversal, Notice: notice}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, pending)
	s.metrics.RecordCashOperation(string(result.Request.Kind), "unresolve")
	s.logger.Info("cash request unresolved",
		zap.String("cash_request_id", result.Request.ID),
		zap.String("reversal_id", result.Transaction.ID))
	return result, nil
}

// ListCashRequests returns the actor's own requests, or those addressed to an admin.
func (s *LedgerService) ListCashRequests(ctx context.Context, actor domain.Actor, status *domain.CashRequestStatus) ([]domain.CashRequest, error) {
	filter := repository.CashRequestFilter{Status: status}
	switch actor.Role {
	case domain.RoleAdministrator:
		filter.AdminID = &actor.ID
	case domain.RoleResident, domain.RoleStaff:
		filter.RequesterID = &actor.ID
	default:
		return nil, apperrors.NewPermissionDenied("operation not permitted for role " + string(actor.Role))
	}

	var reqs []domain.CashRequest
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		reqs, err = tx.CashRequests().List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []domain.CashRequest{}
	}
	return reqs, nil
}

// ListLedger returns ledger transactions touching the actor's account, newest first.
func (s *LedgerService) ListLedger(ctx context.Context, actor domain.Actor, limit int) ([]domain.LedgerTransaction, error) {
	var txns []domain.LedgerTransaction
	err := s.store.View(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		txns, err = tx.Ledger().ListByAccount(ctx, actor.ID, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []domain.LedgerTransaction{}
	}
	return txns, nil
}

func (s *LedgerService) loadCashRequest(ctx context.Context, tx repository.Tx, actor domain.Actor, requestID string) (*domain.CashRequest, *domain.Account, *domain.Account, error) {
	if err := requireRole(actor, domain.RoleAdministrator); err != nil {
		return nil, nil, nil, err
	}
	req, err := getCashRequest(ctx, tx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	if req.AdminID != actor.ID {
		return nil, nil, nil, apperrors.NewPermissionDenied("cash request is addressed to another administrator")
	}
	requester, err := getAccount(ctx, tx, req.RequesterID)
	if err != nil {
		return nil, nil, nil, err
	}
	admin, err := getAccount(ctx, tx, req.AdminID)
	if err != nil {
		return nil, nil, nil, err
	}
	return req, requester, admin, nil
}

func (s *LedgerService) balanceNotice(ctx context.Context, tx repository.Tx, req *domain.CashRequest, admin *domain.Account, txn *domain.LedgerTransaction, title string, previous, current decimal.Decimal, now time.Time) (*domain.ActionRecord, error) {
	notice := &domain.ActionRecord{
		UserID: req.RequesterID,
		Kind:   domain.ActionKindInformational,
		Title:  title,
		Body:   title + ": " + req.Amount.StringFixed(2) + " via " + req.PaymentMethod + ".",
		Details: domain.ActionDetails{
			Amount:          ptr(req.Amount),
			PreviousBalance: ptr(previous),
			NewBalance:      ptr(current),
			IssuedBy:        admin.Name,
			TransactionID:   txn.ID,
		},
		CreatedAt: now,
	}
	if err := tx.Actions().Create(ctx, notice); err != nil {
		return nil, err
	}
	return notice, nil
}

// applyEntries adds each entry's delta to the matching account and persists
// it. A balance driven below zero aborts with InsufficientFunds.
func applyEntries(ctx context.Context, tx repository.Tx, txn *domain.LedgerTransaction, now time.Time, accounts ...*domain.Account) error {
	byID := make(map[string]*domain.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}
	for _, entry := range txn.Entries {
		account, ok := byID[entry.AccountID]
		if !ok {
			return apperrors.NewNotFound("account", map[string]any{"id": entry.AccountID})
		}
		next := account.Balance.Add(entry.Delta)
		if next.IsNegative() {
			return apperrors.NewInsufficientFunds("balance would become negative", map[string]any{
				"account_id": account.ID,
				"required":   entry.Delta.Neg().StringFixed(2),
				"available":  account.Balance.StringFixed(2),
			})
		}
		account.Balance = next
		account.UpdatedAt = now
	}
	for _, account := range accounts {
		if err := tx.Accounts().Update(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

func ledgerKindFor(kind domain.CashRequestKind) domain.LedgerTransactionKind {
	if kind == domain.CashRequestKindCashOut {
		return domain.LedgerKindCashOut
	}
	return domain.LedgerKindCashIn
}

func cashRequestEvent(eventType events.EventType, req *domain.CashRequest, actorID string) events.Event {
	return events.Event{
		Type:     eventType,
		ActorID:  actorID,
		Audience: []string{req.RequesterID, req.AdminID},
		Payload: events.CashRequestPayload{
			CashRequestID: req.ID,
			Kind:          req.Kind,
			Amount:        req.Amount,
			Status:        req.Status,
		},
	}
}
