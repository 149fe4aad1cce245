package service

import (
	"github.com/neighborfix/maintenance-service/internal/domain"
	apperrors "github.com/neighborfix/maintenance-service/pkg/util/errorutil"
)

func requireRole(actor domain.Actor, allowed ...domain.Role) error {
	for _, role := range allowed {
		if actor.Role == role {
			return nil
		}
	}
	return apperrors.NewPermissionDenied("operation not permitted for role " + string(actor.Role))
}

func isTicketResident(actor domain.Actor, ticket *domain.Ticket) bool {
	return actor.Role == domain.RoleResident && ticket.ResidentID == actor.ID
}

func isAssignedStaff(actor domain.Actor, ticket *domain.Ticket) bool {
	return actor.Role == domain.RoleStaff && ticket.IsAssignedTo(actor.ID)
}

func requireTicketResident(actor domain.Actor, ticket *domain.Ticket) error {
	if !isTicketResident(actor, ticket) {
		return apperrors.NewPermissionDenied("only the ticket's resident may do this")
	}
	return nil
}

func requireAssignedStaff(actor domain.Actor, ticket *domain.Ticket) error {
	if !isAssignedStaff(actor, ticket) {
		return apperrors.NewPermissionDenied("only the assigned staff may do this")
	}
	return nil
}

// staffEligible reports whether staff serves the ticket's category and district.
func staffEligible(staff *domain.Account, ticket *domain.Ticket) bool {
	if staff.Role != domain.RoleStaff {
		return false
	}
	return staff.ServiceCategory != nil && *staff.ServiceCategory == ticket.Category &&
		staff.District != nil && *staff.District == ticket.District
}

func isOpenForOffers(status domain.TicketStatus) bool {
	return status == domain.TicketStatusPending || status == domain.TicketStatusAwaitingResident
}

// canViewTicket is the read guard shared by ticket, history and offer listings.
func canViewTicket(actor domain.Actor, account *domain.Account, ticket *domain.Ticket) bool {
	switch actor.Role {
	case domain.RoleAdministrator:
		return true
	case domain.RoleResident:
		return ticket.ResidentID == actor.ID
	case domain.RoleStaff:
		if ticket.IsAssignedTo(actor.ID) {
			return true
		}
		return account != nil && isOpenForOffers(ticket.Status) && staffEligible(account, ticket)
	}
	return false
}

// negotiationParty maps actor to its side of offer on ticket.
func negotiationParty(actor domain.Actor, ticket *domain.Ticket, offer *domain.Offer) (domain.Party, error) {
	switch {
	case isTicketResident(actor, ticket):
		return domain.PartyResident, nil
	case actor.Role == domain.RoleStaff && offer.StaffID == actor.ID:
		return domain.PartyStaff, nil
	}
	return "", apperrors.NewPermissionDenied("not a party to this offer")
}
