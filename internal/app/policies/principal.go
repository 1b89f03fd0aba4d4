package policies

import (
	"context"
	"errors"

	domainbooking "rentals/internal/domain/booking"
	domainlistings "rentals/internal/domain/listings"
)

// ErrUnauthenticated is returned when a message carries no caller identity.
var ErrUnauthenticated = errors.New("policies: authentication required")

// Principal is the authenticated caller as asserted by the identity provider.
type Principal struct {
	UserID string
	Admin  bool
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Authenticated is implemented by commands and queries acting for a caller.
type Authenticated interface {
	PrincipalOf() Principal
}

// RequirePrincipal rejects authenticated messages that arrive without a user.
type RequirePrincipal struct{}

func (RequirePrincipal) Authorize(_ context.Context, message any) error {
	msg, ok := message.(Authenticated)
	if !ok {
		return nil
	}
	if !msg.PrincipalOf().Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// RoleResolver tells which lifecycle roles the principal holds on a booking.
type RoleResolver interface {
	Resolve(ctx context.Context, p Principal, b *domainbooking.Booking, l *domainlistings.Listing) domainbooking.Role
}

// OwnershipResolver derives roles from booking and listing ownership.
type OwnershipResolver struct{}

func (OwnershipResolver) Resolve(_ context.Context, p Principal, b *domainbooking.Booking, l *domainlistings.Listing) domainbooking.Role {
	role := domainbooking.RoleNone
	if !p.Authenticated() {
		return role
	}
	if b != nil && b.UserID == p.UserID {
		role |= domainbooking.RoleTenant
	}
	if l != nil && l.OwnedBy(p.UserID) {
		role |= domainbooking.RoleOwner
	}
	if p.Admin {
		role |= domainbooking.RoleAdmin
	}
	return role
}
