package booking

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRequested Status = "REQUESTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
	StatusDeleted   Status = "DELETED"
)

var allStatuses = []Status{StatusPending, StatusRequested, StatusConfirmed, StatusCompleted, StatusCanceled, StatusDeleted}

// BlockingStatuses occupy calendar days.
var BlockingStatuses = []Status{StatusRequested, StatusConfirmed}

// Blocking reports whether a booking in this status holds its dates.
func (s Status) Blocking() bool {
	return s == StatusRequested || s == StatusConfirmed
}

// Terminal reports whether ordinary flow is over for the booking.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusDeleted
}

func (s Status) Valid() bool {
	for _, st := range allStatuses {
		if st == s {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("booking: unknown status %q", raw)
	}
	return s, nil
}

type Action string

const (
	ActionRequest    Action = "request"
	ActionConfirm    Action = "confirm"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionSoftDelete Action = "soft_delete"
)

func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))))
	switch a {
	case ActionRequest, ActionConfirm, ActionComplete, ActionCancel, ActionSoftDelete:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, raw)
}

// Role is a set of actor roles; one principal may hold several at once
// (an administrator booking their own stay is both Tenant and Admin).
type Role uint8

const (
	RoleTenant Role = 1 << iota
	RoleOwner
	RoleAdmin

	RoleNone Role = 0
)

func (r Role) Has(other Role) bool {
	return r&other != 0
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	var parts []string
	if r.Has(RoleTenant) {
		parts = append(parts, "tenant")
	}
	if r.Has(RoleOwner) {
		parts = append(parts, "owner")
	}
	if r.Has(RoleAdmin) {
		parts = append(parts, "admin")
	}
	return strings.Join(parts, "|")
}
