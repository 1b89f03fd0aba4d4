package booking

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRange        = errors.New("booking: invalid date range")
	ErrDatesUnavailable    = errors.New("booking: selected dates are not available")
	ErrInvalidTransition   = errors.New("booking: invalid status transition")
	ErrForbidden           = errors.New("booking: actor not permitted")
	ErrCannotModifyDeleted = errors.New("booking: cannot modify a deleted booking")
	ErrBookingNotFound     = errors.New("booking: not found")
)

// TransitionError explains why an action is illegal from the current status.
type TransitionError struct {
	Action   Action
	From     Status
	Required []Status
	Reason   string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("booking: cannot %s from %s: %s", e.Action, e.From, e.Reason)
	}
	required := make([]string, 0, len(e.Required))
	for _, s := range e.Required {
		required = append(required, string(s))
	}
	return fmt.Sprintf("booking: can only %s from %s (current %s)", e.Action, strings.Join(required, " or "), e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ForbiddenError names the roles that may run an action.
type ForbiddenError struct {
	Action  Action
	Actor   Role
	Allowed Role
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("booking: %s may not %s (allowed: %s)", e.Actor, e.Action, e.Allowed)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
