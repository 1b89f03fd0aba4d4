package booking

// TransitionRequest is a lifecycle action attempted by an actor.
type TransitionRequest struct {
	Action Action
	Actor  Role
}

type transitionRule struct {
	action Action
	from   []Status
	to     Status
	actors Role
}

var activeStatuses = []Status{StatusPending, StatusRequested, StatusConfirmed, StatusCompleted, StatusCanceled}

const anyParty = RoleTenant | RoleOwner | RoleAdmin

var lifecycle = []transitionRule{
	{action: ActionRequest, from: []Status{StatusPending}, to: StatusRequested, actors: RoleTenant},
	{action: ActionConfirm, from: []Status{StatusRequested}, to: StatusConfirmed, actors: RoleOwner},
	{action: ActionComplete, from: []Status{StatusConfirmed}, to: StatusCompleted, actors: anyParty},
	{action: ActionCancel, from: activeStatuses, to: StatusCanceled, actors: anyParty},
	{action: ActionSoftDelete, from: activeStatuses, to: StatusDeleted, actors: RoleAdmin},
	{action: ActionCancel, from: []Status{StatusDeleted}, to: StatusCanceled, actors: RoleAdmin},
}

// Decide resolves the target status of req applied to a booking in status
// from. The actor check runs before the state check.
func Decide(from Status, req TransitionRequest) (Status, error) {
	if from == StatusDeleted {
		if !req.Actor.Has(RoleAdmin) {
			return "", &ForbiddenError{Action: req.Action, Actor: req.Actor, Allowed: RoleAdmin}
		}
		for _, rule := range lifecycle {
			if rule.action == req.Action && containsStatus(rule.from, StatusDeleted) {
				return rule.to, nil
			}
		}
		return "", &TransitionError{Action: req.Action, From: from, Reason: "a deleted booking can only be canceled"}
	}

	var (
		allowed  Role
		required []Status
		matched  *transitionRule
	)
	for i := range lifecycle {
		rule := &lifecycle[i]
		if rule.action != req.Action || containsStatus(rule.from, StatusDeleted) {
			continue
		}
		allowed |= rule.actors
		required = append(required, rule.from...)
		if containsStatus(rule.from, from) {
			matched = rule
		}
	}
	if allowed == RoleNone {
		return "", &TransitionError{Action: req.Action, From: from, Reason: "unknown action"}
	}
	if !req.Actor.Has(allowed) {
		return "", &ForbiddenError{Action: req.Action, Actor: req.Actor, Allowed: allowed}
	}
	if matched == nil {
		return "", &TransitionError{Action: req.Action, From: from, Required: required}
	}
	if !req.Actor.Has(matched.actors) {
		return "", &ForbiddenError{Action: req.Action, Actor: req.Actor, Allowed: matched.actors}
	}
	if matched.to == from {
		return "", &TransitionError{Action: req.Action, From: from, Reason: "already " + string(from)}
	}
	return matched.to, nil
}

func containsStatus(list []Status, s Status) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
