// Request status state machine. The transition table lives here, independent
// of persistence, so it is unit-testable without a database; the services
// layer enforces it with conditional UPDATEs so concurrent actors resolve
// first-wins.
package domain

// RequestStatus is the lifecycle state of a schedule request.
type RequestStatus string

// Request statuses. "pending" is the legacy default; new requests always
// resolve to one of the specific pending_* states or a terminal state.
const (
	StatusPending         RequestStatus = "pending"
	StatusPendingPartner  RequestStatus = "pending_partner"
	StatusPendingAdmin    RequestStatus = "pending_admin"
	StatusPendingFill     RequestStatus = "pending_fill"
	StatusPartnerRejected RequestStatus = "partner_rejected"
	StatusApproved        RequestStatus = "approved"
	StatusRejected        RequestStatus = "rejected"
	StatusFailed          RequestStatus = "failed"
)

// Terminal reports whether no further transitions are possible from s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusPartnerRejected:
		return true
	}
	return false
}

// AwaitingAction reports whether s is a non-terminal state waiting on a
// partner, an admin, or an open-fill assignment.
func (s RequestStatus) AwaitingAction() bool {
	switch s {
	case StatusPending, StatusPendingPartner, StatusPendingAdmin, StatusPendingFill:
		return true
	}
	return false
}

// TransitionAction is an actor-initiated action against a request.
type TransitionAction string

// Transition actions.
const (
	PartnerAccept TransitionAction = "partner_accept"
	PartnerReject TransitionAction = "partner_reject"
	AdminApprove  TransitionAction = "admin_approve"
	AdminReject   TransitionAction = "admin_reject"
	FillAssigned  TransitionAction = "fill_assigned"
)

// Transition returns the status that results from applying action to current.
// ok is false when the transition is not allowed; callers must surface that
// as a "not pending" condition and leave the stored status untouched.
func Transition(current RequestStatus, action TransitionAction) (next RequestStatus, ok bool) {
	switch action {
	case PartnerAccept:
		if current == StatusPendingPartner {
			return StatusPendingAdmin, true
		}
	case PartnerReject:
		if current == StatusPendingPartner {
			return StatusPartnerRejected, true
		}
	case AdminApprove:
		if current == StatusPending || current == StatusPendingAdmin {
			return StatusApproved, true
		}
	case AdminReject:
		if current == StatusPending || current == StatusPendingAdmin {
			return StatusRejected, true
		}
	case FillAssigned:
		if current == StatusPendingFill {
			return StatusApproved, true
		}
	}
	return current, false
}

// AdminActionable lists the statuses an admin approve/reject may act on.
// Exposed so the conditional UPDATE predicate and Transition stay in step.
func AdminActionable() []RequestStatus {
	return []RequestStatus{StatusPending, StatusPendingAdmin}
}

// AdminDecidable reports whether s is one of the AdminActionable statuses.
func (s RequestStatus) AdminDecidable() bool {
	for _, st := range AdminActionable() {
		if s == st {
			return true
		}
	}
	return false
}
