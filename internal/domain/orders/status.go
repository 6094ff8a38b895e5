package orders

import (
	"fmt"

	"github.com/oms/backend/internal/domain/shared"
)

// CustomStatus represents the fulfillment status of an order.
// It drives a state machine with three branches: forward fulfillment,
// courier return (RTO) and customer return (DTO).
type CustomStatus string

const (
	StatusNew                   CustomStatus = "New"
	StatusConfirmed             CustomStatus = "Confirmed"
	StatusReadyToDispatch       CustomStatus = "Ready To Dispatch"
	StatusDispatched            CustomStatus = "Dispatched"
	StatusInTransit             CustomStatus = "In Transit"
	StatusOutForDelivery        CustomStatus = "Out For Delivery"
	StatusDelivered             CustomStatus = "Delivered"
	StatusRTOInTransit          CustomStatus = "RTO In Transit"
	StatusRTODelivered          CustomStatus = "RTO Delivered"
	StatusRTOClosed             CustomStatus = "RTO Closed"
	StatusDTORequested          CustomStatus = "DTO Requested"
	StatusDTOBooked             CustomStatus = "DTO Booked"
	StatusDTOInTransit          CustomStatus = "DTO In Transit"
	StatusDTODelivered          CustomStatus = "DTO Delivered"
	StatusClosed                CustomStatus = "Closed"
	StatusPendingRefunds        CustomStatus = "Pending Refunds"
	StatusCancellationRequested CustomStatus = "Cancellation Requested"
	StatusCancelled             CustomStatus = "Cancelled"
	StatusLost                  CustomStatus = "Lost"
)

// forwardEdges is the whitelist of legal forward transitions.
// Absence of an edge means the transition is rejected, never coerced.
var forwardEdges = map[CustomStatus][]CustomStatus{
	StatusNew:                   {StatusConfirmed, StatusCancellationRequested},
	StatusConfirmed:             {StatusReadyToDispatch, StatusCancellationRequested},
	StatusReadyToDispatch:       {StatusDispatched},
	StatusDispatched:            {StatusInTransit, StatusRTOInTransit, StatusLost},
	StatusInTransit:             {StatusOutForDelivery, StatusRTOInTransit, StatusLost},
	StatusOutForDelivery:        {StatusDelivered, StatusRTOInTransit, StatusLost},
	StatusDelivered:             {StatusClosed, StatusDTORequested},
	StatusRTOInTransit:          {StatusRTODelivered, StatusLost},
	StatusRTODelivered:          {StatusRTOClosed},
	StatusRTOClosed:             {},
	StatusDTORequested:          {StatusDTOBooked},
	StatusDTOBooked:             {StatusDTOInTransit},
	StatusDTOInTransit:          {StatusDTODelivered, StatusLost},
	StatusDTODelivered:          {StatusClosed, StatusPendingRefunds},
	StatusPendingRefunds:        {StatusClosed},
	StatusCancellationRequested: {StatusCancelled},
	StatusCancelled:             {},
	StatusClosed:                {},
	StatusLost:                  {},
}

// revertEdges is the separate whitelist of legal inverse transitions.
// Reverts are not arbitrary backward movement: only edges whose forward
// side effects are undoable are listed here.
var revertEdges = map[CustomStatus]CustomStatus{
	StatusReadyToDispatch: StatusConfirmed,
	StatusDispatched:      StatusReadyToDispatch,
	StatusClosed:          StatusDelivered,
	StatusRTOClosed:       StatusRTODelivered,
	StatusCancelled:       StatusCancellationRequested,
}

// allStatuses indexes every valid status for validation
var allStatuses = func() map[CustomStatus]struct{} {
	m := make(map[CustomStatus]struct{}, len(forwardEdges))
	for s := range forwardEdges {
		m[s] = struct{}{}
	}
	return m
}()

// IsValid checks if the status is a known CustomStatus
func (s CustomStatus) IsValid() bool {
	_, ok := allStatuses[s]
	return ok
}

// String returns the string representation of CustomStatus
func (s CustomStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if a forward transition to target is whitelisted
func (s CustomStatus) CanTransitionTo(target CustomStatus) bool {
	for _, t := range forwardEdges[s] {
		if t == target {
			return true
		}
	}
	return false
}

// CanRevertTo checks if target is the whitelisted inverse of this status
func (s CustomStatus) CanRevertTo(target CustomStatus) bool {
	rev, ok := revertEdges[s]
	return ok && rev == target
}

// IsInTransit reports whether the order is physically with the forward
// courier. These are the states eligible for the RTO branch.
func (s CustomStatus) IsInTransit() bool {
	switch s {
	case StatusDispatched, StatusInTransit, StatusOutForDelivery:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s CustomStatus) IsTerminal() bool {
	return len(forwardEdges[s]) == 0
}

// IsPreDispatch reports whether the order has not yet been handed to a
// courier. Cancellation is only allowed pre-dispatch.
func (s CustomStatus) IsPreDispatch() bool {
	switch s {
	case StatusNew, StatusConfirmed:
		return true
	}
	return false
}

// TransitionKind classifies how a transition request was satisfied
type TransitionKind int

const (
	// TransitionForward is a whitelisted forward edge
	TransitionForward TransitionKind = iota
	// TransitionRevert is a whitelisted inverse edge
	TransitionRevert
	// TransitionNoop means the target equals the current status
	TransitionNoop
)

// CheckTransition validates a requested transition against both
// whitelists. Re-applying the current status is a safe no-op.
func (s CustomStatus) CheckTransition(target CustomStatus) (TransitionKind, error) {
	if !target.IsValid() {
		return 0, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("Unknown status %q", target))
	}
	if target == s {
		return TransitionNoop, nil
	}
	if s.CanTransitionTo(target) {
		return TransitionForward, nil
	}
	if s.CanRevertTo(target) {
		return TransitionRevert, nil
	}
	return 0, NewIllegalTransitionError(s, target)
}

// NewIllegalTransitionError builds the machine-readable rejection for a
// (from, to) pair that is on neither whitelist
func NewIllegalTransitionError(from, to CustomStatus) *shared.DomainError {
	return shared.NewDomainError(
		"ILLEGAL_TRANSITION",
		fmt.Sprintf("Cannot transition order from %s to %s", from, to),
	)
}
