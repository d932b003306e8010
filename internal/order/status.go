package order

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrTerminalState     = errors.New("order is in a terminal state")
	ErrNotAllowed        = errors.New("actor is not allowed to perform this transition")
)

// actorClass is who is driving a transition, after authorization against the
// concrete order: the payment confirmation callback, the order's customer, or
// staff/owner of the order's cafe.
type actorClass int

const (
	classPayment actorClass = iota
	classCustomer
	classStaff
)

type rule struct {
	payment  bool
	customer bool
	staff    bool
}

func (r rule) allows(c actorClass) bool {
	switch c {
	case classPayment:
		return r.payment
	case classCustomer:
		return r.customer
	case classStaff:
		return r.staff
	}
	return false
}

// transitions is the full lifecycle: the forward sequence
// placed → paid → preparing → ready → completed, with cancellation reachable
// from every non-terminal state. Payment confirmation is the only way into
// paid; the kitchen-side steps belong to staff; customers may only cancel,
// and only before preparation starts.
var transitions = map[Status]map[Status]rule{
	StatusPlaced: {
		StatusPaid:      {payment: true},
		StatusCancelled: {customer: true, staff: true},
	},
	StatusPaid: {
		StatusPreparing: {staff: true},
		StatusCancelled: {customer: true, staff: true},
	},
	StatusPreparing: {
		StatusReady:     {staff: true},
		StatusCancelled: {staff: true},
	},
	StatusReady: {
		StatusCompleted: {staff: true},
		StatusCancelled: {staff: true},
	},
	StatusCompleted: {},
	StatusCancelled: {},
}

// validateTransition checks the transition table. Terminal states are
// reported distinctly from out-of-sequence transitions, and an allowed
// transition attempted by the wrong actor class is a permission failure, not
// an invalid one.
func validateTransition(from, to Status, class actorClass) error {
	if from.Terminal() {
		return ErrTerminalState
	}
	r, ok := transitions[from][to]
	if !ok {
		return ErrInvalidTransition
	}
	if !r.allows(class) {
		return ErrNotAllowed
	}
	return nil
}

// refundDue reports whether cancelling from this status leaves money to
// return. The machine only signals the obligation; refunds themselves are the
// payment provider's problem.
func refundDue(from Status) bool {
	return from != StatusPlaced
}
