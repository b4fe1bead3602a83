package scheduler

import "errors"

var (
	// ErrInvalidInput indicates a malformed create request: missing
	// addresses, no body, or an unparseable schedule time.
	ErrInvalidInput = errors.New("invalid scheduled send request")

	// ErrTooSoon indicates the requested send time is inside the minimum
	// lead window and cannot be scheduled.
	ErrTooSoon = errors.New("scheduled time is too soon")

	// ErrInvalidState indicates the send is not in a state that permits
	// the requested transition, e.g. cancelling an already-sent message.
	ErrInvalidState = errors.New("scheduled send is not in a valid state for this operation")

	// ErrNotFound indicates no scheduled send exists with the given id.
	ErrNotFound = errors.New("scheduled send not found")
)
