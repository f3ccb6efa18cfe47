package ledger

import "errors"

var (
	// ErrInvalidTransition is returned when a request does not fit the dispute
	// status of the transaction it references.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAccountLocked is returned for withdrawals on a locked account.
	ErrAccountLocked = errors.New("account locked")

	// ErrClientMismatch is returned when a dispute, resolve or chargeback names
	// a transaction owned by another client.
	ErrClientMismatch = errors.New("transaction belongs to another client")

	// ErrMalformedRequest is returned for requests whose shape does not match
	// their type, such as a deposit without an amount.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrClientHalted is returned for every request of a client whose chain
	// was stopped by an integrity violation.
	ErrClientHalted = errors.New("client chain halted")
)
