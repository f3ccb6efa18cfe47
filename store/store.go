// Package store holds the state the payments engine reads and mutates:
// transaction records, client accounts and the per-client event log that
// keeps the two consistent.
//
// Every write to a transaction or account is tagged with the id of the event
// that made it. Readers resolve each tagged write against the event log: a
// write becomes visible only once its event is Done. A process that dies
// between BeginEvent and CompleteEvent therefore leaves nothing half-applied;
// the next reader simply sees the last approved state.
//
// Two backends are provided: in-memory (NewMemoryEventLog,
// NewMemoryTransactions, NewMemoryAccounts) and BoltDB (New).
package store

import (
	"context"
	"errors"

	"github.com/arkantrust/payments-engine/models"
)

var (
	// ErrDuplicateTransaction is returned by RecordNew when the id is taken.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrNotFound is returned when a transaction does not exist or its
	// creating event never completed.
	ErrNotFound = errors.New("transaction not found")

	// ErrInvalidCommit is returned when a commit names an event that is not
	// Done or that has no proposal staged.
	ErrInvalidCommit = errors.New("invalid commit")

	// ErrConflictingProposal is returned when a transaction already carries an
	// unresolved proposal from another client's chain.
	ErrConflictingProposal = errors.New("conflicting proposal")

	// ErrIntegrityViolation is returned when a mutation would break a ledger
	// invariant, such as held funds going negative.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrEventNotFound is returned for event ids that were never appended.
	ErrEventNotFound = errors.New("event not found")

	// ErrUnknownEvent is returned when an event is used outside of the chain
	// or lock it belongs to.
	ErrUnknownEvent = errors.New("event does not hold the client lock")
)

// StatusReader reports the commit status of events. Stores use it to decide
// which tagged writes are visible.
type StatusReader interface {
	Status(ctx context.Context, id models.EventID) (models.EventStatus, error)
}

// TransactionStore holds deposits and withdrawals with their dispute status.
type TransactionStore interface {
	// RecordNew stores tx with status Normal, tagged with its creating event.
	RecordNew(ctx context.Context, tx models.Transaction, event models.EventID) error
	// Lookup returns the transaction with its approved status.
	Lookup(ctx context.Context, id models.TransactionID) (models.Transaction, error)
	// ProposeStatus stages a status change without altering the approved one.
	ProposeStatus(ctx context.Context, id models.TransactionID, status models.DisputeStatus, event models.EventID) error
	// CommitStatus promotes the proposal tagged with event once event is Done.
	CommitStatus(ctx context.Context, id models.TransactionID, event models.EventID) error
}

// AccountStore holds client balances.
type AccountStore interface {
	// Load returns the visible account, or a zero unlocked one.
	Load(ctx context.Context, client models.ClientID) (models.Account, error)
	// ApplyDelta stages a change of available and held funds.
	ApplyDelta(ctx context.Context, client models.ClientID, available, held models.Amount, event models.EventID) error
	// SetLocked stages a change of the lock flag.
	SetLocked(ctx context.Context, client models.ClientID, locked bool, event models.EventID) error
	// CommitAccount folds the change staged by event into the approved state.
	CommitAccount(ctx context.Context, client models.ClientID, event models.EventID) error
	// List returns every visible account ordered by client id.
	List(ctx context.Context) ([]models.Account, error)
}

// EventLog is the append-only per-client chain of events. BeginEvent takes
// the client's exclusive lock; CompleteEvent and AbortEvent release it.
type EventLog interface {
	StatusReader
	// BeginEvent waits for the client lock and appends a Started event.
	BeginEvent(ctx context.Context, client models.ClientID, tx models.TransactionID, m models.Mutation) (models.EventID, error)
	// CompleteEvent marks the event Done and releases the client lock.
	CompleteEvent(ctx context.Context, id models.EventID) error
	// AbortEvent releases the client lock and leaves the event Started, so
	// nothing it staged ever becomes visible.
	AbortEvent(ctx context.Context, id models.EventID) error
	// Events returns a client's chain in sequence order.
	Events(ctx context.Context, client models.ClientID) ([]models.Event, error)
}
