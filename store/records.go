package store

import (
	"fmt"

	"github.com/arkantrust/payments-engine/models"
)

// statusFunc resolves an event's status. Backends bind it to whatever view of
// the log they are reading under.
type statusFunc func(models.EventID) (models.EventStatus, error)

func (f statusFunc) done(id models.EventID) (bool, error) {
	if id.IsZero() {
		return true, nil
	}
	st, err := f(id)
	if err != nil {
		return false, err
	}
	return st == models.Done, nil
}

// transactionRecord is the stored form of a transaction. Transaction.Status
// is the last approved status.
type transactionRecord struct {
	Transaction models.Transaction `json:"transaction"`
	CreatedBy   models.EventID     `json:"created_by"`
	Proposed    *statusProposal    `json:"proposed,omitempty"`
}

type statusProposal struct {
	Status models.DisputeStatus `json:"status"`
	Event  models.EventID       `json:"event"`
}

// visible reports whether the creating event completed.
func (r *transactionRecord) visible(status statusFunc) (bool, error) {
	return status.done(r.CreatedBy)
}

// settle folds a proposal whose event is Done into the approved status.
func (r *transactionRecord) settle(status statusFunc) error {
	if r.Proposed == nil {
		return nil
	}
	done, err := status.done(r.Proposed.Event)
	if err != nil {
		return err
	}
	if done {
		r.Transaction.Status = r.Proposed.Status
		r.Proposed = nil
	}
	return nil
}

// resolve returns the transaction as readers should see it.
func (r transactionRecord) resolve(status statusFunc) (models.Transaction, error) {
	ok, err := r.visible(status)
	if err != nil {
		return models.Transaction{}, err
	}
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %d", ErrNotFound, r.Transaction.ID)
	}
	if err := r.settle(status); err != nil {
		return models.Transaction{}, err
	}
	return r.Transaction, nil
}

// replaceable reports whether a new record created by event may overwrite r.
// Only a record whose creator never completed qualifies, and only when that
// creator is on the same client chain, whose lock the caller holds.
func (r transactionRecord) replaceable(event models.EventID, status statusFunc) (bool, error) {
	ok, err := r.visible(status)
	if err != nil || ok {
		return false, err
	}
	return r.CreatedBy == event || r.CreatedBy.Client == event.Client, nil
}

// propose stages a status change tagged with event.
func (r *transactionRecord) propose(s models.DisputeStatus, event models.EventID, status statusFunc) error {
	if err := r.settle(status); err != nil {
		return err
	}
	if p := r.Proposed; p != nil && p.Event != event && p.Event.Client != event.Client {
		return fmt.Errorf("%w: tx %d has pending proposal from %s", ErrConflictingProposal, r.Transaction.ID, p.Event)
	}
	r.Proposed = &statusProposal{Status: s, Event: event}
	return nil
}

// commit promotes the proposal tagged with event.
func (r *transactionRecord) commit(event models.EventID, status statusFunc) error {
	if r.Proposed == nil || r.Proposed.Event != event {
		return fmt.Errorf("%w: tx %d has no proposal from %s", ErrInvalidCommit, r.Transaction.ID, event)
	}
	done, err := status.done(event)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("%w: event %s is not done", ErrInvalidCommit, event)
	}
	r.Transaction.Status = r.Proposed.Status
	r.Proposed = nil
	return nil
}

// accountRecord is the stored form of an account. Account is the approved
// state; Pending is the change staged by a single event.
type accountRecord struct {
	Account models.Account `json:"account"`
	Pending *accountChange `json:"pending,omitempty"`
}

type accountChange struct {
	Event     models.EventID `json:"event"`
	Available models.Amount  `json:"available"`
	Held      models.Amount  `json:"held"`
	Lock      *bool          `json:"lock,omitempty"`
}

func newAccountRecord(client models.ClientID) *accountRecord {
	return &accountRecord{Account: models.NewAccount(client)}
}

func (c *accountChange) applyTo(a *models.Account) {
	a.Available = a.Available.Add(c.Available)
	a.Held = a.Held.Add(c.Held)
	if c.Lock != nil {
		a.Locked = *c.Lock
	}
}

// settle folds a Done pending change into the approved state.
func (r *accountRecord) settle(status statusFunc) error {
	if r.Pending == nil {
		return nil
	}
	done, err := status.done(r.Pending.Event)
	if err != nil {
		return err
	}
	if done {
		r.Pending.applyTo(&r.Account)
		r.Pending = nil
	}
	return nil
}

func (r accountRecord) resolve(status statusFunc) (models.Account, error) {
	if err := r.settle(status); err != nil {
		return models.Account{}, err
	}
	return r.Account, nil
}

// stage returns the pending change for event, settling or discarding the
// change of any earlier event first. Only the client's own chain stages
// changes, and the caller holds its lock, so an earlier change that is not
// Done belongs to an event that will never complete.
func (r *accountRecord) stage(event models.EventID, status statusFunc) (*accountChange, error) {
	if event.Client != r.Account.Client {
		return nil, fmt.Errorf("%w: %s used for client %d", ErrUnknownEvent, event, r.Account.Client)
	}
	if r.Pending != nil && r.Pending.Event != event {
		if err := r.settle(status); err != nil {
			return nil, err
		}
		r.Pending = nil
	}
	if r.Pending == nil {
		r.Pending = &accountChange{Event: event}
	}
	return r.Pending, nil
}

// applyDelta stages a funds change, refusing one that leaves held negative.
func (r *accountRecord) applyDelta(available, held models.Amount, event models.EventID, status statusFunc) error {
	// Check on a copy so a refused delta leaves the record untouched.
	probe := *r
	if r.Pending != nil {
		pending := *r.Pending
		probe.Pending = &pending
	}
	change, err := probe.stage(event, status)
	if err != nil {
		return err
	}
	next := probe.Account
	change.applyTo(&next)
	next.Available = next.Available.Add(available)
	next.Held = next.Held.Add(held)
	if next.Held.IsNegative() {
		return fmt.Errorf("%w: held funds of client %d would be %s", ErrIntegrityViolation, r.Account.Client, next.Held)
	}

	change.Available = change.Available.Add(available)
	change.Held = change.Held.Add(held)
	*r = probe
	return nil
}

func (r *accountRecord) setLocked(locked bool, event models.EventID, status statusFunc) error {
	change, err := r.stage(event, status)
	if err != nil {
		return err
	}
	change.Lock = &locked
	return nil
}

// commit folds the change staged by event. Committing an event that staged
// nothing, or whose change was already folded, is a no-op.
func (r *accountRecord) commit(event models.EventID, status statusFunc) error {
	done, err := status.done(event)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("%w: event %s is not done", ErrInvalidCommit, event)
	}
	if r.Pending != nil && r.Pending.Event == event {
		r.Pending.applyTo(&r.Account)
		r.Pending = nil
	}
	return nil
}
