package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arkantrust/payments-engine/models"
)

// MemoryEventLog is an in-memory EventLog. Chains live in slices indexed by
// sequence number.
type MemoryEventLog struct {
	locks *lockTable

	mu     sync.RWMutex
	chains map[models.ClientID][]models.Event
}

var _ EventLog = (*MemoryEventLog)(nil)

// NewMemoryEventLog returns an empty in-memory event log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{
		locks:  newLockTable(),
		chains: make(map[models.ClientID][]models.Event),
	}
}

// BeginEvent waits for the client's lock and appends a Started event to its
// chain.
func (l *MemoryEventLog) BeginEvent(ctx context.Context, client models.ClientID, tx models.TransactionID, m models.Mutation) (models.EventID, error) {
	if err := l.locks.acquire(ctx, client); err != nil {
		return models.EventID{}, err
	}

	l.mu.Lock()
	chain := l.chains[client]
	id := models.EventID{Client: client, Seq: uint64(len(chain)) + 1}
	l.chains[client] = append(chain, models.Event{ID: id, Transaction: tx, Mutation: m, Status: models.Started})
	l.mu.Unlock()

	l.locks.hold(id)
	return id, nil
}

// CompleteEvent marks the event Done and releases the client's lock.
func (l *MemoryEventLog) CompleteEvent(ctx context.Context, id models.EventID) error {
	if err := l.exists(id); err != nil {
		return err
	}
	if err := l.locks.check(id); err != nil {
		return err
	}

	l.mu.Lock()
	ev, err := l.event(id)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	ev.Status = models.Done
	l.mu.Unlock()

	l.locks.release(id.Client)
	return nil
}

// AbortEvent releases the client's lock and leaves the event Started.
func (l *MemoryEventLog) AbortEvent(ctx context.Context, id models.EventID) error {
	if err := l.exists(id); err != nil {
		return err
	}
	if err := l.locks.check(id); err != nil {
		return err
	}
	l.locks.release(id.Client)
	return nil
}

// Status returns the status of an appended event.
func (l *MemoryEventLog) Status(ctx context.Context, id models.EventID) (models.EventStatus, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ev, err := l.event(id)
	if err != nil {
		return models.Started, err
	}
	return ev.Status, nil
}

// Events returns a copy of the client's chain in sequence order.
func (l *MemoryEventLog) Events(ctx context.Context, client models.ClientID) ([]models.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Event, len(l.chains[client]))
	copy(out, l.chains[client])
	return out, nil
}

func (l *MemoryEventLog) exists(id models.EventID) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, err := l.event(id)
	return err
}

// event returns a pointer into the chain. Callers hold mu.
func (l *MemoryEventLog) event(id models.EventID) (*models.Event, error) {
	chain := l.chains[id.Client]
	if id.Seq == 0 || id.Seq > uint64(len(chain)) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return &chain[id.Seq-1], nil
}

func statusOf(ctx context.Context, r StatusReader) statusFunc {
	return func(id models.EventID) (models.EventStatus, error) {
		return r.Status(ctx, id)
	}
}

// MemoryTransactions is an in-memory TransactionStore.
type MemoryTransactions struct {
	statuses StatusReader

	mu      sync.Mutex
	records map[models.TransactionID]*transactionRecord
}

var _ TransactionStore = (*MemoryTransactions)(nil)

// NewMemoryTransactions returns an empty store resolving proposals against
// statuses, normally the event log.
func NewMemoryTransactions(statuses StatusReader) *MemoryTransactions {
	return &MemoryTransactions{
		statuses: statuses,
		records:  make(map[models.TransactionID]*transactionRecord),
	}
}

// RecordNew stores tx unless a visible record with the same id exists.
func (s *MemoryTransactions) RecordNew(ctx context.Context, tx models.Transaction, event models.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[tx.ID]; ok {
		replace, err := existing.replaceable(event, statusOf(ctx, s.statuses))
		if err != nil {
			return err
		}
		if !replace {
			return fmt.Errorf("%w: %d", ErrDuplicateTransaction, tx.ID)
		}
	}

	tx.Status = models.Normal
	s.records[tx.ID] = &transactionRecord{Transaction: tx, CreatedBy: event}
	return nil
}

// Lookup returns the transaction with its approved status.
func (s *MemoryTransactions) Lookup(ctx context.Context, id models.TransactionID) (models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return rec.resolve(statusOf(ctx, s.statuses))
}

// ProposeStatus stages a dispute status change tagged with event.
func (s *MemoryTransactions) ProposeStatus(ctx context.Context, id models.TransactionID, status models.DisputeStatus, event models.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.visible(ctx, id)
	if err != nil {
		return err
	}
	return rec.propose(status, event, statusOf(ctx, s.statuses))
}

// CommitStatus promotes the proposal staged by event.
func (s *MemoryTransactions) CommitStatus(ctx context.Context, id models.TransactionID, event models.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.visible(ctx, id)
	if err != nil {
		return err
	}
	return rec.commit(event, statusOf(ctx, s.statuses))
}

func (s *MemoryTransactions) visible(ctx context.Context, id models.TransactionID) (*transactionRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	ok, err := rec.visible(statusOf(ctx, s.statuses))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return rec, nil
}

// MemoryAccounts is an in-memory AccountStore.
type MemoryAccounts struct {
	statuses StatusReader

	mu       sync.Mutex
	accounts map[models.ClientID]*accountRecord
}

var _ AccountStore = (*MemoryAccounts)(nil)

// NewMemoryAccounts returns an empty store resolving staged changes against
// statuses, normally the event log.
func NewMemoryAccounts(statuses StatusReader) *MemoryAccounts {
	return &MemoryAccounts{
		statuses: statuses,
		accounts: make(map[models.ClientID]*accountRecord),
	}
}

// Load returns the visible account, or a zero unlocked one.
func (s *MemoryAccounts) Load(ctx context.Context, client models.ClientID) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[client]
	if !ok {
		return models.NewAccount(client), nil
	}
	return rec.resolve(statusOf(ctx, s.statuses))
}

// ApplyDelta stages a change of available and held funds tagged with event.
func (s *MemoryAccounts) ApplyDelta(ctx context.Context, client models.ClientID, available, held models.Amount, event models.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(client)
	if err := rec.applyDelta(available, held, event, statusOf(ctx, s.statuses)); err != nil {
		return err
	}
	s.accounts[client] = rec
	return nil
}

// SetLocked stages a change of the lock flag tagged with event.
func (s *MemoryAccounts) SetLocked(ctx context.Context, client models.ClientID, locked bool, event models.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(client)
	if err := rec.setLocked(locked, event, statusOf(ctx, s.statuses)); err != nil {
		return err
	}
	s.accounts[client] = rec
	return nil
}

// CommitAccount folds the change staged by event into the approved state.
func (s *MemoryAccounts) CommitAccount(ctx context.Context, client models.ClientID, event models.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.accounts[client]
	if !ok {
		return nil
	}
	return rec.commit(event, statusOf(ctx, s.statuses))
}

// List returns every visible account ordered by client id.
func (s *MemoryAccounts) List(ctx context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Account, 0, len(s.accounts))
	for _, rec := range s.accounts {
		acc, err := rec.resolve(statusOf(ctx, s.statuses))
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out, nil
}

// record returns the stored record or a fresh one that is not yet inserted.
func (s *MemoryAccounts) record(client models.ClientID) *accountRecord {
	if rec, ok := s.accounts[client]; ok {
		return rec
	}
	return newAccountRecord(client)
}
