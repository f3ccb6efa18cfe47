package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/arkantrust/payments-engine/models"
)

// lockTable hands out one exclusive lock per client. A lock is only ever
// taken for a single client at a time, so there is no ordering to get wrong.
type lockTable struct {
	mu    sync.Mutex
	slots map[models.ClientID]*lockSlot
}

type lockSlot struct {
	sem    chan struct{}
	holder models.EventID
}

func newLockTable() *lockTable {
	return &lockTable{slots: make(map[models.ClientID]*lockSlot)}
}

func (t *lockTable) slot(client models.ClientID) *lockSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[client]
	if !ok {
		s = &lockSlot{sem: make(chan struct{}, 1)}
		t.slots[client] = s
	}
	return s
}

// acquire blocks until the client's lock is free or ctx is done.
func (t *lockTable) acquire(ctx context.Context, client models.ClientID) error {
	s := t.slot(client)
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hold records id as the owner of its client's lock.
func (t *lockTable) hold(id models.EventID) {
	s := t.slot(id.Client)
	t.mu.Lock()
	s.holder = id
	t.mu.Unlock()
}

// check returns ErrUnknownEvent unless id currently owns its client's lock.
func (t *lockTable) check(id models.EventID) error {
	s := t.slot(id.Client)
	t.mu.Lock()
	defer t.mu.Unlock()
	if id.IsZero() || s.holder != id || len(s.sem) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	return nil
}

// release frees the client's lock. It must follow a successful check.
func (t *lockTable) release(client models.ClientID) {
	s := t.slot(client)
	t.mu.Lock()
	s.holder = models.EventID{}
	t.mu.Unlock()
	<-s.sem
}

// releaseUnheld frees a lock taken by acquire when no event was appended.
func (t *lockTable) releaseUnheld(client models.ClientID) {
	<-t.slot(client).sem
}
