package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/arkantrust/payments-engine/models"
)

var (
	transactionsBucket = []byte("transactions")
	accountsBucket     = []byte("accounts")
	eventsBucket       = []byte("events")
)

// Store is the BoltDB backend. A single Store satisfies TransactionStore,
// AccountStore and EventLog, so each read resolves event status inside the
// same bolt transaction that loads the record.
//
// Layout:
//
//	transactions/<tx id, 4 bytes BE>       -> transactionRecord (JSON)
//	accounts/<client id, 2 bytes BE>       -> accountRecord (JSON)
//	events/<client id>/<seq, 8 bytes BE>   -> models.Event (JSON)
//
// Each client's chain is its own nested bucket, and its NextSequence provides
// the strictly increasing event sequence numbers.
type Store struct {
	db    *bolt.DB
	locks *lockTable
}

var (
	_ TransactionStore = (*Store)(nil)
	_ AccountStore     = (*Store)(nil)
	_ EventLog         = (*Store)(nil)
)

// New opens (or creates) a BoltDB database at the given path and ensures the
// buckets exist.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{transactionsBucket, accountsBucket, eventsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, locks: newLockTable()}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func txKey(id models.TransactionID) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(id))
	return k
}

func clientKey(id models.ClientID) []byte {
	k := make([]byte, 2)
	binary.BigEndian.PutUint16(k, uint16(id))
	return k
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func getEvent(tx *bolt.Tx, id models.EventID) (models.Event, error) {
	var ev models.Event
	chain := tx.Bucket(eventsBucket).Bucket(clientKey(id.Client))
	if chain == nil {
		return ev, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	v := chain.Get(seqKey(id.Seq))
	if v == nil {
		return ev, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	return ev, json.Unmarshal(v, &ev)
}

// statusIn resolves event status within an open bolt transaction.
func statusIn(tx *bolt.Tx) statusFunc {
	return func(id models.EventID) (models.EventStatus, error) {
		ev, err := getEvent(tx, id)
		if err != nil {
			return models.Started, err
		}
		return ev.Status, nil
	}
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

// --- EventLog ---

// BeginEvent waits for the client's lock and appends a Started event to its
// chain.
func (s *Store) BeginEvent(ctx context.Context, client models.ClientID, txID models.TransactionID, m models.Mutation) (models.EventID, error) {
	if err := s.locks.acquire(ctx, client); err != nil {
		return models.EventID{}, err
	}

	var id models.EventID
	err := s.db.Update(func(tx *bolt.Tx) error {
		chain, err := tx.Bucket(eventsBucket).CreateBucketIfNotExists(clientKey(client))
		if err != nil {
			return err
		}
		seq, err := chain.NextSequence()
		if err != nil {
			return err
		}
		id = models.EventID{Client: client, Seq: seq}
		return putJSON(chain, seqKey(seq), models.Event{ID: id, Transaction: txID, Mutation: m, Status: models.Started})
	})
	if err != nil {
		s.locks.releaseUnheld(client)
		return models.EventID{}, err
	}

	s.locks.hold(id)
	return id, nil
}

// CompleteEvent marks the event Done and releases the client's lock.
func (s *Store) CompleteEvent(ctx context.Context, id models.EventID) error {
	if err := s.eventExists(id); err != nil {
		return err
	}
	if err := s.locks.check(id); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		ev, err := getEvent(tx, id)
		if err != nil {
			return err
		}
		ev.Status = models.Done
		return putJSON(tx.Bucket(eventsBucket).Bucket(clientKey(id.Client)), seqKey(id.Seq), ev)
	})
	if err != nil {
		return err
	}

	s.locks.release(id.Client)
	return nil
}

// AbortEvent releases the client's lock and leaves the event Started.
func (s *Store) AbortEvent(ctx context.Context, id models.EventID) error {
	if err := s.eventExists(id); err != nil {
		return err
	}
	if err := s.locks.check(id); err != nil {
		return err
	}
	s.locks.release(id.Client)
	return nil
}

func (s *Store) eventExists(id models.EventID) error {
	return s.db.View(func(tx *bolt.Tx) error {
		_, err := getEvent(tx, id)
		return err
	})
}

// Status returns the status of an appended event.
func (s *Store) Status(ctx context.Context, id models.EventID) (models.EventStatus, error) {
	var st models.EventStatus
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		st, err = statusIn(tx)(id)
		return err
	})
	return st, err
}

// Events returns the client's chain in sequence order.
func (s *Store) Events(ctx context.Context, client models.ClientID) ([]models.Event, error) {
	events := []models.Event{}
	err := s.db.View(func(tx *bolt.Tx) error {
		chain := tx.Bucket(eventsBucket).Bucket(clientKey(client))
		if chain == nil {
			return nil
		}
		// Big-endian keys iterate in sequence order.
		return chain.ForEach(func(k, v []byte) error {
			var ev models.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			events = append(events, ev)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// --- TransactionStore ---

func getTransaction(b *bolt.Bucket, id models.TransactionID) (*transactionRecord, error) {
	v := b.Get(txKey(id))
	if v == nil {
		return nil, nil
	}
	var rec transactionRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// visibleTransaction loads a record whose creating event completed.
func visibleTransaction(tx *bolt.Tx, id models.TransactionID) (*transactionRecord, error) {
	rec, err := getTransaction(tx.Bucket(transactionsBucket), id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	ok, err := rec.visible(statusIn(tx))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return rec, nil
}

// RecordNew persists a new transaction ONLY if no completed record with the
// same id exists. A duplicate is reported as ErrDuplicateTransaction, never
// as a silent success.
func (s *Store) RecordNew(ctx context.Context, t models.Transaction, event models.EventID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(transactionsBucket)

		existing, err := getTransaction(b, t.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			replace, err := existing.replaceable(event, statusIn(tx))
			if err != nil {
				return err
			}
			if !replace {
				return fmt.Errorf("%w: %d", ErrDuplicateTransaction, t.ID)
			}
		}

		t.Status = models.Normal
		return putJSON(b, txKey(t.ID), transactionRecord{Transaction: t, CreatedBy: event})
	})
}

// Lookup returns the transaction with its approved status.
func (s *Store) Lookup(ctx context.Context, id models.TransactionID) (models.Transaction, error) {
	var out models.Transaction
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getTransaction(tx.Bucket(transactionsBucket), id)
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		out, err = rec.resolve(statusIn(tx))
		return err
	})
	return out, err
}

// ProposeStatus stages a dispute status change tagged with event.
func (s *Store) ProposeStatus(ctx context.Context, id models.TransactionID, status models.DisputeStatus, event models.EventID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := visibleTransaction(tx, id)
		if err != nil {
			return err
		}
		if err := rec.propose(status, event, statusIn(tx)); err != nil {
			return err
		}
		return putJSON(tx.Bucket(transactionsBucket), txKey(id), rec)
	})
}

// CommitStatus promotes the proposal staged by event.
func (s *Store) CommitStatus(ctx context.Context, id models.TransactionID, event models.EventID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := visibleTransaction(tx, id)
		if err != nil {
			return err
		}
		if err := rec.commit(event, statusIn(tx)); err != nil {
			return err
		}
		return putJSON(tx.Bucket(transactionsBucket), txKey(id), rec)
	})
}

// --- AccountStore ---

func getAccount(b *bolt.Bucket, client models.ClientID) (*accountRecord, error) {
	v := b.Get(clientKey(client))
	if v == nil {
		return nil, nil
	}
	var rec accountRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Load returns the visible account, or a zero unlocked one.
func (s *Store) Load(ctx context.Context, client models.ClientID) (models.Account, error) {
	acc := models.NewAccount(client)
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getAccount(tx.Bucket(accountsBucket), client)
		if err != nil || rec == nil {
			return err
		}
		acc, err = rec.resolve(statusIn(tx))
		return err
	})
	return acc, err
}

// updateAccount loads (or initialises) a client's record, applies fn and
// writes the result back. Nothing is written when fn fails.
func (s *Store) updateAccount(client models.ClientID, fn func(*accountRecord, statusFunc) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucket)
		rec, err := getAccount(b, client)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = newAccountRecord(client)
		}
		if err := fn(rec, statusIn(tx)); err != nil {
			return err
		}
		return putJSON(b, clientKey(client), rec)
	})
}

// ApplyDelta stages a change of available and held funds tagged with event.
func (s *Store) ApplyDelta(ctx context.Context, client models.ClientID, available, held models.Amount, event models.EventID) error {
	return s.updateAccount(client, func(rec *accountRecord, status statusFunc) error {
		return rec.applyDelta(available, held, event, status)
	})
}

// SetLocked stages a change of the lock flag tagged with event.
func (s *Store) SetLocked(ctx context.Context, client models.ClientID, locked bool, event models.EventID) error {
	return s.updateAccount(client, func(rec *accountRecord, status statusFunc) error {
		return rec.setLocked(locked, event, status)
	})
}

// CommitAccount folds the change staged by event into the approved state.
func (s *Store) CommitAccount(ctx context.Context, client models.ClientID, event models.EventID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(accountsBucket)
		rec, err := getAccount(b, client)
		if err != nil || rec == nil {
			return err
		}
		if err := rec.commit(event, statusIn(tx)); err != nil {
			return err
		}
		return putJSON(b, clientKey(client), rec)
	})
}

// List returns all accounts stored in the database, in client id order.
func (s *Store) List(ctx context.Context) ([]models.Account, error) {
	accounts := []models.Account{}
	err := s.db.View(func(tx *bolt.Tx) error {
		status := statusIn(tx)
		return tx.Bucket(accountsBucket).ForEach(func(k, v []byte) error {
			var rec accountRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			acc, err := rec.resolve(status)
			if err != nil {
				return err
			}
			accounts = append(accounts, acc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
