package models

import "fmt"

// EventID identifies an entry in a client's event chain. Seq starts at 1 and
// is strictly increasing per client.
type EventID struct {
	Client ClientID `json:"client"`
	Seq    uint64   `json:"seq"`
}

// String formats the id as "client/seq".
func (id EventID) String() string {
	return fmt.Sprintf("%d/%d", id.Client, id.Seq)
}

// IsZero reports whether id is the zero EventID, which never names a real
// event.
func (id EventID) IsZero() bool {
	return id.Seq == 0
}

// EventStatus is the commit status of an event.
type EventStatus uint8

const (
	// Started means the event was appended but the stores it guards may not
	// reflect its mutation yet.
	Started EventStatus = iota
	// Done means every store reflects the mutation; proposals tagged with the
	// event become visible.
	Done
)

// String returns the status name.
func (s EventStatus) String() string {
	switch s {
	case Started:
		return "started"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("EventStatus(%d)", uint8(s))
	}
}

// MarshalText encodes the status name.
func (s EventStatus) MarshalText() ([]byte, error) {
	switch s {
	case Started, Done:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("unknown event status %d", uint8(s))
}

// UnmarshalText parses a status name.
func (s *EventStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "started":
		*s = Started
	case "done":
		*s = Done
	default:
		return fmt.Errorf("unknown event status %q", b)
	}
	return nil
}

// Mutation describes the change an event proposes: the request kind and,
// for deposits and withdrawals, its amount.
type Mutation struct {
	Kind   TransactionType `json:"kind"`
	Amount Amount          `json:"amount"`
}

// Event is one entry of a client's append-only log.
type Event struct {
	ID          EventID       `json:"id"`
	Transaction TransactionID `json:"tx"`
	Mutation    Mutation      `json:"mutation"`
	Status      EventStatus   `json:"status"`
}
