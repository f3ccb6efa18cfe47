// Package models defines the core domain types of the payments engine:
// monetary amounts, transactions, client accounts, log events and the raw
// requests read from a source.
package models

import (
	"fmt"
	"strings"
)

// ClientID identifies a client account.
type ClientID uint16

// TransactionID identifies a transaction. Ids are unique for the lifetime of
// the system.
type TransactionID uint32

// TransactionType is the kind of a request.
type TransactionType uint8

const (
	Deposit TransactionType = iota + 1
	Withdrawal
	Dispute
	Resolve
	Chargeback
)

var transactionTypeNames = map[TransactionType]string{
	Deposit:    "deposit",
	Withdrawal: "withdrawal",
	Dispute:    "dispute",
	Resolve:    "resolve",
	Chargeback: "chargeback",
}

// String returns the type name as written in input files.
func (t TransactionType) String() string {
	if s, ok := transactionTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TransactionType(%d)", uint8(t))
}

// CarriesAmount reports whether requests of this type carry their own amount.
// Dispute, resolve and chargeback reference an existing transaction instead.
func (t TransactionType) CarriesAmount() bool {
	return t == Deposit || t == Withdrawal
}

// ParseTransactionType parses a type name, ignoring case and surrounding
// spaces.
func ParseTransactionType(s string) (TransactionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range transactionTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction type %q", s)
}

// MarshalText encodes the type name. Unknown types are an error.
func (t TransactionType) MarshalText() ([]byte, error) {
	if _, ok := transactionTypeNames[t]; !ok {
		return nil, fmt.Errorf("unknown transaction type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText parses a type name with ParseTransactionType.
func (t *TransactionType) UnmarshalText(b []byte) error {
	v, err := ParseTransactionType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// DisputeStatus is the dispute state of a recorded transaction.
//
//	Normal -> Disputed -> Normal       (dispute, resolve)
//	Normal -> Disputed -> ChargedBack  (dispute, chargeback)
//
// ChargedBack is terminal.
type DisputeStatus uint8

const (
	Normal DisputeStatus = iota
	Disputed
	ChargedBack
)

var disputeStatusNames = map[DisputeStatus]string{
	Normal:      "normal",
	Disputed:    "disputed",
	ChargedBack: "charged_back",
}

// String returns the status name.
func (s DisputeStatus) String() string {
	if name, ok := disputeStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DisputeStatus(%d)", uint8(s))
}

// MarshalText encodes the status name.
func (s DisputeStatus) MarshalText() ([]byte, error) {
	if _, ok := disputeStatusNames[s]; !ok {
		return nil, fmt.Errorf("unknown dispute status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *DisputeStatus) UnmarshalText(b []byte) error {
	for v, name := range disputeStatusNames {
		if name == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown dispute status %q", b)
}

// Transaction is an accepted deposit or withdrawal. Type, Client and Amount
// never change once recorded; only Status evolves.
type Transaction struct {
	ID     TransactionID   `json:"id"`
	Type   TransactionType `json:"type"`
	Client ClientID        `json:"client"`
	Amount Amount          `json:"amount"`
	Status DisputeStatus   `json:"status"`
}
