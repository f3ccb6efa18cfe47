package models

// Request is one transaction request as produced by a request source. Amount
// holds the raw text so precision can be checked before any arithmetic.
type Request struct {
	Type        TransactionType
	Client      ClientID
	Transaction TransactionID
	Amount      string
	HasAmount   bool
}
