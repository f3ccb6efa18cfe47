package ledger

import (
	"errors"

	"github.com/arkantrust/payments-engine/models"
	"github.com/arkantrust/payments-engine/store"
)

// Kind classifies the outcome of one request.
type Kind uint8

const (
	// KindApplied means the request mutated the ledger.
	KindApplied Kind = iota
	// KindRejected means the request was refused and the ledger is unchanged.
	KindRejected
	// KindFailed means processing broke down: a backend failure or an
	// integrity violation.
	KindFailed
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindApplied:
		return "applied"
	case KindRejected:
		return "rejected"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of processing one request. Err is nil for applied
// requests and carries the reason otherwise.
type Outcome struct {
	Kind Kind
	Err  error
}

// Applied reports a request whose effects are visible.
func Applied() Outcome { return Outcome{Kind: KindApplied} }

// Rejected reports a request refused for reason err, with no state change.
func Rejected(err error) Outcome { return Outcome{Kind: KindRejected, Err: err} }

// Failed reports a request that could not be processed.
func Failed(err error) Outcome { return Outcome{Kind: KindFailed, Err: err} }

// String returns the kind, followed by the error if there is one.
func (o Outcome) String() string {
	if o.Err == nil {
		return o.Kind.String()
	}
	return o.Kind.String() + ": " + o.Err.Error()
}

// rejections are the errors that refuse a request without touching state.
var rejections = []error{
	store.ErrDuplicateTransaction,
	store.ErrNotFound,
	ErrInvalidTransition,
	ErrAccountLocked,
	models.ErrPrecisionAnomaly,
	ErrClientMismatch,
	ErrMalformedRequest,
}

// IsRejection reports whether err refuses a request rather than failing it.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Classify maps an error to an Outcome; nil is Applied.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Applied()
	case IsRejection(err):
		return Rejected(err)
	default:
		return Failed(err)
	}
}
