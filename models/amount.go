package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxPrecision is the number of fractional digits an Amount may carry.
	MaxPrecision = 4

	// MaxDigits bounds the digits of a raw amount, integer and fractional
	// parts together.
	MaxDigits = 28
)

var (
	// ErrInvalidAmount is returned when a raw amount is empty, not a plain
	// decimal number or longer than MaxDigits.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrPrecisionAnomaly is returned when a raw amount is written with more
	// than MaxPrecision fractional digits, which marks suspect source data
	// rather than a malformed record.
	ErrPrecisionAnomaly = errors.New("amount exceeds supported precision")
)

// plainDecimal accepts an optional sign, integer digits and an optional
// fraction. Exponents are not accepted.
var plainDecimal = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// Amount is an exact monetary value with at most MaxPrecision fractional
// digits. The zero value is 0. Amounts may be negative.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero Amount.
var Zero = Amount{}

// ParseAmount parses a raw numeric string. Values are never rounded or
// truncated: a raw amount written with more than MaxPrecision fractional
// digits is rejected, trailing zeros included.
func ParseAmount(raw string) (Amount, error) {
	return parse(raw, MaxDigits)
}

// parse applies the ParseAmount rules with a digit limit; 0 means unbounded.
func parse(raw string, maxDigits int) (Amount, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	if !plainDecimal.MatchString(raw) {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	digits := strings.TrimLeft(raw, "+-")
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		if len(digits)-i-1 > MaxPrecision {
			return Amount{}, fmt.Errorf("%w: %q", ErrPrecisionAnomaly, raw)
		}
		digits = digits[:i] + digits[i+1:]
	}
	if maxDigits > 0 && len(digits) > maxDigits {
		return Amount{}, fmt.Errorf("%w: %q has more than %d digits", ErrInvalidAmount, raw, maxDigits)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return Amount{d: d}, nil
}

// MustParseAmount is like ParseAmount but panics on error. Intended for
// constants and tests.
func MustParseAmount(raw string) Amount {
	a, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Neg returns -a.
func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

// Cmp returns -1, 0 or +1 when a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal reports whether a and b have the same value.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// IsZero reports whether a is 0.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// IsNegative reports whether a is below 0.
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// IsPositive reports whether a is above 0.
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

// String formats the amount with exactly MaxPrecision fractional digits.
func (a Amount) String() string {
	return a.d.StringFixed(MaxPrecision)
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON accepts the quoted form written by MarshalJSON. It applies
// the ParseAmount rules except the digit limit, since stored balances may
// outgrow any single request amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
	}
	v, err := parse(raw, 0)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
