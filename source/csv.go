// Package source produces transaction requests for the ledger runner.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arkantrust/payments-engine/models"
)

// ErrBadHeader is returned when the input does not start with a usable header.
var ErrBadHeader = errors.New("bad header")

// RowError reports a row that could not be turned into a request.
type RowError struct {
	Line int
	Err  error
}

// Error formats the line number and cause.
func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the cause.
func (e *RowError) Unwrap() error { return e.Err }

// CSV reads requests lazily from comma separated input with a
// "type, client, tx, amount" header. Columns may appear in any order and the
// amount column may be left empty or dropped for requests that carry none.
type CSV struct {
	r       *csv.Reader
	cols    map[string]int
	onError func(*RowError)
	header  bool
}

// Option configures a CSV source.
type Option func(*CSV)

// WithRowErrorHandler makes the source report malformed rows to fn and skip
// them instead of returning them from Next.
func WithRowErrorHandler(fn func(*RowError)) Option {
	return func(c *CSV) { c.onError = fn }
}

// NewCSV returns a source reading from r. Nothing is read until Next.
func NewCSV(r io.Reader, opts ...Option) *CSV {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	c := &CSV{r: cr}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Next returns the next request, or io.EOF once the input is exhausted.
func (c *CSV) Next() (models.Request, error) {
	if !c.header {
		if err := c.readHeader(); err != nil {
			return models.Request{}, err
		}
	}

	for {
		record, err := c.r.Read()
		if errors.Is(err, io.EOF) {
			return models.Request{}, io.EOF
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return models.Request{}, err
			}
			if rerr := c.rowError(perr.Line, perr.Err); rerr != nil {
				return models.Request{}, rerr
			}
			continue
		}
		if blank(record) {
			continue
		}

		req, err := c.parse(record)
		if err != nil {
			line, _ := c.r.FieldPos(0)
			if rerr := c.rowError(line, err); rerr != nil {
				return models.Request{}, rerr
			}
			continue
		}
		return req, nil
	}
}

func (c *CSV) rowError(line int, err error) error {
	rerr := &RowError{Line: line, Err: err}
	if c.onError == nil {
		return rerr
	}
	c.onError(rerr)
	return nil
}

func (c *CSV) readHeader() error {
	record, err := c.r.Read()
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	c.cols = make(map[string]int, len(record))
	for i, name := range record {
		c.cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"type", "client", "tx"} {
		if _, ok := c.cols[name]; !ok {
			return fmt.Errorf("%w: missing column %q", ErrBadHeader, name)
		}
	}
	c.header = true
	return nil
}

func (c *CSV) field(record []string, name string) (string, bool) {
	i, ok := c.cols[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

func (c *CSV) parse(record []string) (models.Request, error) {
	var req models.Request

	kind, _ := c.field(record, "type")
	t, err := models.ParseTransactionType(kind)
	if err != nil {
		return req, err
	}
	req.Type = t

	raw, _ := c.field(record, "client")
	client, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return req, fmt.Errorf("client %q: %w", raw, err)
	}
	req.Client = models.ClientID(client)

	raw, _ = c.field(record, "tx")
	tx, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return req, fmt.Errorf("tx %q: %w", raw, err)
	}
	req.Transaction = models.TransactionID(tx)

	if amount, ok := c.field(record, "amount"); ok && amount != "" {
		req.Amount = amount
		req.HasAmount = true
	}
	return req, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Slice is a RequestSource over an in-memory sequence.
type Slice struct {
	reqs []models.Request
}

// NewSlice returns a source yielding reqs in order.
func NewSlice(reqs ...models.Request) *Slice {
	return &Slice{reqs: reqs}
}

// Next returns the next request, or io.EOF once reqs are exhausted.
func (s *Slice) Next() (models.Request, error) {
	if len(s.reqs) == 0 {
		return models.Request{}, io.EOF
	}
	req := s.reqs[0]
	s.reqs = s.reqs[1:]
	return req, nil
}
