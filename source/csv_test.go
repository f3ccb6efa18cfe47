package source_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkantrust/payments-engine/models"
	"github.com/arkantrust/payments-engine/source"
)

func drain(t *testing.T, src interface {
	Next() (models.Request, error)
}) []models.Request {
	t.Helper()
	var out []models.Request
	for {
		req, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, req)
	}
}

func TestCSVReadsRequests(t *testing.T) {
	input := `type, client, tx, amount
deposit, 1, 1, 1.0
withdrawal,2,5,  3.1234
 Dispute , 1, 1,
resolve, 1, 1
chargeback, 1, 1, `

	reqs := drain(t, source.NewCSV(strings.NewReader(input)))
	require.Len(t, reqs, 5)

	assert.Equal(t, models.Request{Type: models.Deposit, Client: 1, Transaction: 1, Amount: "1.0", HasAmount: true}, reqs[0])
	assert.Equal(t, models.Request{Type: models.Withdrawal, Client: 2, Transaction: 5, Amount: "3.1234", HasAmount: true}, reqs[1])
	assert.Equal(t, models.Request{Type: models.Dispute, Client: 1, Transaction: 1}, reqs[2])
	assert.Equal(t, models.Request{Type: models.Resolve, Client: 1, Transaction: 1}, reqs[3])
	assert.Equal(t, models.Request{Type: models.Chargeback, Client: 1, Transaction: 1}, reqs[4])
}

func TestCSVColumnOrder(t *testing.T) {
	input := "client,amount,tx,type\n7,2.5,9,deposit\n"
	reqs := drain(t, source.NewCSV(strings.NewReader(input)))
	require.Len(t, reqs, 1)
	assert.Equal(t, models.Request{Type: models.Deposit, Client: 7, Transaction: 9, Amount: "2.5", HasAmount: true}, reqs[0])
}

func TestCSVKeepsRawAmount(t *testing.T) {
	// Precision is judged by the processor, not the reader.
	reqs := drain(t, source.NewCSV(strings.NewReader("type,client,tx,amount\ndeposit,1,1,0.00001\n")))
	require.Len(t, reqs, 1)
	assert.Equal(t, "0.00001", reqs[0].Amount)
}

func TestCSVRowErrors(t *testing.T) {
	input := `type,client,tx,amount
deposit,1,1,1
transfer,1,2,1
deposit,70000,3,1
deposit,1,-4,1
deposit,1,5,2
`
	t.Run("returned", func(t *testing.T) {
		src := source.NewCSV(strings.NewReader(input))
		_, err := src.Next()
		require.NoError(t, err)

		_, err = src.Next()
		var rerr *source.RowError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, 3, rerr.Line)
	})

	t.Run("skipped", func(t *testing.T) {
		var lines []int
		src := source.NewCSV(strings.NewReader(input), source.WithRowErrorHandler(func(e *source.RowError) {
			lines = append(lines, e.Line)
		}))

		reqs := drain(t, src)
		require.Len(t, reqs, 2)
		assert.Equal(t, models.TransactionID(5), reqs[1].Transaction)
		assert.Equal(t, []int{3, 4, 5}, lines)
	})
}

func TestCSVBadHeader(t *testing.T) {
	_, err := source.NewCSV(strings.NewReader("kind,client,tx\ndeposit,1,1\n")).Next()
	assert.ErrorIs(t, err, source.ErrBadHeader)

	_, err = source.NewCSV(strings.NewReader("")).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSlice(t *testing.T) {
	want := []models.Request{
		{Type: models.Deposit, Client: 1, Transaction: 1, Amount: "1", HasAmount: true},
		{Type: models.Dispute, Client: 1, Transaction: 1},
	}
	assert.Equal(t, want, drain(t, source.NewSlice(want...)))
}
