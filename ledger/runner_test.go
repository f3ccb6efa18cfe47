package ledger_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arkantrust/payments-engine/ledger"
	"github.com/arkantrust/payments-engine/models"
)

type sliceSource struct {
	reqs []models.Request
	err  error
}

func (s *sliceSource) Next() (models.Request, error) {
	if len(s.reqs) == 0 {
		if s.err != nil {
			return models.Request{}, s.err
		}
		return models.Request{}, io.EOF
	}
	req := s.reqs[0]
	s.reqs = s.reqs[1:]
	return req, nil
}

func TestRunnerKeepsPerClientOrder(t *testing.T) {
	h := newHarness(t)
	const clients, rounds = 32, 25

	// Each round deposits, disputes and resolves a fresh transaction. Any
	// reordering within a client turns into a rejection.
	var reqs []models.Request
	for r := 0; r < rounds; r++ {
		for c := 1; c <= clients; c++ {
			id := models.TransactionID(r*clients + c)
			client := models.ClientID(c)
			reqs = append(reqs,
				deposit(client, id, "1.25"),
				ref(models.Dispute, client, id),
				ref(models.Resolve, client, id),
			)
		}
	}

	var results []ledger.Result
	summary, err := ledger.NewRunner(h.p, 4, nil).Run(context.Background(), &sliceSource{reqs: reqs}, func(res ledger.Result) {
		results = append(results, res)
	})
	require.NoError(t, err)

	assert.Equal(t, len(reqs), summary.Applied)
	assert.Zero(t, summary.Rejected)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, len(reqs), summary.Total())
	require.Len(t, results, len(reqs))

	lastSeq := map[models.ClientID]uint64{}
	for _, res := range results {
		assert.Greater(t, res.Seq, lastSeq[res.Request.Client], "client %d out of order", res.Request.Client)
		lastSeq[res.Request.Client] = res.Seq
	}

	accounts, err := h.accounts.List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, clients)
	for _, acc := range accounts {
		assertBalances(t, acc, "31.2500", "0.0000", "31.2500", false)
	}
}

func TestRunnerCountsOutcomes(t *testing.T) {
	h := newHarness(t)
	src := &sliceSource{reqs: []models.Request{
		deposit(1, 1, "10"),
		deposit(1, 1, "10"),
		deposit(2, 2, "1.00001"),
		ref(models.Dispute, 1, 1),
		ref(models.Chargeback, 1, 1),
		withdrawal(1, 3, "1"),
	}}

	summary, err := ledger.NewRunner(h.p, 2, nil).Run(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, ledger.Summary{Applied: 3, Rejected: 3}, summary)
	assertBalances(t, h.account(t, 1), "0.0000", "0.0000", "0.0000", true)
}

func TestRunnerReturnsSourceError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")
	src := &sliceSource{reqs: []models.Request{deposit(1, 1, "2"), deposit(2, 2, "3")}, err: boom}

	core, logs := observer.New(zapcore.InfoLevel)
	summary, err := ledger.NewRunner(h.p, 3, zap.New(core)).Run(context.Background(), src, nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "read request 3")

	// Requests read before the failure still complete.
	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, "2.0000", h.account(t, 1).Available.String())
	assert.Equal(t, 1, logs.FilterMessage("run finished").Len())
}

func TestRunnerStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &sliceSource{reqs: make([]models.Request, 1000)}
	summary, err := ledger.NewRunner(h.p, 1, nil).Run(ctx, src, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, summary.Total(), 1000)
}
