package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arkantrust/payments-engine/models"
)

// RequestSource yields requests in arrival order. Next returns io.EOF once
// the sequence is exhausted. A source is read once.
type RequestSource interface {
	Next() (models.Request, error)
}

// Result pairs a request with its outcome. Seq is the request's position in
// the source, starting at 1.
type Result struct {
	Seq     uint64
	Request models.Request
	Outcome Outcome
}

// Summary counts outcomes by kind.
type Summary struct {
	Applied  int
	Rejected int
	Failed   int
}

// Add counts one outcome.
func (s *Summary) Add(o Outcome) {
	switch o.Kind {
	case KindApplied:
		s.Applied++
	case KindRejected:
		s.Rejected++
	case KindFailed:
		s.Failed++
	}
}

// Total returns the number of processed requests.
func (s Summary) Total() int {
	return s.Applied + s.Rejected + s.Failed
}

const shardBuffer = 64

// Runner feeds a RequestSource through a Processor. Requests are sharded by
// client id over a fixed set of workers: each client always lands on the same
// worker, so its requests are processed in source order while different
// clients proceed in parallel.
type Runner struct {
	processor *Processor
	workers   int
	logger    *zap.Logger
}

// NewRunner returns a Runner with the given number of workers (at least 1).
func NewRunner(p *Processor, workers int, logger *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{processor: p, workers: workers, logger: logger}
}

// Run drains src. sink, if non-nil, receives every result; calls to sink are
// serialised. Request-level failures never stop the run; only a source error
// or ctx cancellation does.
func (r *Runner) Run(ctx context.Context, src RequestSource, sink func(Result)) (Summary, error) {
	var (
		mu      sync.Mutex
		summary Summary
	)
	deliver := func(res Result) {
		mu.Lock()
		defer mu.Unlock()
		summary.Add(res.Outcome)
		if sink != nil {
			sink(res)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	shards := make([]chan Result, r.workers)
	for i := range shards {
		shards[i] = make(chan Result, shardBuffer)
		shard := shards[i]
		g.Go(func() error {
			// Queued requests run against ctx rather than gctx so a source
			// error does not fail requests that were already read.
			for job := range shard {
				job.Outcome = r.processor.Process(ctx, job.Request)
				deliver(job)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, shard := range shards {
				close(shard)
			}
		}()

		var seq uint64
		for {
			req, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read request %d: %w", seq+1, err)
			}
			seq++

			select {
			case shards[int(req.Client)%r.workers] <- Result{Seq: seq, Request: req}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	err := g.Wait()
	mu.Lock()
	defer mu.Unlock()
	r.logger.Info("run finished",
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("failed", summary.Failed),
	)
	return summary, err
}
