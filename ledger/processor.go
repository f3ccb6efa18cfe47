// Package ledger applies transaction requests to client accounts.
//
// The Processor owns the transaction state machine:
//
//	Deposit     create Normal record   available += amount
//	Withdrawal  create Normal record   available -= amount (may go negative; refused when locked)
//	Dispute     Normal -> Disputed     available -= amount, held += amount
//	Resolve     Disputed -> Normal     available += amount, held -= amount
//	Chargeback  Disputed -> ChargedBack  held -= amount, account locked
//
// Every request runs under one event of the client's chain: begin (taking the
// client lock), validate, stage the status change and account delta, complete,
// commit. Nothing staged is visible until the event completes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/arkantrust/payments-engine/models"
	"github.com/arkantrust/payments-engine/store"
)

// Processor validates and applies requests. It is safe for concurrent use;
// requests of one client are serialised by the event log's client lock.
type Processor struct {
	txs      store.TransactionStore
	accounts store.AccountStore
	events   store.EventLog
	logger   *zap.Logger

	mu     sync.Mutex
	halted map[models.ClientID]error
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProcessor returns a Processor over the given stores.
func NewProcessor(txs store.TransactionStore, accounts store.AccountStore, events store.EventLog, opts ...Option) *Processor {
	p := &Processor{
		txs:      txs,
		accounts: accounts,
		events:   events,
		logger:   zap.NewNop(),
		halted:   make(map[models.ClientID]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// plan records what a validated request staged.
type plan struct {
	commitTx bool
}

// Process handles one request and reports its outcome. It never panics on
// bad input and never leaves a client lock held.
func (p *Processor) Process(ctx context.Context, req models.Request) Outcome {
	out := p.process(ctx, req)
	p.logOutcome(req, out)
	return out
}

func (p *Processor) process(ctx context.Context, req models.Request) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	amount, err := checkShape(req)
	if err != nil {
		return Rejected(err)
	}
	if err := p.haltedErr(req.Client); err != nil {
		return Failed(err)
	}

	ev, err := p.events.BeginEvent(ctx, req.Client, req.Transaction, models.Mutation{Kind: req.Type, Amount: amount})
	if err != nil {
		return Failed(fmt.Errorf("begin event: %w", err))
	}

	// The chain may have been halted while this request waited for the lock.
	if err := p.haltedErr(req.Client); err != nil {
		p.abort(ctx, ev)
		return Failed(err)
	}

	pl, err := p.apply(ctx, req, amount, ev)
	switch out := Classify(err); out.Kind {
	case KindApplied:
	case KindRejected:
		// Rejections happen before the first write, so the event completes
		// with nothing staged.
		if cerr := p.events.CompleteEvent(ctx, ev); cerr != nil {
			p.logger.Error("complete event for rejected request", zap.Stringer("event", ev), zap.Error(cerr))
			p.abort(ctx, ev)
		}
		return out
	default:
		p.abort(ctx, ev)
		if errors.Is(err, store.ErrIntegrityViolation) {
			p.halt(req.Client, err)
		}
		return out
	}

	if err := p.events.CompleteEvent(ctx, ev); err != nil {
		p.abort(ctx, ev)
		return Failed(fmt.Errorf("complete event %s: %w", ev, err))
	}

	p.commit(ctx, req, ev, pl)
	return Applied()
}

// checkShape validates a request on its own, before any store is consulted,
// and returns its parsed amount.
func checkShape(req models.Request) (models.Amount, error) {
	if _, err := req.Type.MarshalText(); err != nil {
		return models.Zero, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	if !req.Type.CarriesAmount() {
		if req.HasAmount && strings.TrimSpace(req.Amount) != "" {
			return models.Zero, fmt.Errorf("%w: %s must not carry an amount", ErrMalformedRequest, req.Type)
		}
		return models.Zero, nil
	}

	if !req.HasAmount {
		return models.Zero, fmt.Errorf("%w: %s without amount", ErrMalformedRequest, req.Type)
	}
	amount, err := models.ParseAmount(req.Amount)
	if err != nil {
		if errors.Is(err, models.ErrPrecisionAnomaly) {
			return models.Zero, err
		}
		return models.Zero, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if !amount.IsPositive() {
		return models.Zero, fmt.Errorf("%w: %s amount must be positive, got %s", ErrMalformedRequest, req.Type, amount)
	}
	return amount, nil
}

// apply validates the request against the stores and stages its effects.
// Every check that can reject runs before the first write.
func (p *Processor) apply(ctx context.Context, req models.Request, amount models.Amount, ev models.EventID) (plan, error) {
	acc, err := p.load(ctx, req.Client)
	if err != nil {
		return plan{}, err
	}

	switch req.Type {
	case models.Deposit:
		return p.create(ctx, req, amount, amount, ev)

	case models.Withdrawal:
		if acc.Locked {
			return plan{}, fmt.Errorf("%w: client %d", ErrAccountLocked, req.Client)
		}
		return p.create(ctx, req, amount, amount.Neg(), ev)

	case models.Dispute:
		tx, err := p.referenced(ctx, req)
		if err != nil {
			return plan{}, err
		}
		if tx.Type != models.Deposit {
			return plan{}, fmt.Errorf("%w: only deposits can be disputed, tx %d is a %s", ErrInvalidTransition, tx.ID, tx.Type)
		}
		if tx.Status != models.Normal {
			return plan{}, fmt.Errorf("%w: dispute of %s tx %d", ErrInvalidTransition, tx.Status, tx.ID)
		}
		return p.transition(ctx, tx, models.Disputed, tx.Amount.Neg(), tx.Amount, false, ev)

	case models.Resolve:
		tx, err := p.referenced(ctx, req)
		if err != nil {
			return plan{}, err
		}
		if tx.Status != models.Disputed {
			return plan{}, fmt.Errorf("%w: resolve of %s tx %d", ErrInvalidTransition, tx.Status, tx.ID)
		}
		return p.transition(ctx, tx, models.Normal, tx.Amount, tx.Amount.Neg(), false, ev)

	case models.Chargeback:
		tx, err := p.referenced(ctx, req)
		if err != nil {
			return plan{}, err
		}
		if tx.Status != models.Disputed {
			return plan{}, fmt.Errorf("%w: chargeback of %s tx %d", ErrInvalidTransition, tx.Status, tx.ID)
		}
		return p.transition(ctx, tx, models.ChargedBack, models.Zero, tx.Amount.Neg(), true, ev)
	}

	return plan{}, fmt.Errorf("%w: type %s", ErrMalformedRequest, req.Type)
}

// create records a deposit or withdrawal and stages its effect on available
// funds.
func (p *Processor) create(ctx context.Context, req models.Request, amount, delta models.Amount, ev models.EventID) (plan, error) {
	tx := models.Transaction{ID: req.Transaction, Type: req.Type, Client: req.Client, Amount: amount}
	if err := p.txs.RecordNew(ctx, tx, ev); err != nil {
		return plan{}, err
	}
	if err := p.accounts.ApplyDelta(ctx, req.Client, delta, models.Zero, ev); err != nil {
		return plan{}, err
	}
	return plan{}, nil
}

// transition stages a dispute status change and its account effect.
func (p *Processor) transition(ctx context.Context, tx models.Transaction, to models.DisputeStatus, available, held models.Amount, lock bool, ev models.EventID) (plan, error) {
	if err := p.txs.ProposeStatus(ctx, tx.ID, to, ev); err != nil {
		return plan{}, err
	}
	if err := p.accounts.ApplyDelta(ctx, tx.Client, available, held, ev); err != nil {
		return plan{}, err
	}
	if lock {
		if err := p.accounts.SetLocked(ctx, tx.Client, true, ev); err != nil {
			return plan{}, err
		}
	}
	return plan{commitTx: true}, nil
}

// referenced looks up the transaction a dispute, resolve or chargeback
// points at.
func (p *Processor) referenced(ctx context.Context, req models.Request) (models.Transaction, error) {
	tx, err := p.txs.Lookup(ctx, req.Transaction)
	if err != nil {
		return models.Transaction{}, err
	}
	if tx.Client != req.Client {
		return models.Transaction{}, fmt.Errorf("%w: tx %d is owned by client %d, not %d", ErrClientMismatch, tx.ID, tx.Client, req.Client)
	}
	return tx, nil
}

// load reads an account and checks the invariants the state machine relies
// on.
func (p *Processor) load(ctx context.Context, client models.ClientID) (models.Account, error) {
	acc, err := p.accounts.Load(ctx, client)
	if err != nil {
		return models.Account{}, fmt.Errorf("load account %d: %w", client, err)
	}
	if acc.Held.IsNegative() {
		return models.Account{}, fmt.Errorf("%w: client %d holds %s", store.ErrIntegrityViolation, client, acc.Held)
	}
	return acc, nil
}

// commit promotes what the completed event staged. The event is already Done,
// so readers see the change even when a commit fails; failures are logged
// and the next write on the record settles it. ErrInvalidCommit here means a
// later event of the same chain already settled the proposal.
func (p *Processor) commit(ctx context.Context, req models.Request, ev models.EventID, pl plan) {
	if pl.commitTx {
		err := p.txs.CommitStatus(ctx, req.Transaction, ev)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrInvalidCommit):
			p.logger.Debug("transaction status already settled", zap.Uint32("tx", uint32(req.Transaction)), zap.Stringer("event", ev))
		default:
			p.logger.Warn("commit transaction status", zap.Uint32("tx", uint32(req.Transaction)), zap.Stringer("event", ev), zap.Error(err))
		}
	}
	if err := p.accounts.CommitAccount(ctx, req.Client, ev); err != nil {
		p.logger.Warn("commit account", zap.Uint16("client", uint16(req.Client)), zap.Stringer("event", ev), zap.Error(err))
	}
}

func (p *Processor) abort(ctx context.Context, ev models.EventID) {
	// The lock must be released even when ctx is already done.
	if err := p.events.AbortEvent(context.WithoutCancel(ctx), ev); err != nil {
		p.logger.Error("abort event", zap.Stringer("event", ev), zap.Error(err))
	}
}

func (p *Processor) halt(client models.ClientID, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.halted[client]; !ok {
		p.halted[client] = cause
		p.logger.Error("halting client chain", zap.Uint16("client", uint16(client)), zap.Error(cause))
	}
}

func (p *Processor) haltedErr(client models.ClientID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cause, ok := p.halted[client]; ok {
		return fmt.Errorf("%w: client %d: %v", ErrClientHalted, client, cause)
	}
	return nil
}

// Halted reports whether the client's chain was stopped.
func (p *Processor) Halted(client models.ClientID) bool {
	return p.haltedErr(client) != nil
}

func (p *Processor) logOutcome(req models.Request, out Outcome) {
	fields := []zap.Field{
		zap.String("type", req.Type.String()),
		zap.Uint16("client", uint16(req.Client)),
		zap.Uint32("tx", uint32(req.Transaction)),
	}

	switch out.Kind {
	case KindApplied:
		p.logger.Debug("request applied", fields...)
	case KindRejected:
		fields = append(fields, zap.Error(out.Err))
		if errors.Is(out.Err, models.ErrPrecisionAnomaly) {
			p.logger.Warn("request rejected: precision anomaly", fields...)
			return
		}
		p.logger.Info("request rejected", fields...)
	case KindFailed:
		p.logger.Error("request failed", append(fields, zap.Error(out.Err))...)
	}
}
