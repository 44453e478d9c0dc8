// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package runtime hosts programs and executes transactions against a
// database with all-or-nothing semantics.
//
// Transactions are executed one at a time. Every write made by a transaction
// is buffered and either committed as a single batch or discarded when any
// instruction fails.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database"
	log "github.com/luxfi/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/modules"
	"github.com/luxfi/swapvault/state"
)

const (
	// DefaultComputeBudget is the number of compute units a transaction may
	// consume.
	DefaultComputeBudget uint64 = 200_000

	// MaxInvokeDepth bounds nested program invocations, counting the
	// top-level instruction.
	MaxInvokeDepth = 4

	// InvokeUnits is charged for every program invocation.
	InvokeUnits uint64 = 1_000

	meterName = "github.com/luxfi/swapvault/runtime"
)

// Errors
var (
	ErrProgramNotFound        = errors.New("program not found")
	ErrMaxDepth               = errors.New("max invoke depth exceeded")
	ErrComputeBudgetExceeded  = errors.New("compute budget exceeded")
	ErrMissingSignature       = errors.New("missing required signature")
	ErrEmptyTransaction       = errors.New("transaction has no instructions")
	ErrInvalidAccounts        = errors.New("invalid account list")
	errInvalidInstructionData = errors.New("invalid instruction data")
)

// Transaction is an ordered list of instructions signed by Signers.
type Transaction struct {
	Signers      []solana.PublicKey
	Instructions []solana.Instruction
}

// Result describes a committed transaction.
type Result struct {
	UnitsConsumed uint64
	Writes        int
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithClock sets the clock sampled once per transaction.
func WithClock(clock func() time.Time) Option {
	return func(r *Runtime) {
		r.clock = clock
	}
}

// WithLogger sets the logger handed to programs.
func WithLogger(logger log.Logger) Option {
	return func(r *Runtime) {
		r.log = logger
	}
}

// WithComputeBudget sets the per-transaction compute budget.
func WithComputeBudget(units uint64) Option {
	return func(r *Runtime) {
		r.budget = units
	}
}

// WithMeter sets the meter transaction metrics are recorded with.
func WithMeter(meter metric.Meter) Option {
	return func(r *Runtime) {
		r.meter = meter
	}
}

// Runtime executes transactions against programs from a registry.
type Runtime struct {
	mu sync.Mutex

	db       database.Database
	registry *modules.Registry
	clock    func() time.Time
	log      log.Logger
	budget   uint64
	meter    metric.Meter
	metrics  *metrics
}

// New returns a runtime over db hosting the programs in registry.
func New(db database.Database, registry *modules.Registry, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		db:       db,
		registry: registry,
		clock:    time.Now,
		budget:   DefaultComputeBudget,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = log.NewTestLogger(log.InfoLevel)
	}
	if r.meter == nil {
		r.meter = otel.Meter(meterName)
	}

	m, err := newMetrics(r.meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	r.metrics = m
	return r, nil
}

// Execute runs tx. Either every instruction succeeds and all writes are
// committed, or the first error is returned and no write is kept.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tx == nil || len(tx.Instructions) == 0 {
		return nil, ErrEmptyTransaction
	}

	store := state.New(r.db)
	txc := &txContext{
		store:    store,
		registry: r.registry,
		now:      r.clock(),
		log:      r.log,
		signers:  contract.NewSignerSet(tx.Signers...),
		budget:   r.budget,
	}

	err := r.run(txc, tx)
	writes := store.Dirty()
	if err == nil {
		err = store.Commit()
	}
	r.metrics.record(ctx, len(tx.Instructions), txc.used, err)
	if err != nil {
		store.Discard()
		r.log.Debug("transaction reverted", "units", txc.used, "err", err)
		return nil, err
	}
	return &Result{UnitsConsumed: txc.used, Writes: writes}, nil
}

func (r *Runtime) run(txc *txContext, tx *Transaction) error {
	for i, ix := range tx.Instructions {
		data, err := ix.Data()
		if err != nil {
			return fmt.Errorf("instruction %d: %w: %w", i, errInvalidInstructionData, err)
		}
		if err := txc.invoke(0, txc.signers, ix.ProgramID(), ix.Accounts(), data); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}
	return nil
}

// View runs fn against a read view of the committed state. Writes made by
// fn are discarded.
func (r *Runtime) View(fn func(contract.StateDB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store := state.New(r.db)
	defer store.Discard()
	return fn(store)
}

// Update runs fn against the committed state and commits its writes if fn
// succeeds. It bypasses programs and is meant for genesis allocation.
func (r *Runtime) Update(fn func(contract.StateDB) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store := state.New(r.db)
	if err := fn(store); err != nil {
		store.Discard()
		return err
	}
	return store.Commit()
}
