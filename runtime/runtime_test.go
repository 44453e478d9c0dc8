// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/modules"
)

var errBoom = errors.New("boom")

// programFunc adapts a function to contract.Program.
type programFunc func(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error

func (f programFunc) Execute(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	return f(env, accounts, data)
}

var (
	slotA = common.Hash{1}
	slotB = common.Hash{2}
	one   = common.Hash{31: 1}
)

func writer(slot common.Hash) programFunc {
	return func(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
		env.StateDB().SetState(slot, one)
		return nil
	}
}

func failing(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
	env.StateDB().SetState(slotB, one)
	return errBoom
}

func newTestRuntime(t *testing.T, programs map[solana.PublicKey]contract.Program, opts ...Option) *Runtime {
	registry := modules.NewRegistry()
	i := 0
	for id, p := range programs {
		require.NoError(t, registry.Register(modules.Module{Name: string(rune('a' + i)), ProgramID: id, Program: p}))
		i++
	}
	rt, err := New(memdb.New(), registry, opts...)
	require.NoError(t, err)
	return rt
}

func ix(programID solana.PublicKey, accounts ...*solana.AccountMeta) solana.Instruction {
	return solana.NewInstruction(programID, accounts, nil)
}

func readSlot(t *testing.T, rt *Runtime, slot common.Hash) common.Hash {
	var v common.Hash
	require.NoError(t, rt.View(func(state contract.StateDB) error {
		v = state.GetState(slot)
		return nil
	}))
	return v
}

func TestExecuteCommits(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	rt := newTestRuntime(t, map[solana.PublicKey]contract.Program{a: writer(slotA)})

	res, err := rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(a)}})
	require.NoError(t, err)
	require.Equal(t, InvokeUnits, res.UnitsConsumed)
	require.Equal(t, 1, res.Writes)
	require.Equal(t, one, readSlot(t, rt, slotA))
}

func TestExecuteRevertsWholeTransaction(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	rt := newTestRuntime(t, map[solana.PublicKey]contract.Program{
		a: writer(slotA),
		b: programFunc(failing),
	})

	_, err := rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(a), ix(b)}})
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, common.Hash{}, readSlot(t, rt, slotA))
	require.Equal(t, common.Hash{}, readSlot(t, rt, slotB))
}

func TestExecuteErrors(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()
	rt := newTestRuntime(t, map[solana.PublicKey]contract.Program{a: writer(slotA)})

	_, err := rt.Execute(context.Background(), &Transaction{})
	require.ErrorIs(t, err, ErrEmptyTransaction)

	_, err = rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(solana.NewWallet().PublicKey())}})
	require.ErrorIs(t, err, ErrProgramNotFound)

	_, err = rt.Execute(context.Background(), &Transaction{
		Instructions: []solana.Instruction{ix(a, solana.Meta(user).SIGNER())},
	})
	require.ErrorIs(t, err, ErrMissingSignature)

	_, err = rt.Execute(context.Background(), &Transaction{
		Signers:      []solana.PublicKey{user},
		Instructions: []solana.Instruction{ix(a, solana.Meta(user).SIGNER())},
	})
	require.NoError(t, err)

	_, err = rt.Execute(context.Background(), &Transaction{
		Signers:      []solana.PublicKey{user},
		Instructions: []solana.Instruction{ix(a, solana.Meta(user).SIGNER(), nil)},
	})
	require.ErrorIs(t, err, ErrInvalidAccounts)
	require.Equal(t, common.Hash{}, readSlot(t, rt, slotA))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rt.Execute(ctx, &Transaction{Instructions: []solana.Instruction{ix(a)}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestInvokeGrantsSigners(t *testing.T) {
	caller := solana.NewWallet().PublicKey()
	callee := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()
	pda := solana.NewWallet().PublicKey()

	var granted contract.Authority
	programs := map[solana.PublicKey]contract.Program{
		caller: programFunc(func(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
			// Signing for pda requires the extra authority.
			err := env.Invoke(callee, []*solana.AccountMeta{solana.Meta(pda).SIGNER()}, nil)
			if !errors.Is(err, ErrMissingSignature) {
				return errors.New("expected missing signature")
			}
			return env.Invoke(callee, []*solana.AccountMeta{solana.Meta(pda).SIGNER()}, nil, contract.NewSignerSet(pda))
		}),
		callee: programFunc(func(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
			granted = env.Authority()
			return nil
		}),
	}
	rt := newTestRuntime(t, programs)

	_, err := rt.Execute(context.Background(), &Transaction{
		Signers:      []solana.PublicKey{user},
		Instructions: []solana.Instruction{ix(caller, solana.Meta(user).SIGNER())},
	})
	require.NoError(t, err)
	require.True(t, granted.Authorizes(pda))
	require.False(t, granted.Authorizes(user))
}

func TestInvokeRejectsNilAccount(t *testing.T) {
	caller := solana.NewWallet().PublicKey()
	callee := solana.NewWallet().PublicKey()
	var called bool
	rt := newTestRuntime(t, map[solana.PublicKey]contract.Program{
		caller: programFunc(func(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
			return env.Invoke(callee, []*solana.AccountMeta{solana.Meta(callee), nil}, nil)
		}),
		callee: programFunc(func(contract.Environment, []*solana.AccountMeta, []byte) error {
			called = true
			return nil
		}),
	})

	_, err := rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(caller)}})
	require.ErrorIs(t, err, ErrInvalidAccounts)
	require.False(t, called)
}

func TestInvokeDepthAndBudget(t *testing.T) {
	self := solana.NewWallet().PublicKey()
	var depth int
	rt := newTestRuntime(t, map[solana.PublicKey]contract.Program{
		self: programFunc(func(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
			depth++
			return env.Invoke(self, nil, nil)
		}),
	})
	_, err := rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(self)}})
	require.ErrorIs(t, err, ErrMaxDepth)
	require.Equal(t, MaxInvokeDepth, depth)

	hungry := solana.NewWallet().PublicKey()
	rt = newTestRuntime(t, map[solana.PublicKey]contract.Program{
		hungry: programFunc(func(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
			env.StateDB().SetState(slotA, one)
			return env.ConsumeUnits(DefaultComputeBudget)
		}),
	})
	_, err = rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(hungry)}})
	require.ErrorIs(t, err, ErrComputeBudgetExceeded)
	require.Equal(t, common.Hash{}, readSlot(t, rt, slotA))
}

func TestExecuteUsesClock(t *testing.T) {
	a := solana.NewWallet().PublicKey()
	want := time.Unix(1_700_000_000, 0)
	var got time.Time
	rt := newTestRuntime(t, map[solana.PublicKey]contract.Program{
		a: programFunc(func(env contract.Environment, _ []*solana.AccountMeta, _ []byte) error {
			got = env.Now()
			return nil
		}),
	}, WithClock(func() time.Time { return want }))

	_, err := rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(a)}})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestUpdateAndView(t *testing.T) {
	rt := newTestRuntime(t, nil)

	require.ErrorIs(t, rt.Update(func(state contract.StateDB) error {
		state.SetState(slotA, one)
		return errBoom
	}), errBoom)
	require.Equal(t, common.Hash{}, readSlot(t, rt, slotA))

	require.NoError(t, rt.Update(func(state contract.StateDB) error {
		state.SetState(slotA, one)
		return nil
	}))
	require.Equal(t, one, readSlot(t, rt, slotA))

	// Writes made in a view are dropped.
	require.NoError(t, rt.View(func(state contract.StateDB) error {
		state.SetState(slotB, one)
		return nil
	}))
	require.Equal(t, common.Hash{}, readSlot(t, rt, slotB))
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	a := solana.NewWallet().PublicKey()
	b := solana.NewWallet().PublicKey()
	rt := newTestRuntime(t, map[solana.PublicKey]contract.Program{
		a: writer(slotA),
		b: programFunc(failing),
	}, WithMeter(mp.Meter("test")))

	_, err := rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(a)}})
	require.NoError(t, err)
	_, err = rt.Execute(context.Background(), &Transaction{Instructions: []solana.Instruction{ix(b)}})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	require.Equal(t, int64(2), sumOf(t, rm, "swapvault.tx.total"))
	require.Equal(t, int64(1), sumOf(t, rm, "swapvault.tx.reverted"))

	units := findMetric(rm, "swapvault.tx.units")
	require.NotNil(t, units)
	hist, ok := units.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	require.Equal(t, uint64(2), count)
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	m := findMetric(rm, name)
	require.NotNil(t, m, name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}
