// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database/memdb"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/swapvault/acl"
	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/executor"
	"github.com/luxfi/swapvault/modules"
	"github.com/luxfi/swapvault/runtime"
	"github.com/luxfi/swapvault/sim"
	"github.com/luxfi/swapvault/swap"
	"github.com/luxfi/swapvault/token"
	"github.com/luxfi/swapvault/vault"
)

type testEnv struct {
	t   *testing.T
	cfg Config
	rt  *runtime.Runtime
	now time.Time

	bootstrap solana.PublicKey
	admin     solana.PublicKey
	owner     solana.PublicKey
}

func newTestEnv(t *testing.T, enforceExecutors bool) *testEnv {
	e := &testEnv{
		t:         t,
		now:       time.Unix(1_700_000_000, 0),
		bootstrap: solana.NewWallet().PublicKey(),
		admin:     solana.NewWallet().PublicKey(),
		owner:     solana.NewWallet().PublicKey(),
	}
	e.cfg = Config{
		ProgramID:          solana.NewWallet().PublicKey(),
		RouterProgramID:    solana.NewWallet().PublicKey(),
		BootstrapAuthority: e.bootstrap,
		EnforceExecutors:   enforceExecutors,
	}
	p, err := New(e.cfg)
	require.NoError(t, err)

	registry := modules.NewRegistry()
	require.NoError(t, registry.Register(p.Module()))
	require.NoError(t, registry.Register(modules.Module{
		Name:      "router",
		ProgramID: e.cfg.RouterProgramID,
		Program:   sim.NewRouter(e.cfg.RouterProgramID),
	}))

	e.rt, err = runtime.New(memdb.New(), registry, runtime.WithClock(func() time.Time { return e.now }))
	require.NoError(t, err)
	return e
}

// send executes instruction signed by every account it marks as signer.
func (e *testEnv) send(instruction *solana.GenericInstruction, err error) error {
	require.NoError(e.t, err)
	var signers []solana.PublicKey
	for _, acc := range instruction.AccountValues {
		if acc.IsSigner {
			signers = append(signers, acc.PublicKey)
		}
	}
	_, err = e.rt.Execute(context.Background(), &runtime.Transaction{
		Signers:      signers,
		Instructions: []solana.Instruction{instruction},
	})
	return err
}

// bootstrap initializes the config and the access control table.
func (e *testEnv) bootstrapProgram() {
	id := e.cfg.ProgramID
	require.NoError(e.t, e.send(NewInitializeConfigInstruction(id, e.bootstrap, e.admin)))
	require.NoError(e.t, e.send(NewInitializeAccessControlInstruction(id, e.admin, e.owner)))
}

func (e *testEnv) view(fn func(state contract.StateDB)) {
	require.NoError(e.t, e.rt.View(func(state contract.StateDB) error {
		fn(state)
		return nil
	}))
}

func (e *testEnv) balance(addr solana.PublicKey) uint64 {
	var amount uint64
	require.NoError(e.t, e.rt.View(func(state contract.StateDB) error {
		var err error
		amount, err = token.NewLedger(state).Balance(addr)
		return err
	}))
	return amount
}

type market struct {
	user    solana.PublicKey
	inMint  solana.PublicKey
	outMint solana.PublicKey
	userIn  solana.PublicKey
	pool    sim.Pool
}

func (e *testEnv) openMarket(userBalance uint64) market {
	m := market{
		user:    solana.NewWallet().PublicKey(),
		inMint:  solana.NewWallet().PublicKey(),
		outMint: solana.NewWallet().PublicKey(),
	}
	require.NoError(e.t, e.rt.Update(func(state contract.StateDB) error {
		var err error
		m.pool, err = sim.OpenPool(state, e.cfg.RouterProgramID, m.inMint, m.outMint, 10_000_000)
		if err != nil {
			return err
		}
		m.userIn, err = sim.Fund(state, m.user, m.inMint, userBalance)
		return err
	}))
	return m
}

// swapInstruction approves the vault and builds a swap the router fills at
// amountIn -> quoteOut.
func (e *testEnv) swapInstruction(m market, submitter solana.PublicKey, amountIn, quoteOut, minOut uint64) (*solana.GenericInstruction, vault.Vault) {
	deadline := e.now.Unix() + 60
	v, _, err := vault.Derive(e.cfg.ProgramID, vault.Params{
		InputMint:    m.inMint,
		OutputMint:   m.outMint,
		User:         m.user,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		Deadline:     deadline,
	})
	require.NoError(e.t, err)
	require.NoError(e.t, e.rt.Update(func(state contract.StateDB) error {
		return token.NewLedger(state).Approve(m.userIn, v.Address, amountIn, contract.NewSignerSet(m.user))
	}))

	payload, err := sim.Quote{AmountIn: amountIn, AmountOut: quoteOut}.Encode()
	require.NoError(e.t, err)
	instruction, err := NewSwapInstruction(e.cfg.ProgramID, SwapAccounts{
		InputMint:      m.inMint,
		OutputMint:     m.outMint,
		User:           m.user,
		Submitter:      submitter,
		Router:         e.cfg.RouterProgramID,
		RouterAccounts: m.pool.Accounts(v.Address, v.InputHolding, v.OutputHolding),
	}, SwapArgs{
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		Deadline:     deadline,
		Payload:      payload,
	})
	require.NoError(e.t, err)
	return instruction, v
}

func TestBootstrap(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, false)
	id := e.cfg.ProgramID
	stranger := solana.NewWallet().PublicKey()

	err := e.send(NewInitializeAccessControlInstruction(id, e.admin, e.owner))
	require.ErrorIs(err, ErrConfigNotInitialized)

	err = e.send(NewInitializeConfigInstruction(id, stranger, e.admin))
	require.ErrorIs(err, ErrUnauthorized)

	require.NoError(e.send(NewInitializeConfigInstruction(id, e.bootstrap, e.admin)))
	err = e.send(NewInitializeConfigInstruction(id, e.bootstrap, e.admin))
	require.ErrorIs(err, ErrConfigInitialized)

	err = e.send(NewInitializeAccessControlInstruction(id, stranger, e.owner))
	require.ErrorIs(err, ErrUnauthorized)

	require.NoError(e.send(NewInitializeAccessControlInstruction(id, e.admin, e.owner)))
	err = e.send(NewInitializeAccessControlInstruction(id, e.admin, e.owner))
	require.ErrorIs(err, acl.ErrAlreadyInitialized)

	e.view(func(state contract.StateDB) {
		admin, ok := Admin(state)
		require.True(ok)
		require.Equal(e.admin, admin)
		owner, err := acl.NewTable(state).Owner()
		require.NoError(err)
		require.Equal(e.owner, owner)
	})
}

func TestSetRoleInstructions(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, false)
	e.bootstrapProgram()
	id := e.cfg.ProgramID
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	require.NoError(e.send(NewSetRoleInstruction(id, e.owner, alice, acl.RoleAdmin, true)))
	require.NoError(e.send(NewSetRoleInstruction(id, alice, bob, acl.RoleExecutor, true)))

	err := e.send(NewSetRoleInstruction(id, alice, bob, acl.RoleAdmin, true))
	require.ErrorIs(err, ErrUnauthorized)
	err = e.send(NewSetRoleInstruction(id, bob, bob, acl.RoleCollector, true))
	require.ErrorIs(err, ErrUnauthorized)
	err = e.send(NewSetRoleInstruction(id, e.owner, bob, acl.RoleExecutor|acl.RoleAdmin, true))
	require.ErrorIs(err, acl.ErrInvalidRole)

	e.view(func(state contract.StateDB) {
		table := acl.NewTable(state)
		require.True(table.HasRole(alice, acl.RoleAdmin))
		require.True(table.HasRole(bob, acl.RoleExecutor))
		require.False(table.HasRole(bob, acl.RoleAdmin))
	})

	require.NoError(e.send(NewSetRoleInstruction(id, alice, bob, acl.RoleExecutor, false)))
	e.view(func(state contract.StateDB) {
		require.False(acl.NewTable(state).HasRole(bob, acl.RoleExecutor))
	})
}

func TestExecutorInstructions(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, false)
	e.bootstrapProgram()
	id := e.cfg.ProgramID
	relayer := solana.NewWallet().PublicKey()
	stranger := solana.NewWallet().PublicKey()

	err := e.send(NewAddExecutorInstruction(id, stranger, relayer))
	require.ErrorIs(err, ErrUnauthorized)

	require.NoError(e.send(NewAddExecutorInstruction(id, e.owner, relayer)))
	err = e.send(NewAddExecutorInstruction(id, e.owner, relayer))
	require.ErrorIs(err, executor.ErrAlreadyExists)

	e.view(func(state contract.StateDB) {
		require.True(executor.NewRegistry(state, acl.NewTable(state)).Contains(relayer))
	})

	require.NoError(e.send(NewRemoveExecutorInstruction(id, e.owner, relayer)))
	err = e.send(NewRemoveExecutorInstruction(id, e.owner, relayer))
	require.ErrorIs(err, executor.ErrNotFound)
}

func TestSwapInstruction(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, false)
	e.bootstrapProgram()
	m := e.openMarket(1_000_000)
	relayer := solana.NewWallet().PublicKey()

	instruction, v := e.swapInstruction(m, relayer, 1_000_000, 950_000, 900_000)
	require.NoError(e.send(instruction, nil))

	userOut, err := token.HoldingAddress(m.user, m.outMint)
	require.NoError(err)
	feeHolding, err := vault.FeeHolding(e.cfg.ProgramID, m.outMint)
	require.NoError(err)

	require.Equal(uint64(940_500), e.balance(userOut))
	require.Equal(uint64(9_500), e.balance(feeHolding))
	require.Equal(uint64(0), e.balance(m.userIn))
	require.Equal(uint64(0), e.balance(v.InputHolding))
	require.Equal(uint64(0), e.balance(v.OutputHolding))
}

func TestSwapInstructionRevertsOnShortfall(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, false)
	e.bootstrapProgram()
	m := e.openMarket(1_000_000)
	relayer := solana.NewWallet().PublicKey()

	instruction, _ := e.swapInstruction(m, relayer, 1_000_000, 800_000, 900_000)
	err := e.send(instruction, nil)
	require.ErrorIs(err, swap.ErrInsufficientOutputAmount)

	require.Equal(uint64(1_000_000), e.balance(m.userIn))
	require.Equal(uint64(10_000_000), e.balance(m.pool.Output))
}

func TestSwapInstructionExpired(t *testing.T) {
	e := newTestEnv(t, false)
	e.bootstrapProgram()
	m := e.openMarket(1_000_000)
	relayer := solana.NewWallet().PublicKey()

	instruction, _ := e.swapInstruction(m, relayer, 1_000_000, 950_000, 900_000)
	e.now = e.now.Add(2 * time.Minute)
	err := e.send(instruction, nil)
	require.ErrorIs(t, err, swap.ErrExpiredOrder)
	require.Equal(t, uint64(1_000_000), e.balance(m.userIn))
}

func TestSwapEnforcesExecutors(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, true)
	e.bootstrapProgram()
	m := e.openMarket(2_000_000)
	relayer := solana.NewWallet().PublicKey()

	instruction, _ := e.swapInstruction(m, relayer, 1_000_000, 950_000, 900_000)
	err := e.send(instruction, nil)
	require.ErrorIs(err, ErrExecutorNotRegistered)

	require.NoError(e.send(NewAddExecutorInstruction(e.cfg.ProgramID, e.owner, relayer)))
	require.NoError(e.send(instruction, nil))
}

func TestWithdrawFees(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, false)
	e.bootstrapProgram()
	m := e.openMarket(1_000_000)
	id := e.cfg.ProgramID
	relayer := solana.NewWallet().PublicKey()
	collector := solana.NewWallet().PublicKey()

	instruction, _ := e.swapInstruction(m, relayer, 1_000_000, 950_000, 900_000)
	require.NoError(e.send(instruction, nil))

	var treasury solana.PublicKey
	require.NoError(e.rt.Update(func(state contract.StateDB) error {
		var err error
		treasury, err = token.NewLedger(state).Open(collector, m.outMint)
		return err
	}))

	err := e.send(NewWithdrawFeesInstruction(id, collector, m.outMint, treasury, 9_500))
	require.ErrorIs(err, ErrUnauthorized)

	require.NoError(e.send(NewSetRoleInstruction(id, e.owner, collector, acl.RoleCollector, true)))

	err = e.send(NewWithdrawFeesInstruction(id, collector, m.outMint, treasury, 9_501))
	require.ErrorIs(err, token.ErrInsufficientFunds)

	require.NoError(e.send(NewWithdrawFeesInstruction(id, collector, m.outMint, treasury, 9_500)))
	require.Equal(uint64(9_500), e.balance(treasury))

	feeHolding, err := vault.FeeHolding(id, m.outMint)
	require.NoError(err)
	require.Equal(uint64(0), e.balance(feeHolding))
}

func TestExecuteRejectsMalformed(t *testing.T) {
	require := require.New(t)
	e := newTestEnv(t, false)
	id := e.cfg.ProgramID

	err := e.send(solana.NewInstruction(id, solana.AccountMetaSlice{solana.Meta(e.bootstrap).SIGNER()}, []byte{1, 2}), nil)
	require.ErrorIs(err, ErrInvalidInstruction)

	err = e.send(solana.NewInstruction(id, nil, make([]byte, 8)), nil)
	require.ErrorIs(err, ErrInvalidInstruction)

	data := append(InitializeConfigDiscriminator[:], 1, 2, 3)
	err = e.send(solana.NewInstruction(id, solana.AccountMetaSlice{solana.Meta(e.bootstrap).SIGNER()}, data), nil)
	require.ErrorIs(err, ErrInvalidInstruction)

	_, err = e.rt.Execute(context.Background(), &runtime.Transaction{
		Signers:      []solana.PublicKey{e.bootstrap},
		Instructions: []solana.Instruction{solana.NewInstruction(id, solana.AccountMetaSlice{nil}, SetRoleDiscriminator[:])},
	})
	require.ErrorIs(err, runtime.ErrInvalidAccounts)

	// The signer flag is required, not just a matching key.
	instruction, err := NewInitializeConfigInstruction(id, e.bootstrap, e.admin)
	require.NoError(err)
	instruction.AccountValues[0].IsSigner = false
	err = e.send(instruction, nil)
	require.ErrorIs(err, ErrMissingSigner)
}

func TestDiscriminatorsAreDistinct(t *testing.T) {
	seen := make(map[Discriminator]bool)
	for _, d := range []Discriminator{
		InitializeConfigDiscriminator,
		InitializeAccessControlDiscriminator,
		SetRoleDiscriminator,
		AddExecutorDiscriminator,
		RemoveExecutorDiscriminator,
		SwapDiscriminator,
		WithdrawFeesDiscriminator,
	} {
		require.False(t, seen[d])
		seen[d] = true
	}
}
