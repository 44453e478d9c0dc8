// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package program exposes the escrowed swap, access control, executor
// registry and fee withdrawal as a single hosted program.
package program

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/swapvault/acl"
	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/executor"
	"github.com/luxfi/swapvault/modules"
	"github.com/luxfi/swapvault/swap"
	"github.com/luxfi/swapvault/token"
	"github.com/luxfi/swapvault/vault"
)

// Name is the module name of the program.
const Name = "swapvault"

// Compute unit costs
const (
	UnitsInitialize   uint64 = 5_000  // Config or access control bootstrap
	UnitsSetRole      uint64 = 3_000  // Grant or revoke a role
	UnitsExecutor     uint64 = 3_000  // Add or remove an executor
	UnitsSwap         uint64 = 25_000 // Escrowed swap, excluding the router
	UnitsWithdrawFees uint64 = 8_000  // Fee withdrawal
)

// Errors
var (
	ErrInvalidInstruction    = errors.New("invalid instruction")
	ErrNotEnoughAccounts     = errors.New("not enough account keys")
	ErrMissingSigner         = errors.New("missing required signer")
	ErrConfigInitialized     = errors.New("config already initialized")
	ErrConfigNotInitialized  = errors.New("config not initialized")
	ErrUnauthorized          = acl.ErrUnauthorized
	ErrExecutorNotRegistered = errors.New("submitter is not a registered executor")
)

var _ contract.Program = (*Program)(nil)

// Program dispatches instructions to the swapvault components.
type Program struct {
	cfg          Config
	orchestrator *swap.Orchestrator
}

// New returns the program for cfg.
func New(cfg Config) (*Program, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return &Program{
		cfg:          cfg,
		orchestrator: swap.NewOrchestrator(cfg.ProgramID, cfg.RouterProgramID),
	}, nil
}

// Config returns the program config.
func (p *Program) Config() Config {
	return p.cfg
}

// Module returns the registry entry hosting p.
func (p *Program) Module() modules.Module {
	return modules.Module{
		Name:      Name,
		ProgramID: p.cfg.ProgramID,
		Program:   p,
	}
}

// Execute implements contract.Program.
func (p *Program) Execute(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) < len(Discriminator{}) {
		return fmt.Errorf("%w: data too short (%d bytes)", ErrInvalidInstruction, len(data))
	}
	var d Discriminator
	copy(d[:], data)
	args := data[len(d):]

	switch d {
	case InitializeConfigDiscriminator:
		return p.runInitializeConfig(env, accounts, args)
	case InitializeAccessControlDiscriminator:
		return p.runInitializeAccessControl(env, accounts, args)
	case SetRoleDiscriminator:
		return p.runSetRole(env, accounts, args)
	case AddExecutorDiscriminator:
		return p.runExecutor(env, accounts, args, true)
	case RemoveExecutorDiscriminator:
		return p.runExecutor(env, accounts, args, false)
	case SwapDiscriminator:
		return p.runSwap(env, accounts, args)
	case WithdrawFeesDiscriminator:
		return p.runWithdrawFees(env, accounts, args)
	default:
		return fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstruction, d)
	}
}

func (p *Program) runInitializeConfig(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	if err := env.ConsumeUnits(UnitsInitialize); err != nil {
		return err
	}
	payer, err := signer(env, accounts, 0)
	if err != nil {
		return err
	}
	var args InitializeConfigArgs
	if err := decode(data, &args); err != nil {
		return err
	}

	if payer != p.cfg.BootstrapAuthority {
		return fmt.Errorf("%w: %s is not the bootstrap authority", ErrUnauthorized, payer)
	}
	if args.Admin.IsZero() {
		return fmt.Errorf("%w: zero admin", ErrInvalidInstruction)
	}
	settings := newSettings(env.StateDB())
	if settings.initialized() {
		return ErrConfigInitialized
	}
	settings.initialize(args.Admin)

	env.Logger().Info("config initialized", "admin", args.Admin)
	return nil
}

func (p *Program) runInitializeAccessControl(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	if err := env.ConsumeUnits(UnitsInitialize); err != nil {
		return err
	}
	caller, err := signer(env, accounts, 0)
	if err != nil {
		return err
	}
	var args InitializeAccessControlArgs
	if err := decode(data, &args); err != nil {
		return err
	}

	settings := newSettings(env.StateDB())
	if !settings.initialized() {
		return ErrConfigNotInitialized
	}
	if admin := settings.admin(); caller != admin {
		return fmt.Errorf("%w: %s is not the config admin", ErrUnauthorized, caller)
	}
	if err := acl.NewTable(env.StateDB()).Initialize(args.Owner); err != nil {
		return err
	}

	env.Logger().Info("access control initialized", "owner", args.Owner)
	return nil
}

func (p *Program) runSetRole(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	if err := env.ConsumeUnits(UnitsSetRole); err != nil {
		return err
	}
	caller, err := signer(env, accounts, 0)
	if err != nil {
		return err
	}
	var args SetRoleArgs
	if err := decode(data, &args); err != nil {
		return err
	}

	role := acl.Role(args.Role)
	if err := acl.NewTable(env.StateDB()).SetRole(caller, args.Target, role, args.Add); err != nil {
		return err
	}
	env.Logger().Info("role updated", "caller", caller, "target", args.Target, "role", role, "add", args.Add)
	return nil
}

func (p *Program) runExecutor(env contract.Environment, accounts []*solana.AccountMeta, data []byte, add bool) error {
	if err := env.ConsumeUnits(UnitsExecutor); err != nil {
		return err
	}
	caller, err := signer(env, accounts, 0)
	if err != nil {
		return err
	}
	var args ExecutorArgs
	if err := decode(data, &args); err != nil {
		return err
	}

	registry := executor.NewRegistry(env.StateDB(), acl.NewTable(env.StateDB()))
	if add {
		err = registry.Add(caller, args.Executor)
	} else {
		err = registry.Remove(caller, args.Executor)
	}
	if err != nil {
		return err
	}
	env.Logger().Info("executor registry updated", "executor", args.Executor, "add", add)
	return nil
}

// runSwap accounts: [input mint, output mint, user, submitter (signer),
// router program, router accounts...].
func (p *Program) runSwap(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	if err := env.ConsumeUnits(UnitsSwap); err != nil {
		return err
	}
	if len(accounts) < 5 {
		return fmt.Errorf("%w: swap needs 5, got %d", ErrNotEnoughAccounts, len(accounts))
	}
	submitter, err := signer(env, accounts, 3)
	if err != nil {
		return err
	}
	var args SwapArgs
	if err := decode(data, &args); err != nil {
		return err
	}

	if p.cfg.EnforceExecutors {
		registry := executor.NewRegistry(env.StateDB(), acl.NewTable(env.StateDB()))
		if !registry.Contains(submitter) {
			return fmt.Errorf("%w: %s", ErrExecutorNotRegistered, submitter)
		}
	}

	_, err = p.orchestrator.Swap(env, swap.Request{
		InputMint:    accounts[0].PublicKey,
		OutputMint:   accounts[1].PublicKey,
		User:         accounts[2].PublicKey,
		AmountIn:     args.AmountIn,
		MinAmountOut: args.MinAmountOut,
		Deadline:     args.Deadline,
		Router:       accounts[4].PublicKey,
		Payload:      args.Payload,
		Accounts:     accounts[5:],
	})
	return err
}

// runWithdrawFees accounts: [collector (signer), fee mint, destination].
func (p *Program) runWithdrawFees(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	if err := env.ConsumeUnits(UnitsWithdrawFees); err != nil {
		return err
	}
	if len(accounts) < 3 {
		return fmt.Errorf("%w: withdraw_fees needs 3, got %d", ErrNotEnoughAccounts, len(accounts))
	}
	collector, err := signer(env, accounts, 0)
	if err != nil {
		return err
	}
	var args WithdrawFeesArgs
	if err := decode(data, &args); err != nil {
		return err
	}

	if !acl.NewTable(env.StateDB()).HasRole(collector, acl.RoleCollector) {
		return fmt.Errorf("%w: %s lacks %s", ErrUnauthorized, collector, acl.RoleCollector)
	}
	mint := accounts[1].PublicKey
	destination := accounts[2].PublicKey

	authority, err := vault.FeeAuthority(p.cfg.ProgramID)
	if err != nil {
		return err
	}
	holding, err := vault.FeeHolding(p.cfg.ProgramID, mint)
	if err != nil {
		return err
	}
	if err := token.NewLedger(env.StateDB()).Transfer(holding, destination, args.Amount, authority); err != nil {
		return err
	}
	env.Logger().Info("fees withdrawn", "collector", collector, "mint", mint, "amount", args.Amount)
	return nil
}

// signer returns the key at index, which must be a signer of the invocation.
func signer(env contract.Environment, accounts []*solana.AccountMeta, index int) (solana.PublicKey, error) {
	if len(accounts) <= index {
		return solana.PublicKey{}, fmt.Errorf("%w: want signer at %d, got %d accounts", ErrNotEnoughAccounts, index, len(accounts))
	}
	acc := accounts[index]
	if !acc.IsSigner || !env.Authority().Authorizes(acc.PublicKey) {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrMissingSigner, acc.PublicKey)
	}
	return acc.PublicKey, nil
}
