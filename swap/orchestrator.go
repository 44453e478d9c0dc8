// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package swap executes escrowed swaps through an external router.
//
// Funds are pulled into a derived vault, the pinned router is invoked with
// the vault as signer, and the proceeds are measured as the change in the
// vault's output balance. Nothing the router reports is trusted. The proceeds
// are split between the user and the protocol fee holding.
//
// The orchestrator keeps no undo log: the host reverts every write of a
// failed transaction.
package swap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/fees"
	"github.com/luxfi/swapvault/token"
	"github.com/luxfi/swapvault/vault"
)

// Request is a single swap order.
type Request struct {
	InputMint    solana.PublicKey
	OutputMint   solana.PublicKey
	User         solana.PublicKey
	AmountIn     uint64
	MinAmountOut uint64
	Deadline     int64

	// Router is the program the caller wants invoked. It must match the
	// pinned router.
	Router solana.PublicKey

	// Payload and Accounts are forwarded to the router untouched.
	Payload  []byte
	Accounts []*solana.AccountMeta
}

// Params returns the vault derivation tuple of r.
func (r Request) Params() vault.Params {
	return vault.Params{
		InputMint:    r.InputMint,
		OutputMint:   r.OutputMint,
		User:         r.User,
		AmountIn:     r.AmountIn,
		MinAmountOut: r.MinAmountOut,
		Deadline:     r.Deadline,
	}
}

// Receipt summarizes a completed swap.
type Receipt struct {
	Vault       solana.PublicKey
	AmountIn    uint64
	TokenOutGot uint64
	UserAmount  uint64
	Fee         uint64
	FeeHolding  solana.PublicKey
}

// Orchestrator runs swaps for one program against one pinned router.
type Orchestrator struct {
	programID solana.PublicKey
	router    solana.PublicKey
}

// NewOrchestrator returns an orchestrator deriving vaults under programID
// and accepting only router.
func NewOrchestrator(programID, router solana.PublicKey) *Orchestrator {
	return &Orchestrator{programID: programID, router: router}
}

// Router returns the pinned router program.
func (o *Orchestrator) Router() solana.PublicKey {
	return o.router
}

// Swap executes req. Any error aborts the whole swap; the caller's host is
// responsible for discarding the writes made before the failure.
//
// On completion both vault holdings must be back at the balances they held
// before the swap, which is zero for a fresh vault. Tokens sent to a vault
// address ahead of time stay in the vault.
func (o *Orchestrator) Swap(env contract.Environment, req Request) (*Receipt, error) {
	logger := env.Logger()
	ledger := token.NewLedger(env.StateDB())

	// VALIDATE
	now := env.Now().Unix()
	if now >= req.Deadline {
		return nil, abort(StageValidate, solana.PublicKey{},
			fmt.Errorf("%w: deadline %d, now %d", ErrExpiredOrder, req.Deadline, now))
	}
	if req.InputMint == req.OutputMint {
		return nil, abort(StageValidate, solana.PublicKey{},
			fmt.Errorf("%w: input and output mint are both %s", ErrInvalidRequest, req.InputMint))
	}
	if req.Router != o.router {
		return nil, abort(StageValidate, solana.PublicKey{},
			fmt.Errorf("%w: router %s is not allow-listed", ErrUnauthorized, req.Router))
	}
	v, signer, err := vault.Derive(o.programID, req.Params())
	if err != nil {
		return nil, abort(StageValidate, solana.PublicKey{}, err)
	}

	// PULL_INPUT
	userIn, err := token.HoldingAddress(req.User, req.InputMint)
	if err != nil {
		return nil, abort(StagePullInput, v.Address, err)
	}
	if _, err := ledger.Open(v.Address, req.InputMint); err != nil {
		return nil, abort(StagePullInput, v.Address, err)
	}
	if _, err := ledger.Open(v.Address, req.OutputMint); err != nil {
		return nil, abort(StagePullInput, v.Address, err)
	}
	inputBefore, err := ledger.Balance(v.InputHolding)
	if err != nil {
		return nil, abort(StagePullInput, v.Address, err)
	}
	if err := ledger.Transfer(userIn, v.InputHolding, req.AmountIn, signer); err != nil {
		return nil, abort(StagePullInput, v.Address, err)
	}

	// SNAPSHOT
	before, err := ledger.Balance(v.OutputHolding)
	if err != nil {
		return nil, abort(StageSnapshot, v.Address, err)
	}

	// INVOKE_ROUTER
	if err := env.Invoke(o.router, routerAccounts(req.Accounts, v.Address), req.Payload, signer); err != nil {
		return nil, abort(StageInvokeRouter, v.Address, err)
	}
	logger.Debug("router call successful", "vault", v.Address, "router", o.router)

	// VERIFY
	after, err := ledger.Balance(v.OutputHolding)
	if err != nil {
		return nil, abort(StageVerify, v.Address, err)
	}
	got, err := fees.Delta(before, after)
	if err != nil {
		return nil, abort(StageVerify, v.Address, err)
	}
	userAmount, fee, err := fees.Split(got)
	if err != nil {
		return nil, abort(StageVerify, v.Address, err)
	}
	if userAmount < req.MinAmountOut {
		return nil, abort(StageVerify, v.Address,
			fmt.Errorf("%w: got %d after fee, want at least %d", ErrInsufficientOutputAmount, userAmount, req.MinAmountOut))
	}

	// PAY_USER
	userOut, err := ledger.Open(req.User, req.OutputMint)
	if err != nil {
		return nil, abort(StagePayUser, v.Address, err)
	}
	if err := ledger.Transfer(v.OutputHolding, userOut, userAmount, signer); err != nil {
		return nil, abort(StagePayUser, v.Address, err)
	}

	// PAY_FEE
	feeAuthority, err := vault.FeeAuthority(o.programID)
	if err != nil {
		return nil, abort(StagePayFee, v.Address, err)
	}
	feeHolding, err := ledger.Open(feeAuthority.Address(), req.OutputMint)
	if err != nil {
		return nil, abort(StagePayFee, v.Address, err)
	}
	if err := ledger.Transfer(v.OutputHolding, feeHolding, fee, signer); err != nil {
		return nil, abort(StagePayFee, v.Address, err)
	}

	// DONE
	if err := settled(ledger, v, inputBefore, before); err != nil {
		return nil, abort(StageDone, v.Address, err)
	}

	logger.Info("swap executed",
		"vault", v.Address,
		"user", req.User,
		"amountIn", req.AmountIn,
		"tokenOutGot", got,
		"userAmount", userAmount,
		"fee", fee,
	)
	return &Receipt{
		Vault:       v.Address,
		AmountIn:    req.AmountIn,
		TokenOutGot: got,
		UserAmount:  userAmount,
		Fee:         fee,
		FeeHolding:  feeHolding,
	}, nil
}

// routerAccounts copies the caller's account list position for position,
// granting signer status to the vault and to nothing else. Nil entries are
// kept so the host rejects them.
func routerAccounts(accounts []*solana.AccountMeta, vaultAddr solana.PublicKey) []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, 0, len(accounts))
	for _, acc := range accounts {
		if acc == nil {
			out = append(out, nil)
			continue
		}
		out = append(out, &solana.AccountMeta{
			PublicKey:  acc.PublicKey,
			IsWritable: acc.IsWritable,
			IsSigner:   acc.PublicKey == vaultAddr,
		})
	}
	return out
}

// settled checks that the vault holds exactly what it held before the swap.
func settled(ledger *token.Ledger, v vault.Vault, inputBefore, outputBefore uint64) error {
	in, err := ledger.Balance(v.InputHolding)
	if err != nil {
		return err
	}
	out, err := ledger.Balance(v.OutputHolding)
	if err != nil {
		return err
	}
	if in != inputBefore || out != outputBefore {
		return fmt.Errorf("%w: input %d (was %d), output %d (was %d)",
			ErrVaultNotSettled, in, inputBefore, out, outputBefore)
	}
	return nil
}

func abort(stage Stage, vaultAddr solana.PublicKey, err error) error {
	return &StageError{Stage: stage, Vault: vaultAddr, Err: err}
}
