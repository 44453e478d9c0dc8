// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sim provides a fixed-quote router program for exercising swaps
// without an external DEX.
package sim

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/token"
	"github.com/luxfi/swapvault/vault"
)

// PoolSeed prefixes pool authority seeds.
const PoolSeed = "pool"

// SwapUnits is charged by every router swap.
const SwapUnits uint64 = 5_000

// Errors
var (
	ErrInvalidAccounts = errors.New("invalid router accounts")
	ErrInvalidPayload  = errors.New("invalid router payload")
)

// Quote is the router payload: take AmountIn of the input mint from the
// source and pay AmountOut of the output mint to the destination.
type Quote struct {
	AmountIn  uint64
	AmountOut uint64
}

// Encode returns the borsh encoding of q.
func (q Quote) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(q); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeQuote parses a router payload.
func DecodeQuote(data []byte) (Quote, error) {
	var q Quote
	if err := bin.NewBorshDecoder(data).Decode(&q); err != nil {
		return Quote{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return q, nil
}

// Pool holds liquidity for one direction of a pair.
type Pool struct {
	Authority  vault.Signer
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Input      solana.PublicKey
	Output     solana.PublicKey
}

// PoolAuthority derives the authority owning the pool for in -> out.
func PoolAuthority(routerID, inputMint, outputMint solana.PublicKey) (vault.Signer, error) {
	return vault.DeriveAuthority(routerID, []byte(PoolSeed), inputMint[:], outputMint[:])
}

// OpenPool opens the pool holdings for in -> out and mints liquidity of the
// output mint into it.
func OpenPool(state contract.StateDB, routerID, inputMint, outputMint solana.PublicKey, liquidity uint64) (Pool, error) {
	authority, err := PoolAuthority(routerID, inputMint, outputMint)
	if err != nil {
		return Pool{}, err
	}
	ledger := token.NewLedger(state)
	in, err := ledger.Open(authority.Address(), inputMint)
	if err != nil {
		return Pool{}, err
	}
	out, err := ledger.Open(authority.Address(), outputMint)
	if err != nil {
		return Pool{}, err
	}
	if err := ledger.MintTo(out, liquidity); err != nil {
		return Pool{}, err
	}
	return Pool{
		Authority:  authority,
		InputMint:  inputMint,
		OutputMint: outputMint,
		Input:      in,
		Output:     out,
	}, nil
}

// Accounts returns the router account list for swapping on behalf of owner
// from source into destination.
func (p Pool) Accounts(owner, source, destination solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(owner).SIGNER(),
		solana.Meta(source).WRITE(),
		solana.Meta(destination).WRITE(),
		solana.Meta(p.Input).WRITE(),
		solana.Meta(p.Output).WRITE(),
	}
}

// Router is a program paying a caller-supplied quote out of pool liquidity.
type Router struct {
	programID solana.PublicKey
}

var _ contract.Program = (*Router)(nil)

// NewRouter returns a router hosted at programID.
func NewRouter(programID solana.PublicKey) *Router {
	return &Router{programID: programID}
}

// ProgramID returns the router's address.
func (r *Router) ProgramID() solana.PublicKey {
	return r.programID
}

// Execute implements contract.Program.
//
// Accounts: [owner (signer), source, destination, pool input, pool output].
func (r *Router) Execute(env contract.Environment, accounts []*solana.AccountMeta, data []byte) error {
	if err := env.ConsumeUnits(SwapUnits); err != nil {
		return err
	}
	if len(accounts) < 5 {
		return fmt.Errorf("%w: want 5, got %d", ErrInvalidAccounts, len(accounts))
	}
	q, err := DecodeQuote(data)
	if err != nil {
		return err
	}

	source := accounts[1].PublicKey
	destination := accounts[2].PublicKey
	poolIn := accounts[3].PublicKey
	poolOut := accounts[4].PublicKey

	ledger := token.NewLedger(env.StateDB())
	in, err := ledger.Holding(poolIn)
	if err != nil {
		return err
	}
	out, err := ledger.Holding(poolOut)
	if err != nil {
		return err
	}
	authority, err := PoolAuthority(r.programID, in.Mint, out.Mint)
	if err != nil {
		return err
	}
	if in.Owner != authority.Address() || out.Owner != authority.Address() {
		return fmt.Errorf("%w: pool holdings not owned by pool authority", ErrInvalidAccounts)
	}

	if err := ledger.Transfer(source, poolIn, q.AmountIn, env.Authority()); err != nil {
		return fmt.Errorf("take input: %w", err)
	}
	if err := ledger.Transfer(poolOut, destination, q.AmountOut, authority); err != nil {
		return fmt.Errorf("pay output: %w", err)
	}
	env.Logger().Debug("router swap", "in", q.AmountIn, "out", q.AmountOut)
	return nil
}

// Fund opens the holding of owner for mint and mints amount into it.
func Fund(state contract.StateDB, owner, mint solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	ledger := token.NewLedger(state)
	addr, err := ledger.Open(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := ledger.MintTo(addr, amount); err != nil {
		return solana.PublicKey{}, err
	}
	return addr, nil
}
