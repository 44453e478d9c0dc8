// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package token implements token holdings on top of a contract.StateDB.
// Holdings live at the associated token address of (owner, mint) and carry
// an optional delegate allowed to move a bounded amount on the owner's behalf.
package token

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/state"
)

// Errors
var (
	ErrHoldingNotFound   = errors.New("token holding not found")
	ErrMintMismatch      = errors.New("token holding mint mismatch")
	ErrOwnerMismatch     = errors.New("authority does not control token holding")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOverflow          = errors.New("token amount overflow")
	ErrInvalidMint       = errors.New("invalid mint")
)

// Storage layout: each field of a holding lives in its own slot,
// keyed by BLAKE3("hold" || holding || field).
var holdingPrefix = []byte("hold")

const (
	fieldMint byte = iota
	fieldOwner
	fieldAmount
	fieldDelegate
	fieldDelegated
)

// Holding is a snapshot of one token holding.
type Holding struct {
	Address   solana.PublicKey
	Mint      solana.PublicKey
	Owner     solana.PublicKey
	Amount    uint64
	Delegate  solana.PublicKey
	Delegated uint64
}

// Ledger reads and mutates holdings.
type Ledger struct {
	state contract.StateDB
}

// NewLedger returns a ledger over the given state.
func NewLedger(state contract.StateDB) *Ledger {
	return &Ledger{state: state}
}

// HoldingAddress returns the associated holding address for owner and mint.
func HoldingAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive holding for %s/%s: %w", owner, mint, err)
	}
	return addr, nil
}

// Open returns the holding for owner and mint, creating it if needed.
func (l *Ledger) Open(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if mint.IsZero() {
		return solana.PublicKey{}, ErrInvalidMint
	}
	addr, err := HoldingAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if l.exists(addr) {
		return addr, nil
	}
	l.setKey(addr, fieldMint, mint)
	l.setKey(addr, fieldOwner, owner)
	return addr, nil
}

// Holding loads a holding by address.
func (l *Ledger) Holding(addr solana.PublicKey) (Holding, error) {
	if !l.exists(addr) {
		return Holding{}, fmt.Errorf("%w: %s", ErrHoldingNotFound, addr)
	}
	return Holding{
		Address:   addr,
		Mint:      l.getKey(addr, fieldMint),
		Owner:     l.getKey(addr, fieldOwner),
		Amount:    l.getAmount(addr, fieldAmount),
		Delegate:  l.getKey(addr, fieldDelegate),
		Delegated: l.getAmount(addr, fieldDelegated),
	}, nil
}

// Balance returns the amount held at addr.
func (l *Ledger) Balance(addr solana.PublicKey) (uint64, error) {
	if !l.exists(addr) {
		return 0, fmt.Errorf("%w: %s", ErrHoldingNotFound, addr)
	}
	return l.getAmount(addr, fieldAmount), nil
}

// MintTo credits amount to a holding out of thin air.
func (l *Ledger) MintTo(addr solana.PublicKey, amount uint64) error {
	if !l.exists(addr) {
		return fmt.Errorf("%w: %s", ErrHoldingNotFound, addr)
	}
	return l.credit(addr, amount)
}

// Approve lets delegate move up to amount out of the holding. The authority
// must control the holding owner. A zero amount revokes the delegate.
func (l *Ledger) Approve(addr, delegate solana.PublicKey, amount uint64, authority contract.Authority) error {
	h, err := l.Holding(addr)
	if err != nil {
		return err
	}
	if authority == nil || !authority.Authorizes(h.Owner) {
		return fmt.Errorf("%w: approve on %s", ErrOwnerMismatch, addr)
	}
	if amount == 0 {
		delegate = solana.PublicKey{}
	}
	l.setKey(addr, fieldDelegate, delegate)
	l.setAmount(addr, fieldDelegated, amount)
	return nil
}

// Transfer moves amount between two holdings of the same mint.
// The authority must control the source owner, or be its delegate with a
// sufficient allowance.
func (l *Ledger) Transfer(from, to solana.PublicKey, amount uint64, authority contract.Authority) error {
	src, err := l.Holding(from)
	if err != nil {
		return err
	}
	dst, err := l.Holding(to)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	viaDelegate, err := l.authorize(src, amount, authority)
	if err != nil {
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: holding %s has %d, need %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	if from == to {
		return nil
	}
	if viaDelegate {
		l.spendAllowance(src, amount)
	}
	l.setAmount(from, fieldAmount, src.Amount-amount)
	return l.credit(to, amount)
}

// authorize checks that authority may move amount out of src. It reports
// whether the move spends the delegate allowance.
func (l *Ledger) authorize(src Holding, amount uint64, authority contract.Authority) (bool, error) {
	if authority == nil {
		return false, fmt.Errorf("%w: no authority for %s", ErrOwnerMismatch, src.Address)
	}
	if authority.Authorizes(src.Owner) {
		return false, nil
	}
	if src.Delegate.IsZero() || !authority.Authorizes(src.Delegate) {
		return false, fmt.Errorf("%w: %s", ErrOwnerMismatch, src.Address)
	}
	if src.Delegated < amount {
		return false, fmt.Errorf("%w: delegated %d, need %d", ErrInsufficientFunds, src.Delegated, amount)
	}
	return true, nil
}

func (l *Ledger) spendAllowance(src Holding, amount uint64) {
	remaining := src.Delegated - amount
	if remaining == 0 {
		l.setKey(src.Address, fieldDelegate, solana.PublicKey{})
	}
	l.setAmount(src.Address, fieldDelegated, remaining)
}

func (l *Ledger) credit(addr solana.PublicKey, amount uint64) error {
	sum, overflow := new(uint256.Int).AddOverflow(
		uint256.NewInt(l.getAmount(addr, fieldAmount)),
		uint256.NewInt(amount),
	)
	if overflow || !sum.IsUint64() {
		return fmt.Errorf("%w: credit %d to %s", ErrOverflow, amount, addr)
	}
	l.setAmount(addr, fieldAmount, sum.Uint64())
	return nil
}

func (l *Ledger) exists(addr solana.PublicKey) bool {
	return !l.getKey(addr, fieldMint).IsZero()
}

func slot(addr solana.PublicKey, field byte) common.Hash {
	return state.Key(holdingPrefix, addr[:], []byte{field})
}

func (l *Ledger) getKey(addr solana.PublicKey, field byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(l.state.GetState(slot(addr, field)).Bytes())
}

func (l *Ledger) setKey(addr solana.PublicKey, field byte, key solana.PublicKey) {
	l.state.SetState(slot(addr, field), common.BytesToHash(key[:]))
}

func (l *Ledger) getAmount(addr solana.PublicKey, field byte) uint64 {
	word := l.state.GetState(slot(addr, field))
	return new(uint256.Int).SetBytes(word[:]).Uint64()
}

func (l *Ledger) setAmount(addr solana.PublicKey, field byte, amount uint64) {
	l.state.SetState(slot(addr, field), common.Hash(uint256.NewInt(amount).Bytes32()))
}
