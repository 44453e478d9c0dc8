// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vault derives the escrow accounts used by a swap.
//
// A vault is a program-derived address: it has no private key and the only
// way to act for it is a Signer reproduced from the exact parameters that
// produced the address.
package vault

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/token"
)

// Seeds
var (
	VaultSeed        = []byte("vault")
	FeeAuthoritySeed = []byte("fee-authority")
)

// ErrNoViableAddress is returned when no bump yields a valid derived address.
// Retrying with the same parameters cannot succeed.
var ErrNoViableAddress = errors.New("no viable derived address")

var _ contract.Authority = Signer{}

// Params is the tuple a vault is derived from.
type Params struct {
	InputMint    solana.PublicKey
	OutputMint   solana.PublicKey
	User         solana.PublicKey
	AmountIn     uint64
	MinAmountOut uint64
	Deadline     int64
}

// Seeds returns the derivation seeds for p, without the bump.
func (p Params) Seeds() [][]byte {
	var amountIn, minOut, deadline [8]byte
	binary.LittleEndian.PutUint64(amountIn[:], p.AmountIn)
	binary.LittleEndian.PutUint64(minOut[:], p.MinAmountOut)
	binary.LittleEndian.PutUint64(deadline[:], uint64(p.Deadline))
	return [][]byte{
		VaultSeed,
		p.InputMint.Bytes(),
		p.OutputMint.Bytes(),
		p.User.Bytes(),
		amountIn[:],
		minOut[:],
		deadline[:],
	}
}

// Vault is a derived escrow address and its two token holdings.
type Vault struct {
	Address       solana.PublicKey
	Bump          uint8
	InputHolding  solana.PublicKey
	OutputHolding solana.PublicKey
}

// Signer is the signing capability for a derived address.
type Signer struct {
	programID solana.PublicKey
	seeds     [][]byte
	bump      uint8
	address   solana.PublicKey
}

// Address returns the key this signer acts for.
func (s Signer) Address() solana.PublicKey {
	return s.address
}

// Bump returns the bump seed that made the address valid.
func (s Signer) Bump() uint8 {
	return s.bump
}

// Authorizes reports whether key is the address reproduced from the
// signer's seeds and bump.
func (s Signer) Authorizes(key solana.PublicKey) bool {
	if s.address.IsZero() || key != s.address {
		return false
	}
	seeds := make([][]byte, 0, len(s.seeds)+1)
	seeds = append(seeds, s.seeds...)
	seeds = append(seeds, []byte{s.bump})
	addr, err := solana.CreateProgramAddress(seeds, s.programID)
	return err == nil && addr == key
}

// Derive maps swap parameters to their vault and signing capability.
func Derive(programID solana.PublicKey, p Params) (Vault, Signer, error) {
	signer, err := DeriveAuthority(programID, p.Seeds()...)
	if err != nil {
		return Vault{}, Signer{}, err
	}
	in, err := token.HoldingAddress(signer.address, p.InputMint)
	if err != nil {
		return Vault{}, Signer{}, err
	}
	out, err := token.HoldingAddress(signer.address, p.OutputMint)
	if err != nil {
		return Vault{}, Signer{}, err
	}
	return Vault{
		Address:       signer.address,
		Bump:          signer.bump,
		InputHolding:  in,
		OutputHolding: out,
	}, signer, nil
}

// DeriveAuthority finds the derived address for seeds under programID.
func DeriveAuthority(programID solana.PublicKey, seeds ...[]byte) (Signer, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return Signer{}, fmt.Errorf("%w: %v", ErrNoViableAddress, err)
	}
	owned := make([][]byte, len(seeds))
	for i, s := range seeds {
		owned[i] = append([]byte(nil), s...)
	}
	return Signer{
		programID: programID,
		seeds:     owned,
		bump:      bump,
		address:   addr,
	}, nil
}

// FeeAuthority derives the single authority that owns every fee holding.
func FeeAuthority(programID solana.PublicKey) (Signer, error) {
	return DeriveAuthority(programID, FeeAuthoritySeed)
}

// FeeHolding returns the fee holding address for an output mint.
func FeeHolding(programID, mint solana.PublicKey) (solana.PublicKey, error) {
	authority, err := FeeAuthority(programID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return token.HoldingAddress(authority.address, mint)
}
