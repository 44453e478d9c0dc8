// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the interfaces shared between the runtime host
// and the programs it executes.
package contract

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// StateDB is the slot store a program reads and writes.
// Writes made after Snapshot are undone by RevertToSnapshot.
type StateDB interface {
	GetState(key common.Hash) common.Hash
	SetState(key common.Hash, value common.Hash)
	Snapshot() int
	RevertToSnapshot(id int)
}

// Authority proves control over a key without exposing a private key.
type Authority interface {
	Authorizes(key solana.PublicKey) bool
}

// Environment is the view of the host a program runs against.
type Environment interface {
	// StateDB returns the transaction-scoped state.
	StateDB() StateDB

	// Now returns the host clock sampled for this transaction.
	Now() time.Time

	// Logger returns the host logger.
	Logger() log.Logger

	// Authority authorizes the transaction signers plus any capability
	// granted to the current invocation frame.
	Authority() Authority

	// ConsumeUnits charges compute units against the transaction budget.
	ConsumeUnits(units uint64) error

	// Invoke calls another registered program. The signers extend the
	// callee's authority for the duration of the call.
	Invoke(programID solana.PublicKey, accounts []*solana.AccountMeta, data []byte, signers ...Authority) error
}

// Program is a stateful program hosted by the runtime.
type Program interface {
	Execute(env Environment, accounts []*solana.AccountMeta, data []byte) error
}

// Authorities combines several authorities; a key is authorized if any
// member authorizes it.
type Authorities []Authority

// Authorizes implements Authority.
func (a Authorities) Authorizes(key solana.PublicKey) bool {
	for _, auth := range a {
		if auth != nil && auth.Authorizes(key) {
			return true
		}
	}
	return false
}

// SignerSet authorizes a fixed set of keys that signed a transaction.
type SignerSet map[solana.PublicKey]struct{}

// NewSignerSet builds a SignerSet from the given keys.
func NewSignerSet(keys ...solana.PublicKey) SignerSet {
	set := make(SignerSet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Authorizes implements Authority.
func (s SignerSet) Authorizes(key solana.PublicKey) bool {
	_, ok := s[key]
	return ok
}
