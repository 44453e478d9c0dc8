// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package executor keeps the bounded list of identities permitted to submit
// router payloads. Mutations are gated by the access control admin role.
package executor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapvault/acl"
	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/state"
)

// MaxExecutors bounds the registry.
const MaxExecutors = 64

// Errors
var (
	ErrAlreadyExists    = errors.New("executor already exists")
	ErrNotFound         = errors.New("executor not found")
	ErrCapacityExceeded = errors.New("maximum number of executors reached")

	// ErrUnauthorized is shared with the access control table so callers
	// can match either source with one sentinel.
	ErrUnauthorized = acl.ErrUnauthorized
)

var (
	executorPrefix = []byte("exec")
	slotCount      = state.Key(executorPrefix, []byte("count"))
)

// Registry is the executor list persisted in a StateDB.
type Registry struct {
	state contract.StateDB
	acl   *acl.Table
}

// NewRegistry returns the registry stored in state, gated by table.
func NewRegistry(state contract.StateDB, table *acl.Table) *Registry {
	return &Registry{state: state, acl: table}
}

// Add registers executor. caller must be an admin.
func (r *Registry) Add(caller, executor solana.PublicKey) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	if r.indexOf(executor) >= 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, executor)
	}
	count := r.count()
	if count >= MaxExecutors {
		return ErrCapacityExceeded
	}
	r.set(count, executor)
	r.setCount(count + 1)
	return nil
}

// Remove unregisters executor. The last entry takes its place.
func (r *Registry) Remove(caller, executor solana.PublicKey) error {
	if err := r.authorize(caller); err != nil {
		return err
	}
	idx := r.indexOf(executor)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, executor)
	}
	last := r.count() - 1
	if uint64(idx) != last {
		r.set(uint64(idx), r.get(last))
	}
	r.state.SetState(entryKey(last), common.Hash{})
	r.setCount(last)
	return nil
}

// Contains reports whether executor is registered.
func (r *Registry) Contains(executor solana.PublicKey) bool {
	return r.indexOf(executor) >= 0
}

// List returns the registered executors.
func (r *Registry) List() []solana.PublicKey {
	count := r.count()
	out := make([]solana.PublicKey, 0, count)
	for i := uint64(0); i < count; i++ {
		out = append(out, r.get(i))
	}
	return out
}

func (r *Registry) authorize(caller solana.PublicKey) error {
	owner, err := r.acl.Owner()
	if err != nil {
		return err
	}
	if caller != owner && !r.acl.HasRole(caller, acl.RoleAdmin) {
		return fmt.Errorf("%w: %s is not an admin", ErrUnauthorized, caller)
	}
	return nil
}

func (r *Registry) indexOf(executor solana.PublicKey) int {
	count := r.count()
	for i := uint64(0); i < count; i++ {
		if r.get(i) == executor {
			return int(i)
		}
	}
	return -1
}

func entryKey(index uint64) common.Hash {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return state.Key(executorPrefix, []byte("entry"), idx[:])
}

func (r *Registry) get(i uint64) solana.PublicKey {
	return solana.PublicKeyFromBytes(r.state.GetState(entryKey(i)).Bytes())
}

func (r *Registry) set(i uint64, executor solana.PublicKey) {
	r.state.SetState(entryKey(i), common.BytesToHash(executor[:]))
}

func (r *Registry) count() uint64 {
	word := r.state.GetState(slotCount)
	return binary.BigEndian.Uint64(word[24:])
}

func (r *Registry) setCount(n uint64) {
	var word common.Hash
	binary.BigEndian.PutUint64(word[24:], n)
	r.state.SetState(slotCount, word)
}
