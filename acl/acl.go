// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package acl implements the role table that gates privileged operations.
//
// The table has one immutable root owner and at most MaxEntries identities,
// each holding an independent bitmask of roles. Only the owner can grant or
// revoke RoleAdmin; the other roles are managed by admins.
package acl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/state"
)

// Role is a single permission bit.
type Role uint8

const (
	RoleExecutor Role = 1 << iota
	RoleCollector
	RoleAdmin
)

// allRoles is the union of every defined role.
const allRoles = RoleExecutor | RoleCollector | RoleAdmin

// MaxEntries bounds the number of identities in the table.
const MaxEntries = 64

// Errors
var (
	ErrAlreadyInitialized = errors.New("access control already initialized")
	ErrNotInitialized     = errors.New("access control not initialized")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrCapacityExceeded   = errors.New("access control capacity exceeded")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidOwner       = errors.New("invalid access control owner")
)

// Storage layout
var (
	aclPrefix  = []byte("acl0")
	slotInit   = state.Key(aclPrefix, []byte("init"))
	slotOwner  = state.Key(aclPrefix, []byte("owner"))
	slotCount  = state.Key(aclPrefix, []byte("count"))
	entryIdent = []byte("ident")
	entryRoles = []byte("roles")
)

// Entry is one identity and its role bitmask.
type Entry struct {
	Identity solana.PublicKey
	Roles    Role
}

// Valid reports whether r is exactly one defined role.
func (r Role) Valid() bool {
	return r != 0 && r&allRoles == r && r&(r-1) == 0
}

// Has reports whether the mask includes role.
func (r Role) Has(role Role) bool {
	return r&role != 0
}

func (r Role) String() string {
	if r == 0 {
		return "none"
	}
	var names []string
	if r&RoleExecutor != 0 {
		names = append(names, "executor")
	}
	if r&RoleCollector != 0 {
		names = append(names, "collector")
	}
	if r&RoleAdmin != 0 {
		names = append(names, "admin")
	}
	if rest := r &^ allRoles; rest != 0 {
		names = append(names, fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return strings.Join(names, "|")
}

// Table is the access control table persisted in a StateDB.
type Table struct {
	state contract.StateDB
}

// NewTable returns the table stored in state.
func NewTable(state contract.StateDB) *Table {
	return &Table{state: state}
}

// Initialize sets the immutable root owner. It can only run once.
func (t *Table) Initialize(owner solana.PublicKey) error {
	if t.Initialized() {
		return ErrAlreadyInitialized
	}
	if owner.IsZero() {
		return ErrInvalidOwner
	}
	t.state.SetState(slotInit, common.BytesToHash([]byte{1}))
	t.state.SetState(slotOwner, common.BytesToHash(owner[:]))
	return nil
}

// Initialized reports whether the table has an owner.
func (t *Table) Initialized() bool {
	return t.state.GetState(slotInit) != (common.Hash{})
}

// Owner returns the root owner.
func (t *Table) Owner() (solana.PublicKey, error) {
	if !t.Initialized() {
		return solana.PublicKey{}, ErrNotInitialized
	}
	return solana.PublicKeyFromBytes(t.state.GetState(slotOwner).Bytes()), nil
}

// SetRole grants (add) or revokes a role for target on behalf of caller.
//
// RoleAdmin can only be changed by the owner. Other roles require the
// caller to be the owner or to hold RoleAdmin. Revoking from an identity
// that has no entry is a no-op.
func (t *Table) SetRole(caller, target solana.PublicKey, role Role, add bool) error {
	owner, err := t.Owner()
	if err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	if role == RoleAdmin {
		if caller != owner {
			return fmt.Errorf("%w: only the owner manages admins", ErrUnauthorized)
		}
	} else if caller != owner && !t.HasRole(caller, RoleAdmin) {
		return fmt.Errorf("%w: %s is not an admin", ErrUnauthorized, caller)
	}

	count := t.count()
	for i := uint64(0); i < count; i++ {
		if t.identity(i) != target {
			continue
		}
		roles := t.roles(i)
		if add {
			roles |= role
		} else {
			roles &^= role
		}
		t.setRoles(i, roles)
		return nil
	}

	if !add {
		return nil
	}
	if count >= MaxEntries {
		return fmt.Errorf("%w: %d entries", ErrCapacityExceeded, count)
	}
	t.state.SetState(entryKey(entryIdent, count), common.BytesToHash(target[:]))
	t.setRoles(count, role)
	t.setCount(count + 1)
	return nil
}

// HasRole reports whether identity currently holds role.
func (t *Table) HasRole(identity solana.PublicKey, role Role) bool {
	count := t.count()
	for i := uint64(0); i < count; i++ {
		if t.identity(i) == identity {
			return t.roles(i).Has(role)
		}
	}
	return false
}

// Entries returns the table contents in insertion order.
func (t *Table) Entries() []Entry {
	count := t.count()
	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		entries = append(entries, Entry{Identity: t.identity(i), Roles: t.roles(i)})
	}
	return entries
}

func entryKey(field []byte, index uint64) common.Hash {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return state.Key(aclPrefix, field, idx[:])
}

func (t *Table) count() uint64 {
	word := t.state.GetState(slotCount)
	return binary.BigEndian.Uint64(word[24:])
}

func (t *Table) setCount(n uint64) {
	var word common.Hash
	binary.BigEndian.PutUint64(word[24:], n)
	t.state.SetState(slotCount, word)
}

func (t *Table) identity(i uint64) solana.PublicKey {
	return solana.PublicKeyFromBytes(t.state.GetState(entryKey(entryIdent, i)).Bytes())
}

func (t *Table) roles(i uint64) Role {
	word := t.state.GetState(entryKey(entryRoles, i))
	return Role(word[common.HashLength-1])
}

func (t *Table) setRoles(i uint64, roles Role) {
	t.state.SetState(entryKey(entryRoles, i), common.BytesToHash([]byte{byte(roles)}))
}
