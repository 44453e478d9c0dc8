// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/swapvault/contract"
)

// Module is a program hosted by the runtime.
type Module struct {
	// Name is the unique human readable key of the program.
	Name string
	// ProgramID is the address the program is invoked at.
	ProgramID solana.PublicKey
	// Program executes the program's instructions.
	Program contract.Program
}

// reservedProgramIDs cannot host a module; they belong to the chain's own
// programs and would shadow them.
var reservedProgramIDs = []solana.PublicKey{
	{},
	solana.SystemProgramID,
	solana.TokenProgramID,
	solana.SPLAssociatedTokenAccountProgramID,
}

// ReservedProgramID returns true if id cannot be used by a module.
func ReservedProgramID(id solana.PublicKey) bool {
	for _, reserved := range reservedProgramIDs {
		if id == reserved {
			return true
		}
	}
	return false
}

// Registry keeps registered modules sorted by program ID so iteration is
// deterministic.
type Registry struct {
	mu      sync.RWMutex
	modules []Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a module.
func (r *Registry) Register(m Module) error {
	if m.Program == nil {
		return fmt.Errorf("module %q has no program", m.Name)
	}
	if ReservedProgramID(m.ProgramID) {
		return fmt.Errorf("program id %s is reserved", m.ProgramID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, registered := range r.modules {
		if registered.Name == m.Name {
			return fmt.Errorf("name %s already used by a program", m.Name)
		}
		if registered.ProgramID == m.ProgramID {
			return fmt.Errorf("program id %s already used by %s", m.ProgramID, registered.Name)
		}
	}
	r.modules = insertSortedByID(r.modules, m)
	return nil
}

// GetModuleByProgramID returns the module hosted at id.
func (r *Registry) GetModuleByProgramID(id solana.PublicKey) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.ProgramID == id {
			return m, true
		}
	}
	return Module{}, false
}

// GetModule returns the module registered under name.
func (r *Registry) GetModule(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.modules {
		if m.Name == name {
			return m, true
		}
	}
	return Module{}, false
}

// RegisteredModules returns a copy of the registered modules.
func (r *Registry) RegisteredModules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Module(nil), r.modules...)
}

func insertSortedByID(data []Module, m Module) []Module {
	data = append(data, m)
	sort.Sort(moduleArray(data))
	return data
}

type moduleArray []Module

func (u moduleArray) Len() int { return len(u) }

func (u moduleArray) Swap(i, j int) { u[i], u[j] = u[j], u[i] }

func (u moduleArray) Less(i, j int) bool {
	return bytes.Compare(u[i].ProgramID[:], u[j].ProgramID[:]) < 0
}
