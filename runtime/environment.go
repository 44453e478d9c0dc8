// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package runtime

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	log "github.com/luxfi/log"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/modules"
	"github.com/luxfi/swapvault/state"
)

// txContext is shared by every frame of one transaction.
type txContext struct {
	store    *state.Store
	registry *modules.Registry
	now      time.Time
	log      log.Logger
	signers  contract.SignerSet
	budget   uint64
	used     uint64
}

func (t *txContext) consume(units uint64) error {
	if units > t.budget-t.used {
		return fmt.Errorf("%w: %d used, %d requested, budget %d", ErrComputeBudgetExceeded, t.used, units, t.budget)
	}
	t.used += units
	return nil
}

// invoke runs programID with accounts. Every account marked as signer must be
// authorized by the caller; the callee is granted exactly those signatures.
func (t *txContext) invoke(depth int, caller contract.Authority, programID solana.PublicKey, accounts []*solana.AccountMeta, data []byte) error {
	if depth >= MaxInvokeDepth {
		return fmt.Errorf("%w: invoking %s at depth %d", ErrMaxDepth, programID, depth)
	}
	module, ok := t.registry.GetModuleByProgramID(programID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}
	if err := t.consume(InvokeUnits); err != nil {
		return err
	}

	granted := make(contract.SignerSet)
	for i, acc := range accounts {
		if acc == nil {
			return fmt.Errorf("%w: nil account at %d for %s", ErrInvalidAccounts, i, module.Name)
		}
		if !acc.IsSigner {
			continue
		}
		if !caller.Authorizes(acc.PublicKey) {
			return fmt.Errorf("%w: %s for %s", ErrMissingSignature, acc.PublicKey, module.Name)
		}
		granted[acc.PublicKey] = struct{}{}
	}

	f := &frame{
		tx:        t,
		depth:     depth,
		programID: programID,
		authority: granted,
	}
	snapshot := t.store.Snapshot()
	if err := module.Program.Execute(f, accounts, data); err != nil {
		t.store.RevertToSnapshot(snapshot)
		return fmt.Errorf("%s: %w", module.Name, err)
	}
	return nil
}

// frame is the environment of a single program invocation.
type frame struct {
	tx        *txContext
	depth     int
	programID solana.PublicKey
	authority contract.SignerSet
}

var _ contract.Environment = (*frame)(nil)

func (f *frame) StateDB() contract.StateDB { return f.tx.store }

func (f *frame) Now() time.Time { return f.tx.now }

func (f *frame) Logger() log.Logger { return f.tx.log }

func (f *frame) Authority() contract.Authority { return f.authority }

func (f *frame) ConsumeUnits(units uint64) error { return f.tx.consume(units) }

// Invoke calls another program. Signer accounts may be authorized by this
// frame's signatures or by any of signers.
func (f *frame) Invoke(programID solana.PublicKey, accounts []*solana.AccountMeta, data []byte, signers ...contract.Authority) error {
	caller := append(contract.Authorities{f.authority}, signers...)
	return f.tx.invoke(f.depth+1, caller, programID, accounts, data)
}
