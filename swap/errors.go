// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package swap

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/luxfi/swapvault/acl"
	"github.com/luxfi/swapvault/fees"
)

// Errors
var (
	ErrExpiredOrder             = errors.New("order is expired")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrVaultNotSettled          = errors.New("vault balance not restored")
	ErrInvalidRequest           = errors.New("invalid swap request")
	ErrUnauthorized             = acl.ErrUnauthorized
	ErrArithmetic               = fees.ErrArithmetic
)

// StageError reports the stage at which a swap aborted.
type StageError struct {
	Stage Stage
	Vault solana.PublicKey
	Err   error
}

func (e *StageError) Error() string {
	if e.Vault.IsZero() {
		return fmt.Sprintf("swap aborted at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("swap aborted at %s (vault %s): %v", e.Stage, e.Vault, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AbortStage returns the stage recorded in err, if any.
func AbortStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return 0, false
}
