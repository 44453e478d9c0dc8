// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/zeebo/blake3"

	"github.com/luxfi/swapvault/acl"
)

// Discriminator identifies an instruction. It prefixes the borsh encoded
// instruction arguments.
type Discriminator [8]byte

// discriminator: BLAKE3("global:" || name)[:8]
func discriminator(name string) Discriminator {
	sum := blake3.Sum256([]byte("global:" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

// Instruction discriminators
var (
	InitializeConfigDiscriminator        = discriminator("initialize_config")
	InitializeAccessControlDiscriminator = discriminator("initialize_access_control")
	SetRoleDiscriminator                 = discriminator("set_role")
	AddExecutorDiscriminator             = discriminator("add_executor")
	RemoveExecutorDiscriminator          = discriminator("remove_executor")
	SwapDiscriminator                    = discriminator("swap")
	WithdrawFeesDiscriminator            = discriminator("withdraw_fees")
)

type InitializeConfigArgs struct {
	Admin solana.PublicKey `borsh:"admin"`
}

type InitializeAccessControlArgs struct {
	Owner solana.PublicKey `borsh:"owner"`
}

type SetRoleArgs struct {
	Target solana.PublicKey `borsh:"target"`
	Role   uint8            `borsh:"role"`
	Add    bool             `borsh:"add"`
}

type ExecutorArgs struct {
	Executor solana.PublicKey `borsh:"executor"`
}

// SwapArgs carries the order. Payload is forwarded to the router untouched.
type SwapArgs struct {
	AmountIn     uint64 `borsh:"amount_in"`
	MinAmountOut uint64 `borsh:"min_amount_out"`
	Deadline     int64  `borsh:"deadline"`
	Payload      []byte `borsh:"payload"`
}

type WithdrawFeesArgs struct {
	Amount uint64 `borsh:"amount"`
}

func encode(d Discriminator, args interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, fmt.Errorf("encode instruction: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, args interface{}) error {
	if err := bin.NewBorshDecoder(data).Decode(args); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInstruction, err)
	}
	return nil
}

func signerInstruction(programID, signer solana.PublicKey, d Discriminator, args interface{}) (*solana.GenericInstruction, error) {
	data, err := encode(d, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{solana.Meta(signer).SIGNER()}, data), nil
}

// NewInitializeConfigInstruction builds initialize_config signed by payer.
func NewInitializeConfigInstruction(programID, payer, admin solana.PublicKey) (*solana.GenericInstruction, error) {
	return signerInstruction(programID, payer, InitializeConfigDiscriminator, InitializeConfigArgs{Admin: admin})
}

// NewInitializeAccessControlInstruction builds initialize_access_control
// signed by the config admin.
func NewInitializeAccessControlInstruction(programID, admin, owner solana.PublicKey) (*solana.GenericInstruction, error) {
	return signerInstruction(programID, admin, InitializeAccessControlDiscriminator, InitializeAccessControlArgs{Owner: owner})
}

// NewSetRoleInstruction builds set_role signed by caller.
func NewSetRoleInstruction(programID, caller, target solana.PublicKey, role acl.Role, add bool) (*solana.GenericInstruction, error) {
	return signerInstruction(programID, caller, SetRoleDiscriminator, SetRoleArgs{Target: target, Role: uint8(role), Add: add})
}

// NewAddExecutorInstruction builds add_executor signed by caller.
func NewAddExecutorInstruction(programID, caller, executor solana.PublicKey) (*solana.GenericInstruction, error) {
	return signerInstruction(programID, caller, AddExecutorDiscriminator, ExecutorArgs{Executor: executor})
}

// NewRemoveExecutorInstruction builds remove_executor signed by caller.
func NewRemoveExecutorInstruction(programID, caller, executor solana.PublicKey) (*solana.GenericInstruction, error) {
	return signerInstruction(programID, caller, RemoveExecutorDiscriminator, ExecutorArgs{Executor: executor})
}

// SwapAccounts lists the accounts of a swap instruction.
type SwapAccounts struct {
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	User       solana.PublicKey
	Submitter  solana.PublicKey
	Router     solana.PublicKey

	// RouterAccounts are forwarded to the router.
	RouterAccounts []*solana.AccountMeta
}

// NewSwapInstruction builds a swap signed by the submitter.
func NewSwapInstruction(programID solana.PublicKey, accounts SwapAccounts, args SwapArgs) (*solana.GenericInstruction, error) {
	data, err := encode(SwapDiscriminator, args)
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(accounts.InputMint),
		solana.Meta(accounts.OutputMint),
		solana.Meta(accounts.User),
		solana.Meta(accounts.Submitter).SIGNER(),
		solana.Meta(accounts.Router),
	}
	for _, acc := range accounts.RouterAccounts {
		metas = append(metas, &solana.AccountMeta{
			PublicKey:  acc.PublicKey,
			IsWritable: acc.IsWritable,
		})
	}
	return solana.NewInstruction(programID, metas, data), nil
}

// NewWithdrawFeesInstruction builds withdraw_fees signed by a collector.
func NewWithdrawFeesInstruction(programID, collector, mint, destination solana.PublicKey, amount uint64) (*solana.GenericInstruction, error) {
	data, err := encode(WithdrawFeesDiscriminator, WithdrawFeesArgs{Amount: amount})
	if err != nil {
		return nil, err
	}
	metas := solana.AccountMetaSlice{
		solana.Meta(collector).SIGNER(),
		solana.Meta(mint),
		solana.Meta(destination).WRITE(),
	}
	return solana.NewInstruction(programID, metas, data), nil
}
