// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/luxfi/database/memdb"
	log "github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/swapvault/contract"
	"github.com/luxfi/swapvault/modules"
	"github.com/luxfi/swapvault/program"
	"github.com/luxfi/swapvault/runtime"
	"github.com/luxfi/swapvault/sim"
	"github.com/luxfi/swapvault/token"
	"github.com/luxfi/swapvault/vault"
)

type simulation struct {
	amountIn     uint64
	quoteOut     uint64
	minAmountOut uint64
	liquidity    uint64
	verbose      bool
}

func newSimulateCmd() *cobra.Command {
	s := simulation{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one escrowed swap against an in-memory fixed-quote router",
		Long: `Hosts the program and a router paying --quote-out for --amount-in,
bootstraps access control, funds a user and submits a single swap.
Prints every balance the swap touches. A shortfall below --min-amount-out
reverts the transaction and leaves all balances unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.Uint64Var(&s.amountIn, "amount-in", 1_000_000, "Input amount")
	flags.Uint64Var(&s.quoteOut, "quote-out", 950_000, "Output the router pays")
	flags.Uint64Var(&s.minAmountOut, "min-amount-out", 900_000, "Minimum output after fee")
	flags.Uint64Var(&s.liquidity, "liquidity", 10_000_000, "Router pool liquidity")
	flags.BoolVarP(&s.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func (s simulation) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var (
		bootstrap = solana.NewWallet().PublicKey()
		admin     = solana.NewWallet().PublicKey()
		owner     = solana.NewWallet().PublicKey()
		relayer   = solana.NewWallet().PublicKey()
		user      = solana.NewWallet().PublicKey()
		inMint    = solana.NewWallet().PublicKey()
		outMint   = solana.NewWallet().PublicKey()
	)
	cfg := program.Config{
		ProgramID:          solana.NewWallet().PublicKey(),
		RouterProgramID:    solana.NewWallet().PublicKey(),
		BootstrapAuthority: bootstrap,
	}
	p, err := program.New(cfg)
	if err != nil {
		return err
	}
	registry := modules.NewRegistry()
	if err := registry.Register(p.Module()); err != nil {
		return err
	}
	if err := registry.Register(modules.Module{
		Name:      "router",
		ProgramID: cfg.RouterProgramID,
		Program:   sim.NewRouter(cfg.RouterProgramID),
	}); err != nil {
		return err
	}

	level := log.InfoLevel
	if s.verbose {
		level = log.DebugLevel
	}
	rt, err := runtime.New(memdb.New(), registry, runtime.WithLogger(log.NewTestLogger(level)))
	if err != nil {
		return err
	}

	send := func(instruction *solana.GenericInstruction, err error) error {
		if err != nil {
			return err
		}
		var signers []solana.PublicKey
		for _, acc := range instruction.AccountValues {
			if acc.IsSigner {
				signers = append(signers, acc.PublicKey)
			}
		}
		_, err = rt.Execute(ctx, &runtime.Transaction{
			Signers:      signers,
			Instructions: []solana.Instruction{instruction},
		})
		return err
	}
	if err := send(program.NewInitializeConfigInstruction(cfg.ProgramID, bootstrap, admin)); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}
	if err := send(program.NewInitializeAccessControlInstruction(cfg.ProgramID, admin, owner)); err != nil {
		return fmt.Errorf("initialize access control: %w", err)
	}

	deadline := time.Now().Add(time.Minute).Unix()
	v, _, err := vault.Derive(cfg.ProgramID, vault.Params{
		InputMint:    inMint,
		OutputMint:   outMint,
		User:         user,
		AmountIn:     s.amountIn,
		MinAmountOut: s.minAmountOut,
		Deadline:     deadline,
	})
	if err != nil {
		return err
	}

	var (
		pool   sim.Pool
		userIn solana.PublicKey
	)
	err = rt.Update(func(state contract.StateDB) error {
		var err error
		if pool, err = sim.OpenPool(state, cfg.RouterProgramID, inMint, outMint, s.liquidity); err != nil {
			return err
		}
		if userIn, err = sim.Fund(state, user, inMint, s.amountIn); err != nil {
			return err
		}
		return token.NewLedger(state).Approve(userIn, v.Address, s.amountIn, contract.NewSignerSet(user))
	})
	if err != nil {
		return fmt.Errorf("seed market: %w", err)
	}

	payload, err := sim.Quote{AmountIn: s.amountIn, AmountOut: s.quoteOut}.Encode()
	if err != nil {
		return err
	}
	swapErr := send(program.NewSwapInstruction(cfg.ProgramID, program.SwapAccounts{
		InputMint:      inMint,
		OutputMint:     outMint,
		User:           user,
		Submitter:      relayer,
		Router:         cfg.RouterProgramID,
		RouterAccounts: pool.Accounts(v.Address, v.InputHolding, v.OutputHolding),
	}, program.SwapArgs{
		AmountIn:     s.amountIn,
		MinAmountOut: s.minAmountOut,
		Deadline:     deadline,
		Payload:      payload,
	}))
	if swapErr != nil {
		fmt.Fprintf(out, "swap reverted: %v\n", swapErr)
	} else {
		fmt.Fprintln(out, "swap committed")
	}

	userOut, err := token.HoldingAddress(user, outMint)
	if err != nil {
		return err
	}
	feeHolding, err := vault.FeeHolding(cfg.ProgramID, outMint)
	if err != nil {
		return err
	}
	return rt.View(func(state contract.StateDB) error {
		ledger := token.NewLedger(state)
		for _, row := range []struct {
			name string
			addr solana.PublicKey
		}{
			{"user input", userIn},
			{"user output", userOut},
			{"vault input", v.InputHolding},
			{"vault output", v.OutputHolding},
			{"fee holding", feeHolding},
			{"pool input", pool.Input},
			{"pool output", pool.Output},
		} {
			amount, err := ledger.Balance(row.addr)
			if err != nil {
				fmt.Fprintf(out, "%-13s -\n", row.name+":")
				continue
			}
			fmt.Fprintf(out, "%-13s %d\n", row.name+":", amount)
		}
		return nil
	})
}
