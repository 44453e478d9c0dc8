// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/swapvault/program"
	"github.com/luxfi/swapvault/vault"
)

func newVaultCmd(loadConfig func() (program.Config, error)) *cobra.Command {
	vaultCmd := &cobra.Command{
		Use:   "vault",
		Short: "Vault address derivation",
	}

	var (
		inputMint, outputMint, user string
		amountIn, minAmountOut      uint64
		deadline                    int64
	)
	deriveCmd := &cobra.Command{
		Use:   "derive",
		Short: "Derive the vault and its holdings for an order",
		Example: `  swapctl vault derive -c swapvault.yaml \
    --input-mint So11111111111111111111111111111111111111112 \
    --output-mint EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v \
    --user <wallet> --amount-in 1000000 --min-amount-out 900000 --deadline 1700000060`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p := vault.Params{
				AmountIn:     amountIn,
				MinAmountOut: minAmountOut,
				Deadline:     deadline,
			}
			if p.InputMint, err = parseKey("input mint", inputMint); err != nil {
				return err
			}
			if p.OutputMint, err = parseKey("output mint", outputMint); err != nil {
				return err
			}
			if p.User, err = parseKey("user", user); err != nil {
				return err
			}

			v, _, err := vault.Derive(cfg.ProgramID, p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vault:          %s\n", v.Address)
			fmt.Fprintf(out, "bump:           %d\n", v.Bump)
			fmt.Fprintf(out, "input holding:  %s\n", v.InputHolding)
			fmt.Fprintf(out, "output holding: %s\n", v.OutputHolding)
			return nil
		},
	}
	flags := deriveCmd.Flags()
	flags.StringVar(&inputMint, "input-mint", "", "Input mint (required)")
	flags.StringVar(&outputMint, "output-mint", "", "Output mint (required)")
	flags.StringVar(&user, "user", "", "User wallet (required)")
	flags.Uint64Var(&amountIn, "amount-in", 0, "Input amount")
	flags.Uint64Var(&minAmountOut, "min-amount-out", 0, "Minimum output after fee")
	flags.Int64Var(&deadline, "deadline", 0, "Order deadline (unix seconds)")
	for _, name := range []string{"input-mint", "output-mint", "user"} {
		_ = deriveCmd.MarkFlagRequired(name)
	}

	feeCmd := &cobra.Command{
		Use:   "fee-holding [mint]",
		Short: "Derive the protocol fee holding for a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mint, err := parseKey("mint", args[0])
			if err != nil {
				return err
			}
			authority, err := vault.FeeAuthority(cfg.ProgramID)
			if err != nil {
				return err
			}
			holding, err := vault.FeeHolding(cfg.ProgramID, mint)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fee authority: %s\nfee holding:   %s\n", authority.Address(), holding)
			return nil
		},
	}

	vaultCmd.AddCommand(deriveCmd)
	vaultCmd.AddCommand(feeCmd)
	return vaultCmd
}
