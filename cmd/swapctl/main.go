// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// swapctl inspects and exercises swapvault deployments: it derives vault
// addresses, quotes protocol fees, checks config files and runs swaps
// against an in-memory runtime.
package main

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/luxfi/swapvault/program"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "swapctl",
		Short: "Inspect and exercise swapvault deployments",
		Long: `swapctl works with a swapvault program config.

Vault and fee holding addresses are derived offline from the program id.
The simulate command hosts the program and a fixed-quote router in memory.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Program config file (YAML)")

	loadConfig := func() (program.Config, error) {
		if configPath == "" {
			return program.Config{}, fmt.Errorf("--config is required")
		}
		return program.LoadConfig(configPath)
	}

	root.AddCommand(newVaultCmd(loadConfig))
	root.AddCommand(newFeeCmd())
	root.AddCommand(newConfigCmd(loadConfig))
	root.AddCommand(newSimulateCmd())
	return root
}

func parseKey(name, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return key, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
