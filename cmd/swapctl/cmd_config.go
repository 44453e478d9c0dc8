// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/luxfi/swapvault/program"
)

func newConfigCmd(loadConfig func() (program.Config, error)) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Program config files",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load and verify a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "program:             %s\n", cfg.ProgramID)
			fmt.Fprintf(out, "router:              %s\n", cfg.RouterProgramID)
			fmt.Fprintf(out, "bootstrap authority: %s\n", cfg.BootstrapAuthority)
			fmt.Fprintf(out, "enforce executors:   %t\n", cfg.EnforceExecutors)
			fmt.Fprintln(out, "ok")
			return nil
		},
	})

	var programID, bootstrap string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Print a config for a program id and bootstrap authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := program.DefaultConfig()
			var err error
			cfg.ProgramID = solana.NewWallet().PublicKey()
			if programID != "" {
				if cfg.ProgramID, err = parseKey("program id", programID); err != nil {
					return err
				}
			}
			if cfg.BootstrapAuthority, err = parseKey("bootstrap authority", bootstrap); err != nil {
				return err
			}
			if err := cfg.Verify(); err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	initCmd.Flags().StringVar(&programID, "program-id", "", "Program id (random if empty)")
	initCmd.Flags().StringVar(&bootstrap, "bootstrap-authority", "", "Bootstrap authority (required)")
	_ = initCmd.MarkFlagRequired("bootstrap-authority")
	configCmd.AddCommand(initCmd)

	return configCmd
}
