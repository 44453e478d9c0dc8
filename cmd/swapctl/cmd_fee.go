// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/luxfi/swapvault/fees"
)

func newFeeCmd() *cobra.Command {
	feeCmd := &cobra.Command{
		Use:   "fee",
		Short: "Protocol fee arithmetic",
	}
	feeCmd.AddCommand(&cobra.Command{
		Use:   "quote [proceeds]",
		Short: "Split swap proceeds into user amount and protocol fee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			proceeds, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid proceeds %q: %w", args[0], err)
			}
			user, fee, err := fees.Split(proceeds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "proceeds: %d\nfee:      %d (%d bps)\nuser:     %d\n",
				proceeds, fee, fees.RateBps, user)
			return nil
		},
	})
	return feeCmd
}
