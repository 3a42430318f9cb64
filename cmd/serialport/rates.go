//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"fmt"

	serial "github.com/abakum/go-serialport"
	"github.com/spf13/cobra"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Print the standard baud rates",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rates := serial.StandardBaudRates()
		if virtual, _ := cmd.Flags().GetBool("virtual"); virtual {
			rates = serial.VirtualBaudRates()
		}
		for _, r := range rates {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
	},
}

func init() {
	rootCmd.AddCommand(ratesCmd)
	ratesCmd.Flags().Bool("virtual", false, "print the rates of virtual ports instead")
}
