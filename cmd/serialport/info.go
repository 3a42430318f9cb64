//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"fmt"
	"strconv"

	serial "github.com/abakum/go-serialport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var infoCmd = &cobra.Command{
	Use:   "info <port>",
	Short: "Show the settings and signals of a port",
	Long: `Open the port and print its settings as read back from the device,
together with the state of the modem lines. Settings passed as flags are
applied first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := openPort(viper.GetViper(), args[0], serial.ReadWrite)
		if err != nil {
			return err
		}
		defer port.Close()

		lines, err := port.Lines()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderInfo(port.Settings(), lines))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func renderInfo(s serial.Settings, lines serial.Lines) string {
	t := newTable("Setting", "Value")
	t.Row("Location", s.Location)
	t.Row("Input baud rate", strconv.Itoa(int(s.InputBaudRate)))
	t.Row("Output baud rate", strconv.Itoa(int(s.OutputBaudRate)))
	t.Row("Data bits", s.DataBits.String())
	t.Row("Parity", s.Parity.String())
	t.Row("Stop bits", s.StopBits.String())
	t.Row("Flow control", s.FlowControl.String())
	t.Row("Data error policy", s.Policy.String())
	t.Row("Restore on close", strconv.FormatBool(s.RestoreOnClose))
	t.Row("Lines", lines.String())
	return t.Render()
}
