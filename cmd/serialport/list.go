//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"fmt"

	"github.com/abakum/go-serialport/enumerator"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List the serial ports found on the system followed by the registered
virtual ports. USB adapters are shown with their VID:PID and serial number.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := enumerator.GetDetailedPortsList()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(ports) == 0 {
			fmt.Fprintln(out, "No serial ports found")
			return nil
		}
		if asTable, _ := cmd.Flags().GetBool("table"); asTable {
			fmt.Fprintln(out, renderPortTable(ports))
			return nil
		}
		for _, port := range ports {
			fmt.Fprintf(out, "Port: %s\n", port.SystemLocation)
			if port.IsUSB {
				fmt.Fprintf(out, "   USB ID     %s:%s\n", port.VID, port.PID)
				fmt.Fprintf(out, "   USB serial %s\n", port.SerialNumber)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolP("table", "t", false, "display output in a styled table")
}

func renderPortTable(ports []*enumerator.PortDetails) string {
	t := newTable("Name", "Location", "Type", "USB ID", "Serial", "Description")
	for _, p := range ports {
		kind, id := "native", ""
		switch {
		case p.IsVirtual:
			kind = "virtual"
		case p.IsUSB:
			kind = "usb"
			id = p.VID + ":" + p.PID
		}
		desc := p.Product
		if p.Manufacturer != "" {
			desc = p.Manufacturer + " " + desc
		}
		t.Row(p.Name, p.SystemLocation, kind, id, p.SerialNumber, desc)
	}
	return t.Render()
}
