//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	serial "github.com/abakum/go-serialport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var linesCmd = &cobra.Command{
	Use:   "lines <port>",
	Short: "Control DTR/RTS and show the modem signals",
	Long: `Set the DTR and RTS outputs of a port and print the state of every
modem line. With --watch the command keeps polling and logs each change
until interrupted.

Example usage:
  serialport lines ttyUSB0 --dtr off --rts on
  serialport lines ttyUSB0 --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := openPort(viper.GetViper(), args[0], serial.ReadWrite)
		if err != nil {
			return err
		}
		defer port.Close()

		for flag, set := range map[string]func(bool) error{"dtr": port.SetDTR, "rts": port.SetRTS} {
			value, _ := cmd.Flags().GetString(flag)
			if value == "" {
				continue
			}
			on, err := parseOnOff(value)
			if err != nil {
				return fmt.Errorf("--%s: %w", flag, err)
			}
			if err := set(on); err != nil {
				return err
			}
		}

		lines, err := port.Lines()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderLines(lines))

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchLines(ctx, port, lines)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linesCmd)
	linesCmd.Flags().String("dtr", "", "set DTR: on or off")
	linesCmd.Flags().String("rts", "", "set RTS: on or off")
	linesCmd.Flags().BoolP("watch", "w", false, "log signal changes until interrupted")
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "1", "true", "high":
		return true, nil
	case "off", "0", "false", "low":
		return false, nil
	}
	return false, fmt.Errorf("invalid line state %q", s)
}

func renderLines(lines serial.Lines) string {
	t := newTable("DTR", "RTS", "CTS", "DSR", "DCD", "RI")
	t.Row(
		lineState(lines&serial.LineDTR != 0),
		lineState(lines&serial.LineRTS != 0),
		lineState(lines&serial.LineCTS != 0),
		lineState(lines&serial.LineDSR != 0),
		lineState(lines&serial.LineDCD != 0),
		lineState(lines&serial.LineRI != 0),
	)
	return t.Render()
}

func watchLines(ctx context.Context, port *serial.Port, last serial.Lines) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		lines, err := port.Lines()
		if err != nil {
			return err
		}
		if lines != last {
			logger.Info().Stringer("lines", lines).Stringer("was", last).Msg("Signals changed")
			last = lines
		}
	}
}
