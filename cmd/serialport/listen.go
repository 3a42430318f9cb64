//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	serial "github.com/abakum/go-serialport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var listenCmd = &cobra.Command{
	Use:   "listen <port>",
	Short: "Print the data received on a serial port",
	Long: `Open the port and copy everything it receives to stdout until
interrupted. Data errors are logged; with the stop policy reading resumes
after each of them.

Example usage:
  serialport listen ttyUSB0 --baud 9600
  serialport listen ttyUSB0 --hex`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := openPort(viper.GetViper(), args[0], serial.ReadOnly)
		if err != nil {
			return err
		}
		defer port.Close()

		hexDump, _ := cmd.Flags().GetBool("hex")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger.Info().Str("port", port.SystemLocation()).Msg("Listening, press Ctrl-C to stop")
		return listen(ctx, port, cmd.OutOrStdout(), hexDump)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().BoolP("hex", "x", false, "print a hex dump instead of raw bytes")
}

// listen copies the port input to out as data_ready fires. It returns nil
// when ctx is done, an error when the device fails.
func listen(ctx context.Context, port *serial.Port, out io.Writer, hexDump bool) error {
	if hexDump {
		dumper := hex.Dumper(out)
		defer dumper.Close()
		out = dumper
	}

	fatal := make(chan serial.PortErrorCode, 1)
	buf := make([]byte, 4096)
	drain := func() {
		for {
			n, err := port.Read(buf)
			if n > 0 {
				out.Write(buf[:n])
			}
			if err != nil || n < len(buf) {
				return
			}
		}
	}
	defer port.OnDataReady(drain)()
	defer port.OnError(func(code serial.PortErrorCode) {
		switch code {
		case serial.ParityError, serial.FramingError, serial.BreakConditionError:
			logger.Warn().Stringer("error", code).Msg("Data error")
			port.ClearError()
		default:
			select {
			case fatal <- code:
			default:
			}
		}
	})()
	drain()

	select {
	case <-ctx.Done():
		return nil
	case code := <-fatal:
		return fmt.Errorf("%s: %v", port.SystemLocation(), code)
	}
}
