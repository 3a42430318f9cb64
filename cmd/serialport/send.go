//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	serial "github.com/abakum/go-serialport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/atomic"
)

var sendCmd = &cobra.Command{
	Use:   "send <port> [data]",
	Short: "Send data to a serial port",
	Long: `Send data to a serial port and wait until the device has taken all of
it. Data is read from stdin when not given as an argument.

Example usage:
  serialport send ttyUSB0 "AT+GMR" --newline
  serialport send ttyUSB0 --hex "41 54 0d 0a"
  echo test | serialport send ttyUSB0`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		if len(args) == 2 {
			data = []byte(args[1])
		} else {
			in, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			data = in
		}
		if isHex, _ := cmd.Flags().GetBool("hex"); isHex {
			decoded, err := parseHex(string(data))
			if err != nil {
				return err
			}
			data = decoded
		} else if newline, _ := cmd.Flags().GetBool("newline"); newline {
			data = append(data, '\n')
		}
		timeout, _ := cmd.Flags().GetDuration("timeout")

		port, err := openPort(viper.GetViper(), args[0], serial.WriteOnly)
		if err != nil {
			return err
		}
		defer port.Close()

		fmt.Fprintf(cmd.ErrOrStderr(), "%s Sending %d bytes to %s\n", infoStyle.Render(">"), len(data), port.SystemLocation())
		flushed, chunks, err := sendData(port, data, timeout)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d of %d bytes flushed\n", errorStyle.Render("x"), flushed, len(data))
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d bytes flushed in %d chunks\n", successStyle.Render("ok"), flushed, chunks)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolP("hex", "x", false, "interpret data as hexadecimal (e.g. '48 65 6c 6c 6f')")
	sendCmd.Flags().BoolP("newline", "n", false, "append a newline to the data")
	sendCmd.Flags().DurationP("timeout", "t", 5*time.Second, "give up when the device takes no data for this long")
}

// parseHex accepts bytes separated by spaces, with or without 0x.
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer("0x", "", "0X", "", " ", "", "\n", "", "\r", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return b, nil
}

// sendData queues data and waits for the port to flush it, counting the
// bytes and chunks reported by OnDataFlushed.
func sendData(port *serial.Port, data []byte, timeout time.Duration) (int64, int64, error) {
	flushed := atomic.NewInt64(0)
	chunks := atomic.NewInt64(0)
	unregister := port.OnDataFlushed(func(n int64) {
		flushed.Add(n)
		chunks.Inc()
	})
	defer unregister()

	if _, err := port.Write(data); err != nil {
		return 0, 0, err
	}
	// Each round returns once a chunk reached the device, false when the
	// buffer is empty or the device stalled.
	for port.WaitForBytesWritten(int(timeout / time.Millisecond)) {
	}
	if code := port.Error(); code != serial.NoError {
		return flushed.Load(), chunks.Load(), fmt.Errorf("writing to %s: %v", port.SystemLocation(), code)
	}
	if err := port.Flush(); err != nil {
		return flushed.Load(), chunks.Load(), err
	}
	return flushed.Load(), chunks.Load(), nil
}
