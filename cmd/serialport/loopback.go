//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	serial "github.com/abakum/go-serialport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Run a self-test over a virtual null-modem pair",
	Long: `Create a virtual pair, open both ends with the configured settings,
check that DTR and RTS cross to DSR/DCD and CTS, then push a test pattern
through the line and verify it arrives intact.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := portOptions(viper.GetViper())
		if err != nil {
			return err
		}
		count, _ := cmd.Flags().GetInt("count")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		name := "LOOP" + strconv.Itoa(os.Getpid())
		return runLoopback(name, opts, count, timeout, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(loopbackCmd)
	loopbackCmd.Flags().IntP("count", "c", 4096, "number of bytes to send")
	loopbackCmd.Flags().DurationP("timeout", "t", 10*time.Second, "time allowed for the transfer")
}

func runLoopback(name string, opts []serial.Option, count int, timeout time.Duration, out io.Writer) error {
	a, b := name+"A", name+"B"
	if err := serial.CreateVirtualPair(a, b); err != nil {
		return err
	}
	defer serial.RemoveVirtualPair(a)

	tx := serial.NewPort(a, opts...)
	if err := tx.Open(serial.ReadWrite); err != nil {
		return err
	}
	defer tx.Close()
	rx := serial.NewPort(b, opts...)
	if err := rx.Open(serial.ReadWrite); err != nil {
		return err
	}
	defer rx.Close()

	if err := checkLineCrossing(tx, rx); err != nil {
		return err
	}

	payload := make([]byte, count)
	for i := range payload {
		payload[i] = byte(i*31 + i>>8)
	}
	if rx.DataBits() < serial.Data8 {
		mask := byte(1)<<rx.DataBits() - 1
		for i := range payload {
			payload[i] &= mask
		}
	}

	var (
		mu       sync.Mutex
		received []byte
		once     sync.Once
		done     = make(chan struct{})
	)
	buf := make([]byte, 1024)
	defer rx.OnDataReady(func() {
		mu.Lock()
		defer mu.Unlock()
		for {
			n, err := rx.Read(buf)
			received = append(received, buf[:n]...)
			if err != nil || n == 0 {
				break
			}
		}
		if len(received) >= count {
			once.Do(func() { close(done) })
		}
	})()

	start := time.Now()
	if _, err := tx.Write(payload); err != nil {
		return err
	}
	select {
	case <-done:
	case <-time.After(timeout):
		mu.Lock()
		n := len(received)
		mu.Unlock()
		return fmt.Errorf("received %d of %d bytes in %s", n, count, timeout)
	}
	elapsed := time.Since(start)

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(received[:count], payload) {
		return errors.New("received data differs from what was sent")
	}

	s := rx.Settings()
	t := newTable("Check", "Result")
	t.Row("Line crossing", successStyle.Render("ok"))
	t.Row("Settings", fmt.Sprintf("%d %s%s%s", s.InputBaudRate, s.DataBits, parityLetter(s.Parity), s.StopBits))
	t.Row("Bytes", strconv.Itoa(count))
	t.Row("Elapsed", elapsed.Round(time.Microsecond).String())
	t.Row("Data", successStyle.Render("ok"))
	fmt.Fprintln(out, t.Render())
	return nil
}

// checkLineCrossing drives the outputs of tx and reads them back on rx.
func checkLineCrossing(tx, rx *serial.Port) error {
	for _, c := range []struct{ dtr, rts bool }{{true, false}, {false, true}} {
		if err := tx.SetDTR(c.dtr); err != nil {
			return err
		}
		if err := tx.SetRTS(c.rts); err != nil {
			return err
		}
		bits, err := rx.GetModemStatusBits()
		if err != nil {
			return err
		}
		if bits.DSR != c.dtr || bits.DCD != c.dtr || bits.CTS != c.rts {
			return fmt.Errorf("line crossing failed: DTR=%v RTS=%v gave %+v", c.dtr, c.rts, *bits)
		}
	}
	// Leave both asserted so hardware flow control lets data through.
	if err := tx.SetDTR(true); err != nil {
		return err
	}
	return tx.SetRTS(true)
}

func parityLetter(p serial.Parity) string {
	return map[serial.Parity]string{
		serial.NoParity:    "N",
		serial.OddParity:   "O",
		serial.EvenParity:  "E",
		serial.MarkParity:  "M",
		serial.SpaceParity: "S",
	}[p]
}
