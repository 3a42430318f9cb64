//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	serial "github.com/abakum/go-serialport"
	"github.com/abakum/go-serialport/enumerator"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written by port listeners and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestParseHex(t *testing.T) {
	b, err := parseHex("41 54 0x0d\n0A")
	require.NoError(t, err)
	require.Equal(t, []byte("AT\r\n"), b)

	_, err = parseHex("4")
	require.Error(t, err)
	_, err = parseHex("zz")
	require.Error(t, err)
}

func TestParseOnOff(t *testing.T) {
	for _, s := range []string{"on", "1", "true", "high"} {
		on, err := parseOnOff(s)
		require.NoError(t, err)
		require.True(t, on, s)
	}
	on, err := parseOnOff("off")
	require.NoError(t, err)
	require.False(t, on)
	_, err = parseOnOff("maybe")
	require.Error(t, err)
}

func TestPortOptions(t *testing.T) {
	v := viper.New()
	v.Set("baud", 19200)
	v.Set("databits", 7)
	v.Set("parity", "even")
	v.Set("stopbits", "2")
	v.Set("flow", "hardware")
	v.Set("policy", "stop")
	v.Set("restore", false)
	opts, err := portOptions(v)
	require.NoError(t, err)

	s := serial.NewPort("VCOM", opts...).Settings()
	require.Equal(t, int32(19200), s.InputBaudRate)
	require.Equal(t, int32(19200), s.OutputBaudRate)
	require.Equal(t, serial.Data7, s.DataBits)
	require.Equal(t, serial.EvenParity, s.Parity)
	require.Equal(t, serial.TwoStopBits, s.StopBits)
	require.Equal(t, serial.HardwareFlowControl, s.FlowControl)
	require.Equal(t, serial.StopReceivingPolicy, s.Policy)
	require.False(t, s.RestoreOnClose)

	for key, value := range map[string]any{"databits": 9, "parity": "purple", "stopbits": "3", "flow": "xon", "policy": "drop"} {
		v := viper.New()
		v.Set(key, value)
		_, err := portOptions(v)
		require.Error(t, err, key)
	}
}

func TestInitConfigReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "serialport.yaml")
	require.NoError(t, os.WriteFile(file, []byte("baud: 57600\nparity: odd\nlog-level: warn\n"), 0o644))
	t.Setenv("SERIALPORT_PARITY", "mark")

	cfgFile = file
	defer func() { cfgFile = "" }()
	v := viper.New()
	require.NoError(t, initConfig(v))
	require.Equal(t, int32(57600), v.GetInt32("baud"))
	require.Equal(t, "mark", v.GetString("parity"))
	require.Equal(t, "warn", v.GetString("log-level"))

	cfgFile = filepath.Join(dir, "missing.yaml")
	require.Error(t, initConfig(viper.New()))
}

func TestLoopback(t *testing.T) {
	var out syncBuffer
	require.NoError(t, runLoopback("TLOOP", nil, 3000, 5*time.Second, &out))
	require.Contains(t, out.String(), "3000")
	require.NotContains(t, serial.GetVirtualPortsList(), "TLOOPA:")

	opts := []serial.Option{serial.WithDataBits(serial.Data7), serial.WithParity(serial.MarkParity), serial.WithFlowControl(serial.HardwareFlowControl)}
	require.NoError(t, runLoopback("TLOOPM", opts, 500, 5*time.Second, &out))
}

func openPair(t *testing.T, a, b string) (*serial.Port, *serial.Port) {
	require.NoError(t, serial.CreateVirtualPair(a, b))
	t.Cleanup(func() { serial.RemoveVirtualPair(a) })
	pa := serial.NewPort(a)
	require.NoError(t, pa.Open(serial.ReadWrite))
	t.Cleanup(func() { pa.Close() })
	pb := serial.NewPort(b)
	require.NoError(t, pb.Open(serial.ReadWrite))
	t.Cleanup(func() { pb.Close() })
	return pa, pb
}

func TestSendData(t *testing.T) {
	pa, pb := openPair(t, "TSENDA", "TSENDB")
	data := bytes.Repeat([]byte("0123456789"), 200)
	flushed, chunks, err := sendData(pa, data, time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), flushed)
	require.Positive(t, chunks)
	require.Eventually(t, func() bool { return pb.BytesAvailable() == int64(len(data)) }, 2*time.Second, 5*time.Millisecond)
}

func TestListen(t *testing.T) {
	pa, pb := openPair(t, "TLISTA", "TLISTB")
	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan error, 1)
	go func() { res <- listen(ctx, pb, &out, false) }()

	_, err := pa.Write([]byte("hello listener"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return out.String() == "hello listener" }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-res)
}

func TestListenStopsWhenDeviceRemoved(t *testing.T) {
	_, pb := openPair(t, "TGONEA", "TGONEB")
	res := make(chan error, 1)
	go func() { res <- listen(context.Background(), pb, &syncBuffer{}, true) }()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, serial.RemoveVirtualPair("TGONEA"))
	select {
	case err := <-res:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return")
	}
}

func TestRenderTables(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "ttyUSB0", SystemLocation: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "A6004CCFA", Manufacturer: "FTDI", Product: "FT232R"},
		{Name: "VCOM1", SystemLocation: "VCOM1:", IsVirtual: true},
	}
	table := renderPortTable(ports)
	for _, s := range []string{"ttyUSB0", "0403:6001", "A6004CCFA", "FTDI FT232R", "virtual"} {
		require.True(t, strings.Contains(table, s), s)
	}

	info := renderInfo(serial.Settings{Location: "VCOM1:", InputBaudRate: 9600, OutputBaudRate: 9600, DataBits: serial.Data8}, serial.LineDTR)
	require.Contains(t, info, "9600")
	require.Contains(t, info, "[DTR]")
}
