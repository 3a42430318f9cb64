//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestDecodeWinError(t *testing.T) {
	cases := map[windows.Errno]PortErrorCode{
		windows.ERROR_FILE_NOT_FOUND:    NoSuchDevice,
		windows.ERROR_ACCESS_DENIED:     PermissionDenied,
		windows.ERROR_SHARING_VIOLATION: PermissionDenied,
		windows.ERROR_INVALID_HANDLE:    IoError,
		windows.ERROR_BAD_COMMAND:       IoError,
	}
	for errno, code := range cases {
		err := decodeWinError(fmt.Errorf("open: %w", errno), ConfiguringError)
		require.Equal(t, code, err.Code(), errno.Error())
		require.ErrorIs(t, err, errno)
	}
	require.Equal(t, UnsupportedPortOperation, decodeWinError(windows.ERROR_NOT_SUPPORTED, UnknownPortError).Code())
	require.Equal(t, ConfiguringError, decodeWinError(windows.ERROR_NOT_SUPPORTED, ConfiguringError).Code())

	own := portErrorf(ParityError, nil)
	require.Same(t, own, decodeWinError(own, IoError))
}

func TestApplyPolicyFlags(t *testing.T) {
	dcb := &windows.DCB{Parity: windows.EVENPARITY}
	applyPolicyFlags(dcb, PassZeroPolicy)
	require.NotZero(t, dcb.Flags&dcbfParity)
	require.NotZero(t, dcb.Flags&dcbfErrorChar)
	require.Zero(t, dcb.ErrorChar)

	applyPolicyFlags(dcb, IgnorePolicy)
	require.Zero(t, dcb.Flags&(dcbfParity|dcbfErrorChar))

	applyPolicyFlags(dcb, StopReceivingPolicy)
	require.NotZero(t, dcb.Flags&dcbfParity)
	require.Zero(t, dcb.Flags&dcbfErrorChar)

	dcb.Parity = windows.NOPARITY
	applyPolicyFlags(dcb, PassZeroPolicy)
	require.Zero(t, dcb.Flags&(dcbfParity|dcbfErrorChar))
}

// Runs against the first COM port of the machine, if there is one.
func TestWindowsOpenClose(t *testing.T) {
	ports, err := nativeGetPortsList()
	if err != nil || len(ports) == 0 {
		t.Skip("no COM ports")
	}
	p := NewPort(PortNameFromSystemLocation(ports[0]), WithLockOracle(nil), WithBaudRate(115200))
	if err := p.Open(ReadWrite); err != nil {
		t.Skipf("%s busy: %v", ports[0], err)
	}
	require.Equal(t, int32(115200), p.BaudRate(Input))
	require.False(t, p.WaitForReadyRead(1))
	require.NoError(t, p.Close())
	require.False(t, p.IsOpen())
}

// A read wait on an idle line returns as soon as another goroutine closes
// the port.
func TestWindowsCloseEndsReadWait(t *testing.T) {
	ports, err := nativeGetPortsList()
	if err != nil || len(ports) == 0 {
		t.Skip("no COM ports")
	}
	p := NewPort(PortNameFromSystemLocation(ports[0]), WithLockOracle(nil))
	if err := p.Open(ReadWrite); err != nil {
		t.Skipf("%s busy: %v", ports[0], err)
	}
	done := make(chan bool, 1)
	go func() { done <- p.WaitForReadyRead(-1) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, p.Close())
	select {
	case ready := <-done:
		require.False(t, ready)
	case <-time.After(2 * time.Second):
		t.Fatal("the wait outlived Close")
	}
}
