//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeFromString(t *testing.T) {
	goodCases := map[string]Mode{
		"8N1":   {DataBits: 8, Parity: NoParity, StopBits: OneStopBit},
		"7S2":   {DataBits: 7, Parity: SpaceParity, StopBits: TwoStopBits},
		"5m1.5": {DataBits: 5, Parity: MarkParity, StopBits: OnePointFiveStopBits},
	}
	for s, m := range goodCases {
		var mode Mode
		require.NoError(t, ModeFromString(s, &mode), s)
		require.Equal(t, m, mode, s)
	}

	for _, s := range []string{"9N1", "8N3", "8R1", "8N", ""} {
		var mode Mode
		err := ModeFromString(s, &mode)
		require.Error(t, err, s)
		require.Equal(t, ConfiguringError, errorCode(err), s)
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("115200,8E1")
	require.NoError(t, err)
	require.Equal(t, Mode{BaudRate: 115200, DataBits: Data8, Parity: EvenParity, StopBits: OneStopBit}, mode)

	mode, err = ParseMode("7O2")
	require.NoError(t, err)
	require.Equal(t, int32(0), mode.BaudRate)
	require.Equal(t, OddParity, mode.Parity)

	_, err = ParseMode("fast,8N1")
	require.Equal(t, ConfiguringError, errorCode(err))
}

func TestParseSettingNames(t *testing.T) {
	for p := NoParity; p <= SpaceParity; p++ {
		got, err := ParseParity(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	for f := NoFlowControl; f <= SoftwareFlowControl; f++ {
		got, err := ParseFlowControl(f.String())
		require.NoError(t, err)
		require.Equal(t, f, got)
	}
	for pol := SkipPolicy; pol <= StopReceivingPolicy; pol++ {
		got, err := ParseDataErrorPolicy(pol.String())
		require.NoError(t, err)
		require.Equal(t, pol, got)
	}
	got, err := ParseStopBits("1.5")
	require.NoError(t, err)
	require.Equal(t, OnePointFiveStopBits, got)

	_, err = ParseParity("purple")
	require.Error(t, err)
}

func TestPortErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("opening: %w", portErrorf(IoError, cause))
	require.Equal(t, IoError, errorCode(err))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "I/O error: boom", errors.Unwrap(err).Error())
	require.Equal(t, UnknownPortError, errorCode(cause))
	require.Equal(t, NoError, errorCode(nil))
}

func TestLinesString(t *testing.T) {
	require.Equal(t, "[DTR RTS CTS]", (LineDTR | LineRTS | LineCTS).String())
	bits := (LineCTS | LineDSR).ModemStatusBits()
	require.True(t, bits.CTS)
	require.True(t, bits.DSR)
	require.False(t, bits.DCD)
	require.False(t, bits.RI)
}
