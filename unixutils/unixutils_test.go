//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package unixutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSelectOnPipe(t *testing.T) {
	p, err := NewNonblockingPipe()
	require.NoError(t, err)
	defer p.Close()

	res, err := Select(NewFDSet(p.ReadFD()), nil, nil, 10*time.Millisecond)
	require.NoError(t, err)
	require.False(t, res.IsReadable(p.ReadFD()))

	require.NoError(t, p.Signal())
	res, err = Select(NewFDSet(p.ReadFD()), NewFDSet(p.WriteFD()), nil, -1)
	require.NoError(t, err)
	require.True(t, res.IsReadable(p.ReadFD()))
	require.True(t, res.IsWritable(p.WriteFD()))

	p.Drain()
	res, err = Select(NewFDSet(p.ReadFD()), nil, nil, 0)
	require.NoError(t, err)
	require.False(t, res.IsReadable(p.ReadFD()))
}

func TestSignalOnFullPipe(t *testing.T) {
	p, err := NewNonblockingPipe()
	require.NoError(t, err)
	defer p.Close()
	for i := 0; i < 1<<17; i++ {
		require.NoError(t, p.Signal())
	}
	p.Drain()
}

func TestClosedPipe(t *testing.T) {
	p, err := NewPipe()
	require.NoError(t, err)
	require.NoError(t, p.Close())
	require.Equal(t, -1, p.ReadFD())
	_, err = p.Write([]byte{1})
	require.ErrorIs(t, err, ErrPipeClosed)
	require.ErrorIs(t, p.Close(), ErrPipeClosed)
	require.False(t, (&FDResultSets{}).IsReadable(-1))
}
