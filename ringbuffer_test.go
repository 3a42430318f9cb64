//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBufferRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for _, total := range []int{0, 1, 100, 4095, 4096, 4097, 20000} {
		for _, maxChunk := range []int{1, 3, 17, 512, 5000} {
			src := make([]byte, total)
			rnd.Read(src)

			rb := NewRingBuffer(0)
			var out bytes.Buffer
			in := src
			for len(in) > 0 || !rb.IsEmpty() {
				if len(in) > 0 {
					n := 1 + rnd.Intn(maxChunk)
					if n > len(in) {
						n = len(in)
					}
					// reserve more than needed and commit only the part used
					w := rb.Reserve(n + rnd.Intn(8))
					copy(w, in[:n])
					rb.Commit(n)
					in = in[n:]
				}
				if rnd.Intn(3) > 0 && !rb.IsEmpty() {
					blk := rb.ReadPointer()
					require.Equal(t, len(blk), rb.NextBlockSize())
					k := 1 + rnd.Intn(len(blk))
					out.Write(blk[:k])
					rb.Free(k)
				}
			}
			require.Equal(t, len(src), out.Len(), "total=%d chunk=%d", total, maxChunk)
			require.True(t, bytes.Equal(src, out.Bytes()), "total=%d chunk=%d", total, maxChunk)
		}
	}
}

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Append([]byte("abcdef"))
	buf := make([]byte, 4)
	require.Equal(t, 4, rb.Read(buf))
	require.Equal(t, "abcd", string(buf))

	// "ef" sits at the end, "ghij" must wrap to the front without growing
	rb.Append([]byte("gh"))
	w := rb.Reserve(4)
	require.Len(t, w, 4)
	copy(w, "ijkl")
	rb.Commit(2)
	require.Equal(t, 8, rb.Cap())
	require.Equal(t, 6, rb.Len())
	require.Equal(t, "efgh", string(rb.ReadPointer()))
	require.Equal(t, 4, rb.NextBlockSize())
	require.Equal(t, 5, rb.IndexByte('j'))
	require.Equal(t, -1, rb.IndexByte('k'))

	all := make([]byte, 10)
	require.Equal(t, 6, rb.Peek(all))
	require.Equal(t, "efghij", string(all[:6]))
	require.Equal(t, 6, rb.Len())
}

func TestRingBufferReserveGrowsWhenTailIsShort(t *testing.T) {
	rb := NewRingBuffer(8)
	rb.Append([]byte("0123456"))
	rb.Free(5)
	// 1 byte left at the tail, 5 free at the head: not contiguous
	w := rb.Reserve(4)
	copy(w, "abcd")
	rb.Commit(4)
	require.Greater(t, rb.Cap(), 8)
	require.Equal(t, "56abcd", string(rb.ReadPointer()))
}

func TestRingBufferCommitZeroAndClear(t *testing.T) {
	rb := NewRingBuffer(0)
	rb.Reserve(100)
	rb.Commit(0)
	require.True(t, rb.IsEmpty())
	require.Nil(t, rb.ReadPointer())

	rb.Append([]byte("data"))
	rb.Commit(10) // nothing reserved anymore
	require.Equal(t, 4, rb.Len())

	rb.Clear()
	require.Equal(t, 0, rb.Len())
	require.Equal(t, -1, rb.IndexByte('d'))
}
