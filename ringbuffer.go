//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "bytes"

const ringBufferBlockSize = 4096

// RingBuffer is a growable circular byte queue.
//
// Data is added either with Append or with the Reserve/Commit pair, which hands
// out a contiguous slice that can be filled directly by a read syscall and then
// trimmed to the number of bytes actually received. Data is drained either with
// Read or with ReadPointer/Free, which expose the buffered bytes one contiguous
// block at a time so they can be passed to a write syscall as they are.
//
// A RingBuffer is not safe for concurrent use.
type RingBuffer struct {
	buf      []byte
	head     int
	size     int
	reserved int
}

// NewRingBuffer creates an empty buffer with room for capacity bytes.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Len returns the number of readable bytes.
func (r *RingBuffer) Len() int {
	return r.size
}

// IsEmpty reports whether there is nothing to read.
func (r *RingBuffer) IsEmpty() bool {
	return r.size == 0
}

// Cap returns the size of the backing storage.
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}

func (r *RingBuffer) wrapped() bool {
	return r.head+r.size > len(r.buf)
}

// tail returns the index right after the last readable byte and the number of
// free bytes that follow it contiguously.
func (r *RingBuffer) tail() (int, int) {
	end := r.head + r.size
	if end >= len(r.buf) {
		end -= len(r.buf)
		return end, r.head - end
	}
	return end, len(r.buf) - end
}

func (r *RingBuffer) grow(need int) {
	size := len(r.buf) * 2
	if size < ringBufferBlockSize {
		size = ringBufferBlockSize
	}
	for size < need {
		size *= 2
	}
	buf := make([]byte, size)
	r.peek(buf)
	r.buf = buf
	r.head = 0
}

// Reserve returns a writable slice of exactly n bytes placed right after the
// readable data. The bytes become readable only after Commit. Any previous
// uncommitted reservation is discarded.
func (r *RingBuffer) Reserve(n int) []byte {
	r.reserved = 0
	if n <= 0 {
		return nil
	}
	if r.size == 0 {
		r.head = 0
	}
	at, free := r.tail()
	if len(r.buf) == 0 || free < n {
		r.grow(r.size + n)
		at = r.size
	}
	r.reserved = n
	return r.buf[at : at+n]
}

// Commit makes the first n bytes of the last reservation readable. n is
// clamped to the reservation, so Commit(0) simply drops it.
func (r *RingBuffer) Commit(n int) {
	if n > r.reserved {
		n = r.reserved
	}
	if n > 0 {
		r.size += n
	}
	r.reserved = 0
}

// ReadPointer returns the largest contiguous block of readable bytes, starting
// at the oldest one. The slice is only valid until the next mutating call.
func (r *RingBuffer) ReadPointer() []byte {
	if r.size == 0 {
		return nil
	}
	end := r.head + r.size
	if end > len(r.buf) {
		end = len(r.buf)
	}
	return r.buf[r.head:end]
}

// NextBlockSize returns the length of the block returned by ReadPointer.
func (r *RingBuffer) NextBlockSize() int {
	if r.wrapped() {
		return len(r.buf) - r.head
	}
	return r.size
}

// Free discards the k oldest bytes.
func (r *RingBuffer) Free(k int) {
	if k <= 0 {
		return
	}
	if k >= r.size {
		r.head = 0
		r.size = 0
		return
	}
	r.head += k
	if r.head >= len(r.buf) {
		r.head -= len(r.buf)
	}
	r.size -= k
}

// Append copies p at the end of the buffer.
func (r *RingBuffer) Append(p []byte) {
	copy(r.Reserve(len(p)), p)
	r.Commit(len(p))
}

// Read moves up to len(p) bytes into p and returns how many were copied.
func (r *RingBuffer) Read(p []byte) int {
	n := r.peek(p)
	r.Free(n)
	return n
}

// Peek copies up to len(p) bytes into p without consuming them.
func (r *RingBuffer) Peek(p []byte) int {
	return r.peek(p)
}

func (r *RingBuffer) peek(p []byte) int {
	if r.size == 0 {
		return 0
	}
	first := r.buf[r.head:min(r.head+r.size, len(r.buf))]
	n := copy(p, first)
	if n < len(first) || !r.wrapped() {
		return n
	}
	second := r.buf[:r.size-len(first)]
	return n + copy(p[n:], second)
}

// IndexByte returns the offset of the first occurrence of c, or -1.
func (r *RingBuffer) IndexByte(c byte) int {
	if r.size == 0 {
		return -1
	}
	first := r.buf[r.head:min(r.head+r.size, len(r.buf))]
	if i := bytes.IndexByte(first, c); i >= 0 {
		return i
	}
	if !r.wrapped() {
		return -1
	}
	if i := bytes.IndexByte(r.buf[:r.size-len(first)], c); i >= 0 {
		return len(first) + i
	}
	return -1
}

// Clear drops all the buffered data. Large backing arrays are released.
func (r *RingBuffer) Clear() {
	r.head = 0
	r.size = 0
	r.reserved = 0
	if len(r.buf) > 16*ringBufferBlockSize {
		r.buf = nil
	}
}
