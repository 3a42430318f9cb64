//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

// markReader reads a raw input stream that carries PARMRK error marks and
// hands out the bytes the parity codec keeps. A read stops right after a
// byte the policy rejects; the raw bytes behind it wait for the next read.
type markReader struct {
	codec   *parityCodec
	pending []byte
	buf     []byte
}

func (m *markReader) buffered() int {
	return len(m.pending)
}

func (m *markReader) reset() {
	m.pending = nil
}

func (m *markReader) read(p []byte, nativeOdd bool, readRaw func([]byte) (int, error)) (int, error) {
	raw := m.pending
	if len(raw) == 0 {
		if cap(m.buf) < len(p) {
			m.buf = make([]byte, len(p))
		}
		n, err := readRaw(m.buf[:len(p)])
		if err != nil {
			return 0, err
		}
		raw = m.buf[:n]
	}
	m.pending = nil

	n := 0
	for i, b := range raw {
		if n == len(p) {
			m.pending = append([]byte(nil), raw[i:]...)
			break
		}
		v, keep, code := m.codec.feed(b, nativeOdd)
		if keep {
			p[n] = v
			n++
		}
		if code != NoError {
			if rest := raw[i+1:]; len(rest) > 0 {
				m.pending = append([]byte(nil), rest...)
			}
			return n, portErrorf(code, nil)
		}
	}
	if n == 0 && len(m.pending) == 0 {
		return 0, errWouldBlock
	}
	return n, nil
}
