//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "github.com/rs/zerolog"

// markState follows the error marks inserted by a line discipline with PARMRK
// set: "0xFF 0x00 X" means X was received with an error, "0xFF 0xFF" is a
// literal 0xFF.
type markState int

const (
	markNone markState = iota
	markSawFF
	markSawFF00
)

// parityDevice is what the codec needs from an engine on the write path.
type parityDevice interface {
	nativeOdd() bool
	// setNativeOdd applies the new odd flag once the pending output has
	// drained. Until then it returns errWouldBlock without waiting.
	setNativeOdd(odd bool) error
	writeRaw(p []byte) (int, error)
}

// parityCodec applies the data error policy to received bytes and, when
// emulated is set, sends and checks mark/space parity on a driver that
// only knows even and odd.
type parityCodec struct {
	parity   Parity
	dataBits DataBits
	policy   DataErrorPolicy
	emulated bool
	state    markState
	log      zerolog.Logger
	warned   bool
}

func newParityCodec(log zerolog.Logger) *parityCodec {
	return &parityCodec{
		parity:   NoParity,
		dataBits: Data8,
		policy:   IgnorePolicy,
		log:      log,
	}
}

func (c *parityCodec) configure(parity Parity, dataBits DataBits, policy DataErrorPolicy, emulated bool) {
	c.parity = parity
	c.dataBits = dataBits
	c.policy = policy
	c.emulated = emulated && (parity == MarkParity || parity == SpaceParity)
	c.state = markNone
	c.warned = false
}

// oddBits reports whether b has an odd number of bits set, that is the parity
// bit an even-parity transmitter appends to b.
func oddBits(b byte) bool {
	b ^= b >> 4
	b ^= b >> 2
	b ^= b >> 1
	return b&1 == 1
}

func (c *parityCodec) mask() byte {
	if c.dataBits >= Data5 && c.dataBits <= Data8 {
		return 0xFF >> (8 - uint(c.dataBits))
	}
	return 0xFF
}

// needOdd returns the native odd flag that makes the driver send the mark or
// space bit wanted for b.
func (c *parityCodec) needOdd(b byte) bool {
	return oddBits(b&c.mask()) != (c.parity == MarkParity)
}

// encode writes p one byte at a time, switching the native odd flag before
// every byte that needs the other one. A switch that has to wait for the
// output to drain ends the write short.
func (c *parityCodec) encode(dev parityDevice, p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if odd := c.needOdd(p[n]); odd != dev.nativeOdd() {
			if err := dev.setNativeOdd(odd); err != nil {
				if n > 0 && err == errWouldBlock {
					return n, nil
				}
				return n, err
			}
		}
		w, err := dev.writeRaw(p[n : n+1])
		if err != nil {
			if n > 0 && err == errWouldBlock {
				return n, nil
			}
			return n, err
		}
		if w == 0 {
			break
		}
		n += w
	}
	return n, nil
}

// feed consumes one raw byte of the native stream. It returns the data byte to
// deliver, if any, and the error to report when the policy stops receiving.
func (c *parityCodec) feed(raw byte, nativeOdd bool) (byte, bool, PortErrorCode) {
	switch c.state {
	case markSawFF00:
		c.state = markNone
		return c.check(raw, true, nativeOdd)
	case markSawFF:
		if raw == 0x00 {
			c.state = markSawFF00
			return 0, false, NoError
		}
		c.state = markNone
		return c.check(raw, false, nativeOdd)
	default:
		if raw == 0xFF {
			c.state = markSawFF
			return 0, false, NoError
		}
		return c.check(raw, false, nativeOdd)
	}
}

func (c *parityCodec) check(b byte, marked bool, nativeOdd bool) (byte, bool, PortErrorCode) {
	violated := marked
	if c.emulated {
		// the bit the driver expects in its current mode; a mark means the
		// received bit was the other one
		bit := oddBits(b&c.mask()) != nativeOdd
		if marked {
			bit = !bit
		}
		violated = bit != (c.parity == MarkParity)
	}
	if !violated {
		return b, true, NoError
	}
	switch c.policy {
	case SkipPolicy:
		return 0, false, NoError
	case StopReceivingPolicy:
		return b, true, c.errorKind(b)
	case IgnorePolicy:
		return b, true, NoError
	case PassZeroPolicy:
		return 0, true, NoError
	default:
		if !c.warned {
			c.log.Warn().Int("policy", int(c.policy)).Msg("Unknown data error policy, passing zero")
			c.warned = true
		}
		return 0, true, NoError
	}
}

func (c *parityCodec) errorKind(b byte) PortErrorCode {
	switch {
	case b == 0x00:
		return BreakConditionError
	case c.parity == NoParity:
		return FramingError
	default:
		return ParityError
	}
}
