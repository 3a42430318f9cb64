//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "github.com/rs/zerolog"

// explicitSettings records which settings the caller chose. Open applies
// those and reads all the others back from the device.
type explicitSettings uint

const (
	explicitInputRate explicitSettings = 1 << iota
	explicitOutputRate
	explicitDataBits
	explicitParity
	explicitStopBits
	explicitFlowControl
	explicitPolicy
)

// Option configures a Port at construction.
type Option func(*Port)

// WithBaudRate sets the rate of both directions.
func WithBaudRate(rate int32) Option {
	return func(p *Port) {
		p.settings.InputBaudRate, p.settings.OutputBaudRate = rate, rate
		p.explicit |= explicitInputRate | explicitOutputRate
	}
}

// WithDataBits sets the character size.
func WithDataBits(bits DataBits) Option {
	return func(p *Port) {
		p.settings.DataBits = bits
		p.explicit |= explicitDataBits
	}
}

// WithParity sets the parity.
func WithParity(parity Parity) Option {
	return func(p *Port) {
		p.settings.Parity = parity
		p.explicit |= explicitParity
	}
}

// WithStopBits sets the stop bits.
func WithStopBits(bits StopBits) Option {
	return func(p *Port) {
		p.settings.StopBits = bits
		p.explicit |= explicitStopBits
	}
}

// WithFlowControl sets the flow control.
func WithFlowControl(flow FlowControl) Option {
	return func(p *Port) {
		p.settings.FlowControl = flow
		p.explicit |= explicitFlowControl
	}
}

// WithDataErrorPolicy sets what happens to bytes received with errors.
func WithDataErrorPolicy(policy DataErrorPolicy) Option {
	return func(p *Port) {
		p.settings.Policy = policy
		p.explicit |= explicitPolicy
	}
}

// WithMode sets rate, data bits, parity and stop bits at once. A zero
// BaudRate leaves the rate alone.
func WithMode(mode Mode) Option {
	return func(p *Port) {
		if mode.BaudRate > 0 {
			WithBaudRate(mode.BaudRate)(p)
		}
		WithDataBits(mode.DataBits)(p)
		WithParity(mode.Parity)(p)
		WithStopBits(mode.StopBits)(p)
	}
}

// WithRestoreOnClose chooses whether Close gives the device back its
// previous configuration. It does by default.
func WithRestoreOnClose(restore bool) Option {
	return func(p *Port) {
		p.settings.RestoreOnClose = restore
	}
}

// WithReadBufferCap limits the read buffer, 0 means unbounded.
func WithReadBufferCap(n int64) Option {
	return func(p *Port) {
		p.readCap = max(n, 0)
	}
}

// WithLockOracle replaces the default lock oracle, nil disables locking.
func WithLockOracle(oracle LockOracle) Option {
	return func(p *Port) {
		p.lockOracle = oracle
	}
}

// WithLogger sets the logger of the port.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Port) {
		p.baseLog = log
	}
}
