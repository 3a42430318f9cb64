//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// pollNotifier runs a thread blocked in the event wait of a virtual device.
// It applies the event mask wanted by the enabled flags, waits, and before
// dispatching passes the gate that configuration changes hold.
type pollNotifier struct {
	dev  *virtualDevice
	gate *sync.Mutex
	quit <-chan struct{}
	h    handler
	log  zerolog.Logger

	readEnabled  *atomic.Bool
	writeEnabled *atomic.Bool
	ctl          *loopControl
}

// newPollNotifier returns a notifier whose loop ends when quit is closed.
func newPollNotifier(dev *virtualDevice, gate *sync.Mutex, quit <-chan struct{}, log zerolog.Logger) *pollNotifier {
	return &pollNotifier{
		dev:          dev,
		gate:         gate,
		quit:         quit,
		log:          log,
		readEnabled:  atomic.NewBool(false),
		writeEnabled: atomic.NewBool(false),
		ctl:          newLoopControl(),
	}
}

func (n *pollNotifier) start(h handler) {
	n.h = h
	n.dev.setEventMask(n.mask())
	n.log.Debug().Msg("Notifier started")
	n.ctl.start(n.loop)
}

func (n *pollNotifier) mask() uint32 {
	mask := evError
	if n.readEnabled.Load() {
		mask |= evRxChar
	}
	if n.writeEnabled.Load() {
		mask |= evTxEmpty
	}
	return mask
}

func (n *pollNotifier) setReadEnabled(enable bool) {
	if n.readEnabled.Swap(enable) != enable {
		n.dev.setEventMask(n.mask())
	}
}

func (n *pollNotifier) setWriteEnabled(enable bool) {
	if n.writeEnabled.Swap(enable) != enable {
		n.dev.setEventMask(n.mask())
	}
}

func (n *pollNotifier) loop() {
	defer n.log.Debug().Msg("Notifier stopped")
	for !n.ctl.isStopping() {
		ev, err := n.dev.waitEvent(n.quit)
		if err == errVirtualClosed {
			return
		}
		// let a configuration change in progress complete
		n.gate.Lock()
		n.gate.Unlock() //nolint:staticcheck

		if err != nil {
			n.log.Error().Err(err).Msg("Event wait failed")
			n.ctl.dispatch(n.h.onErrorReady)
			return
		}
		if ev&evError != 0 {
			n.ctl.dispatch(n.h.onErrorReady)
		}
		if ev&evRxChar != 0 && n.readEnabled.Load() {
			n.ctl.dispatch(n.h.onReadReady)
		}
		if ev&evTxEmpty != 0 && n.writeEnabled.Load() {
			n.ctl.dispatch(n.h.onWriteReady)
		}
	}
}
