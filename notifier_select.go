//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package serial

import (
	"sync"
	"time"

	"github.com/abakum/go-serialport/unixutils"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// selectNotifier waits for the readiness of a descriptor with select(2)
// and reports it to a handler. The wake pipe makes a pending select pick
// up new enabled flags, closeFD ends the loop. The select runs under the
// read side of closeLock, so the engine never releases the descriptor
// under it.
type selectNotifier struct {
	fd        int
	closeFD   int
	closeLock *sync.RWMutex
	closed    *atomic.Bool
	switching *atomic.Bool
	wake      *unixutils.Pipe
	h         handler
	log       zerolog.Logger

	readEnabled  *atomic.Bool
	writeEnabled *atomic.Bool
	ctl          *loopControl
}

func newSelectNotifier(fd, closeFD int, closeLock *sync.RWMutex, closed, switching *atomic.Bool, log zerolog.Logger) (*selectNotifier, error) {
	wake, err := unixutils.NewNonblockingPipe()
	if err != nil {
		return nil, err
	}
	return &selectNotifier{
		fd:           fd,
		closeFD:      closeFD,
		closeLock:    closeLock,
		closed:       closed,
		switching:    switching,
		wake:         wake,
		log:          log,
		readEnabled:  atomic.NewBool(false),
		writeEnabled: atomic.NewBool(false),
		ctl:          newLoopControl(),
	}, nil
}

func (n *selectNotifier) start(h handler) {
	n.h = h
	n.log.Debug().Msg("Notifier started")
	n.ctl.start(n.loop)
}

func (n *selectNotifier) setReadEnabled(enable bool) {
	if n.readEnabled.Swap(enable) != enable {
		n.wake.Signal()
	}
}

func (n *selectNotifier) setWriteEnabled(enable bool) {
	if n.writeEnabled.Swap(enable) != enable {
		n.wake.Signal()
	}
}

func (n *selectNotifier) loop() {
	defer n.wake.Close()
	defer n.log.Debug().Msg("Notifier stopped")
	for !n.ctl.isStopping() {
		rd := unixutils.NewFDSet(n.wake.ReadFD(), n.closeFD)
		if n.readEnabled.Load() {
			rd.Add(n.fd)
		}
		// a parity switch waits for the queue to empty: poll instead of
		// waiting for room
		switching := n.writeEnabled.Load() && n.switching.Load()
		var wr *unixutils.FDSet
		timeout := time.Duration(-1)
		if switching {
			timeout = drainPoll
		} else if n.writeEnabled.Load() {
			wr = unixutils.NewFDSet(n.fd)
		}
		res, closed, err := n.wait(rd, wr, timeout)
		if closed {
			return
		}
		if err != nil {
			if !n.ctl.isStopping() {
				n.log.Error().Err(err).Msg("Select failed")
				n.ctl.dispatch(n.h.onErrorReady)
			}
			return
		}
		if res.IsReadable(n.closeFD) {
			return
		}
		if res.IsReadable(n.wake.ReadFD()) {
			n.wake.Drain()
		}
		if res.IsError(n.fd) {
			n.ctl.dispatch(n.h.onErrorReady)
		}
		if res.IsReadable(n.fd) && n.readEnabled.Load() {
			n.ctl.dispatch(n.h.onReadReady)
		}
		if (switching || res.IsWritable(n.fd)) && n.writeEnabled.Load() {
			n.ctl.dispatch(n.h.onWriteReady)
		}
	}
}

// wait selects unless the engine is already closed.
func (n *selectNotifier) wait(rd, wr *unixutils.FDSet, timeout time.Duration) (unixutils.FDResultSets, bool, error) {
	n.closeLock.RLock()
	defer n.closeLock.RUnlock()
	if n.closed.Load() {
		return unixutils.FDResultSets{}, true, nil
	}
	res, err := unixutils.Select(rd, wr, unixutils.NewFDSet(n.fd), timeout)
	return res, false, err
}
