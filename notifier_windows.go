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
	"golang.org/x/sys/windows"
)

const commEventMask = windows.EV_RXCHAR | windows.EV_ERR | windows.EV_BREAK | windows.EV_TXEMPTY

// commNotifier keeps an overlapped WaitCommEvent outstanding and reports
// its completions. Writes complete synchronously, so write readiness is
// immediate while enabled. The handle is only touched under the read side
// of closeLock.
type commNotifier struct {
	handle     windows.Handle
	closeEvent windows.Handle
	rxEvent    windows.Handle
	wakeEvent  windows.Handle
	closeLock  *sync.RWMutex
	closed     *atomic.Bool
	ov         *windows.Overlapped
	mask       uint32
	pending    bool
	// queued returns the bytes waiting in the driver input queue
	queued func() uint32
	h      handler
	log    zerolog.Logger

	readEnabled  *atomic.Bool
	writeEnabled *atomic.Bool
	ctl          *loopControl
}

func newOverlapped() (*windows.Overlapped, error) {
	// https://learn.microsoft.com/en-us/windows/win32/devio/overlapped-operations
	h, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, err
	}
	return &windows.Overlapped{HEvent: h}, nil
}

func newCommNotifier(handle, closeEvent, rxEvent windows.Handle, closeLock *sync.RWMutex, closed *atomic.Bool, queued func() uint32, log zerolog.Logger) (*commNotifier, error) {
	if err := windows.SetCommMask(handle, commEventMask); err != nil {
		return nil, err
	}
	ov, err := newOverlapped()
	if err != nil {
		return nil, err
	}
	wake, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		windows.CloseHandle(ov.HEvent)
		return nil, err
	}
	return &commNotifier{
		handle:       handle,
		closeEvent:   closeEvent,
		rxEvent:      rxEvent,
		wakeEvent:    wake,
		closeLock:    closeLock,
		closed:       closed,
		ov:           ov,
		queued:       queued,
		log:          log,
		readEnabled:  atomic.NewBool(false),
		writeEnabled: atomic.NewBool(false),
		ctl:          newLoopControl(),
	}, nil
}

func (n *commNotifier) start(h handler) {
	n.h = h
	n.log.Debug().Msg("Notifier started")
	n.ctl.start(n.loop)
}

func (n *commNotifier) setReadEnabled(enable bool) {
	if n.readEnabled.Swap(enable) != enable {
		windows.SetEvent(n.wakeEvent)
	}
}

func (n *commNotifier) setWriteEnabled(enable bool) {
	if n.writeEnabled.Swap(enable) != enable {
		windows.SetEvent(n.wakeEvent)
	}
}

func (n *commNotifier) loop() {
	defer func() {
		windows.CloseHandle(n.ov.HEvent)
		windows.CloseHandle(n.wakeEvent)
		n.log.Debug().Msg("Notifier stopped")
	}()

	for !n.ctl.isStopping() {
		queued, ok := n.inputQueued()
		if !ok {
			return
		}
		// bytes that arrived while reading was disabled raise no new event
		if queued && n.readEnabled.Load() {
			n.ctl.dispatch(n.h.onReadReady)
		}
		if n.writeEnabled.Load() {
			n.ctl.dispatch(n.h.onWriteReady)
		}

		mask, ok, err := n.wait()
		if !ok {
			return
		}
		if err != nil {
			if !n.ctl.isStopping() {
				n.log.Error().Err(err).Msg("WaitCommEvent failed")
				n.ctl.dispatch(n.h.onErrorReady)
			}
			return
		}
		n.dispatchMask(mask)
	}
}

func (n *commNotifier) inputQueued() (bool, bool) {
	n.closeLock.RLock()
	defer n.closeLock.RUnlock()
	if n.closed.Load() {
		n.cancel()
		return false, false
	}
	return n.queued() > 0, true
}

// wait keeps a WaitCommEvent outstanding and returns the events it
// completed with. It returns false once the engine closes.
func (n *commNotifier) wait() (uint32, bool, error) {
	n.closeLock.RLock()
	defer n.closeLock.RUnlock()
	if n.closed.Load() {
		n.cancel()
		return 0, false, nil
	}
	if !n.pending {
		n.mask = 0
		switch err := windows.WaitCommEvent(n.handle, &n.mask, n.ov); err {
		case nil:
			n.signalInput(n.mask)
			return n.mask, true, nil
		case windows.ERROR_IO_PENDING:
			n.pending = true
		default:
			return 0, true, err
		}
	}

	timeout := uint32(windows.INFINITE)
	if n.writeEnabled.Load() {
		timeout = 0
	}
	ev, err := windows.WaitForMultipleObjects([]windows.Handle{n.ov.HEvent, n.wakeEvent, n.closeEvent}, false, timeout)
	if err != nil {
		return 0, true, err
	}
	switch ev {
	case windows.WAIT_OBJECT_0:
		n.pending = false
		var done uint32
		if err := windows.GetOverlappedResult(n.handle, n.ov, &done, false); err != nil {
			return windows.EV_ERR, true, nil
		}
		n.signalInput(n.mask)
		return n.mask, true, nil
	case windows.WAIT_OBJECT_0 + 2:
		n.cancel()
		return 0, false, nil
	}
	return 0, true, nil
}

func (n *commNotifier) cancel() {
	if !n.pending {
		return
	}
	var done uint32
	windows.CancelIoEx(n.handle, n.ov)
	windows.GetOverlappedResult(n.handle, n.ov, &done, true)
	n.pending = false
}

func (n *commNotifier) signalInput(mask uint32) {
	if mask&(windows.EV_RXCHAR|windows.EV_ERR|windows.EV_BREAK) != 0 {
		windows.SetEvent(n.rxEvent)
	}
}

func (n *commNotifier) dispatchMask(mask uint32) {
	if mask&(windows.EV_ERR|windows.EV_BREAK) != 0 {
		n.ctl.dispatch(n.h.onErrorReady)
	}
	if mask&windows.EV_RXCHAR != 0 && n.readEnabled.Load() {
		n.ctl.dispatch(n.h.onReadReady)
	}
	if mask&windows.EV_TXEMPTY != 0 && n.writeEnabled.Load() {
		n.ctl.dispatch(n.h.onWriteReady)
	}
}
