//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"context"
	"time"
)

// waitSlice bounds each engine wait: the notifier may take the data a wait
// is watching, and the context must be checked.
const waitSlice = 50 * time.Millisecond

func (p *Port) failWait(err error) error {
	p.mu.Lock()
	p.setErrorLocked(err)
	p.mu.Unlock()
	p.report(err)
	return err
}

// waiter tracks the time left to a blocking wait.
type waiter struct {
	ctx      context.Context
	deadline time.Time
	infinite bool
}

func newWaiter(ctx context.Context, timeout time.Duration) *waiter {
	return &waiter{ctx: ctx, deadline: time.Now().Add(timeout), infinite: timeout < 0}
}

// next returns the timeout of the next engine wait, false when the wait is
// over.
func (w *waiter) next() (time.Duration, bool) {
	if w.ctx.Err() != nil {
		return 0, false
	}
	d := time.Duration(-1)
	if !w.infinite {
		d = max(time.Until(w.deadline), 0)
	}
	if d < 0 || d > waitSlice {
		d = waitSlice
	}
	return d, true
}

func (w *waiter) expired() bool {
	return w.ctx.Err() != nil || (!w.infinite && !time.Now().Before(w.deadline))
}

func (w *waiter) timeout() error {
	return portErrorf(TimeoutError, w.ctx.Err())
}

// WaitForReadyRead blocks until new data entered the read buffer or msecs
// milliseconds passed; -1 waits forever and 0 checks once. The data ready
// event is emitted from the calling goroutine unless the notifier got the
// data first. An expired wait sets TimeoutError.
func (p *Port) WaitForReadyRead(msecs int) bool {
	return p.waitForReadyRead(newWaiter(context.Background(), durationFromMsecs(msecs)))
}

// WaitForReadyReadContext is WaitForReadyRead bound to ctx instead of a
// timeout.
func (p *Port) WaitForReadyReadContext(ctx context.Context) bool {
	return p.waitForReadyRead(newWaiter(ctx, -1))
}

func (p *Port) waitForReadyRead(w *waiter) bool {
	p.mu.Lock()
	start := p.received
	p.mu.Unlock()
	first := true
	for {
		p.mu.Lock()
		if !p.open.Load() {
			err := p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
			p.mu.Unlock()
			p.report(err)
			return false
		}
		eng, session := p.eng, p.session
		if p.received != start {
			p.mu.Unlock()
			return true
		}
		blocked := !p.readable() || p.readStopped || p.capped()
		p.mu.Unlock()
		if blocked {
			return false
		}

		d, ok := w.next()
		if !ok && !first {
			p.failWait(w.timeout())
			return false
		}
		first = false
		ready, _, err := eng.waitReady(d, true, false)
		if err != nil {
			p.failWait(err)
			return false
		}
		if ready {
			if _, err := p.handleRead(session); err != nil {
				return false
			}
			continue
		}
		if w.expired() {
			p.failWait(w.timeout())
			return false
		}
	}
}

// WaitForBytesWritten blocks until data of the write buffer reached the
// device or msecs milliseconds passed; -1 waits forever. The data flushed
// event is emitted from the calling goroutine unless the notifier moved the
// data first. It returns false at once when there is nothing to write.
func (p *Port) WaitForBytesWritten(msecs int) bool {
	w := newWaiter(context.Background(), durationFromMsecs(msecs))
	p.mu.Lock()
	start := p.sent
	empty := p.writeBuf.IsEmpty()
	p.mu.Unlock()
	if empty {
		return false
	}
	for {
		p.mu.Lock()
		if !p.open.Load() {
			err := p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
			p.mu.Unlock()
			p.report(err)
			return false
		}
		eng, session := p.eng, p.session
		if p.sent != start {
			p.mu.Unlock()
			return true
		}
		if p.writeBuf.IsEmpty() {
			p.mu.Unlock()
			return false
		}
		p.mu.Unlock()

		d, _ := w.next()
		_, ready, err := eng.waitReady(d, false, true)
		if err != nil {
			p.failWait(err)
			return false
		}
		if ready {
			if _, err := p.handleWrite(session); err != nil {
				return false
			}
			continue
		}
		if w.expired() {
			p.failWait(w.timeout())
			return false
		}
	}
}
