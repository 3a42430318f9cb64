//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "sync"

// loopControl coordinates a notifier goroutine with the engine that stops
// it. A stop requested while a callback is running can't wait for the
// loop, since the callback itself may be the one closing the port. The
// loop only touches the device outside callbacks and under the engine
// close lock, so the cleanup runs right away and the loop exits once the
// callback returns.
type loopControl struct {
	mu          sync.Mutex
	started     bool
	stopping    bool
	dispatching bool
	done        chan struct{}
}

func newLoopControl() *loopControl {
	return &loopControl{done: make(chan struct{})}
}

func (c *loopControl) start(loop func()) {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	go func() {
		defer close(c.done)
		loop()
	}()
}

func (c *loopControl) isStopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

// dispatch runs f unless a stop was requested. It reports whether f ran.
func (c *loopControl) dispatch(f func()) bool {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return false
	}
	c.dispatching = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.dispatching = false
		c.mu.Unlock()
	}()
	f()
	return true
}

// stop asks the loop to exit, wake makes it notice, then runs cleanup. An
// idle loop is waited for first; a loop inside a callback is not, it sees
// the stop when the callback returns.
func (c *loopControl) stop(wake func(), cleanup func() error) error {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	started, dispatching := c.started, c.dispatching
	c.mu.Unlock()
	if !started {
		return cleanup()
	}
	wake()
	if !dispatching {
		<-c.done
	}
	return cleanup()
}
