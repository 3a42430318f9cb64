//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

type guardState int

const (
	guardIdle guardState = iota
	guardDispatching
	guardPendingRestore
)

func (s guardState) String() string {
	switch s {
	case guardIdle:
		return "idle"
	case guardDispatching:
		return "dispatching"
	case guardPendingRestore:
		return "pending-restore"
	}
	return "invalid"
}

// dispatchGuard keeps a notification callback from running nested inside
// itself. The first call moves the guard to Dispatching. A nested call
// records the enabled state of the notifier, disables it and moves to
// PendingRestore: from then on enable requests only update the recorded
// state, which the outermost call applies when it exits.
//
// The guard is not safe for concurrent use; the port serializes it.
type dispatchGuard struct {
	state   guardState
	pending bool
	get     func() bool
	set     func(bool)
}

func newDispatchGuard(get func() bool, set func(bool)) *dispatchGuard {
	return &dispatchGuard{get: get, set: set}
}

// enter returns true for the outermost call, which must call exit(true).
func (g *dispatchGuard) enter() bool {
	switch g.state {
	case guardIdle:
		g.state = guardDispatching
		return true
	case guardDispatching:
		g.pending = g.get()
		g.set(false)
		g.state = guardPendingRestore
	}
	return false
}

func (g *dispatchGuard) exit(outer bool) {
	if !outer {
		return
	}
	if g.state == guardPendingRestore && g.pending != g.get() {
		g.set(g.pending)
	}
	g.state = guardIdle
}

func (g *dispatchGuard) setEnabled(enable bool) {
	if g.state == guardPendingRestore {
		g.pending = enable
		return
	}
	g.set(enable)
}

func (g *dispatchGuard) enabled() bool {
	if g.state == guardPendingRestore {
		return g.pending
	}
	return g.get()
}

func (g *dispatchGuard) reset() {
	g.state = guardIdle
	g.pending = false
}
