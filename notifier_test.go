//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopControlStopBeforeStart(t *testing.T) {
	c := newLoopControl()
	cleaned := false
	require.NoError(t, c.stop(func() {}, func() error { cleaned = true; return nil }))
	require.True(t, cleaned)
	require.False(t, c.dispatch(func() { t.Fatal("dispatch after stop") }))
}

func TestLoopControlStopWaitsForIdleLoop(t *testing.T) {
	c := newLoopControl()
	wake := make(chan struct{})
	c.start(func() { <-wake })

	exited := false
	err := c.stop(func() { close(wake) }, func() error {
		select {
		case <-c.done:
			exited = true
		default:
		}
		return nil
	})
	require.NoError(t, err)
	require.True(t, exited)
}

func TestLoopControlStopFromCallback(t *testing.T) {
	c := newLoopControl()
	cleaned := false
	c.start(func() {
		c.dispatch(func() {
			if err := c.stop(func() {}, func() error { cleaned = true; return nil }); err != nil {
				t.Error(err)
			}
		})
	})
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never exited")
	}
	require.True(t, cleaned)
}

func TestLoopControlStopDuringCallbackOfAnotherGoroutine(t *testing.T) {
	c := newLoopControl()
	inside := make(chan struct{})
	release := make(chan struct{})
	c.start(func() {
		for !c.isStopping() {
			c.dispatch(func() {
				close(inside)
				<-release
			})
		}
	})
	<-inside

	cleaned := false
	require.NoError(t, c.stop(func() {}, func() error { cleaned = true; return nil }))
	require.True(t, cleaned, "stop returned before the cleanup")
	select {
	case <-c.done:
		t.Fatal("the loop exited while its callback was still running")
	default:
	}
	require.False(t, c.dispatch(func() {}))

	close(release)
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop never exited")
	}
}
