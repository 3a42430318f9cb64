//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// errWouldBlock is returned by engine reads and writes when the descriptor
// has nothing to give or take right now.
var errWouldBlock = errors.New("operation would block")

// handler receives the notifications of an engine.
type handler interface {
	onReadReady()
	onWriteReady()
	onErrorReady()
}

// engine is the platform-specific side of a Port: it owns the native
// descriptor, translates the generic settings into native structures and
// runs the notifier that drives the handler.
//
// Every setter either commits the whole native change or leaves the device
// untouched and returns a *PortError.
type engine interface {
	open(location string, mode OpenMode) error
	close() error
	// detect reads the current device configuration back.
	detect() (Settings, error)

	setBaudRate(rate int32, dir Direction) error
	setDataBits(bits DataBits) error
	setParity(parity Parity) error
	setStopBits(bits StopBits) error
	setFlowControl(flow FlowControl) error
	setDataErrorPolicy(policy DataErrorPolicy) error
	setRestoreOnClose(restore bool)

	lines() (Lines, error)
	setDTR(set bool) error
	setRTS(set bool) error

	// flush blocks until all the queued output reached the wire. interrupt
	// ends it with DeviceNotOpened.
	flush() error
	// reset discards both native buffers.
	reset() error
	sendBreak(d time.Duration) error
	setBreak(set bool) error

	bytesAvailable() (int64, error)
	bytesToWrite() (int64, error)

	// read and write never block; with nothing to move they return errWouldBlock.
	read(p []byte) (int, error)
	write(p []byte) (int, error)
	// waitReady blocks up to timeout (negative means forever) until the
	// descriptor can be read or written as requested.
	waitReady(timeout time.Duration, wantRead, wantWrite bool) (readyRead, readyWrite bool, err error)

	// held returns the bytes read from the device but kept back after a
	// data error.
	held() int
	// interrupt wakes every blocking call of the engine, which then fails
	// with DeviceNotOpened. It is safe from any goroutine, before or after
	// close.
	interrupt()

	startNotifier(h handler) error
	setReadNotification(enable bool)
	setWriteNotification(enable bool)
	readNotification() bool
	writeNotification() bool
}

// newEngine selects the engine for a system location. Virtual locations
// never reach a native engine.
func newEngine(location string, lockOracle LockOracle, log zerolog.Logger) engine {
	if strings.HasSuffix(location, virtualSuffix) {
		return newVirtualEngine(log)
	}
	return newNativeEngine(lockOracle, log)
}

func portErrorf(code PortErrorCode, cause error) *PortError {
	return &PortError{code: code, causedBy: cause}
}

// errorCode extracts the code of a *PortError, UnknownPortError otherwise.
func errorCode(err error) PortErrorCode {
	if err == nil {
		return NoError
	}
	var portErr *PortError
	if errors.As(err, &portErr) {
		return portErr.Code()
	}
	return UnknownPortError
}

func durationFromMsecs(msecs int) time.Duration {
	if msecs < 0 {
		return -1
	}
	return time.Duration(msecs) * time.Millisecond
}
