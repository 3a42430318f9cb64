//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package serial

import "golang.org/x/sys/unix"

// _IOR('f', 127, int)
const ioctlFIONREAD = 0x4004667f

// No CMSPAR here: mark and space go through the parity codec.
const (
	tcCMSPAR     tcflag = 0
	tcIUCLC      tcflag = 0
	tcCRTSCTS    tcflag = unix.CRTSCTS
	hasMarkSpace        = false
)

func getTermios(fd int) (*unix.Termios, error) {
	return unix.IoctlGetTermios(fd, unix.TIOCGETA)
}

func setTermios(fd int, t *unix.Termios) error {
	return unix.IoctlSetTermios(fd, unix.TIOCSETA, t)
}

func drain(fd int) error {
	return unix.IoctlSetInt(fd, unix.TIOCDRAIN, 0)
}

// A zero argument flushes both queues.
func purge(fd int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCFLUSH, 0)
}

func inputQueue(fd int) (int, error) {
	return unix.IoctlGetInt(fd, ioctlFIONREAD)
}

func outputQueue(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCOUTQ)
}

// Speeds are plain numbers on BSD-derived systems.
func getSpeed(t *unix.Termios, dir Direction) int32 {
	if dir == Input {
		return int32(t.Ispeed)
	}
	return int32(t.Ospeed)
}

// applySpeed reports true when rate can't be stored in termios and needs
// setCustomSpeed after the termios update.
func applySpeed(t *unix.Termios, rate int32, dir Direction) (bool, error) {
	if rate <= 0 {
		return false, portErrorf(UnsupportedPortOperation, nil)
	}
	if _, ok := nativeRates.codeOf(rate); !ok && !integralSpeeds {
		return true, nil
	}
	if dir&Output != 0 {
		t.Ospeed = speedT(rate)
	}
	if dir&Input != 0 {
		t.Ispeed = speedT(rate)
	}
	return false, nil
}
