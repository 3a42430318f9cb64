//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "golang.org/x/sys/unix"

type tcflag = uint32

// Linux knows mark and space parity through CMSPAR.
const (
	tcCMSPAR     tcflag = unix.CMSPAR
	tcIUCLC      tcflag = unix.IUCLC
	tcCRTSCTS    tcflag = unix.CRTSCTS
	hasMarkSpace        = true
)

func drain(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCSBRK, 1)
}

func purge(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
}

func inputQueue(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCINQ)
}

func outputQueue(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCOUTQ)
}

// The input code lives in CIBAUD; zero there means "same as output".
func getSpeed(t *unix.Termios, dir Direction) int32 {
	out := t.Cflag & unix.CBAUD
	if dir == Input {
		if in := (t.Cflag & unix.CIBAUD) >> unix.IBSHIFT; in != 0 {
			if in == unix.BOTHER {
				return int32(t.Ispeed)
			}
			rate, _ := nativeRates.rateOf(in)
			return rate
		}
		if out == unix.BOTHER {
			return int32(t.Ispeed)
		}
	}
	if out == unix.BOTHER {
		return int32(t.Ospeed)
	}
	rate, _ := nativeRates.rateOf(out)
	return rate
}

// applySpeed stores rate in t. Rates missing from the table use BOTHER
// when the kernel interface allows it.
func applySpeed(t *unix.Termios, rate int32, dir Direction) (bool, error) {
	code, ok := nativeRates.codeOf(rate)
	if !ok {
		if !hasCustomRate || rate <= 0 {
			return false, portErrorf(UnsupportedPortOperation, nil)
		}
		code = unix.BOTHER
	}
	if dir&Output != 0 {
		t.Cflag &^= unix.CBAUD
		t.Cflag |= code
		t.Ospeed = uint32(rate)
	}
	if dir&Input != 0 {
		t.Cflag &^= unix.CIBAUD
		t.Cflag |= code << unix.IBSHIFT
		t.Ispeed = uint32(rate)
	}
	return false, nil
}

func setCustomSpeed(fd int, rate int32) error {
	return portErrorf(UnsupportedPortOperation, nil)
}
