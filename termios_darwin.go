//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

type tcflag = uint64
type speedT = uint64

// _IOW('T', 2, speed_t)
const ioctlIOSSIOSPEED = 0x80085402

// The driver only takes standard rates through termios.
const integralSpeeds = false

var extraRates []rateCode

func setCustomSpeed(fd int, rate int32) error {
	speed := speedT(rate)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlIOSSIOSPEED, uintptr(unsafe.Pointer(&speed)))
	if errno != 0 {
		return errno
	}
	return nil
}
