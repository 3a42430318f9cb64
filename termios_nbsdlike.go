//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build netbsd || openbsd

package serial

type tcflag = uint32
type speedT = int32

// see https://nxr.netbsd.org/xref/src/lib/libc/termios/cfsetspeed.c
const integralSpeeds = true

var extraRates = netbsdExtraRates

func setCustomSpeed(fd int, rate int32) error {
	return portErrorf(UnsupportedPortOperation, nil)
}
