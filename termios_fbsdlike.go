//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build freebsd || dragonfly

package serial

import "golang.org/x/sys/unix"

type tcflag = uint32
type speedT = uint32

const integralSpeeds = true

var extraRates = []rateCode{
	{460800, unix.B460800},
	{921600, unix.B921600},
}

func setCustomSpeed(fd int, rate int32) error {
	return portErrorf(UnsupportedPortOperation, nil)
}
