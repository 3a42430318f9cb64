//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build netbsd

package serial

import "golang.org/x/sys/unix"

var netbsdExtraRates = []rateCode{
	{460800, unix.B460800},
	{921600, unix.B921600},
}
