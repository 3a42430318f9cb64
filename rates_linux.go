//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "golang.org/x/sys/unix"

var nativeRates = newRateTable(
	rateCode{50, unix.B50},
	rateCode{75, unix.B75},
	rateCode{110, unix.B110},
	rateCode{134, unix.B134},
	rateCode{150, unix.B150},
	rateCode{200, unix.B200},
	rateCode{300, unix.B300},
	rateCode{600, unix.B600},
	rateCode{1200, unix.B1200},
	rateCode{1800, unix.B1800},
	rateCode{2400, unix.B2400},
	rateCode{4800, unix.B4800},
	rateCode{9600, unix.B9600},
	rateCode{19200, unix.B19200},
	rateCode{38400, unix.B38400},
	rateCode{57600, unix.B57600},
	rateCode{115200, unix.B115200},
	rateCode{230400, unix.B230400},
	rateCode{460800, unix.B460800},
	rateCode{500000, unix.B500000},
	rateCode{576000, unix.B576000},
	rateCode{921600, unix.B921600},
	rateCode{1000000, unix.B1000000},
	rateCode{1152000, unix.B1152000},
	rateCode{1500000, unix.B1500000},
	rateCode{2000000, unix.B2000000},
	rateCode{2500000, unix.B2500000},
	rateCode{3000000, unix.B3000000},
	rateCode{3500000, unix.B3500000},
	rateCode{4000000, unix.B4000000},
)
