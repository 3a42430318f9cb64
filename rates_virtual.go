//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

// Virtual lines have no divisor: only these rates exist. The code is the
// index of the rate, like the constants of a small embedded UART driver.
var virtualRates = newRateTable(
	rateCode{110, 1},
	rateCode{300, 2},
	rateCode{600, 3},
	rateCode{1200, 4},
	rateCode{2400, 5},
	rateCode{4800, 6},
	rateCode{9600, 7},
	rateCode{14400, 8},
	rateCode{19200, 9},
	rateCode{38400, 10},
	rateCode{57600, 11},
	rateCode{115200, 12},
	rateCode{230400, 13},
	rateCode{460800, 14},
	rateCode{921600, 15},
)
