//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "golang.org/x/sys/windows"

var nativeRates = newRateTable(
	rateCode{110, windows.CBR_110},
	rateCode{300, windows.CBR_300},
	rateCode{600, windows.CBR_600},
	rateCode{1200, windows.CBR_1200},
	rateCode{2400, windows.CBR_2400},
	rateCode{4800, windows.CBR_4800},
	rateCode{9600, windows.CBR_9600},
	rateCode{14400, windows.CBR_14400},
	rateCode{19200, windows.CBR_19200},
	rateCode{38400, windows.CBR_38400},
	rateCode{57600, windows.CBR_57600},
	rateCode{115200, windows.CBR_115200},
	rateCode{128000, windows.CBR_128000},
	rateCode{256000, windows.CBR_256000},
)
