//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build unix

package serial

import "github.com/abakum/go-serialport/lockfile"

func defaultLockOracle() LockOracle {
	return lockfile.NewUUCP()
}
