//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !unix

package serial

// Windows opens COM ports exclusively by itself.
func defaultLockOracle() LockOracle {
	return nil
}
