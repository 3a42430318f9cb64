//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !windows

package serial

func nativeGetPortsList() ([]string, error) {
	return nil, nil
}
