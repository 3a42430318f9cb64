//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !windows

package serial

import "github.com/rs/zerolog"

const hasNativeEngine = false

// newNativeEngine falls back to the virtual engine: on this platform only
// virtual devices can be opened.
func newNativeEngine(_ LockOracle, log zerolog.Logger) engine {
	return newVirtualEngine(log)
}
