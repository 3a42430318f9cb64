//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !windows

package serial

// Without a native engine the virtual rates are the only ones.
var nativeRates = virtualRates
