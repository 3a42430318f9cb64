//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !unix && !windows

package serial

func nativeNameToLocation(name string) string {
	return name + virtualSuffix
}

func nativeNameFromLocation(location string) string {
	return location
}
