//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build unix && !darwin

package serial

import "strings"

const devFolder = "/dev/"

func nativeNameToLocation(name string) string {
	if isPathName(name) {
		return name
	}
	return devFolder + name
}

func nativeNameFromLocation(location string) string {
	return strings.TrimPrefix(location, devFolder)
}
