//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "strings"

const devicePrefix = `\\.\`

func nativeNameToLocation(name string) string {
	if strings.HasPrefix(name, devicePrefix) || strings.HasPrefix(name, "//./") {
		return name
	}
	return devicePrefix + name
}

func nativeNameFromLocation(location string) string {
	if strings.HasPrefix(location, "//./") {
		return location[4:]
	}
	return strings.TrimPrefix(location, devicePrefix)
}
