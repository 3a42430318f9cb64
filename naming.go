//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "strings"

// virtualSuffix marks the system location of a virtual device.
const virtualSuffix = ":"

// PortNameToSystemLocation maps a short port name ("ttyUSB0", "COM3",
// "VCOM1") to the location the platform opens. Names of registered virtual
// devices get a trailing colon.
func PortNameToSystemLocation(name string) string {
	if strings.HasSuffix(name, virtualSuffix) {
		return name
	}
	if lookupVirtualDevice(name+virtualSuffix) != nil || !hasNativeEngine {
		return name + virtualSuffix
	}
	return nativeNameToLocation(name)
}

// PortNameFromSystemLocation is the inverse of PortNameToSystemLocation.
func PortNameFromSystemLocation(location string) string {
	if strings.HasSuffix(location, virtualSuffix) {
		return strings.TrimSuffix(location, virtualSuffix)
	}
	return nativeNameFromLocation(location)
}

func isPathName(name string) bool {
	return strings.HasPrefix(name, "/") || strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../")
}
