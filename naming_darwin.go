//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "strings"

const devFolder = "/dev/"

// Bare names get the callout device: opening the tty. node waits for carrier.
func nativeNameToLocation(name string) string {
	switch {
	case isPathName(name):
		return name
	case strings.HasPrefix(name, "cu."), strings.HasPrefix(name, "tty."):
		return devFolder + name
	}
	return devFolder + "cu." + name
}

func nativeNameFromLocation(location string) string {
	name := strings.TrimPrefix(location, devFolder)
	return strings.TrimPrefix(name, "cu.")
}
