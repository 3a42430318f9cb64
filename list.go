//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"sort"

	"github.com/fvbommel/sortorder"
)

// GetPortsList returns the system locations of the serial ports found on
// the system, followed by the registered virtual devices. Locations sort in
// natural order, so COM2 comes before COM10.
func GetPortsList() ([]string, error) {
	ports, err := nativeGetPortsList()
	if err != nil {
		return nil, portErrorf(UnknownPortError, err)
	}
	sort.Sort(sortorder.Natural(ports))
	return append(ports, GetVirtualPortsList()...), nil
}
