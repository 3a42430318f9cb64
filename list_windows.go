//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "golang.org/x/sys/windows/registry"

func nativeGetPortsList() ([]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM`, registry.QUERY_VALUE)
	if err == registry.ErrNotExist {
		// No serial hardware registered at all.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}
	ports := make([]string, 0, len(names))
	for _, n := range names {
		com, _, err := key.GetStringValue(n)
		if err != nil {
			continue
		}
		ports = append(ports, nativeNameToLocation(com))
	}
	return ports, nil
}
