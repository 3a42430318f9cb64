//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package serial

import (
	"os"
	"path/filepath"
)

func nativeGetPortsList() ([]string, error) {
	entries, err := os.ReadDir(devFolder)
	if err != nil {
		return nil, err
	}

	ports := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !portFilter.MatchString(e.Name()) {
			continue
		}
		if e.Type()&os.ModeCharDevice == 0 {
			continue
		}
		if isPlaceholderPort(e.Name()) {
			continue
		}
		ports = append(ports, filepath.Join(devFolder, e.Name()))
	}
	return ports, nil
}
