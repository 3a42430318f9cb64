//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaceholderPorts(t *testing.T) {
	root := t.TempDir()
	for name, kind := range map[string]string{"ttyS0": "4\n", "ttyS1": "0\n"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, name, "type"), []byte(kind), 0o644))
	}
	saved := sysfsTTY
	sysfsTTY = root + "/"
	defer func() { sysfsTTY = saved }()

	require.False(t, isPlaceholderPort("ttyS0"))
	require.True(t, isPlaceholderPort("ttyS1"))
	require.False(t, isPlaceholderPort("ttyS7"))
	require.False(t, isPlaceholderPort("ttyUSB0"))

	require.True(t, portFilter.MatchString("ttyUSB0"))
	require.True(t, portFilter.MatchString("ttyACM12"))
	require.False(t, portFilter.MatchString("tty1"))
	require.False(t, portFilter.MatchString("ttyUSB0.bak"))
}
