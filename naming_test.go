//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVirtualNaming(t *testing.T) {
	require.NoError(t, CreateVirtualPair("NAMEA", "NAMEB"))
	defer RemoveVirtualPair("NAMEA")

	require.Equal(t, "NAMEA:", PortNameToSystemLocation("NAMEA"))
	require.Equal(t, "NAMEB:", PortNameToSystemLocation("NAMEB:"))
	require.Equal(t, "NAMEA", PortNameFromSystemLocation("NAMEA:"))
	for _, name := range []string{"NAMEA", "NAMEB"} {
		require.Equal(t, name, PortNameFromSystemLocation(PortNameToSystemLocation(name)))
	}
}
