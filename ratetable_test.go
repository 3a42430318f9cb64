//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateTableLookupIsIdempotent(t *testing.T) {
	for name, table := range map[string]rateTable{"native": nativeRates, "virtual": virtualRates} {
		require.NotEmpty(t, table, name)
		for _, r := range table.rates() {
			code, ok := table.codeOf(r)
			require.True(t, ok, "%s: %d", name, r)
			rate, ok := table.rateOf(code)
			require.True(t, ok, "%s: code %d", name, code)
			again, ok := table.codeOf(rate)
			require.True(t, ok)
			require.Equal(t, code, again, "%s: %d", name, r)
		}
	}
}

func TestRateTableIsSorted(t *testing.T) {
	rates := StandardBaudRates()
	require.True(t, sort.SliceIsSorted(rates, func(i, j int) bool { return rates[i] < rates[j] }))
	require.Contains(t, rates, int32(9600))
	require.Contains(t, VirtualBaudRates(), int32(115200))
}

func TestRateTableMisses(t *testing.T) {
	_, ok := virtualRates.codeOf(42)
	require.False(t, ok)
	_, ok = virtualRates.codeOf(4000000)
	require.False(t, ok)
	rate, ok := virtualRates.rateOf(999)
	require.False(t, ok)
	require.Equal(t, UnknownBaudRate, rate)
}

func TestNewRateTableSorts(t *testing.T) {
	table := newRateTable(rateCode{300, 3}, rateCode{110, 1}, rateCode{150, 2})
	require.Equal(t, []int32{110, 150, 300}, table.rates())
	code, ok := table.codeOf(150)
	require.True(t, ok)
	require.Equal(t, uint32(2), code)
}
