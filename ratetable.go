//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "sort"

type rateCode struct {
	rate int32
	code uint32
}

// rateTable maps numeric baud rates to native codes. It must be sorted by rate.
type rateTable []rateCode

func newRateTable(entries ...rateCode) rateTable {
	t := rateTable(entries)
	sort.Slice(t, func(i, j int) bool { return t[i].rate < t[j].rate })
	return t
}

func (t rateTable) codeOf(rate int32) (uint32, bool) {
	i := sort.Search(len(t), func(i int) bool { return t[i].rate >= rate })
	if i < len(t) && t[i].rate == rate {
		return t[i].code, true
	}
	return 0, false
}

func (t rateTable) rateOf(code uint32) (int32, bool) {
	for _, e := range t {
		if e.code == code {
			return e.rate, true
		}
	}
	return UnknownBaudRate, false
}

func (t rateTable) rates() []int32 {
	res := make([]int32, len(t))
	for i, e := range t {
		res[i] = e.rate
	}
	return res
}

// StandardBaudRates returns the rates the native platform knows by code, in
// ascending order. Other rates may still be accepted through a custom divisor.
func StandardBaudRates() []int32 {
	return nativeRates.rates()
}

// VirtualBaudRates returns the rates accepted by virtual ports.
func VirtualBaudRates() []int32 {
	return virtualRates.rates()
}
