//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build !linux && !windows && !darwin

package enumerator

// Only names are known here.
func newDescriber() (describer, error) {
	return func(*PortDetails) {}, nil
}
