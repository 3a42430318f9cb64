//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build darwin || dragonfly || freebsd

package serial

import "regexp"

var portFilter = regexp.MustCompile(`^(cu|tty)\..*`)

func isPlaceholderPort(string) bool { return false }
