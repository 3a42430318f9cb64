//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build netbsd || openbsd

package serial

import "regexp"

// see tty(4), ucom(4), zstty(4), ...
var portFilter = regexp.MustCompile("^([dt]ty[a-d]|[dt]ty[0-9]+|[dt]ty[CBZ][0-1]|[dt]tyU[0-9]+)$")

func isPlaceholderPort(string) bool { return false }
