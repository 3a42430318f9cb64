//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"os"
	"regexp"
	"strings"
)

var portFilter = regexp.MustCompile(`^(ttyS|ttyHS|ttyUSB|ttyACM|ttyAMA|ttyXRUSB|rfcomm|ttyO|ttymxc|ttySAC|ttyTHS)[0-9]{1,3}$`)

var sysfsTTY = "/sys/class/tty/"

// The 8250 driver registers ttyS nodes for every possible UART, the ones
// without hardware report port type 0 (PORT_UNKNOWN).
func isPlaceholderPort(name string) bool {
	if !strings.HasPrefix(name, "ttyS") {
		return false
	}
	t, err := os.ReadFile(sysfsTTY + name + "/type")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(t)) == "0"
}
