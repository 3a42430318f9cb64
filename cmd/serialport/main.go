//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// serialport lists, inspects and drives serial ports from the command line.
//
//	$ serialport list --table
//	$ serialport info ttyUSB0 --baud 115200
//	$ serialport send ttyUSB0 --hex "41 54 0d"
//	$ serialport listen ttyUSB0
//	$ serialport loopback
//
// Settings come from flags, SERIALPORT_* environment variables or a
// serialport.yaml file, in this order of precedence.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
