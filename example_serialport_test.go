//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial_test

import (
	"fmt"
	"log"

	serial "github.com/abakum/go-serialport"
)

func Example() {
	if err := serial.CreateVirtualPair("EXAMPLEA", "EXAMPLEB"); err != nil {
		log.Fatal(err)
	}
	defer serial.RemoveVirtualPair("EXAMPLEA")

	mode, err := serial.ParseMode("115200,8E1")
	if err != nil {
		log.Fatal(err)
	}
	port := serial.NewPort("EXAMPLEA", serial.WithMode(mode))
	if err := port.Open(serial.ReadWrite); err != nil {
		log.Fatal(err)
	}
	defer port.Close()
	peer := serial.NewPort("EXAMPLEB", serial.WithMode(mode))
	if err := peer.Open(serial.ReadWrite); err != nil {
		log.Fatal(err)
	}
	defer peer.Close()

	if _, err := peer.Write([]byte("10,20,30\n")); err != nil {
		log.Fatal(err)
	}
	for !port.CanReadLine() {
		port.WaitForReadyRead(100)
	}
	line, err := port.ReadLine()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%q at %d %s\n", line, port.BaudRate(serial.Input), port.Parity())
	// Output: "10,20,30\n" at 115200 even
}
