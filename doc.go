//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

/*
Package serial is a cross-platform, buffered and event driven serial port
library for the go language.

The import line is the following:

	import serial "github.com/abakum/go-serialport"

It is possibile to get the list of available serial ports with the
GetPortsList function:

	ports, err := serial.GetPortsList()
	if err != nil {
		log.Fatal(err)
	}
	for _, port := range ports {
		fmt.Printf("Found port: %v\n", port)
	}

A Port is created by name and configured with options; settings that are
not given are read back from the device when it opens:

	port := serial.NewPort("ttyUSB0", serial.WithBaudRate(115200))
	if err := port.Open(serial.ReadWrite); err != nil {
		log.Fatal(err)
	}
	defer port.Close()

Settings can be changed at any time while the port is open, a change either
applies whole or fails with ConfiguringError or UnsupportedPortOperation:

	if err := port.SetParity(serial.EvenParity); err != nil {
		log.Fatal(err)
	}

Read and Write never block. Incoming data is collected in a read buffer in
the background and announced to the OnDataReady listeners; Write queues the
data and OnDataFlushed reports the bytes the device accepted:

	port.OnDataReady(func() {
		buff := make([]byte, 100)
		n, _ := port.Read(buff)
		fmt.Printf("%v", string(buff[:n]))
	})
	port.Write([]byte("10,20,30\n\r"))

Callers that prefer to block use WaitForReadyRead and WaitForBytesWritten.

Mark and space parity are emulated in software where the driver lacks them,
and received bytes with bad parity or framing are handled following the
DataErrorPolicy of the port.

Virtual null-modem pairs created with CreateVirtualPair behave like two
ports joined by a cable; they are available on every platform and are the
only ports on targets without a native driver.

This library doesn't make use of cgo and "C" package, so it's a pure go library
that can be easily cross compiled.
*/
package serial
