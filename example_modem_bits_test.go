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

func ExamplePort_GetModemStatusBits() {
	// A null-modem cable: DTR shows up as DSR and DCD, RTS as CTS.
	if err := serial.CreateVirtualPair("MODEMA", "MODEMB"); err != nil {
		log.Fatal(err)
	}
	defer serial.RemoveVirtualPair("MODEMA")

	local := serial.NewPort("MODEMA")
	remote := serial.NewPort("MODEMB")
	for _, p := range []*serial.Port{local, remote} {
		if err := p.Open(serial.ReadWrite); err != nil {
			log.Fatal(err)
		}
		defer p.Close()
	}

	if err := remote.SetDTR(false); err != nil {
		log.Fatal(err)
	}
	status, err := local.GetModemStatusBits()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%+v\n", *status)
	// Output: {CTS:true DSR:false RI:false DCD:false}
}
