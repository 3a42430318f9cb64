//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

import (
	serial "github.com/abakum/go-serialport"
)

// PortDetails contains detailed information about a serial port.
// Use GetDetailedPortsList function to retrieve it.
type PortDetails struct {
	// Name is the short name accepted by serial.NewPort.
	Name string
	// SystemLocation is the path or device name the engine opens.
	SystemLocation string
	IsUSB          bool
	IsVirtual      bool
	VID            string
	PID            string
	SerialNumber   string
	Manufacturer   string

	// Product is an OS-dependent string that describes the serial port, it may
	// be not always available and it may be different across OS.
	Product string
}

// describer fills the OS-dependent fields of a port found by
// serial.GetPortsList.
type describer func(port *PortDetails)

// GetDetailedPortsList retrieve ports details like USB VID/PID. Registered
// virtual devices are listed after the system ones.
func GetDetailedPortsList() ([]*PortDetails, error) {
	locations, err := serial.GetPortsList()
	if err != nil {
		return nil, &PortEnumerationError{causedBy: err}
	}
	virtual := map[string]bool{}
	for _, l := range serial.GetVirtualPortsList() {
		virtual[l] = true
	}

	var describe describer
	res := make([]*PortDetails, 0, len(locations))
	for _, l := range locations {
		port := &PortDetails{
			Name:           serial.PortNameFromSystemLocation(l),
			SystemLocation: l,
		}
		if virtual[l] {
			port.IsVirtual = true
			port.Product = "Virtual null-modem port"
			res = append(res, port)
			continue
		}
		if describe == nil {
			if describe, err = newDescriber(); err != nil {
				return nil, &PortEnumerationError{causedBy: err}
			}
		}
		describe(port)
		res = append(res, port)
	}
	return res, nil
}

// PortEnumerationError is the error type for serial ports enumeration
type PortEnumerationError struct {
	causedBy error
}

// Error returns the complete error code with details on the cause of the error
func (e PortEnumerationError) Error() string {
	reason := "Error while enumerating serial ports"
	if e.causedBy != nil {
		reason += ": " + e.causedBy.Error()
	}
	return reason
}

// Unwrap returns the cause of the error.
func (e PortEnumerationError) Unwrap() error {
	return e.causedBy
}
