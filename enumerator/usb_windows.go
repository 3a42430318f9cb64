//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

import (
	"regexp"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const enumKey = `SYSTEM\CurrentControlSet\Enum`

// Bus enumerators whose devices may expose a COM port.
var usbBuses = []string{"USB", "FTDIBUS"}

func newDescriber() (describer, error) {
	found := map[string]*PortDetails{}
	for _, bus := range usbBuses {
		scanBus(bus, found)
	}
	return func(port *PortDetails) {
		d, ok := found[strings.ToUpper(port.Name)]
		if !ok {
			return
		}
		port.IsUSB = d.IsUSB
		port.VID = d.VID
		port.PID = d.PID
		port.SerialNumber = d.SerialNumber
		port.Manufacturer = d.Manufacturer
		port.Product = d.Product
	}, nil
}

// scanBus walks Enum\<bus>\<device>\<instance> and records every instance
// whose Device Parameters carry a PortName.
func scanBus(bus string, found map[string]*PortDetails) {
	busKey, err := registry.OpenKey(registry.LOCAL_MACHINE, enumKey+bus, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return
	}
	defer busKey.Close()
	devices, _ := busKey.ReadSubKeyNames(-1)
	for _, device := range devices {
		devKey, err := registry.OpenKey(busKey, device, registry.ENUMERATE_SUB_KEYS)
		if err != nil {
			continue
		}
		instances, _ := devKey.ReadSubKeyNames(-1)
		devKey.Close()
		for _, instance := range instances {
			path := device + `\` + instance
			portName := readValue(busKey, path+`\Device Parameters`, "PortName")
			if portName == "" {
				continue
			}
			details := &PortDetails{
				Manufacturer: stripResourceRef(readValue(busKey, path, "Mfg")),
				Product:      stripResourceRef(readValue(busKey, path, "FriendlyName")),
			}
			if details.Product == "" {
				details.Product = stripResourceRef(readValue(busKey, path, "DeviceDesc"))
			}
			parseDeviceID(bus+`\`+path, details)
			found[strings.ToUpper(portName)] = details
		}
	}
}

func readValue(parent registry.Key, path, name string) string {
	k, err := registry.OpenKey(parent, path, registry.QUERY_VALUE)
	if err != nil {
		return ""
	}
	defer k.Close()
	v, _, err := k.GetStringValue(name)
	if err != nil {
		return ""
	}
	return v
}

// Driver strings look like "@oem12.inf,%ftdi%;FTDI".
func stripResourceRef(s string) string {
	if i := strings.LastIndex(s, ";"); i >= 0 && strings.HasPrefix(s, "@") {
		return s[i+1:]
	}
	return s
}

var deviceIDRegexp = regexp.MustCompile(`(?i)^VID_([0-9A-F]{4})[&+]PID_([0-9A-F]{4})(?:\+([^&\\]+))?`)

// parseDeviceID decodes an instance path as "USB\VID_2341&PID_0043\12345"
// or "FTDIBUS\VID_0403+PID_6001+A6004CCFA\0000". Instance ids made up by
// the OS (they contain '&') are not serial numbers.
func parseDeviceID(deviceID string, details *PortDetails) {
	parts := strings.Split(deviceID, `\`)
	if len(parts) < 2 {
		return
	}
	m := deviceIDRegexp.FindStringSubmatch(parts[1])
	if m == nil {
		return
	}
	details.IsUSB = true
	details.VID = strings.ToUpper(m[1])
	details.PID = strings.ToUpper(m[2])
	switch {
	case m[3] != "":
		details.SerialNumber = m[3]
	case len(parts) > 2 && !strings.Contains(parts[2], "&"):
		details.SerialNumber = parts[2]
	}
}
