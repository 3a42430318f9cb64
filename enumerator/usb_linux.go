//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

import (
	"os"
	"path/filepath"
	"strings"
)

var sysfsRoot = "/sys"

func newDescriber() (describer, error) {
	root := sysfsRoot
	return func(port *PortDetails) {
		describeSysfs(root, port)
	}, nil
}

// describeSysfs follows /sys/class/tty/<name>/device up to the USB device
// node, the first ancestor carrying idVendor.
func describeSysfs(root string, port *PortDetails) {
	name := filepath.Base(port.SystemLocation)
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		port.Product = "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		port.Product = "USB CDC/ACM Device"
	case strings.HasPrefix(name, "rfcomm"):
		port.Product = "Bluetooth Serial Port"
		return
	}

	dev, err := filepath.EvalSymlinks(filepath.Join(root, "class", "tty", name, "device"))
	if err != nil {
		return
	}
	if base, err := filepath.EvalSymlinks(root); err == nil {
		root = base
	}
	for p := dev; strings.HasPrefix(p, root+string(filepath.Separator)); p = filepath.Dir(p) {
		vid := readSysfsFile(filepath.Join(p, "idVendor"))
		if vid == "" {
			continue
		}
		port.IsUSB = true
		port.VID = strings.ToUpper(vid)
		port.PID = strings.ToUpper(readSysfsFile(filepath.Join(p, "idProduct")))
		port.SerialNumber = readSysfsFile(filepath.Join(p, "serial"))
		port.Manufacturer = readSysfsFile(filepath.Join(p, "manufacturer"))
		if product := readSysfsFile(filepath.Join(p, "product")); product != "" {
			port.Product = product
		}
		return
	}
}

func readSysfsFile(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
