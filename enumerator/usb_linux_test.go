//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSysfs(t *testing.T, dir string, attrs map[string]string) {
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for k, v := range attrs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o644))
	}
}

func TestDescribeSysfs(t *testing.T) {
	root := t.TempDir()
	usb := filepath.Join(root, "devices", "pci0000:00", "usb1", "1-2")
	writeSysfs(t, usb, map[string]string{
		"idVendor":     "0403",
		"idProduct":    "6001",
		"serial":       "A6004CCFA",
		"manufacturer": "FTDI",
		"product":      "FT232R USB UART",
	})
	iface := filepath.Join(usb, "1-2:1.0", "ttyUSB0")
	writeSysfs(t, iface, nil)
	acm := filepath.Join(root, "devices", "pci0000:00", "usb1", "1-3", "1-3:1.0")
	writeSysfs(t, filepath.Dir(acm), map[string]string{"idVendor": "2341", "idProduct": "804e"})
	writeSysfs(t, acm, nil)
	onboard := filepath.Join(root, "devices", "platform", "serial8250", "tty", "ttyS0")
	writeSysfs(t, onboard, nil)

	class := filepath.Join(root, "class", "tty")
	for name, target := range map[string]string{"ttyUSB0": iface, "ttyACM0": acm, "ttyS0": onboard} {
		writeSysfs(t, filepath.Join(class, name), nil)
		require.NoError(t, os.Symlink(target, filepath.Join(class, name, "device")))
	}

	port := &PortDetails{SystemLocation: "/dev/ttyUSB0"}
	describeSysfs(root, port)
	require.True(t, port.IsUSB)
	require.Equal(t, "0403", port.VID)
	require.Equal(t, "6001", port.PID)
	require.Equal(t, "A6004CCFA", port.SerialNumber)
	require.Equal(t, "FTDI", port.Manufacturer)
	require.Equal(t, "FT232R USB UART", port.Product)

	port = &PortDetails{SystemLocation: "/dev/ttyACM0"}
	describeSysfs(root, port)
	require.True(t, port.IsUSB)
	require.Equal(t, "2341", port.VID)
	require.Equal(t, "804E", port.PID)
	require.Empty(t, port.SerialNumber)
	require.Equal(t, "USB CDC/ACM Device", port.Product)

	port = &PortDetails{SystemLocation: "/dev/ttyS0"}
	describeSysfs(root, port)
	require.False(t, port.IsUSB)
	require.Empty(t, port.Product)

	port = &PortDetails{SystemLocation: "/dev/ttyUSB9"}
	describeSysfs(root, port)
	require.False(t, port.IsUSB)
	require.Equal(t, "USB Serial Port", port.Product)
}

func TestReadSysfsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attr")
	require.NoError(t, os.WriteFile(path, []byte("  test value  \n"), 0o644))
	require.Equal(t, "test value", readSysfsFile(path))
	require.Equal(t, "", readSysfsFile(filepath.Join(dir, "missing")))
}
