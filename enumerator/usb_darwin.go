//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package enumerator

import (
	"bytes"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
)

type (
	kernReturn uint32
	ioObject   uintptr
	ioName     [128]byte
	cfRef      uintptr
)

const (
	cfNumberSInt16Type = 2
	cfStringUTF8       = 0x08000100
)

// IOKit and CoreFoundation entry points, bound at runtime so the package
// builds without cgo.
var iokit struct {
	IOServiceMatching               func(string) cfRef
	IOServiceGetMatchingServices    func(uintptr, cfRef, *ioObject) kernReturn
	IOIteratorNext                  func(ioObject) ioObject
	IOObjectRelease                 func(ioObject) kernReturn
	IOObjectGetClass                func(ioObject, *ioName) kernReturn
	IORegistryEntryGetName          func(ioObject, *ioName) kernReturn
	IORegistryEntryGetParentEntry   func(ioObject, string, *ioObject) kernReturn
	IORegistryEntryCreateCFProperty func(ioObject, cfRef, cfRef, uint32) cfRef

	allocator                 cfRef
	CFRelease                 func(cfRef)
	CFStringCreateWithCString func(cfRef, string, uint32) cfRef
	CFStringGetCString        func(cfRef, *byte, int, uint32) bool
	CFNumberGetValue          func(cfRef, int, unsafe.Pointer) bool
}

var iokitLoadError = loadIOKit()

func loadIOKit() error {
	kit, err := purego.Dlopen("/System/Library/Frameworks/IOKit.framework/IOKit", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return err
	}
	cf, err := purego.Dlopen("/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation", purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return err
	}
	alloc, err := purego.Dlsym(cf, "kCFAllocatorDefault")
	if err != nil {
		return err
	}
	iokit.allocator = *(*cfRef)(unsafe.Pointer(alloc))

	purego.RegisterLibFunc(&iokit.IOServiceMatching, kit, "IOServiceMatching")
	purego.RegisterLibFunc(&iokit.IOServiceGetMatchingServices, kit, "IOServiceGetMatchingServices")
	purego.RegisterLibFunc(&iokit.IOIteratorNext, kit, "IOIteratorNext")
	purego.RegisterLibFunc(&iokit.IOObjectRelease, kit, "IOObjectRelease")
	purego.RegisterLibFunc(&iokit.IOObjectGetClass, kit, "IOObjectGetClass")
	purego.RegisterLibFunc(&iokit.IORegistryEntryGetName, kit, "IORegistryEntryGetName")
	purego.RegisterLibFunc(&iokit.IORegistryEntryGetParentEntry, kit, "IORegistryEntryGetParentEntry")
	purego.RegisterLibFunc(&iokit.IORegistryEntryCreateCFProperty, kit, "IORegistryEntryCreateCFProperty")
	purego.RegisterLibFunc(&iokit.CFRelease, cf, "CFRelease")
	purego.RegisterLibFunc(&iokit.CFStringCreateWithCString, cf, "CFStringCreateWithCString")
	purego.RegisterLibFunc(&iokit.CFStringGetCString, cf, "CFStringGetCString")
	purego.RegisterLibFunc(&iokit.CFNumberGetValue, cf, "CFNumberGetValue")
	return nil
}

func newDescriber() (describer, error) {
	if iokitLoadError != nil {
		return nil, iokitLoadError
	}
	found := map[string]*PortDetails{}
	var it ioObject
	if r := iokit.IOServiceGetMatchingServices(0, iokit.IOServiceMatching("IOSerialBSDClient"), &it); r != 0 {
		return nil, fmt.Errorf("IOServiceGetMatchingServices failed (code %d)", r)
	}
	defer iokit.IOObjectRelease(it)
	for {
		service := iokit.IOIteratorNext(it)
		if service == 0 {
			break
		}
		details, err := serviceDetails(service)
		iokit.IOObjectRelease(service)
		if err != nil {
			return nil, err
		}
		// The same device is reachable through its callout and dialin nodes.
		for _, l := range details.locations {
			found[l] = &details.PortDetails
		}
	}
	return func(port *PortDetails) {
		d, ok := found[port.SystemLocation]
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

type serviceInfo struct {
	PortDetails
	locations []string
}

var usbDeviceClasses = map[string]bool{
	"IOUSBDevice":     true,
	"IOUSBHostDevice": true,
}

func serviceDetails(service ioObject) (*serviceInfo, error) {
	info := &serviceInfo{}
	// A service matched right after plug-in may not be fully published yet.
	for retries := 5; ; retries-- {
		callout, ok := service.stringProperty("IOCalloutDevice")
		if ok {
			info.locations = append(info.locations, callout)
			break
		}
		if retries == 0 {
			return nil, errors.New("error extracting port info from device: no IOCalloutDevice")
		}
		time.Sleep(50 * time.Millisecond)
	}
	if dialin, ok := service.stringProperty("IODialinDevice"); ok {
		info.locations = append(info.locations, dialin)
	}

	var parents []ioObject
	defer func() {
		for _, p := range parents {
			iokit.IOObjectRelease(p)
		}
	}()
	usb := service
	for !usbDeviceClasses[usb.class()] {
		var parent ioObject
		if iokit.IORegistryEntryGetParentEntry(usb, "IOService", &parent) != 0 {
			return info, nil
		}
		parents = append(parents, parent)
		usb = parent
	}

	vid, _ := usb.intProperty("idVendor")
	pid, _ := usb.intProperty("idProduct")
	info.IsUSB = true
	info.VID = fmt.Sprintf("%04X", vid)
	info.PID = fmt.Sprintf("%04X", pid)
	info.SerialNumber, _ = usb.stringProperty("USB Serial Number")
	info.Manufacturer, _ = usb.stringProperty("USB Vendor Name")
	info.Product = usb.name()
	return info, nil
}

func (o ioObject) property(key string) cfRef {
	k := iokit.CFStringCreateWithCString(iokit.allocator, key, cfStringUTF8)
	defer iokit.CFRelease(k)
	return iokit.IORegistryEntryCreateCFProperty(o, k, iokit.allocator, 0)
}

func (o ioObject) stringProperty(key string) (string, bool) {
	p := o.property(key)
	if p == 0 {
		return "", false
	}
	defer iokit.CFRelease(p)
	var buf [256]byte
	if !iokit.CFStringGetCString(p, &buf[0], len(buf), cfStringUTF8) {
		return "", false
	}
	return cString(buf[:]), true
}

func (o ioObject) intProperty(key string) (int64, bool) {
	p := o.property(key)
	if p == 0 {
		return 0, false
	}
	defer iokit.CFRelease(p)
	var res int64
	ok := iokit.CFNumberGetValue(p, cfNumberSInt16Type, unsafe.Pointer(&res))
	return res, ok
}

func (o ioObject) class() string {
	var n ioName
	if iokit.IOObjectGetClass(o, &n) != 0 {
		return ""
	}
	return cString(n[:])
}

func (o ioObject) name() string {
	var n ioName
	if iokit.IORegistryEntryGetName(o, &n) != 0 {
		return ""
	}
	return cString(n[:])
}

func cString(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}
