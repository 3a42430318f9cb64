//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fvbommel/sortorder"
)

// Events of a virtual device, the only primitive its driver offers to wait on.
const (
	evRxChar uint32 = 1 << iota
	evTxEmpty
	evError
)

var (
	errVirtualClosed  = errors.New("virtual device closed")
	errVirtualRemoved = errors.New("virtual device removed")
)

// virtualConfig is the register file of a virtual UART. The driver knows
// even and odd parity only, like the small drivers it stands for.
type virtualConfig struct {
	inCode, outCode uint32
	dataBits        DataBits
	parityOn        bool
	odd             bool
	twoStopBits     bool
	flow            FlowControl
	// line discipline
	inpck, ignpar, parmrk bool
}

func defaultVirtualConfig() virtualConfig {
	code, _ := virtualRates.codeOf(9600)
	return virtualConfig{inCode: code, outCode: code, dataBits: Data8, flow: NoFlowControl}
}

func (c *virtualConfig) mask() byte {
	return 0xFF >> (8 - uint(c.dataBits))
}

// virtualFrame is a character on the virtual wire.
type virtualFrame struct {
	data     byte
	dataBits DataBits
	rate     uint32
	parityOn bool
	bit      bool
	brk      bool
}

// virtualPair is a null-modem cable between two devices. One mutex guards
// both ends; changed is closed and replaced on every state change.
type virtualPair struct {
	mu      sync.Mutex
	changed chan struct{}
	ends    [2]*virtualDevice
}

func (p *virtualPair) notify() {
	close(p.changed)
	p.changed = make(chan struct{})
}

type virtualDevice struct {
	location string
	pair     *virtualPair
	peer     *virtualDevice

	cfg      virtualConfig
	owned    bool
	removed  bool
	dtr, rts bool
	brk      bool
	rx       []byte
	tx       []virtualFrame
	mask     uint32
}

var virtualRegistry = struct {
	sync.Mutex
	devices map[string]*virtualDevice
}{devices: map[string]*virtualDevice{}}

func virtualLocation(name string) string {
	if strings.HasSuffix(name, virtualSuffix) {
		return name
	}
	return name + virtualSuffix
}

// CreateVirtualPair registers two virtual devices connected by a null-modem
// cable: what one sends the other receives, DTR drives the peer DSR and DCD,
// RTS drives the peer CTS. The ports are then opened by name, "VCOM1" or
// "VCOM1:".
func CreateVirtualPair(a, b string) error {
	la, lb := virtualLocation(a), virtualLocation(b)
	if la == lb || la == virtualSuffix || lb == virtualSuffix {
		return portErrorf(ConfiguringError, fmt.Errorf("invalid virtual pair %q %q", a, b))
	}
	virtualRegistry.Lock()
	defer virtualRegistry.Unlock()
	for _, l := range []string{la, lb} {
		if _, exists := virtualRegistry.devices[l]; exists {
			return portErrorf(DeviceAlreadyOpened, fmt.Errorf("virtual device %s already exists", l))
		}
	}
	pair := &virtualPair{changed: make(chan struct{})}
	da := &virtualDevice{location: la, pair: pair, cfg: defaultVirtualConfig()}
	db := &virtualDevice{location: lb, pair: pair, cfg: defaultVirtualConfig()}
	da.peer, db.peer = db, da
	pair.ends = [2]*virtualDevice{da, db}
	virtualRegistry.devices[la] = da
	virtualRegistry.devices[lb] = db
	return nil
}

// RemoveVirtualPair unregisters the pair one of whose ends is name. Ports
// still open on it see the device disappear.
func RemoveVirtualPair(name string) error {
	virtualRegistry.Lock()
	defer virtualRegistry.Unlock()
	d, ok := virtualRegistry.devices[virtualLocation(name)]
	if !ok {
		return portErrorf(NoSuchDevice, nil)
	}
	d.pair.mu.Lock()
	for _, end := range d.pair.ends {
		end.removed = true
		delete(virtualRegistry.devices, end.location)
	}
	d.pair.notify()
	d.pair.mu.Unlock()
	return nil
}

func lookupVirtualDevice(location string) *virtualDevice {
	if !strings.HasSuffix(location, virtualSuffix) {
		return nil
	}
	virtualRegistry.Lock()
	defer virtualRegistry.Unlock()
	return virtualRegistry.devices[location]
}

// GetVirtualPortsList returns the system locations of the registered virtual
// devices.
func GetVirtualPortsList() []string {
	virtualRegistry.Lock()
	defer virtualRegistry.Unlock()
	res := make([]string, 0, len(virtualRegistry.devices))
	for l := range virtualRegistry.devices {
		res = append(res, l)
	}
	sort.Sort(sortorder.Natural(res))
	return res
}

// The methods below expect the pair mutex to be held.

func (d *virtualDevice) frame(b byte) virtualFrame {
	data := b & d.cfg.mask()
	f := virtualFrame{data: data, dataBits: d.cfg.dataBits, rate: d.cfg.outCode, parityOn: d.cfg.parityOn}
	if f.parityOn {
		f.bit = oddBits(data) != d.cfg.odd
	}
	return f
}

// clearToSend reports whether hardware flow control lets d transmit.
func (d *virtualDevice) clearToSend() bool {
	return d.cfg.flow != HardwareFlowControl || d.peer.rts
}

func (d *virtualDevice) transmit(frames ...virtualFrame) {
	if !d.clearToSend() || len(d.tx) > 0 {
		d.tx = append(d.tx, frames...)
		return
	}
	for _, f := range frames {
		d.peer.receive(f)
	}
}

// releaseTx sends what hardware flow control held back.
func (d *virtualDevice) releaseTx() {
	if len(d.tx) == 0 || !d.clearToSend() {
		return
	}
	for _, f := range d.tx {
		d.peer.receive(f)
	}
	d.tx = nil
}

// receive runs the line discipline on an incoming frame. Nothing is kept
// while no port owns the device.
func (d *virtualDevice) receive(f virtualFrame) {
	if !d.owned {
		return
	}
	if f.brk {
		if d.cfg.parmrk {
			d.rx = append(d.rx, 0xFF, 0x00, 0x00)
		} else {
			d.rx = append(d.rx, 0x00)
		}
		return
	}
	data := f.data & d.cfg.mask()
	framing := f.rate != d.cfg.inCode || f.dataBits != d.cfg.dataBits || f.parityOn != d.cfg.parityOn
	parity := d.cfg.inpck && d.cfg.parityOn && f.bit != (oddBits(data) != d.cfg.odd)
	switch {
	case framing || parity:
		switch {
		case d.cfg.ignpar:
		case d.cfg.parmrk:
			d.rx = append(d.rx, 0xFF, 0x00, data)
		default:
			d.rx = append(d.rx, 0x00)
		}
	case d.cfg.parmrk && data == 0xFF:
		d.rx = append(d.rx, 0xFF, 0xFF)
	default:
		d.rx = append(d.rx, data)
	}
}

// events returns the current level of every event.
func (d *virtualDevice) events() uint32 {
	var ev uint32
	if len(d.rx) > 0 {
		ev |= evRxChar
	}
	if len(d.tx) == 0 {
		ev |= evTxEmpty
	}
	if d.removed {
		ev |= evError
	}
	return ev
}

// setEventMask selects the events waitEvent reports and wakes a waiter.
func (d *virtualDevice) setEventMask(mask uint32) {
	d.pair.mu.Lock()
	defer d.pair.mu.Unlock()
	if d.mask != mask {
		d.mask = mask
		d.pair.notify()
	}
}

// waitEvent blocks until one of the masked events is raised, the device is
// released by its owner or quit is closed.
func (d *virtualDevice) waitEvent(quit <-chan struct{}) (uint32, error) {
	for {
		d.pair.mu.Lock()
		if !d.owned {
			d.pair.mu.Unlock()
			return 0, errVirtualClosed
		}
		if d.removed {
			d.pair.mu.Unlock()
			return evError, errVirtualRemoved
		}
		ev := d.events() & d.mask
		changed := d.pair.changed
		d.pair.mu.Unlock()
		if ev != 0 {
			return ev, nil
		}
		select {
		case <-changed:
		case <-quit:
			return 0, errVirtualClosed
		}
	}
}
