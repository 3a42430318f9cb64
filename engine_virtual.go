//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// virtualTxLimit is the output a virtual device queues while hardware flow
// control holds it back.
const virtualTxLimit = 4096

// virtualEngine drives a virtual device the way a small embedded UART driver
// is driven: a register file, even and odd parity only and a blocking event
// wait. Mark and space parity are emulated.
type virtualEngine struct {
	dev      *virtualDevice
	location string
	log      zerolog.Logger

	snapshot virtualConfig
	restore  bool
	parity   Parity
	dataBits DataBits
	policy   DataErrorPolicy
	codec    *parityCodec
	odd      bool
	marks    markReader

	// switching is set while a parity switch waits for the output to drain
	switching *atomic.Bool

	// gate is held while the configuration changes
	gate      sync.Mutex
	closeCh   chan struct{}
	closeOnce sync.Once
	closeLock sync.RWMutex
	closed    *atomic.Bool
	notifier  *pollNotifier
}

func newVirtualEngine(log zerolog.Logger) engine {
	codec := newParityCodec(log)
	return &virtualEngine{
		log:       log,
		restore:   true,
		parity:    NoParity,
		dataBits:  Data8,
		policy:    IgnorePolicy,
		codec:     codec,
		marks:     markReader{codec: codec},
		closed:    atomic.NewBool(true),
		switching: atomic.NewBool(false),
	}
}

func (e *virtualEngine) open(location string, mode OpenMode) error {
	dev := lookupVirtualDevice(location)
	if dev == nil {
		return portErrorf(NoSuchDevice, nil)
	}
	dev.pair.mu.Lock()
	defer dev.pair.mu.Unlock()
	if dev.removed {
		return portErrorf(NoSuchDevice, nil)
	}
	if dev.owned {
		return portErrorf(PermissionDenied, errors.New("device is in use"))
	}
	e.snapshot = dev.cfg
	dev.owned = true
	dev.rx, dev.tx = nil, nil
	dev.cfg.inpck, dev.cfg.ignpar, dev.cfg.parmrk = false, false, false
	// opening a line raises DTR and RTS, like a tty does
	dev.dtr, dev.rts = true, true
	dev.peer.releaseTx()
	dev.pair.notify()

	e.dev = dev
	e.location = location
	e.closeCh = make(chan struct{})
	e.marks.reset()
	e.closed.Store(false)
	e.log.Debug().Msg("Opened virtual device")
	return nil
}

func (e *virtualEngine) close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.notifier == nil {
		e.interrupt()
		return e.release()
	}
	n := e.notifier
	e.notifier = nil
	return n.ctl.stop(e.interrupt, e.release)
}

func (e *virtualEngine) release() error {
	e.closeLock.Lock()
	defer e.closeLock.Unlock()

	dev := e.dev
	dev.pair.mu.Lock()
	if e.restore {
		dev.cfg = e.snapshot
	}
	dev.owned = false
	dev.dtr, dev.rts, dev.brk = false, false, false
	dev.rx, dev.tx = nil, nil
	dev.pair.notify()
	dev.pair.mu.Unlock()
	e.log.Debug().Msg("Closed virtual device")
	return nil
}

// update applies change to a copy of the registers and stores it back whole.
func (e *virtualEngine) update(change func(c *virtualConfig) error) error {
	e.gate.Lock()
	defer e.gate.Unlock()
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	if e.dev.removed {
		return portErrorf(IoError, errVirtualRemoved)
	}
	c := e.dev.cfg
	if err := change(&c); err != nil {
		return err
	}
	e.dev.cfg = c
	e.dev.releaseTx()
	e.dev.pair.notify()
	return nil
}

func (e *virtualEngine) detect() (Settings, error) {
	e.dev.pair.mu.Lock()
	c := e.dev.cfg
	e.dev.pair.mu.Unlock()

	s := Settings{Location: e.location, DataBits: c.dataBits, FlowControl: c.flow, RestoreOnClose: e.restore}
	s.InputBaudRate, _ = virtualRates.rateOf(c.inCode)
	s.OutputBaudRate, _ = virtualRates.rateOf(c.outCode)
	switch {
	case e.codec.emulated:
		s.Parity = e.codec.parity
	case !c.parityOn:
		s.Parity = NoParity
	case c.odd:
		s.Parity = OddParity
	default:
		s.Parity = EvenParity
	}
	if c.twoStopBits {
		s.StopBits = TwoStopBits
	} else {
		s.StopBits = OneStopBit
	}
	switch {
	case e.codec.emulated || c.parmrk:
		s.Policy = e.policy
	case c.ignpar:
		s.Policy = SkipPolicy
	case c.inpck:
		s.Policy = PassZeroPolicy
	default:
		s.Policy = IgnorePolicy
	}

	e.odd = c.odd
	e.parity, e.dataBits, e.policy = s.Parity, s.DataBits, s.Policy
	e.configureCodec()
	return s, nil
}

func (e *virtualEngine) setBaudRate(rate int32, dir Direction) error {
	code, ok := virtualRates.codeOf(rate)
	if !ok {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(c *virtualConfig) error {
		if dir&Input != 0 {
			c.inCode = code
		}
		if dir&Output != 0 {
			c.outCode = code
		}
		return nil
	})
}

func (e *virtualEngine) setDataBits(bits DataBits) error {
	if bits < Data5 || bits > Data8 {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	err := e.update(func(c *virtualConfig) error {
		c.dataBits = bits
		return nil
	})
	if err != nil {
		return err
	}
	e.dataBits = bits
	e.configureCodec()
	return nil
}

func emulatedParity(parity Parity) bool {
	return parity == MarkParity || parity == SpaceParity
}

func (e *virtualEngine) setParity(parity Parity) error {
	if parity < NoParity || parity > SpaceParity {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	err := e.update(func(c *virtualConfig) error {
		c.parityOn = parity != NoParity
		c.odd = parity == OddParity
		applyVirtualPolicy(c, parity, e.policy)
		return nil
	})
	if err != nil {
		return err
	}
	e.parity = parity
	e.odd = parity == OddParity
	e.configureCodec()
	return nil
}

func (e *virtualEngine) setStopBits(bits StopBits) error {
	switch bits {
	case OneStopBit, TwoStopBits:
	default:
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(c *virtualConfig) error {
		c.twoStopBits = bits == TwoStopBits
		return nil
	})
}

func (e *virtualEngine) setFlowControl(flow FlowControl) error {
	if flow < NoFlowControl || flow > SoftwareFlowControl {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(c *virtualConfig) error {
		c.flow = flow
		return nil
	})
}

// applyVirtualPolicy sets the line discipline flags of a data error policy,
// the same way the kernel flags are set on a tty.
func applyVirtualPolicy(c *virtualConfig, parity Parity, policy DataErrorPolicy) {
	c.inpck, c.ignpar, c.parmrk = false, false, false
	if emulatedParity(parity) {
		c.inpck, c.parmrk = true, true
		return
	}
	switch policy {
	case SkipPolicy:
		c.inpck, c.ignpar = true, true
	case IgnorePolicy:
	case StopReceivingPolicy:
		c.inpck, c.parmrk = true, true
	default:
		c.inpck = true
	}
	if parity == NoParity && policy != StopReceivingPolicy {
		c.inpck = false
	}
}

func (e *virtualEngine) setDataErrorPolicy(policy DataErrorPolicy) error {
	if policy == UnknownPolicy {
		e.log.Warn().Msg("Unknown data error policy, passing zero")
	}
	err := e.update(func(c *virtualConfig) error {
		applyVirtualPolicy(c, e.parity, policy)
		return nil
	})
	if err != nil {
		return err
	}
	e.policy = policy
	e.configureCodec()
	return nil
}

func (e *virtualEngine) configureCodec() {
	e.codec.configure(e.parity, e.dataBits, e.policy, true)
}

func (e *virtualEngine) decoding() bool {
	return e.codec.emulated || e.policy == StopReceivingPolicy
}

func (e *virtualEngine) setRestoreOnClose(restore bool) {
	e.restore = restore
}

func (e *virtualEngine) lines() (Lines, error) {
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	if e.dev.removed {
		return 0, portErrorf(IoError, errVirtualRemoved)
	}
	var l Lines
	if e.dev.dtr {
		l |= LineDTR
	}
	if e.dev.rts {
		l |= LineRTS
	}
	if e.dev.peer.rts {
		l |= LineCTS
	}
	if e.dev.peer.dtr {
		l |= LineDSR | LineDCD
	}
	return l, nil
}

func (e *virtualEngine) setLine(set func(d *virtualDevice)) error {
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	if e.dev.removed {
		return portErrorf(IoError, errVirtualRemoved)
	}
	set(e.dev)
	e.dev.peer.releaseTx()
	e.dev.pair.notify()
	return nil
}

func (e *virtualEngine) setDTR(set bool) error {
	return e.setLine(func(d *virtualDevice) { d.dtr = set })
}

func (e *virtualEngine) setRTS(set bool) error {
	return e.setLine(func(d *virtualDevice) { d.rts = set })
}

func (e *virtualEngine) interrupt() {
	if e.closeCh != nil {
		e.closeOnce.Do(func() { close(e.closeCh) })
	}
}

func (e *virtualEngine) held() int {
	return e.marks.buffered()
}

// flush waits until flow control let all the queued output out.
func (e *virtualEngine) flush() error {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	for {
		if e.closed.Load() {
			return portErrorf(DeviceNotOpened, nil)
		}
		e.dev.pair.mu.Lock()
		if e.dev.removed {
			e.dev.pair.mu.Unlock()
			return portErrorf(IoError, errVirtualRemoved)
		}
		empty := len(e.dev.tx) == 0
		changed := e.dev.pair.changed
		e.dev.pair.mu.Unlock()
		if empty {
			return nil
		}
		select {
		case <-changed:
		case <-e.closeCh:
			return portErrorf(DeviceNotOpened, nil)
		}
	}
}

func (e *virtualEngine) reset() error {
	e.marks.reset()
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	e.dev.rx, e.dev.tx = nil, nil
	e.dev.pair.notify()
	return nil
}

func (e *virtualEngine) sendBreak(d time.Duration) error {
	if d <= 0 {
		d = 250 * time.Millisecond
	}
	if err := e.setBreak(true); err != nil {
		return err
	}
	time.Sleep(d)
	return e.setBreak(false)
}

// setBreak holds the line in break. The receiver sees a single break
// character when the break starts.
func (e *virtualEngine) setBreak(set bool) error {
	return e.setLine(func(d *virtualDevice) {
		if set && !d.brk {
			d.transmit(virtualFrame{brk: true})
		}
		d.brk = set
	})
}

func (e *virtualEngine) bytesAvailable() (int64, error) {
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	return int64(len(e.dev.rx) + e.marks.buffered()), nil
}

func (e *virtualEngine) bytesToWrite() (int64, error) {
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	return int64(len(e.dev.tx)), nil
}

func (e *virtualEngine) readRaw(p []byte) (int, error) {
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	if e.dev.removed {
		return 0, portErrorf(IoError, errVirtualRemoved)
	}
	if len(e.dev.rx) == 0 {
		return 0, errWouldBlock
	}
	n := copy(p, e.dev.rx)
	e.dev.rx = e.dev.rx[n:]
	if len(e.dev.rx) == 0 {
		e.dev.rx = nil
	}
	return n, nil
}

func (e *virtualEngine) read(p []byte) (int, error) {
	if !e.decoding() && e.marks.buffered() == 0 {
		return e.readRaw(p)
	}
	return e.marks.read(p, e.odd, e.readRaw)
}

func (e *virtualEngine) write(p []byte) (int, error) {
	if e.codec.emulated {
		return e.codec.encode(e, p)
	}
	return e.writeRaw(p)
}

func (e *virtualEngine) writeRaw(p []byte) (int, error) {
	e.dev.pair.mu.Lock()
	defer e.dev.pair.mu.Unlock()
	if e.dev.removed {
		return 0, portErrorf(IoError, errVirtualRemoved)
	}
	n := len(p)
	if !e.dev.clearToSend() || len(e.dev.tx) > 0 {
		n = min(n, virtualTxLimit-len(e.dev.tx))
	}
	if n <= 0 {
		return 0, errWouldBlock
	}
	frames := make([]virtualFrame, n)
	for i, b := range p[:n] {
		frames[i] = e.dev.frame(b)
	}
	e.dev.transmit(frames...)
	e.dev.pair.notify()
	return n, nil
}

func (e *virtualEngine) nativeOdd() bool {
	return e.odd
}

// setNativeOdd switches the parity once the output queue is empty, before
// that it returns errWouldBlock and the switch is retried on the next write.
func (e *virtualEngine) setNativeOdd(odd bool) error {
	e.dev.pair.mu.Lock()
	removed, queued := e.dev.removed, len(e.dev.tx)
	e.dev.pair.mu.Unlock()
	if removed {
		return portErrorf(IoError, errVirtualRemoved)
	}
	if queued > 0 {
		e.switching.Store(true)
		return errWouldBlock
	}
	e.switching.Store(false)
	err := e.update(func(c *virtualConfig) error {
		c.odd = odd
		return nil
	})
	if err == nil {
		e.odd = odd
	}
	return err
}

func (e *virtualEngine) waitReady(timeout time.Duration, wantRead, wantWrite bool) (bool, bool, error) {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	if e.closed.Load() {
		return false, false, portErrorf(DeviceNotOpened, nil)
	}
	if wantRead && e.marks.buffered() > 0 {
		return true, false, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		e.dev.pair.mu.Lock()
		if e.dev.removed {
			e.dev.pair.mu.Unlock()
			return false, false, portErrorf(IoError, errVirtualRemoved)
		}
		readable := wantRead && len(e.dev.rx) > 0
		writable := wantWrite && (len(e.dev.tx) == 0 || !e.switching.Load() && len(e.dev.tx) < virtualTxLimit)
		changed := e.dev.pair.changed
		e.dev.pair.mu.Unlock()
		if readable || writable || timeout == 0 {
			return readable, writable, nil
		}
		select {
		case <-changed:
		case <-e.closeCh:
			return false, false, portErrorf(DeviceNotOpened, nil)
		case <-expired:
			return false, false, nil
		}
	}
}

func (e *virtualEngine) startNotifier(h handler) error {
	n := newPollNotifier(e.dev, &e.gate, e.closeCh, e.log)
	e.notifier = n
	n.start(h)
	return nil
}

func (e *virtualEngine) setReadNotification(enable bool) {
	if e.notifier != nil {
		e.notifier.setReadEnabled(enable)
	}
}

func (e *virtualEngine) setWriteNotification(enable bool) {
	if e.notifier != nil {
		e.notifier.setWriteEnabled(enable)
	}
}

func (e *virtualEngine) readNotification() bool {
	return e.notifier != nil && e.notifier.readEnabled.Load()
}

func (e *virtualEngine) writeNotification() bool {
	return e.notifier != nil && e.notifier.writeEnabled.Load()
}
