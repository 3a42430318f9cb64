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

const readChunkSize = ringBufferBlockSize

// Port is a buffered serial port. Reads and writes never block: incoming
// data is collected in a read buffer as the device delivers it, outgoing
// data is queued in a write buffer and flushed as the device accepts it.
// Listeners registered with OnDataReady and OnDataFlushed report both.
//
// A Port is safe for concurrent use.
type Port struct {
	mu sync.Mutex

	name       string
	location   string
	settings   Settings
	explicit   explicitSettings
	lockOracle LockOracle
	baseLog    zerolog.Logger
	log        zerolog.Logger

	eng     engine
	// live is eng, readable without mu so that Close can interrupt a call
	// blocked under it
	liveMu  sync.Mutex
	live    engine
	mode    OpenMode
	open    *atomic.Bool
	session uint64
	lastErr PortErrorCode

	readBuf     *RingBuffer
	writeBuf    *RingBuffer
	received    uint64
	sent        uint64
	readCap     int64
	readStopped bool
	readGuard   *dispatchGuard
	writeGuard  *dispatchGuard

	events portEvents
}

// NewPort creates a closed port for the device called name ("ttyUSB0",
// "COM3", "/dev/ttyS0", "VCOM1").
func NewPort(name string, opts ...Option) *Port {
	p := &Port{
		settings:   defaultSettings(),
		lockOracle: defaultLockOracle(),
		baseLog:    defaultLogger(),
		open:       atomic.NewBool(false),
		readBuf:    NewRingBuffer(0),
		writeBuf:   NewRingBuffer(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.SetPortName(name)
	return p
}

// SetPortName changes the device the next Open will use.
func (p *Port) SetPortName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
	p.location = PortNameToSystemLocation(name)
	if name == "" {
		p.location = ""
	}
	p.settings.Location = p.location
	p.log = p.baseLog.With().Str("port", p.location).Logger()
}

// PortName returns the name given to SetPortName.
func (p *Port) PortName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// SystemLocation returns the location the port opens.
func (p *Port) SystemLocation() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

// SetLockOracle replaces the oracle used by the next Open, nil disables
// locking.
func (p *Port) SetLockOracle(oracle LockOracle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lockOracle = oracle
}

// IsOpen reports whether the port is open.
func (p *Port) IsOpen() bool {
	return p.open.Load()
}

// setErrorLocked stores the code of err in the error slot and returns err.
func (p *Port) setErrorLocked(err error) error {
	if err != nil {
		p.lastErr = errorCode(err)
	}
	return err
}

// report emits the error event for a failure.
func (p *Port) report(err error) {
	if err != nil {
		p.events.emitError(errorCode(err))
	}
}

// Error returns the code of the last failure, NoError after ClearError or
// a successful Open.
func (p *Port) Error() PortErrorCode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// ClearError resets the error slot. Reading stopped by a data error, or by
// an I/O error, resumes.
func (p *Port) ClearError() {
	p.mu.Lock()
	p.lastErr = NoError
	resume := false
	if p.readStopped {
		p.readStopped = false
		p.updateReadNotification()
		// bytes the engine kept back raise no new notification
		resume = p.open.Load() && p.eng.held() > 0
	}
	session := p.session
	p.mu.Unlock()
	if resume {
		p.handleRead(session)
	}
}

// Open opens the device. Settings chosen by the caller are applied, the
// others are read back from the device.
func (p *Port) Open(mode OpenMode) error {
	p.mu.Lock()
	err := p.openLocked(mode)
	p.mu.Unlock()
	p.report(err)
	return err
}

func (p *Port) openLocked(mode OpenMode) error {
	if p.open.Load() {
		p.log.Debug().Msg("Port already open")
		return p.setErrorLocked(portErrorf(DeviceAlreadyOpened, nil))
	}
	if mode&ReadWrite == 0 || mode&^ReadWrite != 0 {
		return p.setErrorLocked(portErrorf(UnsupportedPortOperation, errors.New("invalid open mode")))
	}
	if p.location == "" {
		return p.setErrorLocked(portErrorf(NoSuchDevice, nil))
	}

	eng := newEngine(p.location, p.lockOracle, p.log)
	if err := eng.open(p.location, mode); err != nil {
		p.log.Debug().Err(err).Msg("Open failed")
		return p.setErrorLocked(err)
	}
	if err := p.applySettings(eng); err != nil {
		eng.close()
		return p.setErrorLocked(err)
	}
	detected, err := eng.detect()
	if err != nil {
		eng.close()
		return p.setErrorLocked(err)
	}
	p.mergeDetected(detected)
	p.log.Debug().
		Int32("in", p.settings.InputBaudRate).
		Int32("out", p.settings.OutputBaudRate).
		Stringer("data", p.settings.DataBits).
		Stringer("parity", p.settings.Parity).
		Stringer("stop", p.settings.StopBits).
		Stringer("flow", p.settings.FlowControl).
		Stringer("policy", p.settings.Policy).
		Msg("Detected settings")

	p.session++
	p.eng = eng
	p.mode = mode
	p.readBuf.Clear()
	p.writeBuf.Clear()
	p.readStopped = false
	p.readGuard = newDispatchGuard(eng.readNotification, eng.setReadNotification)
	p.writeGuard = newDispatchGuard(eng.writeNotification, eng.setWriteNotification)
	if err := eng.startNotifier(&portHandler{p: p, session: p.session}); err != nil {
		eng.close()
		p.eng = nil
		return p.setErrorLocked(err)
	}
	p.lastErr = NoError
	p.open.Store(true)
	p.setLive(eng)
	p.updateReadNotification()
	p.log.Debug().Msg("Port opened")
	return nil
}

// applySettings pushes the explicit settings to a freshly opened engine.
func (p *Port) applySettings(eng engine) error {
	s := p.settings
	in, out := p.explicit&explicitInputRate != 0, p.explicit&explicitOutputRate != 0
	switch {
	case in && out && s.InputBaudRate == s.OutputBaudRate:
		if err := eng.setBaudRate(s.InputBaudRate, AllDirections); err != nil {
			return err
		}
	default:
		if in {
			if err := eng.setBaudRate(s.InputBaudRate, Input); err != nil {
				return err
			}
		}
		if out {
			if err := eng.setBaudRate(s.OutputBaudRate, Output); err != nil {
				return err
			}
		}
	}
	if p.explicit&explicitDataBits != 0 {
		if err := eng.setDataBits(s.DataBits); err != nil {
			return err
		}
	}
	if p.explicit&explicitParity != 0 {
		if err := eng.setParity(s.Parity); err != nil {
			return err
		}
	}
	if p.explicit&explicitStopBits != 0 {
		if err := eng.setStopBits(s.StopBits); err != nil {
			return err
		}
	}
	if p.explicit&explicitFlowControl != 0 {
		if err := eng.setFlowControl(s.FlowControl); err != nil {
			return err
		}
	}
	// the policy flags depend on the parity, so it always goes to the device
	if err := eng.setDataErrorPolicy(s.Policy); err != nil {
		return err
	}
	eng.setRestoreOnClose(s.RestoreOnClose)
	return nil
}

func (p *Port) mergeDetected(d Settings) {
	s := &p.settings
	if p.explicit&explicitInputRate == 0 {
		s.InputBaudRate = d.InputBaudRate
	}
	if p.explicit&explicitOutputRate == 0 {
		s.OutputBaudRate = d.OutputBaudRate
	}
	if p.explicit&explicitDataBits == 0 {
		s.DataBits = d.DataBits
	}
	if p.explicit&explicitParity == 0 {
		s.Parity = d.Parity
	}
	if p.explicit&explicitStopBits == 0 {
		s.StopBits = d.StopBits
	}
	if p.explicit&explicitFlowControl == 0 {
		s.FlowControl = d.FlowControl
	}
	s.Location = p.location
}

// Close closes the device. Data still in the write buffer is discarded:
// use Flush or WaitForBytesWritten first to send it.
func (p *Port) Close() error {
	p.liveMu.Lock()
	live := p.live
	p.liveMu.Unlock()
	if live != nil {
		live.interrupt()
	}

	p.mu.Lock()
	if !p.open.Load() {
		err := p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
		p.mu.Unlock()
		p.report(err)
		return err
	}
	eng := p.eng
	p.open.Store(false)
	p.session++
	p.eng = nil
	p.setLive(nil)
	p.readBuf.Clear()
	p.writeBuf.Clear()
	p.readGuard.reset()
	p.writeGuard.reset()
	p.readStopped = false
	p.mu.Unlock()

	// without the lock: a notifier callback waiting for it must be able to
	// see the port closed and return
	err := eng.close()
	p.log.Debug().Msg("Port closed")
	if err != nil {
		p.mu.Lock()
		p.setErrorLocked(err)
		p.mu.Unlock()
		p.report(err)
	}
	return err
}

func (p *Port) setLive(eng engine) {
	p.liveMu.Lock()
	p.live = eng
	p.liveMu.Unlock()
}

// do runs op on the engine of the open port.
func (p *Port) do(op func(eng engine) error) error {
	p.mu.Lock()
	err := p.doLocked(op)
	p.mu.Unlock()
	p.report(err)
	return err
}

func (p *Port) doLocked(op func(eng engine) error) error {
	if !p.open.Load() {
		return p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
	}
	return p.setErrorLocked(op(p.eng))
}

// configure applies a setting: to the device when the port is open, to
// the next Open otherwise.
func (p *Port) configure(flag explicitSettings, op func(eng engine) error, store func(s *Settings)) error {
	p.mu.Lock()
	var err error
	if p.open.Load() {
		err = p.setErrorLocked(op(p.eng))
	}
	if err == nil {
		store(&p.settings)
		p.explicit |= flag
	}
	p.mu.Unlock()
	p.report(err)
	return err
}

// SetBaudRate sets the rate of the given directions. Rates missing from
// the platform table go through the custom divisor where there is one.
func (p *Port) SetBaudRate(rate int32, dir Direction) error {
	if dir&AllDirections == 0 || rate <= 0 {
		err := portErrorf(UnsupportedPortOperation, nil)
		p.mu.Lock()
		p.setErrorLocked(err)
		p.mu.Unlock()
		p.report(err)
		return err
	}
	var flag explicitSettings
	if dir&Input != 0 {
		flag |= explicitInputRate
	}
	if dir&Output != 0 {
		flag |= explicitOutputRate
	}
	return p.configure(flag,
		func(eng engine) error { return eng.setBaudRate(rate, dir) },
		func(s *Settings) {
			if dir&Input != 0 {
				s.InputBaudRate = rate
			}
			if dir&Output != 0 {
				s.OutputBaudRate = rate
			}
		})
}

// BaudRate returns the rate of a direction. With AllDirections it returns
// the input rate.
func (p *Port) BaudRate(dir Direction) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if dir == Output {
		return p.settings.OutputBaudRate
	}
	return p.settings.InputBaudRate
}

// SetDataBits sets the character size.
func (p *Port) SetDataBits(bits DataBits) error {
	return p.configure(explicitDataBits,
		func(eng engine) error { return eng.setDataBits(bits) },
		func(s *Settings) { s.DataBits = bits })
}

// DataBits returns the character size.
func (p *Port) DataBits() DataBits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.DataBits
}

// SetParity sets the parity. Mark and space are emulated where the
// driver only knows even and odd.
func (p *Port) SetParity(parity Parity) error {
	return p.configure(explicitParity,
		func(eng engine) error { return eng.setParity(parity) },
		func(s *Settings) { s.Parity = parity })
}

// Parity returns the parity.
func (p *Port) Parity() Parity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.Parity
}

// SetStopBits sets the number of stop bits.
func (p *Port) SetStopBits(bits StopBits) error {
	return p.configure(explicitStopBits,
		func(eng engine) error { return eng.setStopBits(bits) },
		func(s *Settings) { s.StopBits = bits })
}

// StopBits returns the number of stop bits.
func (p *Port) StopBits() StopBits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.StopBits
}

// SetFlowControl selects hardware, software or no flow control.
func (p *Port) SetFlowControl(flow FlowControl) error {
	return p.configure(explicitFlowControl,
		func(eng engine) error { return eng.setFlowControl(flow) },
		func(s *Settings) { s.FlowControl = flow })
}

// FlowControl returns the flow control.
func (p *Port) FlowControl() FlowControl {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.FlowControl
}

// SetDataErrorPolicy selects what happens to bytes received with a parity
// or framing error.
func (p *Port) SetDataErrorPolicy(policy DataErrorPolicy) error {
	return p.configure(explicitPolicy,
		func(eng engine) error { return eng.setDataErrorPolicy(policy) },
		func(s *Settings) { s.Policy = policy })
}

// DataErrorPolicy returns the data error policy.
func (p *Port) DataErrorPolicy() DataErrorPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.Policy
}

// SetRestoreOnClose chooses whether Close gives the device back the
// configuration it had before Open.
func (p *Port) SetRestoreOnClose(restore bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings.RestoreOnClose = restore
	if p.open.Load() {
		p.eng.setRestoreOnClose(restore)
	}
}

// RestoreOnClose reports whether Close puts back the settings found at Open.
func (p *Port) RestoreOnClose() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.RestoreOnClose
}

// Settings returns the whole configuration.
func (p *Port) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Lines reads the line signals from the device.
func (p *Port) Lines() (Lines, error) {
	var l Lines
	err := p.do(func(eng engine) error {
		var err error
		l, err = eng.lines()
		return err
	})
	return l, err
}

// GetModemStatusBits returns the input signals of the device.
func (p *Port) GetModemStatusBits() (*ModemStatusBits, error) {
	l, err := p.Lines()
	if err != nil {
		return nil, err
	}
	return l.ModemStatusBits(), nil
}

// IsDTR reports whether DTR is raised. Failures go to the error slot.
func (p *Port) IsDTR() bool {
	l, err := p.Lines()
	return err == nil && l&LineDTR != 0
}

// SetDTR raises or drops DTR.
func (p *Port) SetDTR(set bool) error {
	return p.do(func(eng engine) error { return eng.setDTR(set) })
}

// IsRTS reports whether RTS is raised. Failures go to the error slot.
func (p *Port) IsRTS() bool {
	l, err := p.Lines()
	return err == nil && l&LineRTS != 0
}

// SetRTS raises or drops RTS.
func (p *Port) SetRTS(set bool) error {
	return p.do(func(eng engine) error { return eng.setRTS(set) })
}

// Flush sends the write buffer and blocks until the device transmitted it.
func (p *Port) Flush() error {
	for {
		p.mu.Lock()
		if !p.open.Load() {
			err := p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
			p.mu.Unlock()
			p.report(err)
			return err
		}
		eng, session, pending := p.eng, p.session, !p.writeBuf.IsEmpty()
		p.mu.Unlock()
		if !pending {
			// without the lock, so that Close can interrupt the drain
			if err := eng.flush(); err != nil {
				return p.failWait(err)
			}
			return nil
		}
		if _, ready, err := eng.waitReady(-1, false, true); err != nil {
			return p.failWait(err)
		} else if ready {
			if _, err := p.handleWrite(session); err != nil {
				return err
			}
		}
	}
}

// Reset discards the read and write buffers and the device queues.
func (p *Port) Reset() error {
	return p.do(func(eng engine) error {
		p.readBuf.Clear()
		p.writeBuf.Clear()
		p.writeGuard.setEnabled(false)
		if err := eng.reset(); err != nil {
			return err
		}
		p.updateReadNotification()
		return nil
	})
}

// SendBreak holds the line in break for d, 0 means the platform default.
func (p *Port) SendBreak(d time.Duration) error {
	return p.do(func(eng engine) error { return eng.sendBreak(d) })
}

// SetBreak starts or ends a break condition.
func (p *Port) SetBreak(set bool) error {
	return p.do(func(eng engine) error { return eng.setBreak(set) })
}

// SetReadBufferCap limits the read buffer to n bytes, 0 means unbounded.
// While the buffer is full the device keeps the data.
func (p *Port) SetReadBufferCap(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readCap = max(n, 0)
	if p.open.Load() {
		p.updateReadNotification()
	}
}

// ReadBufferCap returns the read buffer limit, 0 for none.
func (p *Port) ReadBufferCap() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readCap
}

// BytesAvailable returns the size of the read buffer.
func (p *Port) BytesAvailable() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(p.readBuf.Len())
}

// BytesToWrite returns the size of the write buffer plus what the device
// still has queued.
func (p *Port) BytesToWrite() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := int64(p.writeBuf.Len())
	if p.open.Load() {
		if queued, err := p.eng.bytesToWrite(); err == nil {
			n += queued
		}
	}
	return n
}

func (p *Port) readable() bool {
	return p.mode&ReadOnly != 0
}

func (p *Port) capped() bool {
	return p.readCap > 0 && int64(p.readBuf.Len()) >= p.readCap
}

// updateReadNotification enables reading when there is room and nothing
// stopped it.
func (p *Port) updateReadNotification() {
	if !p.open.Load() {
		return
	}
	p.readGuard.setEnabled(p.readable() && !p.readStopped && !p.capped())
}

// Read moves buffered data into b. It never blocks: with an empty buffer it
// returns 0.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	if !p.open.Load() || !p.readable() {
		err := p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
		p.mu.Unlock()
		p.report(err)
		return 0, err
	}
	n := p.readBuf.Read(b)
	p.updateReadNotification()
	p.mu.Unlock()
	return n, nil
}

// CanReadLine reports whether the read buffer holds a whole line.
func (p *Port) CanReadLine() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readBuf.IndexByte('\n') >= 0
}

// ReadLine returns the next line, newline included. Without a whole line
// in the buffer it returns what there is.
func (p *Port) ReadLine() ([]byte, error) {
	p.mu.Lock()
	if !p.open.Load() || !p.readable() {
		err := p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
		p.mu.Unlock()
		p.report(err)
		return nil, err
	}
	n := p.readBuf.IndexByte('\n') + 1
	if n == 0 {
		n = p.readBuf.Len()
	}
	line := make([]byte, n)
	p.readBuf.Read(line)
	p.updateReadNotification()
	p.mu.Unlock()
	return line, nil
}

// Write queues b for transmission and returns at once.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	if !p.open.Load() || p.mode&WriteOnly == 0 {
		err := p.setErrorLocked(portErrorf(DeviceNotOpened, nil))
		p.mu.Unlock()
		p.report(err)
		return 0, err
	}
	p.writeBuf.Append(b)
	if len(b) > 0 {
		p.writeGuard.setEnabled(true)
	}
	p.mu.Unlock()
	return len(b), nil
}

// fillReadBuffer pulls what the device has into the read buffer.
func (p *Port) fillReadBuffer() (int, error) {
	total := 0
	for p.readable() && !p.readStopped {
		chunk := readChunkSize
		if p.readCap > 0 {
			room := p.readCap - int64(p.readBuf.Len())
			if room <= 0 {
				break
			}
			chunk = int(min(int64(chunk), room))
		}
		n, err := p.eng.read(p.readBuf.Reserve(chunk))
		p.readBuf.Commit(n)
		p.received += uint64(n)
		total += n
		if errors.Is(err, errWouldBlock) {
			break
		}
		if err != nil {
			// reading stays stopped until ClearError
			p.readStopped = true
			p.updateReadNotification()
			return total, p.setErrorLocked(err)
		}
		if n == 0 {
			break
		}
	}
	p.updateReadNotification()
	return total, nil
}

// drainWriteBuffer hands the write buffer to the device until it stops
// accepting data.
func (p *Port) drainWriteBuffer() (int64, error) {
	var total int64
	for !p.writeBuf.IsEmpty() {
		n, err := p.eng.write(p.writeBuf.ReadPointer())
		p.writeBuf.Free(n)
		p.sent += uint64(n)
		total += int64(n)
		if errors.Is(err, errWouldBlock) {
			break
		}
		if err != nil {
			p.writeGuard.setEnabled(false)
			return total, p.setErrorLocked(err)
		}
		if n == 0 {
			break
		}
	}
	if p.writeBuf.IsEmpty() {
		p.writeGuard.setEnabled(false)
	}
	return total, nil
}

// handleRead runs a read notification of the given session. Only the
// outermost one emits the data ready event.
func (p *Port) handleRead(session uint64) (int, error) {
	p.mu.Lock()
	if !p.open.Load() || p.session != session {
		p.mu.Unlock()
		return 0, portErrorf(DeviceNotOpened, nil)
	}
	outer := p.readGuard.enter()
	n, err := p.fillReadBuffer()
	p.mu.Unlock()

	p.report(err)
	if outer && n > 0 {
		p.events.emitDataReady()
	}

	p.mu.Lock()
	if p.session == session {
		p.readGuard.exit(outer)
	}
	p.mu.Unlock()
	return n, err
}

func (p *Port) handleWrite(session uint64) (int64, error) {
	p.mu.Lock()
	if !p.open.Load() || p.session != session {
		p.mu.Unlock()
		return 0, portErrorf(DeviceNotOpened, nil)
	}
	outer := p.writeGuard.enter()
	n, err := p.drainWriteBuffer()
	p.mu.Unlock()

	p.report(err)
	if outer && n > 0 {
		p.events.emitDataFlushed(n)
	}

	p.mu.Lock()
	if p.session == session {
		p.writeGuard.exit(outer)
	}
	p.mu.Unlock()
	return n, err
}

// portHandler binds the notifier of an engine to the session that
// started it.
type portHandler struct {
	p       *Port
	session uint64
}

func (h *portHandler) onReadReady() {
	h.p.handleRead(h.session)
}

func (h *portHandler) onWriteReady() {
	h.p.handleWrite(h.session)
}

// onErrorReady reads right away: the device reports the error with the
// data it belongs to.
func (h *portHandler) onErrorReady() {
	h.p.handleRead(h.session)
}
