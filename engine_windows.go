//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

/*

// MSDN article on Serial Communications:
// http://msdn.microsoft.com/en-us/library/ff802693.aspx

// Arduino Playground article on serial communication with Windows API:
// http://playground.arduino.cc/Interfacing/CPPWindows

*/

import (
	"errors"
	"sync"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sys/windows"
)

const hasNativeEngine = true

const maxDWORD = 0xffffffff

// DCB.Flags bitfield
const (
	dcbfBinary           = 0b01 << 0
	dcbfParity           = 0b01 << 1
	dcbfOutxCTSFlow      = 0b01 << 2
	dcbfOutxDSRFlow      = 0b01 << 3
	dcbfDTRControl       = 0b11 << 4
	dcbfDSRSensitivity   = 0b01 << 6
	dcbfTXContinueOnXoff = 0b01 << 7
	dcbfOutX             = 0b01 << 8
	dcbfInX              = 0b01 << 9
	dcbfErrorChar        = 0b01 << 10
	dcbfNull             = 0b01 << 11
	dcbfRTSControl       = 0b11 << 12
	dcbfAbortOnError     = 0b01 << 14

	dcbfDTRShift = 4
	dcbfRTSShift = 12
)

// ClearCommError flags
const (
	ceRxParity = 0x0004
	ceFrame    = 0x0008
	ceBreak    = 0x0010
)

// GetCommModemStatus flags
const (
	msCTSOn  = 0x0010
	msDSROn  = 0x0020
	msRingOn = 0x0040
	msRLSDOn = 0x0080
)

const (
	ioctlSerialGetDTRRTS = 0x001b0078
	serialDTRState       = 0x1
	serialRTSState       = 0x2
)

// windowsEngine drives a COM port through the DCB and overlapped I/O.
// Apart from close and waitReady its methods are serialized by the Port.
type windowsEngine struct {
	handle   windows.Handle
	location string
	log      zerolog.Logger

	snapshot         windows.DCB
	timeoutsSnapshot windows.CommTimeouts
	restore          bool
	policy           DataErrorPolicy
	// errors collected by ClearCommError and not yet reported
	commErrors *atomic.Uint32

	ro, wo, io *windows.Overlapped
	// rxEvent is set by the notifier on every input event
	rxEvent    windows.Handle
	closeEvent windows.Handle
	closeLock  sync.RWMutex
	closed     *atomic.Bool
	notifier   *commNotifier
	// retired is the stopped notifier whose WaitCommEvent release cancels
	retired *commNotifier
}

func newNativeEngine(lockOracle LockOracle, log zerolog.Logger) engine {
	return &windowsEngine{
		handle:     windows.InvalidHandle,
		log:        log,
		restore:    true,
		policy:     IgnorePolicy,
		commErrors: atomic.NewUint32(0),
		closed:     atomic.NewBool(true),
	}
}

func decodeWinError(err error, fallback PortErrorCode) *PortError {
	var portErr *PortError
	if errors.As(err, &portErr) {
		return portErr
	}
	var errno windows.Errno
	if errors.As(err, &errno) {
		switch errno {
		case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_PATH_NOT_FOUND:
			return portErrorf(NoSuchDevice, err)
		case windows.ERROR_ACCESS_DENIED, windows.ERROR_SHARING_VIOLATION:
			return portErrorf(PermissionDenied, err)
		case windows.ERROR_INVALID_HANDLE, windows.ERROR_BAD_COMMAND,
			windows.ERROR_DEVICE_REMOVED, windows.ERROR_OPERATION_ABORTED:
			return portErrorf(IoError, err)
		case windows.ERROR_INVALID_PARAMETER, windows.ERROR_NOT_SUPPORTED:
			if fallback == UnknownPortError {
				return portErrorf(UnsupportedPortOperation, err)
			}
		}
	}
	return portErrorf(fallback, err)
}

func (e *windowsEngine) open(location string, mode OpenMode) error {
	path, err := windows.UTF16PtrFromString(location)
	if err != nil {
		return portErrorf(NoSuchDevice, err)
	}
	var access uint32
	if mode&ReadOnly != 0 {
		access |= windows.GENERIC_READ
	}
	if mode&WriteOnly != 0 {
		access |= windows.GENERIC_WRITE
	}
	handle, err := windows.CreateFile(
		path,
		access,
		0,   // exclusive access
		nil, // default security attributes
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OVERLAPPED,
		0)
	if err != nil {
		return decodeWinError(err, UnknownPortError)
	}

	var overlapped []*windows.Overlapped
	fail := func(err error) error {
		for _, ov := range overlapped {
			windows.CloseHandle(ov.HEvent)
		}
		windows.CloseHandle(handle)
		return decodeWinError(err, UnknownPortError)
	}
	if err := windows.GetCommState(handle, &e.snapshot); err != nil {
		return fail(err)
	}
	if err := windows.GetCommTimeouts(handle, &e.timeoutsSnapshot); err != nil {
		return fail(err)
	}

	dcb := e.snapshot
	dcb.DCBlength = uint32(unsafe.Sizeof(dcb))
	dcb.Flags |= dcbfBinary
	dcb.Flags &^= dcbfOutxDSRFlow | dcbfDSRSensitivity | dcbfErrorChar | dcbfNull | dcbfAbortOnError
	dcb.Flags |= dcbfTXContinueOnXoff
	dcb.Flags &^= dcbfDTRControl
	dcb.Flags |= windows.DTR_CONTROL_ENABLE << dcbfDTRShift
	if dcb.Flags&dcbfRTSControl != windows.RTS_CONTROL_HANDSHAKE<<dcbfRTSShift {
		dcb.Flags &^= dcbfRTSControl
		dcb.Flags |= windows.RTS_CONTROL_ENABLE << dcbfRTSShift
	}
	dcb.XonLim = 2048
	dcb.XoffLim = 512
	dcb.XonChar = 17  // DC1
	dcb.XoffChar = 19 // DC3
	if err := windows.SetCommState(handle, &dcb); err != nil {
		return fail(err)
	}

	// reads return at once with whatever is queued
	timeouts := windows.CommTimeouts{ReadIntervalTimeout: maxDWORD}
	if err := windows.SetCommTimeouts(handle, &timeouts); err != nil {
		return fail(err)
	}

	for i := 0; i < 3; i++ {
		ov, err := newOverlapped()
		if err != nil {
			return fail(err)
		}
		overlapped = append(overlapped, ov)
	}
	closeEvent, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return fail(err)
	}
	rxEvent, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		windows.CloseHandle(closeEvent)
		return fail(err)
	}

	e.handle = handle
	e.location = location
	e.ro, e.wo, e.io = overlapped[0], overlapped[1], overlapped[2]
	e.closeEvent = closeEvent
	e.rxEvent = rxEvent
	e.commErrors.Store(0)
	e.closed.Store(false)
	e.log.Debug().Msg("Opened native device")
	return nil
}

func (e *windowsEngine) close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.notifier == nil {
		e.interrupt()
		return e.release()
	}
	n := e.notifier
	e.notifier = nil
	e.retired = n
	return n.ctl.stop(e.interrupt, e.release)
}

func (e *windowsEngine) release() error {
	e.closeLock.Lock()
	defer e.closeLock.Unlock()

	if e.retired != nil {
		e.retired.cancel()
	}
	cancelErr := windows.CancelIoEx(e.handle, nil)
	if e.restore {
		if err := windows.SetCommState(e.handle, &e.snapshot); err != nil {
			e.log.Warn().Err(err).Msg("Could not restore settings on close")
		}
		windows.SetCommTimeouts(e.handle, &e.timeoutsSnapshot)
	}
	err := windows.CloseHandle(e.handle)
	for _, ov := range []*windows.Overlapped{e.ro, e.wo, e.io} {
		windows.CloseHandle(ov.HEvent)
	}
	windows.CloseHandle(e.closeEvent)
	windows.CloseHandle(e.rxEvent)
	e.handle = windows.InvalidHandle
	e.log.Debug().Msg("Closed native device")
	if err != nil {
		return decodeWinError(err, UnknownPortError)
	}
	if cancelErr != nil && cancelErr != windows.ERROR_NOT_FOUND {
		return decodeWinError(cancelErr, UnknownPortError)
	}
	return nil
}

func (e *windowsEngine) update(change func(dcb *windows.DCB) error) error {
	var dcb windows.DCB
	if err := windows.GetCommState(e.handle, &dcb); err != nil {
		return decodeWinError(err, ConfiguringError)
	}
	if err := change(&dcb); err != nil {
		return err
	}
	if err := windows.SetCommState(e.handle, &dcb); err != nil {
		return decodeWinError(err, ConfiguringError)
	}
	return nil
}

func (e *windowsEngine) detect() (Settings, error) {
	var dcb windows.DCB
	if err := windows.GetCommState(e.handle, &dcb); err != nil {
		return Settings{}, decodeWinError(err, UnknownPortError)
	}
	s := Settings{
		Location:       e.location,
		InputBaudRate:  int32(dcb.BaudRate),
		OutputBaudRate: int32(dcb.BaudRate),
		DataBits:       UnknownDataBits,
		Policy:         e.policy,
		RestoreOnClose: e.restore,
	}
	if dcb.ByteSize >= 5 && dcb.ByteSize <= 8 {
		s.DataBits = DataBits(dcb.ByteSize)
	}
	switch dcb.Parity {
	case windows.NOPARITY:
		s.Parity = NoParity
	case windows.ODDPARITY:
		s.Parity = OddParity
	case windows.EVENPARITY:
		s.Parity = EvenParity
	case windows.MARKPARITY:
		s.Parity = MarkParity
	case windows.SPACEPARITY:
		s.Parity = SpaceParity
	default:
		s.Parity = UnknownParity
	}
	switch dcb.StopBits {
	case windows.ONESTOPBIT:
		s.StopBits = OneStopBit
	case windows.ONE5STOPBITS:
		s.StopBits = OnePointFiveStopBits
	case windows.TWOSTOPBITS:
		s.StopBits = TwoStopBits
	default:
		s.StopBits = UnknownStopBits
	}
	switch {
	case dcb.Flags&dcbfOutxCTSFlow != 0 && dcb.Flags&dcbfRTSControl == windows.RTS_CONTROL_HANDSHAKE<<dcbfRTSShift:
		s.FlowControl = HardwareFlowControl
	case dcb.Flags&(dcbfOutX|dcbfInX) == dcbfOutX|dcbfInX:
		s.FlowControl = SoftwareFlowControl
	case dcb.Flags&(dcbfOutxCTSFlow|dcbfOutX|dcbfInX) == 0:
		s.FlowControl = NoFlowControl
	default:
		s.FlowControl = UnknownFlowControl
	}
	return s, nil
}

// The DCB has a single rate for both directions.
func (e *windowsEngine) setBaudRate(rate int32, dir Direction) error {
	if dir != AllDirections || rate <= 0 {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(dcb *windows.DCB) error {
		dcb.BaudRate = uint32(rate)
		return nil
	})
}

func (e *windowsEngine) setDataBits(bits DataBits) error {
	if bits < Data5 || bits > Data8 {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(dcb *windows.DCB) error {
		dcb.ByteSize = byte(bits)
		return nil
	})
}

func (e *windowsEngine) setParity(parity Parity) error {
	var native byte
	switch parity {
	case NoParity:
		native = windows.NOPARITY
	case OddParity:
		native = windows.ODDPARITY
	case EvenParity:
		native = windows.EVENPARITY
	case MarkParity:
		native = windows.MARKPARITY
	case SpaceParity:
		native = windows.SPACEPARITY
	default:
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(dcb *windows.DCB) error {
		dcb.Parity = native
		applyPolicyFlags(dcb, e.policy)
		return nil
	})
}

func (e *windowsEngine) setStopBits(bits StopBits) error {
	var native byte
	switch bits {
	case OneStopBit:
		native = windows.ONESTOPBIT
	case OnePointFiveStopBits:
		native = windows.ONE5STOPBITS
	case TwoStopBits:
		native = windows.TWOSTOPBITS
	default:
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(dcb *windows.DCB) error {
		dcb.StopBits = native
		return nil
	})
}

func (e *windowsEngine) setFlowControl(flow FlowControl) error {
	if flow < NoFlowControl || flow > SoftwareFlowControl {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(dcb *windows.DCB) error {
		dcb.Flags &^= dcbfInX | dcbfOutX | dcbfOutxCTSFlow
		if dcb.Flags&dcbfRTSControl == windows.RTS_CONTROL_HANDSHAKE<<dcbfRTSShift {
			dcb.Flags &^= dcbfRTSControl
			dcb.Flags |= windows.RTS_CONTROL_DISABLE << dcbfRTSShift
		}
		switch flow {
		case HardwareFlowControl:
			dcb.Flags |= dcbfOutxCTSFlow
			dcb.Flags &^= dcbfRTSControl
			dcb.Flags |= windows.RTS_CONTROL_HANDSHAKE << dcbfRTSShift
		case SoftwareFlowControl:
			dcb.Flags |= dcbfInX | dcbfOutX
		}
		return nil
	})
}

// applyPolicyFlags maps a policy on the driver: PassZero replaces bad bytes
// with the error character 0x00, the others check parity and leave the
// byte alone. Errors are read back by ClearCommError.
func applyPolicyFlags(dcb *windows.DCB, policy DataErrorPolicy) {
	dcb.Flags &^= dcbfParity | dcbfErrorChar
	dcb.ErrorChar = 0
	if dcb.Parity == windows.NOPARITY {
		return
	}
	switch policy {
	case IgnorePolicy:
	case SkipPolicy, StopReceivingPolicy:
		dcb.Flags |= dcbfParity
	default:
		dcb.Flags |= dcbfParity | dcbfErrorChar
	}
}

func (e *windowsEngine) setDataErrorPolicy(policy DataErrorPolicy) error {
	if policy == UnknownPolicy {
		e.log.Warn().Msg("Unknown data error policy, passing zero")
	}
	err := e.update(func(dcb *windows.DCB) error {
		applyPolicyFlags(dcb, policy)
		return nil
	})
	if err != nil {
		return err
	}
	e.policy = policy
	return nil
}

func (e *windowsEngine) setRestoreOnClose(restore bool) {
	e.restore = restore
}

// deviceIoControl runs an ioctl on the overlapped handle and waits for it.
func (e *windowsEngine) deviceIoControl(code uint32, out *uint32) error {
	var n uint32
	err := windows.DeviceIoControl(e.handle, code, nil, 0, (*byte)(unsafe.Pointer(out)), 4, &n, e.io)
	if err == windows.ERROR_IO_PENDING {
		err = windows.GetOverlappedResult(e.handle, e.io, &n, true)
	}
	return err
}

func (e *windowsEngine) lines() (Lines, error) {
	var status uint32
	if err := windows.GetCommModemStatus(e.handle, &status); err != nil {
		return 0, decodeWinError(err, UnknownPortError)
	}
	var l Lines
	if status&msCTSOn != 0 {
		l |= LineCTS
	}
	if status&msDSROn != 0 {
		l |= LineDSR
	}
	if status&msRingOn != 0 {
		l |= LineRI
	}
	if status&msRLSDOn != 0 {
		l |= LineDCD
	}
	var outputs uint32
	if err := e.deviceIoControl(ioctlSerialGetDTRRTS, &outputs); err != nil {
		return 0, decodeWinError(err, UnknownPortError)
	}
	if outputs&serialDTRState != 0 {
		l |= LineDTR
	}
	if outputs&serialRTSState != 0 {
		l |= LineRTS
	}
	return l, nil
}

func (e *windowsEngine) escape(set bool, on, off uint32) error {
	f := off
	if set {
		f = on
	}
	if err := windows.EscapeCommFunction(e.handle, f); err != nil {
		return decodeWinError(err, UnknownPortError)
	}
	return nil
}

func (e *windowsEngine) setDTR(set bool) error {
	return e.escape(set, windows.SETDTR, windows.CLRDTR)
}

func (e *windowsEngine) setRTS(set bool) error {
	return e.escape(set, windows.SETRTS, windows.CLRRTS)
}

func (e *windowsEngine) interrupt() {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	if e.handle != windows.InvalidHandle {
		windows.SetEvent(e.closeEvent)
	}
}

// held is always zero: errors are reported with the whole chunk.
func (e *windowsEngine) held() int {
	return 0
}

// drainPoll is how often a pending flush looks at the output queue.
const drainPoll = 5 * time.Millisecond

// flush waits for the output queue to empty.
func (e *windowsEngine) flush() error {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	for {
		if e.closed.Load() {
			return portErrorf(DeviceNotOpened, nil)
		}
		stat, err := e.comStat()
		if err != nil {
			return decodeWinError(err, UnknownPortError)
		}
		if stat.CBOutQue == 0 {
			return nil
		}
		if ev, _ := windows.WaitForSingleObject(e.closeEvent, uint32(drainPoll/time.Millisecond)); ev == windows.WAIT_OBJECT_0 {
			return portErrorf(DeviceNotOpened, nil)
		}
	}
}

func (e *windowsEngine) reset() error {
	flags := uint32(windows.PURGE_TXABORT | windows.PURGE_RXABORT | windows.PURGE_TXCLEAR | windows.PURGE_RXCLEAR)
	if err := windows.PurgeComm(e.handle, flags); err != nil {
		return decodeWinError(err, UnknownPortError)
	}
	return nil
}

const defaultBreak = 250 * time.Millisecond

func (e *windowsEngine) sendBreak(d time.Duration) error {
	if d <= 0 {
		d = defaultBreak
	}
	if err := e.setBreak(true); err != nil {
		return err
	}
	time.Sleep(d)
	return e.setBreak(false)
}

func (e *windowsEngine) setBreak(set bool) error {
	var err error
	if set {
		err = windows.SetCommBreak(e.handle)
	} else {
		err = windows.ClearCommBreak(e.handle)
	}
	if err != nil {
		return decodeWinError(err, UnknownPortError)
	}
	return nil
}

// comStat reads the queue sizes and keeps the error flags for read.
func (e *windowsEngine) comStat() (windows.ComStat, error) {
	var flags uint32
	var stat windows.ComStat
	if err := windows.ClearCommError(e.handle, &flags, &stat); err != nil {
		return stat, err
	}
	if flags != 0 {
		e.commErrors.Store(e.commErrors.Load() | flags)
	}
	return stat, nil
}

func (e *windowsEngine) queued() uint32 {
	stat, err := e.comStat()
	if err != nil {
		return 0
	}
	return stat.CBInQue
}

func (e *windowsEngine) bytesAvailable() (int64, error) {
	stat, err := e.comStat()
	if err != nil {
		return 0, decodeWinError(err, UnknownPortError)
	}
	return int64(stat.CBInQue), nil
}

func (e *windowsEngine) bytesToWrite() (int64, error) {
	stat, err := e.comStat()
	if err != nil {
		return 0, decodeWinError(err, UnknownPortError)
	}
	return int64(stat.CBOutQue), nil
}

// overlappedIO completes an overlapped ReadFile or WriteFile. interrupt
// cancels a transfer that is still pending.
func (e *windowsEngine) overlappedIO(ov *windows.Overlapped, start func(n *uint32) error) (int, error) {
	var n uint32
	err := start(&n)
	if err == windows.ERROR_IO_PENDING {
		ev, werr := windows.WaitForMultipleObjects([]windows.Handle{ov.HEvent, e.closeEvent}, false, windows.INFINITE)
		if werr == nil && ev == windows.WAIT_OBJECT_0+1 {
			windows.CancelIoEx(e.handle, ov)
			windows.GetOverlappedResult(e.handle, ov, &n, true)
			return int(n), portErrorf(DeviceNotOpened, nil)
		}
		err = windows.GetOverlappedResult(e.handle, ov, &n, true)
	}
	if err != nil {
		return 0, decodeWinError(err, IoError)
	}
	return int(n), nil
}

// read returns what the driver has queued. The driver can't tell which
// byte was bad: with StopReceiving the error flags are reported with the
// whole chunk.
func (e *windowsEngine) read(p []byte) (int, error) {
	if _, err := e.comStat(); err != nil {
		return 0, decodeWinError(err, IoError)
	}
	got, err := e.overlappedIO(e.ro, func(n *uint32) error {
		return windows.ReadFile(e.handle, p, n, e.ro)
	})
	if err != nil {
		return 0, err
	}
	flags := e.commErrors.Swap(0)
	if e.policy == StopReceivingPolicy && flags&(ceRxParity|ceFrame|ceBreak) != 0 {
		code := ParityError
		switch {
		case flags&ceBreak != 0:
			code = BreakConditionError
		case flags&ceFrame != 0:
			code = FramingError
		}
		return got, portErrorf(code, nil)
	}
	if got == 0 {
		return 0, errWouldBlock
	}
	return got, nil
}

// write waits for the completion of the transfer.
func (e *windowsEngine) write(p []byte) (int, error) {
	return e.overlappedIO(e.wo, func(n *uint32) error {
		return windows.WriteFile(e.handle, p, n, e.wo)
	})
}

// rxWaitSlice bounds a single wait on rxEvent. While a callback runs the
// notifier has no WaitCommEvent outstanding and sets no event.
const rxWaitSlice = 20 * time.Millisecond

// waitReady waits on the input events raised by the notifier. A write is
// always possible since writes complete synchronously.
func (e *windowsEngine) waitReady(timeout time.Duration, wantRead, wantWrite bool) (bool, bool, error) {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	deadline := time.Now().Add(timeout)
	for {
		if e.closed.Load() {
			return false, false, portErrorf(DeviceNotOpened, nil)
		}
		if wantWrite {
			return false, true, nil
		}
		windows.ResetEvent(e.rxEvent)
		stat, err := e.comStat()
		if err != nil {
			return false, false, decodeWinError(err, IoError)
		}
		if wantRead && stat.CBInQue > 0 {
			return true, false, nil
		}
		slice := rxWaitSlice
		if timeout >= 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return false, false, nil
			}
			slice = max(min(slice, left), time.Millisecond)
		}
		ev, err := windows.WaitForMultipleObjects([]windows.Handle{e.rxEvent, e.closeEvent}, false, uint32(slice/time.Millisecond))
		if err != nil {
			return false, false, decodeWinError(err, IoError)
		}
		if ev == windows.WAIT_OBJECT_0+1 {
			return false, false, portErrorf(DeviceNotOpened, nil)
		}
	}
}

func (e *windowsEngine) startNotifier(h handler) error {
	n, err := newCommNotifier(e.handle, e.closeEvent, e.rxEvent, &e.closeLock, e.closed, e.queued, e.log)
	if err != nil {
		return decodeWinError(err, UnknownPortError)
	}
	e.notifier = n
	n.start(h)
	return nil
}

func (e *windowsEngine) setReadNotification(enable bool) {
	if e.notifier != nil {
		e.notifier.setReadEnabled(enable)
	}
}

func (e *windowsEngine) setWriteNotification(enable bool) {
	if e.notifier != nil {
		e.notifier.setWriteEnabled(enable)
	}
}

func (e *windowsEngine) readNotification() bool {
	return e.notifier != nil && e.notifier.readEnabled.Load()
}

func (e *windowsEngine) writeNotification() bool {
	return e.notifier != nil && e.notifier.writeEnabled.Load()
}
