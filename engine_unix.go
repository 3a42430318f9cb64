//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package serial

import (
	"errors"
	"sync"
	"time"

	"github.com/abakum/go-serialport/unixutils"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

const hasNativeEngine = true

// unixEngine drives a tty through termios and ioctl. Apart from close and
// waitReady its methods are serialized by the Port.
type unixEngine struct {
	fd         int
	location   string
	lockOracle LockOracle
	locked     bool
	log        zerolog.Logger

	snapshot   *unix.Termios
	restore    bool
	customRate int32
	parity     Parity
	dataBits   DataBits
	policy     DataErrorPolicy
	codec      *parityCodec
	odd        bool
	marks      markReader

	// switching is set while a parity switch waits for the output to drain
	switching *atomic.Bool

	// closeSignal becomes readable when the engine closes
	closeSignal *unixutils.Pipe
	closeLock   sync.RWMutex
	closed      *atomic.Bool
	notifier    *selectNotifier
}

func newNativeEngine(lockOracle LockOracle, log zerolog.Logger) engine {
	codec := newParityCodec(log)
	return &unixEngine{
		fd:         -1,
		lockOracle: lockOracle,
		log:        log,
		restore:    true,
		parity:     NoParity,
		dataBits:   Data8,
		policy:     IgnorePolicy,
		codec:      codec,
		marks:      markReader{codec: codec},
		closed:     atomic.NewBool(true),
		switching:  atomic.NewBool(false),
	}
}

// decodeErrno maps the errors of open and ioctl calls to port errors.
func decodeErrno(err error, fallback PortErrorCode) *PortError {
	var portErr *PortError
	if errors.As(err, &portErr) {
		return portErr
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ENOENT, unix.ENODEV, unix.ENXIO:
			return portErrorf(NoSuchDevice, err)
		case unix.EACCES, unix.EPERM, unix.EBUSY:
			return portErrorf(PermissionDenied, err)
		case unix.EIO, unix.EBADF:
			return portErrorf(IoError, err)
		case unix.EINVAL, unix.ENOTTY:
			if fallback == UnknownPortError {
				return portErrorf(UnsupportedPortOperation, err)
			}
		}
	}
	return portErrorf(fallback, err)
}

func (e *unixEngine) open(location string, mode OpenMode) error {
	if e.lockOracle != nil {
		locked, _, err := e.lockOracle.IsLocked(location)
		if err == nil && locked {
			return portErrorf(PermissionDenied, errors.New("device is locked"))
		}
		if err := e.lockOracle.Lock(location); err != nil {
			return portErrorf(PermissionDenied, err)
		}
		e.locked = true
	}

	flags := unix.O_NOCTTY | unix.O_NONBLOCK | unix.O_CLOEXEC
	switch mode {
	case ReadOnly:
		flags |= unix.O_RDONLY
	case WriteOnly:
		flags |= unix.O_WRONLY
	default:
		flags |= unix.O_RDWR
	}
	fd, err := unix.Open(location, flags, 0)
	if err != nil {
		e.unlock(location)
		return decodeErrno(err, UnknownPortError)
	}

	fail := func(err error) error {
		unix.Close(fd)
		e.unlock(location)
		return decodeErrno(err, UnknownPortError)
	}
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		return fail(err)
	}
	snapshot, err := getTermios(fd)
	if err != nil {
		return fail(err)
	}
	t := *snapshot
	setRawMode(&t)
	if err := setTermios(fd, &t); err != nil {
		return fail(err)
	}
	closeSignal, err := unixutils.NewNonblockingPipe()
	if err != nil {
		return fail(err)
	}

	e.fd = fd
	e.location = location
	e.snapshot = snapshot
	e.closeSignal = closeSignal
	e.marks.reset()
	e.customRate = 0
	e.closed.Store(false)
	e.log.Debug().Int("fd", fd).Msg("Opened native device")
	return nil
}

func (e *unixEngine) unlock(location string) {
	if e.lockOracle != nil && e.locked {
		if err := e.lockOracle.Unlock(location); err != nil {
			e.log.Warn().Err(err).Msg("Could not release device lock")
		}
		e.locked = false
	}
}

func setRawMode(t *unix.Termios) {
	// Set local mode
	t.Cflag |= tcflag(unix.CREAD | unix.CLOCAL)

	// Set raw mode
	t.Lflag &^= tcflag(unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK |
		unix.ECHONL | unix.ECHOCTL | unix.ECHOPRT | unix.ECHOKE | unix.ISIG | unix.IEXTEN)
	t.Iflag &^= tcflag(unix.IXON|unix.IXOFF|unix.IXANY|unix.INPCK|
		unix.IGNPAR|unix.PARMRK|unix.ISTRIP|unix.IGNBRK|unix.BRKINT|unix.INLCR|
		unix.IGNCR|unix.ICRNL) | tcIUCLC
	t.Oflag &^= tcflag(unix.OPOST)

	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}

func (e *unixEngine) close() error {
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

// release gives the descriptor back once nothing waits on it anymore.
func (e *unixEngine) release() error {
	e.closeLock.Lock()
	defer e.closeLock.Unlock()

	if e.restore && e.snapshot != nil {
		if err := setTermios(e.fd, e.snapshot); err != nil {
			e.log.Warn().Err(err).Msg("Could not restore settings on close")
		}
	}
	unix.IoctlSetInt(e.fd, unix.TIOCNXCL, 0)
	err := unix.Close(e.fd)
	e.closeSignal.Close()
	e.unlock(e.location)
	e.fd = -1
	e.log.Debug().Msg("Closed native device")
	if err != nil {
		return decodeErrno(err, UnknownPortError)
	}
	return nil
}

// update applies change to the current configuration with a single
// tcsetattr: on failure the device keeps its previous state.
func (e *unixEngine) update(change func(t *unix.Termios) error) error {
	t, err := getTermios(e.fd)
	if err != nil {
		return decodeErrno(err, ConfiguringError)
	}
	if err := change(t); err != nil {
		return err
	}
	if err := setTermios(e.fd, t); err != nil {
		return decodeErrno(err, ConfiguringError)
	}
	return nil
}

func (e *unixEngine) detect() (Settings, error) {
	t, err := getTermios(e.fd)
	if err != nil {
		return Settings{}, decodeErrno(err, UnknownPortError)
	}
	s := Settings{
		Location:       e.location,
		InputBaudRate:  getSpeed(t, Input),
		OutputBaudRate: getSpeed(t, Output),
		RestoreOnClose: e.restore,
	}
	if e.customRate > 0 {
		s.InputBaudRate, s.OutputBaudRate = e.customRate, e.customRate
	}

	switch t.Cflag & tcflag(unix.CSIZE) {
	case tcflag(unix.CS5):
		s.DataBits = Data5
	case tcflag(unix.CS6):
		s.DataBits = Data6
	case tcflag(unix.CS7):
		s.DataBits = Data7
	case tcflag(unix.CS8):
		s.DataBits = Data8
	default:
		s.DataBits = UnknownDataBits
	}

	switch {
	case e.codec.emulated:
		s.Parity = e.codec.parity
	case t.Cflag&tcflag(unix.PARENB) == 0:
		s.Parity = NoParity
	case tcCMSPAR != 0 && t.Cflag&tcCMSPAR != 0:
		if t.Cflag&tcflag(unix.PARODD) != 0 {
			s.Parity = MarkParity
		} else {
			s.Parity = SpaceParity
		}
	case t.Cflag&tcflag(unix.PARODD) != 0:
		s.Parity = OddParity
	default:
		s.Parity = EvenParity
	}

	if t.Cflag&tcflag(unix.CSTOPB) != 0 {
		s.StopBits = TwoStopBits
	} else {
		s.StopBits = OneStopBit
	}

	switch {
	case t.Cflag&tcCRTSCTS != 0:
		s.FlowControl = HardwareFlowControl
	case t.Iflag&tcflag(unix.IXON|unix.IXOFF) != 0:
		s.FlowControl = SoftwareFlowControl
	default:
		s.FlowControl = NoFlowControl
	}

	switch {
	case e.codec.emulated || t.Iflag&tcflag(unix.PARMRK) != 0:
		s.Policy = e.policy
	case t.Iflag&tcflag(unix.IGNPAR) != 0:
		s.Policy = SkipPolicy
	case t.Iflag&tcflag(unix.INPCK) != 0:
		s.Policy = PassZeroPolicy
	default:
		s.Policy = IgnorePolicy
	}

	e.odd = t.Cflag&tcflag(unix.PARODD) != 0
	if s.Parity != UnknownParity && s.DataBits != UnknownDataBits {
		e.parity, e.dataBits = s.Parity, s.DataBits
	}
	if s.Policy != UnknownPolicy {
		e.policy = s.Policy
	}
	e.configureCodec()
	return s, nil
}

func (e *unixEngine) setBaudRate(rate int32, dir Direction) error {
	custom := false
	err := e.update(func(t *unix.Termios) error {
		var err error
		custom, err = applySpeed(t, rate, dir)
		return err
	})
	if err != nil {
		return err
	}
	if custom {
		if err := setCustomSpeed(e.fd, rate); err != nil {
			return decodeErrno(err, UnsupportedPortOperation)
		}
		e.customRate = rate
	} else {
		e.customRate = 0
	}
	return nil
}

func (e *unixEngine) setDataBits(bits DataBits) error {
	var size tcflag
	switch bits {
	case Data5:
		size = tcflag(unix.CS5)
	case Data6:
		size = tcflag(unix.CS6)
	case Data7:
		size = tcflag(unix.CS7)
	case Data8:
		size = tcflag(unix.CS8)
	default:
		return portErrorf(UnsupportedPortOperation, nil)
	}
	err := e.update(func(t *unix.Termios) error {
		t.Cflag &^= tcflag(unix.CSIZE)
		t.Cflag |= size
		return nil
	})
	if err != nil {
		return err
	}
	e.dataBits = bits
	e.configureCodec()
	return nil
}

func (e *unixEngine) emulatesParity(parity Parity) bool {
	return !hasMarkSpace && (parity == MarkParity || parity == SpaceParity)
}

func (e *unixEngine) setParity(parity Parity) error {
	if parity < NoParity || parity > SpaceParity {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	emulated := e.emulatesParity(parity)
	err := e.update(func(t *unix.Termios) error {
		switch parity {
		case NoParity:
			t.Cflag &^= tcflag(unix.PARENB|unix.PARODD) | tcCMSPAR
		case OddParity:
			t.Cflag |= tcflag(unix.PARENB | unix.PARODD)
			t.Cflag &^= tcCMSPAR
		case EvenParity:
			t.Cflag &^= tcflag(unix.PARODD) | tcCMSPAR
			t.Cflag |= tcflag(unix.PARENB)
		case MarkParity:
			t.Cflag |= tcflag(unix.PARENB|unix.PARODD) | tcCMSPAR
		case SpaceParity:
			t.Cflag &^= tcflag(unix.PARODD)
			t.Cflag |= tcflag(unix.PARENB) | tcCMSPAR
		}
		if emulated {
			t.Cflag |= tcflag(unix.PARENB)
			t.Cflag &^= tcflag(unix.PARODD)
		}
		applyPolicy(t, parity, e.policy, emulated)
		return nil
	})
	if err != nil {
		return err
	}
	e.parity = parity
	e.odd = !emulated && (parity == OddParity || parity == MarkParity)
	e.configureCodec()
	return nil
}

func (e *unixEngine) setStopBits(bits StopBits) error {
	switch bits {
	case OneStopBit, TwoStopBits:
	default:
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(t *unix.Termios) error {
		if bits == TwoStopBits {
			t.Cflag |= tcflag(unix.CSTOPB)
		} else {
			t.Cflag &^= tcflag(unix.CSTOPB)
		}
		return nil
	})
}

func (e *unixEngine) setFlowControl(flow FlowControl) error {
	if flow < NoFlowControl || flow > SoftwareFlowControl {
		return portErrorf(UnsupportedPortOperation, nil)
	}
	return e.update(func(t *unix.Termios) error {
		t.Cflag &^= tcCRTSCTS
		t.Iflag &^= tcflag(unix.IXON | unix.IXOFF | unix.IXANY)
		switch flow {
		case HardwareFlowControl:
			t.Cflag |= tcCRTSCTS
		case SoftwareFlowControl:
			t.Iflag |= tcflag(unix.IXON | unix.IXOFF)
		}
		return nil
	})
}

// applyPolicy sets the input flags of a data error policy. The kernel
// handles Skip, PassZero and Ignore by itself; StopReceiving and emulated
// parity need the error marks.
func applyPolicy(t *unix.Termios, parity Parity, policy DataErrorPolicy, emulated bool) {
	t.Iflag &^= tcflag(unix.IGNPAR | unix.PARMRK | unix.INPCK | unix.ISTRIP | unix.IGNBRK | unix.BRKINT)
	if emulated {
		t.Iflag |= tcflag(unix.PARMRK | unix.INPCK)
		return
	}
	switch policy {
	case SkipPolicy:
		t.Iflag |= tcflag(unix.IGNPAR | unix.INPCK)
	case IgnorePolicy:
	case StopReceivingPolicy:
		t.Iflag |= tcflag(unix.PARMRK | unix.INPCK)
	default:
		t.Iflag |= tcflag(unix.INPCK)
	}
	if parity == NoParity && policy != StopReceivingPolicy {
		t.Iflag &^= tcflag(unix.INPCK)
	}
}

func (e *unixEngine) setDataErrorPolicy(policy DataErrorPolicy) error {
	if policy == UnknownPolicy {
		e.log.Warn().Msg("Unknown data error policy, passing zero")
	}
	err := e.update(func(t *unix.Termios) error {
		applyPolicy(t, e.parity, policy, e.emulatesParity(e.parity))
		return nil
	})
	if err != nil {
		return err
	}
	e.policy = policy
	e.configureCodec()
	return nil
}

func (e *unixEngine) configureCodec() {
	e.codec.configure(e.parity, e.dataBits, e.policy, e.emulatesParity(e.parity))
}

// decoding reports whether the input carries PARMRK marks.
func (e *unixEngine) decoding() bool {
	return e.codec.emulated || e.policy == StopReceivingPolicy
}

func (e *unixEngine) setRestoreOnClose(restore bool) {
	e.restore = restore
}

func (e *unixEngine) lines() (Lines, error) {
	status, err := unix.IoctlGetInt(e.fd, unix.TIOCMGET)
	if err != nil {
		return 0, decodeErrno(err, UnknownPortError)
	}
	bits := []struct {
		native int
		line   Lines
	}{
		{unix.TIOCM_LE, LineLE}, {unix.TIOCM_DTR, LineDTR}, {unix.TIOCM_RTS, LineRTS},
		{unix.TIOCM_ST, LineST}, {unix.TIOCM_SR, LineSR}, {unix.TIOCM_CTS, LineCTS},
		{unix.TIOCM_CAR, LineDCD}, {unix.TIOCM_RNG, LineRI}, {unix.TIOCM_DSR, LineDSR},
	}
	var l Lines
	for _, b := range bits {
		if status&b.native != 0 {
			l |= b.line
		}
	}
	return l, nil
}

func (e *unixEngine) setModemBit(bit int, set bool) error {
	req := uint(unix.TIOCMBIC)
	if set {
		req = unix.TIOCMBIS
	}
	if err := unix.IoctlSetPointerInt(e.fd, req, bit); err != nil {
		return decodeErrno(err, UnknownPortError)
	}
	return nil
}

func (e *unixEngine) setDTR(set bool) error {
	return e.setModemBit(unix.TIOCM_DTR, set)
}

func (e *unixEngine) setRTS(set bool) error {
	return e.setModemBit(unix.TIOCM_RTS, set)
}

func (e *unixEngine) interrupt() {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	if e.fd >= 0 {
		e.closeSignal.Signal()
	}
}

func (e *unixEngine) held() int {
	return e.marks.buffered()
}

// drainPoll is how often a pending drain looks at the output queue.
const drainPoll = 5 * time.Millisecond

// flush watches the output queue until it empties, then waits for the
// transmitter with tcdrain.
func (e *unixEngine) flush() error {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	for {
		if e.closed.Load() {
			return portErrorf(DeviceNotOpened, nil)
		}
		n, err := outputQueue(e.fd)
		if err != nil {
			return decodeErrno(err, UnknownPortError)
		}
		if n == 0 {
			break
		}
		res, err := unixutils.Select(unixutils.NewFDSet(e.closeSignal.ReadFD()), nil, nil, drainPoll)
		if err != nil {
			return portErrorf(IoError, err)
		}
		if res.IsReadable(e.closeSignal.ReadFD()) {
			return portErrorf(DeviceNotOpened, nil)
		}
	}
	if err := drain(e.fd); err != nil {
		return decodeErrno(err, UnknownPortError)
	}
	return nil
}

func (e *unixEngine) reset() error {
	e.marks.reset()
	if err := purge(e.fd); err != nil {
		return decodeErrno(err, UnknownPortError)
	}
	return nil
}

// defaultBreak is what tcsendbreak(fd, 0) sends.
const defaultBreak = 250 * time.Millisecond

func (e *unixEngine) sendBreak(d time.Duration) error {
	if d <= 0 {
		d = defaultBreak
	}
	if err := e.setBreak(true); err != nil {
		return err
	}
	time.Sleep(d)
	return e.setBreak(false)
}

func (e *unixEngine) setBreak(set bool) error {
	req := uint(unix.TIOCCBRK)
	if set {
		req = unix.TIOCSBRK
	}
	if err := unix.IoctlSetInt(e.fd, req, 0); err != nil {
		return decodeErrno(err, UnknownPortError)
	}
	return nil
}

func (e *unixEngine) bytesAvailable() (int64, error) {
	n, err := inputQueue(e.fd)
	if err != nil {
		return 0, decodeErrno(err, UnknownPortError)
	}
	return int64(n + e.marks.buffered()), nil
}

func (e *unixEngine) bytesToWrite() (int64, error) {
	n, err := outputQueue(e.fd)
	if err != nil {
		return 0, decodeErrno(err, UnknownPortError)
	}
	return int64(n), nil
}

func (e *unixEngine) readRaw(p []byte) (int, error) {
	n, err := unix.Read(e.fd, p)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, errWouldBlock
	case err != nil:
		return 0, portErrorf(IoError, err)
	case n == 0:
		// readable with nothing to read: the other end hung up
		return 0, portErrorf(IoError, errors.New("hangup"))
	}
	return n, nil
}

// read returns the bytes of the device. With error marks enabled it stops
// at the first byte the policy rejects: that byte is the last one returned,
// together with its *PortError.
func (e *unixEngine) read(p []byte) (int, error) {
	if !e.decoding() && e.marks.buffered() == 0 {
		return e.readRaw(p)
	}
	return e.marks.read(p, e.odd, e.readRaw)
}

func (e *unixEngine) write(p []byte) (int, error) {
	if e.codec.emulated {
		return e.codec.encode(e, p)
	}
	return e.writeRaw(p)
}

func (e *unixEngine) writeRaw(p []byte) (int, error) {
	n, err := unix.Write(e.fd, p)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, errWouldBlock
	case err != nil:
		return 0, portErrorf(IoError, err)
	}
	return n, nil
}

func (e *unixEngine) nativeOdd() bool {
	return e.odd
}

// setNativeOdd switches the parity once the output queue is empty, before
// that it returns errWouldBlock and the notifier retries after drainPoll.
func (e *unixEngine) setNativeOdd(odd bool) error {
	n, err := outputQueue(e.fd)
	if err != nil {
		return decodeErrno(err, UnknownPortError)
	}
	if n > 0 {
		e.switching.Store(true)
		return errWouldBlock
	}
	e.switching.Store(false)
	if err := drain(e.fd); err != nil {
		return decodeErrno(err, UnknownPortError)
	}
	err = e.update(func(t *unix.Termios) error {
		if odd {
			t.Cflag |= tcflag(unix.PARODD)
		} else {
			t.Cflag &^= tcflag(unix.PARODD)
		}
		return nil
	})
	if err == nil {
		e.odd = odd
	}
	return err
}

func (e *unixEngine) waitReady(timeout time.Duration, wantRead, wantWrite bool) (bool, bool, error) {
	e.closeLock.RLock()
	defer e.closeLock.RUnlock()
	if e.closed.Load() {
		return false, false, portErrorf(DeviceNotOpened, nil)
	}
	if wantRead && e.marks.buffered() > 0 {
		return true, false, nil
	}

	rd := unixutils.NewFDSet(e.closeSignal.ReadFD())
	if wantRead {
		rd.Add(e.fd)
	}
	var wr *unixutils.FDSet
	// a pending parity switch needs an empty queue, not room in it
	switching := wantWrite && e.switching.Load()
	if wantWrite && !switching {
		wr = unixutils.NewFDSet(e.fd)
	}
	if switching && (timeout < 0 || timeout > drainPoll) {
		timeout = drainPoll
	}
	res, err := unixutils.Select(rd, wr, nil, timeout)
	if err != nil {
		return false, false, portErrorf(IoError, err)
	}
	if res.IsReadable(e.closeSignal.ReadFD()) {
		return false, false, portErrorf(DeviceNotOpened, nil)
	}
	return wantRead && res.IsReadable(e.fd), switching || wantWrite && res.IsWritable(e.fd), nil
}

func (e *unixEngine) startNotifier(h handler) error {
	n, err := newSelectNotifier(e.fd, e.closeSignal.ReadFD(), &e.closeLock, e.closed, e.switching, e.log)
	if err != nil {
		return portErrorf(UnknownPortError, err)
	}
	e.notifier = n
	n.start(h)
	return nil
}

func (e *unixEngine) setReadNotification(enable bool) {
	if e.notifier != nil {
		e.notifier.setReadEnabled(enable)
	}
}

func (e *unixEngine) setWriteNotification(enable bool) {
	if e.notifier != nil {
		e.notifier.setWriteEnabled(enable)
	}
}

func (e *unixEngine) readNotification() bool {
	return e.notifier != nil && e.notifier.readEnabled.Load()
}

func (e *unixEngine) writeNotification() bool {
	return e.notifier != nil && e.notifier.writeEnabled.Load()
}
