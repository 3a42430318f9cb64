//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var pairSeq = atomic.NewInt32(0)

func newTestPair(t *testing.T) (string, string) {
	n := pairSeq.Inc()
	a, b := fmt.Sprintf("TESTA%d", n), fmt.Sprintf("TESTB%d", n)
	require.NoError(t, CreateVirtualPair(a, b))
	t.Cleanup(func() { RemoveVirtualPair(a) })
	return a, b
}

func openTestPort(t *testing.T, name string, opts ...Option) *Port {
	p := NewPort(name, append([]Option{WithLockOracle(nil)}, opts...)...)
	require.NoError(t, p.Open(ReadWrite))
	t.Cleanup(func() {
		if p.IsOpen() {
			p.Close()
		}
	})
	return p
}

func readAll(t *testing.T, p *Port, n int) []byte {
	require.Eventually(t, func() bool { return p.BytesAvailable() >= int64(n) }, waitFor, tick)
	buf := make([]byte, n)
	got, err := p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, n, got)
	return buf
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestPortWriteFlushesEverything(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := openTestPort(t, b)

	flushed := atomic.NewInt64(0)
	pa.OnDataFlushed(func(n int64) { flushed.Add(n) })

	data := pattern(500)
	n, err := pa.Write(data)
	require.NoError(t, err)
	require.Equal(t, 500, n)

	require.Eventually(t, func() bool { return flushed.Load() == 500 }, waitFor, tick)
	require.Equal(t, int64(0), pa.BytesToWrite())
	require.Equal(t, data, readAll(t, pb, 500))
}

func TestPortReadBufferCap(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := openTestPort(t, b, WithReadBufferCap(64))
	require.Equal(t, int64(64), pb.ReadBufferCap())

	data := pattern(100)
	_, err := pa.Write(data)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return pb.BytesAvailable() == 64 }, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int64(64), pb.BytesAvailable())

	first := make([]byte, 64)
	n, err := pb.Read(first)
	require.NoError(t, err)
	require.Equal(t, 64, n)
	require.Equal(t, data[:64], first)

	require.Equal(t, data[64:], readAll(t, pb, 36))
}

func TestPortUnsupportedRate(t *testing.T) {
	a, _ := newTestPair(t)
	pa := openTestPort(t, a)

	err := pa.SetBaudRate(42, AllDirections)
	require.Error(t, err)
	require.Equal(t, UnsupportedPortOperation, errorCode(err))
	require.Equal(t, UnsupportedPortOperation, pa.Error())
	require.Equal(t, int32(9600), pa.BaudRate(Input))

	pa.ClearError()
	require.Equal(t, NoError, pa.Error())
	require.NoError(t, pa.SetBaudRate(115200, AllDirections))
	require.Equal(t, int32(115200), pa.BaudRate(Output))
}

func TestPortOpenTwice(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a, WithBaudRate(19200))
	pb := openTestPort(t, b, WithBaudRate(19200))

	err := pa.Open(ReadWrite)
	require.Equal(t, DeviceAlreadyOpened, errorCode(err))
	require.Equal(t, DeviceAlreadyOpened, pa.Error())
	require.True(t, pa.IsOpen())
	require.Equal(t, int32(19200), pa.BaudRate(Input))

	// the first session still works
	_, err = pa.Write([]byte("still here"))
	require.NoError(t, err)
	require.Equal(t, []byte("still here"), readAll(t, pb, 10))

	// another port can't take the device
	other := NewPort(a, WithLockOracle(nil))
	require.Equal(t, PermissionDenied, errorCode(other.Open(ReadWrite)))
}

func TestPortClosedOperations(t *testing.T) {
	a, _ := newTestPair(t)
	p := NewPort(a, WithLockOracle(nil))
	require.False(t, p.IsOpen())

	_, err := p.Write([]byte{1})
	require.Equal(t, DeviceNotOpened, errorCode(err))
	_, err = p.Lines()
	require.Equal(t, DeviceNotOpened, errorCode(err))
	require.Equal(t, DeviceNotOpened, errorCode(p.Close()))
	require.False(t, p.WaitForReadyRead(0))

	// settings of a closed port wait for Open
	require.NoError(t, p.SetBaudRate(57600, AllDirections))
	require.NoError(t, p.Open(ReadOnly))
	defer p.Close()
	require.Equal(t, int32(57600), p.Settings().OutputBaudRate)
	_, err = p.Write([]byte{1})
	require.Equal(t, DeviceNotOpened, errorCode(err))

	require.Equal(t, NoSuchDevice, errorCode(NewPort("NOSUCHDEVICE:").Open(ReadWrite)))
}

func TestPortDetectAndRestore(t *testing.T) {
	a, b := newTestPair(t)

	pa := NewPort(a, WithLockOracle(nil), WithMode(Mode{BaudRate: 115200, DataBits: Data7, Parity: EvenParity, StopBits: TwoStopBits}))
	require.NoError(t, pa.Open(ReadWrite))
	s := pa.Settings()
	require.Equal(t, int32(115200), s.InputBaudRate)
	require.Equal(t, Data7, s.DataBits)
	require.Equal(t, EvenParity, s.Parity)
	require.Equal(t, TwoStopBits, s.StopBits)
	require.NoError(t, pa.Close())

	// restored on close: a port without settings reads the defaults back
	probe := NewPort(a, WithLockOracle(nil))
	require.NoError(t, probe.Open(ReadWrite))
	require.Equal(t, int32(9600), probe.BaudRate(Input))
	require.Equal(t, Data8, probe.DataBits())
	require.Equal(t, NoParity, probe.Parity())
	require.NoError(t, probe.Close())

	pb := NewPort(b, WithLockOracle(nil), WithBaudRate(38400), WithRestoreOnClose(false))
	require.NoError(t, pb.Open(ReadWrite))
	require.NoError(t, pb.Close())
	probe = NewPort(b, WithLockOracle(nil))
	require.NoError(t, probe.Open(ReadWrite))
	defer probe.Close()
	require.Equal(t, int32(38400), probe.BaudRate(Output))
}

func TestPortUnsupportedVirtualSettings(t *testing.T) {
	a, _ := newTestPair(t)
	pa := openTestPort(t, a)
	require.Equal(t, UnsupportedPortOperation, errorCode(pa.SetStopBits(OnePointFiveStopBits)))
	require.Equal(t, UnsupportedPortOperation, errorCode(pa.SetDataBits(DataBits(9))))
	require.Equal(t, OneStopBit, pa.StopBits())
	require.Equal(t, Data8, pa.DataBits())
}

func TestPortDataReadyAndLines(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := openTestPort(t, b)

	ready := make(chan struct{}, 16)
	unregister := pb.OnDataReady(func() { ready <- struct{}{} })

	_, err := pa.Write([]byte("first line\nsecond"))
	require.NoError(t, err)
	select {
	case <-ready:
	case <-time.After(waitFor):
		t.Fatal("no data ready event")
	}
	require.Eventually(t, func() bool { return pb.BytesAvailable() == 17 }, waitFor, tick)
	require.True(t, pb.CanReadLine())
	line, err := pb.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "first line\n", string(line))
	require.False(t, pb.CanReadLine())
	rest, err := pb.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "second", string(rest))
	unregister()
	unregister()
}

func TestVirtualLineCrossing(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := openTestPort(t, b)

	require.True(t, pa.IsDTR())
	require.True(t, pa.IsRTS())
	l, err := pb.Lines()
	require.NoError(t, err)
	require.Equal(t, LineDTR|LineRTS|LineCTS|LineDSR|LineDCD, l)

	require.NoError(t, pa.SetRTS(false))
	l, err = pb.Lines()
	require.NoError(t, err)
	require.Zero(t, l&LineCTS)
	require.NotZero(t, l&LineDSR)

	require.NoError(t, pa.SetDTR(false))
	bits, err := pb.GetModemStatusBits()
	require.NoError(t, err)
	require.Equal(t, &ModemStatusBits{}, bits)
	require.False(t, pa.IsDTR())
}

func TestVirtualHardwareFlowControl(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a, WithFlowControl(HardwareFlowControl))
	pb := openTestPort(t, b)
	require.Equal(t, HardwareFlowControl, pa.FlowControl())

	require.NoError(t, pb.SetRTS(false))
	_, err := pa.Write([]byte("held"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pa.BytesToWrite() == 4 }, waitFor, tick)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(0), pb.BytesAvailable())

	require.NoError(t, pb.SetRTS(true))
	require.Equal(t, []byte("held"), readAll(t, pb, 4))
	require.Eventually(t, func() bool { return pa.BytesToWrite() == 0 }, waitFor, tick)
}

func TestVirtualBreak(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := openTestPort(t, b)

	require.NoError(t, pa.SendBreak(time.Millisecond))
	require.Equal(t, []byte{0x00}, readAll(t, pb, 1))

	errs := make(chan PortErrorCode, 4)
	pb.OnError(func(code PortErrorCode) { errs <- code })
	require.NoError(t, pb.SetDataErrorPolicy(StopReceivingPolicy))
	require.NoError(t, pa.SetBreak(true))
	require.NoError(t, pa.SetBreak(false))
	select {
	case code := <-errs:
		require.Equal(t, BreakConditionError, code)
	case <-time.After(waitFor):
		t.Fatal("no break reported")
	}
	require.Equal(t, BreakConditionError, pb.Error())
	require.Equal(t, []byte{0x00}, readAll(t, pb, 1))

	// receiving stays stopped until the error is cleared
	_, err := pa.Write([]byte("ok"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(0), pb.BytesAvailable())
	pb.ClearError()
	require.Equal(t, []byte("ok"), readAll(t, pb, 2))
}

func TestVirtualMarkSpaceSelfConsistency(t *testing.T) {
	for _, parity := range []Parity{MarkParity, SpaceParity} {
		for bits := Data5; bits <= Data8; bits++ {
			t.Run(fmt.Sprintf("%s-%d", parity, bits), func(t *testing.T) {
				a, b := newTestPair(t)
				opts := []Option{WithDataBits(bits), WithParity(parity), WithDataErrorPolicy(StopReceivingPolicy)}
				pa := openTestPort(t, a, opts...)
				pb := openTestPort(t, b, opts...)
				require.Equal(t, parity, pb.Parity())

				data := make([]byte, 256)
				want := make([]byte, 256)
				mask := byte(0xFF >> (8 - uint(bits)))
				for i := range data {
					data[i] = byte(i)
					want[i] = byte(i) & mask
				}
				_, err := pa.Write(data)
				require.NoError(t, err)
				require.Equal(t, want, readAll(t, pb, 256))
				require.Equal(t, NoError, pb.Error())
			})
		}
	}
}

func TestVirtualParityPolicies(t *testing.T) {
	t.Run("Skip", func(t *testing.T) {
		a, b := newTestPair(t)
		pa := openTestPort(t, a, WithParity(MarkParity))
		pb := openTestPort(t, b, WithParity(SpaceParity), WithDataErrorPolicy(SkipPolicy))

		_, err := pa.Write([]byte("lost"))
		require.NoError(t, err)
		require.NoError(t, pa.Flush())
		require.NoError(t, pa.SetParity(SpaceParity))
		_, err = pa.Write([]byte("kept"))
		require.NoError(t, err)
		require.Equal(t, []byte("kept"), readAll(t, pb, 4))
		require.Equal(t, int64(0), pb.BytesAvailable())
	})
	t.Run("PassZero", func(t *testing.T) {
		a, b := newTestPair(t)
		pa := openTestPort(t, a, WithParity(MarkParity))
		pb := openTestPort(t, b, WithParity(SpaceParity), WithDataErrorPolicy(PassZeroPolicy))

		_, err := pa.Write([]byte("abc"))
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 0}, readAll(t, pb, 3))
	})
	t.Run("Ignore", func(t *testing.T) {
		a, b := newTestPair(t)
		pa := openTestPort(t, a, WithParity(MarkParity))
		pb := openTestPort(t, b, WithParity(SpaceParity), WithDataErrorPolicy(IgnorePolicy))

		_, err := pa.Write([]byte("abc"))
		require.NoError(t, err)
		require.Equal(t, []byte("abc"), readAll(t, pb, 3))
	})
	t.Run("StopReceiving", func(t *testing.T) {
		a, b := newTestPair(t)
		pa := openTestPort(t, a, WithParity(MarkParity))
		pb := openTestPort(t, b, WithParity(SpaceParity), WithDataErrorPolicy(StopReceivingPolicy))

		_, err := pa.Write([]byte("xyz"))
		require.NoError(t, err)
		require.Equal(t, []byte("x"), readAll(t, pb, 1))
		require.Equal(t, ParityError, pb.Error())
		time.Sleep(20 * time.Millisecond)
		require.Equal(t, int64(0), pb.BytesAvailable())

		// the bytes after the bad one come out of ClearError alone
		pb.ClearError()
		require.Equal(t, []byte("y"), readAll(t, pb, 1))
		require.Equal(t, ParityError, pb.Error())
		pb.ClearError()
		require.Equal(t, []byte("z"), readAll(t, pb, 1))
		require.Equal(t, ParityError, pb.Error())
	})
	t.Run("NativeParityMismatch", func(t *testing.T) {
		a, b := newTestPair(t)
		pa := openTestPort(t, a, WithParity(EvenParity))
		pb := openTestPort(t, b, WithParity(NoParity), WithDataErrorPolicy(StopReceivingPolicy))

		_, err := pa.Write([]byte("q"))
		require.NoError(t, err)
		readAll(t, pb, 1)
		require.Equal(t, FramingError, pb.Error())
	})
}

func TestPortCloseFromListener(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := NewPort(b, WithLockOracle(nil))
	require.NoError(t, pb.Open(ReadWrite))

	closed := make(chan error, 1)
	pb.OnDataReady(func() { closed <- pb.Close() })
	_, err := pa.Write([]byte("bye"))
	require.NoError(t, err)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("listener did not run")
	}
	require.False(t, pb.IsOpen())

	// the device is released once the notifier is gone
	again := NewPort(b, WithLockOracle(nil))
	require.Eventually(t, func() bool { return again.Open(ReadWrite) == nil }, waitFor, tick)
	require.NoError(t, again.Close())
}

func TestPortCloseWhileListenerRuns(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := NewPort(b, WithLockOracle(nil))
	require.NoError(t, pb.Open(ReadWrite))

	inside := make(chan struct{}, 1)
	pb.OnDataReady(func() {
		select {
		case inside <- struct{}{}:
		default:
		}
		time.Sleep(200 * time.Millisecond)
	})
	_, err := pa.Write([]byte("slow"))
	require.NoError(t, err)
	select {
	case <-inside:
	case <-time.After(waitFor):
		t.Fatal("listener did not run")
	}

	// Close returns with the device released, the listener still sleeping
	require.NoError(t, pb.Close())
	require.NoError(t, pb.Open(ReadWrite))
	require.NoError(t, pb.Close())
}

func TestPortCloseWithParitySwitchHeldByFlowControl(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a, WithParity(MarkParity), WithFlowControl(HardwareFlowControl))
	pb := openTestPort(t, b, WithParity(MarkParity), WithDataErrorPolicy(StopReceivingPolicy))

	require.NoError(t, pb.SetRTS(false))
	// 0x00 and 0x01 need a parity switch between them
	_, err := pa.Write([]byte{0x00, 0x01, 0x00})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- pa.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Close blocked behind the parity switch")
	}
}

func TestPortParitySwitchResumesWhenFlowControlReleases(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a, WithParity(MarkParity), WithFlowControl(HardwareFlowControl))
	pb := openTestPort(t, b, WithParity(MarkParity), WithDataErrorPolicy(StopReceivingPolicy))

	require.NoError(t, pb.SetRTS(false))
	_, err := pa.Write([]byte{0x00, 0x01, 0x00})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int64(0), pb.BytesAvailable())
	// other calls go through while the switch waits
	require.True(t, pa.IsDTR())

	require.NoError(t, pb.SetRTS(true))
	require.Equal(t, []byte{0x00, 0x01, 0x00}, readAll(t, pb, 3))
	require.Equal(t, NoError, pb.Error())
}

func TestPortNestedWaitInsideListener(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := openTestPort(t, b)

	events := atomic.NewInt32(0)
	inListener := make(chan struct{})
	nested := make(chan bool, 1)
	pb.OnDataReady(func() {
		if events.Inc() != 1 {
			return
		}
		close(inListener)
		ok := pb.WaitForReadyRead(int(waitFor / time.Millisecond))
		// the nested wait must not emit again
		nested <- ok && events.Load() == 1
	})

	_, err := pa.Write([]byte("one"))
	require.NoError(t, err)
	<-inListener
	_, err = pa.Write([]byte("two"))
	require.NoError(t, err)
	require.True(t, <-nested)
	require.Equal(t, []byte("onetwo"), readAll(t, pb, 6))

	// notifications are back once the outer dispatch is over
	_, err = pa.Write([]byte("three"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return events.Load() == 2 }, waitFor, tick)
}

func TestPortBlockingWaits(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a)
	pb := openTestPort(t, b)

	require.False(t, pb.WaitForReadyRead(10))
	require.Equal(t, TimeoutError, pb.Error())
	require.False(t, pa.WaitForBytesWritten(10), "nothing to write")

	go func() {
		time.Sleep(20 * time.Millisecond)
		pa.Write([]byte("late"))
	}()
	require.True(t, pb.WaitForReadyRead(int(waitFor/time.Millisecond)))
	require.Equal(t, []byte("late"), readAll(t, pb, 4))

	_, err := pa.Write([]byte("now"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return pa.WaitForBytesWritten(100) || pa.BytesToWrite() == 0
	}, waitFor, tick)
	require.NoError(t, pa.Flush())
	require.Equal(t, []byte("now"), readAll(t, pb, 3))
}

func TestPortDeviceRemoved(t *testing.T) {
	a, b := newTestPair(t)
	openTestPort(t, a)
	pb := openTestPort(t, b)

	errs := make(chan PortErrorCode, 4)
	pb.OnError(func(code PortErrorCode) { errs <- code })
	require.NoError(t, RemoveVirtualPair(a))
	select {
	case code := <-errs:
		require.Equal(t, IoError, code)
	case <-time.After(waitFor):
		t.Fatal("removal not reported")
	}
	require.Equal(t, IoError, pb.Error())
	_, err := pb.Lines()
	require.Equal(t, IoError, errorCode(err))
	require.NoError(t, pb.Close())
}

func TestPortReset(t *testing.T) {
	a, b := newTestPair(t)
	pa := openTestPort(t, a, WithFlowControl(HardwareFlowControl))
	pb := openTestPort(t, b)

	require.NoError(t, pb.SetRTS(false))
	_, err := pa.Write(bytes.Repeat([]byte{'z'}, 10))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pa.BytesToWrite() == 10 }, waitFor, tick)
	require.NoError(t, pa.Reset())
	require.Equal(t, int64(0), pa.BytesToWrite())
	require.NoError(t, pb.SetRTS(true))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(0), pb.BytesAvailable())
}
