//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"fmt"
	"strconv"
	"strings"
)

// OpenMode selects the directions a port is opened for.
type OpenMode int

const (
	// ReadOnly opens the port for reading only
	ReadOnly OpenMode = 1 << iota
	// WriteOnly opens the port for writing only
	WriteOnly
	// ReadWrite opens the port for both reading and writing
	ReadWrite = ReadOnly | WriteOnly
)

// Direction selects the side of the line a baud rate applies to.
type Direction int

const (
	// Input is the receiving side
	Input Direction = 1 << iota
	// Output is the transmitting side
	Output
	// AllDirections applies to both sides
	AllDirections = Input | Output
)

// UnknownBaudRate is reported when the device rate can't be decoded.
const UnknownBaudRate int32 = -1

// DataBits is the size of a character on the line.
type DataBits int

const (
	// UnknownDataBits is reported when the device setting can't be decoded
	UnknownDataBits DataBits = -1
	Data5           DataBits = 5
	Data6           DataBits = 6
	Data7           DataBits = 7
	Data8           DataBits = 8
)

// Parity describes a serial port parity setting
type Parity int

const (
	// UnknownParity is reported when the device setting can't be decoded
	UnknownParity Parity = iota - 1
	// NoParity disable parity control (default)
	NoParity
	// OddParity enable odd-parity check
	OddParity
	// EvenParity enable even-parity check
	EvenParity
	// MarkParity enable mark-parity (always 1) check
	MarkParity
	// SpaceParity enable space-parity (always 0) check
	SpaceParity
)

// StopBits describe a serial port stop bits setting
type StopBits int

const (
	// UnknownStopBits is reported when the device setting can't be decoded
	UnknownStopBits StopBits = iota - 1
	// OneStopBit sets 1 stop bit (default)
	OneStopBit
	// OnePointFiveStopBits sets 1.5 stop bits
	OnePointFiveStopBits
	// TwoStopBits sets 2 stop bits
	TwoStopBits
)

// FlowControl describes how the line is throttled.
type FlowControl int

const (
	// UnknownFlowControl is reported when the device setting can't be decoded
	UnknownFlowControl FlowControl = iota - 1
	// NoFlowControl disables flow control (default)
	NoFlowControl
	// HardwareFlowControl uses the RTS/CTS lines
	HardwareFlowControl
	// SoftwareFlowControl uses XON/XOFF characters
	SoftwareFlowControl
)

// DataErrorPolicy selects what happens to a received byte with a parity or framing error.
type DataErrorPolicy int

const (
	// UnknownPolicy behaves as PassZeroPolicy and logs a warning
	UnknownPolicy DataErrorPolicy = iota - 1
	// SkipPolicy drops the byte
	SkipPolicy
	// PassZeroPolicy replaces the byte with 0x00
	PassZeroPolicy
	// IgnorePolicy keeps the byte as received (default)
	IgnorePolicy
	// StopReceivingPolicy stops reading at the byte and reports the error
	StopReceivingPolicy
)

// Lines is a set of line signals as reported by Port.Lines.
type Lines int

const (
	// LineLE is the line enable signal
	LineLE Lines = 1 << iota
	// LineDTR is data terminal ready
	LineDTR
	// LineRTS is request to send
	LineRTS
	// LineST is the secondary transmit line
	LineST
	// LineSR is the secondary receive line
	LineSR
	// LineCTS is clear to send
	LineCTS
	// LineDCD is data carrier detect
	LineDCD
	// LineRI is ring indicator
	LineRI
	// LineDSR is data set ready
	LineDSR
)

// ModemStatusBits contains all the modem status bits for a serial port (CTS, DSR, etc...).
// It can be retrieved with the Port.GetModemStatusBits() method.
type ModemStatusBits struct {
	CTS bool // ClearToSend status
	DSR bool // DataSetReady status
	RI  bool // RingIndicator status
	DCD bool // DataCarrierDetect status
}

// Settings is the configuration of a port. After Open it reflects the device:
// fields that were not set explicitly are read back from it.
type Settings struct {
	Location       string
	InputBaudRate  int32
	OutputBaudRate int32
	DataBits       DataBits
	Parity         Parity
	StopBits       StopBits
	FlowControl    FlowControl
	Policy         DataErrorPolicy
	RestoreOnClose bool
}

func defaultSettings() Settings {
	return Settings{
		InputBaudRate:  9600,
		OutputBaudRate: 9600,
		DataBits:       Data8,
		Parity:         NoParity,
		StopBits:       OneStopBit,
		FlowControl:    NoFlowControl,
		Policy:         IgnorePolicy,
		RestoreOnClose: true,
	}
}

// Mode describes a serial port configuration.
type Mode struct {
	BaudRate int32    // The serial port bitrate (aka Baudrate)
	DataBits DataBits // Size of the character (must be 5, 6, 7 or 8)
	Parity   Parity   // Parity (see Parity type for more info)
	StopBits StopBits // Stop bits (see StopBits type for more info)
}

// ModeFromString parses the usual "8N1" shorthand (data bits, parity letter
// N/O/E/M/S, stop bits 1, 1.5 or 2) into mode. The baud rate is left untouched.
func ModeFromString(s string, mode *Mode) error {
	if len(s) < 3 {
		return &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid mode %q", s)}
	}
	switch s[0] {
	case '5', '6', '7', '8':
		mode.DataBits = DataBits(s[0] - '0')
	default:
		return &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid data bits in %q", s)}
	}
	switch strings.ToUpper(s[1:2]) {
	case "N":
		mode.Parity = NoParity
	case "O":
		mode.Parity = OddParity
	case "E":
		mode.Parity = EvenParity
	case "M":
		mode.Parity = MarkParity
	case "S":
		mode.Parity = SpaceParity
	default:
		return &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid parity in %q", s)}
	}
	switch s[2:] {
	case "1":
		mode.StopBits = OneStopBit
	case "1.5", "15":
		mode.StopBits = OnePointFiveStopBits
	case "2":
		mode.StopBits = TwoStopBits
	default:
		return &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid stop bits in %q", s)}
	}
	return nil
}

// ParseMode parses "8N1" or "115200,8N1" into a Mode. Without a rate the
// BaudRate is 0.
func ParseMode(s string) (Mode, error) {
	var mode Mode
	if rate, rest, ok := strings.Cut(s, ","); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(rate), 10, 32)
		if err != nil || n <= 0 {
			return mode, &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid baud rate in %q", s)}
		}
		mode.BaudRate = int32(n)
		s = rest
	}
	err := ModeFromString(strings.TrimSpace(s), &mode)
	return mode, err
}

// PortError is a platform independent error type for serial ports
type PortError struct {
	code     PortErrorCode
	causedBy error
}

// PortErrorCode is a code to easily identify the type of error
type PortErrorCode int

const (
	// NoError no error occurred
	NoError PortErrorCode = iota
	// NoSuchDevice the requested device doesn't exist
	NoSuchDevice
	// PermissionDenied the user doesn't have enough priviledges or the device is locked by another owner
	PermissionDenied
	// DeviceAlreadyOpened the port is already open
	DeviceAlreadyOpened
	// DeviceNotOpened the operation needs an open port
	DeviceNotOpened
	// ParityError a parity error was detected on a received byte
	ParityError
	// FramingError a framing error was detected on a received byte
	FramingError
	// BreakConditionError a break condition was detected on the line
	BreakConditionError
	// IoError reading or writing the device failed, the device may be gone
	IoError
	// UnsupportedPortOperation the operation or value is not supported by the device or platform
	UnsupportedPortOperation
	// ConfiguringError the device refused the configuration
	ConfiguringError
	// UnknownPortError any other error
	UnknownPortError
	// TimeoutError a blocking wait expired
	TimeoutError
)

// EncodedErrorString returns a string explaining the error code
func (e PortError) EncodedErrorString() string {
	return e.code.String()
}

// Error returns the complete error code with details on the cause of the error
func (e PortError) Error() string {
	if e.causedBy != nil {
		return e.EncodedErrorString() + ": " + e.causedBy.Error()
	}
	return e.EncodedErrorString()
}

// Code returns an identifier for the kind of error occurred
func (e PortError) Code() PortErrorCode {
	return e.code
}

// Unwrap returns the underlying cause, if any.
func (e PortError) Unwrap() error {
	return e.causedBy
}

func (c PortErrorCode) String() string {
	switch c {
	case NoError:
		return "No error"
	case NoSuchDevice:
		return "Serial port not found"
	case PermissionDenied:
		return "Permission denied"
	case DeviceAlreadyOpened:
		return "Serial port already opened"
	case DeviceNotOpened:
		return "Serial port not opened"
	case ParityError:
		return "Parity error"
	case FramingError:
		return "Framing error"
	case BreakConditionError:
		return "Break condition"
	case IoError:
		return "I/O error"
	case UnsupportedPortOperation:
		return "Operation not supported"
	case ConfiguringError:
		return "Could not configure serial port"
	case TimeoutError:
		return "Timeout"
	default:
		return "Other error"
	}
}

func (d DataBits) String() string {
	if d == UnknownDataBits {
		return "unknown"
	}
	return fmt.Sprintf("%d", int(d))
}

func (p Parity) String() string {
	switch p {
	case NoParity:
		return "none"
	case OddParity:
		return "odd"
	case EvenParity:
		return "even"
	case MarkParity:
		return "mark"
	case SpaceParity:
		return "space"
	}
	return "unknown"
}

func (s StopBits) String() string {
	switch s {
	case OneStopBit:
		return "1"
	case OnePointFiveStopBits:
		return "1.5"
	case TwoStopBits:
		return "2"
	}
	return "unknown"
}

func (f FlowControl) String() string {
	switch f {
	case NoFlowControl:
		return "none"
	case HardwareFlowControl:
		return "hardware"
	case SoftwareFlowControl:
		return "software"
	}
	return "unknown"
}

func (p DataErrorPolicy) String() string {
	switch p {
	case SkipPolicy:
		return "skip"
	case PassZeroPolicy:
		return "passzero"
	case IgnorePolicy:
		return "ignore"
	case StopReceivingPolicy:
		return "stop"
	}
	return "unknown"
}

func (l Lines) String() string {
	names := []struct {
		bit  Lines
		name string
	}{
		{LineLE, "LE"}, {LineDTR, "DTR"}, {LineRTS, "RTS"}, {LineST, "ST"}, {LineSR, "SR"},
		{LineCTS, "CTS"}, {LineDCD, "DCD"}, {LineRI, "RI"}, {LineDSR, "DSR"},
	}
	var set []string
	for _, n := range names {
		if l&n.bit != 0 {
			set = append(set, n.name)
		}
	}
	return "[" + strings.Join(set, " ") + "]"
}

// ModemStatusBits returns the input signals of l.
func (l Lines) ModemStatusBits() *ModemStatusBits {
	return &ModemStatusBits{
		CTS: l&LineCTS != 0,
		DSR: l&LineDSR != 0,
		RI:  l&LineRI != 0,
		DCD: l&LineDCD != 0,
	}
}

// ParseParity accepts the names printed by Parity.String.
func ParseParity(s string) (Parity, error) {
	for p := NoParity; p <= SpaceParity; p++ {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return UnknownParity, &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid parity %q", s)}
}

// ParseStopBits accepts "1", "1.5" and "2".
func ParseStopBits(s string) (StopBits, error) {
	for b := OneStopBit; b <= TwoStopBits; b++ {
		if s == b.String() {
			return b, nil
		}
	}
	return UnknownStopBits, &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid stop bits %q", s)}
}

// ParseFlowControl accepts the names printed by FlowControl.String.
func ParseFlowControl(s string) (FlowControl, error) {
	for f := NoFlowControl; f <= SoftwareFlowControl; f++ {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return UnknownFlowControl, &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid flow control %q", s)}
}

// ParseDataErrorPolicy accepts the names printed by DataErrorPolicy.String.
func ParseDataErrorPolicy(s string) (DataErrorPolicy, error) {
	for p := SkipPolicy; p <= StopReceivingPolicy; p++ {
		if strings.EqualFold(s, p.String()) {
			return p, nil
		}
	}
	return UnknownPolicy, &PortError{code: ConfiguringError, causedBy: fmt.Errorf("invalid data error policy %q", s)}
}
