//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"errors"
	"time"
)

// ModemStatusBits contains all the modem status bits for a serial port (CTS, DSR, etc...).
// It can be retrieved with the Stream.GetModemStatusBits() method.
type ModemStatusBits struct {
	CTS bool // ClearToSend status
	DSR bool // DataSetReady status
	RI  bool // RingIndicator status
	DCD bool // DataCarrierDetect status
}

// Open opens the serial port using the specified modes and registers it
// with the platform reactor. A nil mode opens the port at 9600_N81.
func Open(portName string, mode *Mode) (*Stream, error) {
	if mode == nil {
		mode = &Mode{BaudRate: 9600}
	}
	if err := mode.validate(); err != nil {
		return nil, err
	}
	port, err := nativeOpen(portName, mode)
	if err != nil {
		return nil, err
	}
	return newStream(port)
}

// GetPortsList retrieve the list of available serial ports
func GetPortsList() ([]string, error) {
	return nativeGetPortsList()
}

// Mode describes a serial port configuration.
type Mode struct {
	BaudRate    int         // The serial port bitrate (aka Baudrate), must be positive
	DataBits    int         // Size of the character (must be 5, 6, 7 or 8, 0 means 8)
	Parity      Parity      // Parity (see Parity type for more info)
	StopBits    StopBits    // Stop bits (see StopBits type for more info)
	FlowControl FlowControl // Flow control (see FlowControl type for more info)

	// Timeout is accepted for compatibility with blocking serial APIs but
	// it is ignored: streams are non-blocking and have no per-call timeout.
	Timeout time.Duration
}

func (m *Mode) dataBits() int {
	if m.DataBits == 0 {
		return 8
	}
	return m.DataBits
}

func (m *Mode) validate() error {
	if m.BaudRate <= 0 {
		return &PortError{code: InvalidSpeed}
	}
	if d := m.dataBits(); d < 5 || d > 8 {
		return &PortError{code: InvalidDataBits}
	}
	if m.Parity < NoParity || m.Parity > SpaceParity {
		return &PortError{code: InvalidParity}
	}
	if m.StopBits < OneStopBit || m.StopBits > TwoStopBits {
		return &PortError{code: InvalidStopBits}
	}
	if m.FlowControl < NoFlowControl || m.FlowControl > HardwareFlowControl {
		return &PortError{code: InvalidFlowControl}
	}
	if m.Timeout < 0 {
		return &PortError{code: InvalidTimeoutValue}
	}
	return nil
}

// ModeFromString parses the data bits, parity and stop bits of a short
// mode description like "8N1" or "7E2" into mode. The baud rate and the
// flow control of mode are left untouched.
func ModeFromString(s string, mode *Mode) error {
	if len(s) != 3 {
		return &PortError{code: InvalidSerialPort, causedBy: errors.New("mode must be 3 characters long, like 8N1")}
	}
	switch s[0] {
	case '5', '6', '7', '8':
		mode.DataBits = int(s[0] - '0')
	default:
		return &PortError{code: InvalidDataBits}
	}
	switch s[1] {
	case 'N', 'n':
		mode.Parity = NoParity
	case 'O', 'o':
		mode.Parity = OddParity
	case 'E', 'e':
		mode.Parity = EvenParity
	case 'M', 'm':
		mode.Parity = MarkParity
	case 'S', 's':
		mode.Parity = SpaceParity
	default:
		return &PortError{code: InvalidParity}
	}
	switch s[2] {
	case '1':
		mode.StopBits = OneStopBit
	case '2':
		mode.StopBits = TwoStopBits
	default:
		return &PortError{code: InvalidStopBits}
	}
	return nil
}

// Parity describes a serial port parity setting
type Parity int

const (
	// NoParity disable parity control (default)
	NoParity Parity = iota
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
	// OneStopBit sets 1 stop bit (default)
	OneStopBit StopBits = iota
	// OnePointFiveStopBits sets 1.5 stop bits
	OnePointFiveStopBits
	// TwoStopBits sets 2 stop bits
	TwoStopBits
)

// FlowControl describes a serial port flow control setting
type FlowControl int

const (
	// NoFlowControl disables flow control (default)
	NoFlowControl FlowControl = iota
	// SoftwareFlowControl enables XON/XOFF flow control
	SoftwareFlowControl
	// HardwareFlowControl enables RTS/CTS flow control
	HardwareFlowControl
)

// ClearBuffer selects the buffers discarded by Stream.Clear
type ClearBuffer int

const (
	// ClearInput discards data received but not read
	ClearInput ClearBuffer = iota
	// ClearOutput discards data written but not transmitted
	ClearOutput
	// ClearAll discards both
	ClearAll
)

// PortError is a platform independent error type for serial ports
type PortError struct {
	code     PortErrorCode
	causedBy error
}

// PortErrorCode is a code to easily identify the type of error
type PortErrorCode int

const (
	// PortBusy the serial port is already in used by another process
	PortBusy PortErrorCode = iota
	// PortNotFound the requested port doesn't exist
	PortNotFound
	// InvalidSerialPort the requested port is not a serial port
	InvalidSerialPort
	// PermissionDenied the user doesn't have enough priviledges
	PermissionDenied
	// InvalidSpeed the requested speed is not valid or not supported
	InvalidSpeed
	// InvalidDataBits the number of data bits is not valid or not supported
	InvalidDataBits
	// InvalidParity the selected parity is not valid or not supported
	InvalidParity
	// InvalidStopBits the selected number of stop bits is not valid or not supported
	InvalidStopBits
	// InvalidFlowControl the selected flow control is not valid or not supported
	InvalidFlowControl
	// InvalidTimeoutValue Invalid timeout value passed
	InvalidTimeoutValue
	// ErrorEnumeratingPorts an error occurred while listing serial port
	ErrorEnumeratingPorts
	// PortClosed the port has been closed while the operation is in progress
	PortClosed
	// FunctionNotImplemented the requested function is not implemented
	FunctionNotImplemented
	// OsError Operating system function error
	OsError
	// WriteFailed Port write failed
	WriteFailed
	// ReadFailed Port read failed
	ReadFailed
	// ReadCanceled Port read was canceled
	ReadCanceled
	// WriteCanceled Port write was canceled
	WriteCanceled
)

// EncodedErrorString returns a string explaining the error code
func (e PortError) EncodedErrorString() string {
	switch e.code {
	case PortBusy:
		return "Serial port busy"
	case PortNotFound:
		return "Serial port not found"
	case InvalidSerialPort:
		return "Invalid serial port"
	case PermissionDenied:
		return "Permission denied"
	case InvalidSpeed:
		return "Port speed invalid or not supported"
	case InvalidDataBits:
		return "Port data bits invalid or not supported"
	case InvalidParity:
		return "Port parity invalid or not supported"
	case InvalidStopBits:
		return "Port stop bits invalid or not supported"
	case InvalidFlowControl:
		return "Port flow control invalid or not supported"
	case InvalidTimeoutValue:
		return "Timeout value invalid or not supported"
	case ErrorEnumeratingPorts:
		return "Could not enumerate serial ports"
	case PortClosed:
		return "Port has been closed"
	case FunctionNotImplemented:
		return "Function not implemented"
	case OsError:
		return "Operating system error"
	case WriteFailed:
		return "Write failed"
	case ReadFailed:
		return "Read failed"
	case ReadCanceled:
		return "Port read canceled"
	case WriteCanceled:
		return "Port write canceled"
	default:
		return "Other error"
	}
}

// Error returns the complete error code with details on the cause of the error
func (e PortError) Error() string {
	if e.causedBy != nil {
		return e.EncodedErrorString() + ": " + e.causedBy.Error()
	}
	return e.EncodedErrorString()
}

// Unwrap returns the cause of the error, if any
func (e PortError) Unwrap() error {
	return e.causedBy
}

// Code returns an identifier for the kind of error occurred
func (e PortError) Code() PortErrorCode {
	return e.code
}

// ErrWouldBlock is returned by TryRead and TryWrite on platforms whose
// native error for "no data yet" is not an errno. Use IsWouldBlock to test
// for the condition in a portable way.
var ErrWouldBlock = errors.New("serial: operation would block")

// IsWouldBlock reports whether err means that a TryRead or TryWrite found
// no data or no buffer space. It is not a failure: wait with Readable or
// Writable and try again.
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrWouldBlock) || isNativeWouldBlock(err)
}
