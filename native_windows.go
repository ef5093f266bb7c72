//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
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
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

type nativePort = windowsPort

type windowsPort struct {
	handle windows.Handle
	name   string
}

// waitPollInterval is how often waitReady samples the driver queues.
// Serial handles have no readiness notification usable next to a
// cancellation event, so the queues are polled.
const waitPollInterval = 10 * time.Millisecond

// writeQueueLimit is the output queue size under which the port is
// considered writable.
const writeQueueLimit = 4096

func nativeGetPortsList() ([]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM\`, registry.QUERY_VALUE)
	if err != nil {
		return nil, &PortError{code: ErrorEnumeratingPorts, causedBy: err}
	}
	defer key.Close()

	names, err := key.ReadValueNames(0)
	if err != nil {
		return nil, &PortError{code: ErrorEnumeratingPorts, causedBy: err}
	}
	list := make([]string, 0, len(names))
	for _, name := range names {
		value, _, err := key.GetStringValue(name)
		if err != nil {
			return nil, &PortError{code: ErrorEnumeratingPorts, causedBy: err}
		}
		list = append(list, value)
	}
	return list, nil
}

func (port *windowsPort) close() error {
	return windows.CloseHandle(port.handle)
}

// Fd returns the raw HANDLE of the port.
func (port *windowsPort) Fd() uintptr {
	return uintptr(port.handle)
}

// tryRead returns immediately with the bytes already received: the read
// timeouts are set up so that ReadFile never waits.
func (port *windowsPort) tryRead(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var n uint32
	if err := windows.ReadFile(port.handle, p, &n, nil); err != nil {
		return int(n), err
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	return int(n), nil
}

// tryWrite hands p to the driver, waiting at most the short write timeout
// configured at open.
func (port *windowsPort) tryWrite(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var n uint32
	if err := windows.WriteFile(port.handle, p, &n, nil); err != nil {
		return int(n), err
	}
	if n == 0 {
		return 0, ErrWouldBlock
	}
	return int(n), nil
}

func isNativeWouldBlock(err error) bool {
	return false
}

// eventSignal interrupts waitReady through an auto-reset event.
type eventSignal struct {
	event windows.Handle
}

func (s *eventSignal) fire() error  { return windows.SetEvent(s.event) }
func (s *eventSignal) close() error { return windows.CloseHandle(s.event) }

func (port *windowsPort) newSignal() (signal, error) {
	ev, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, err
	}
	return &eventSignal{event: ev}, nil
}

func (port *windowsPort) queues() (*windows.ComStat, error) {
	var errs uint32
	var stat windows.ComStat
	if err := windows.ClearCommError(port.handle, &errs, &stat); err != nil {
		return nil, err
	}
	return &stat, nil
}

// waitReady samples the driver queues until dir can make progress or the
// signal event is set.
func (port *windowsPort) waitReady(dir direction, sig signal) error {
	ev := sig.(*eventSignal).event
	for {
		stat, err := port.queues()
		if err != nil {
			return err
		}
		if dir == dirRead && stat.CBInQue > 0 {
			return nil
		}
		if dir == dirWrite && stat.CBOutQue < writeQueueLimit {
			return nil
		}
		res, err := windows.WaitForSingleObject(ev, uint32(waitPollInterval/time.Millisecond))
		if err != nil {
			return err
		}
		if res == windows.WAIT_OBJECT_0 {
			return errInterrupted
		}
	}
}

const (
	dcbBinary                uint32 = 0x00000001
	dcbParity                       = 0x00000002
	dcbOutXCTSFlow                  = 0x00000004
	dcbOutXDSRFlow                  = 0x00000008
	dcbDTRControlDisableMask        = ^uint32(0x00000030)
	dcbDTRControlEnable             = 0x00000010
	dcbDTRControlHandshake          = 0x00000020
	dcbDSRSensitivity               = 0x00000040
	dcbTXContinueOnXOFF             = 0x00000080
	dcbOutX                         = 0x00000100
	dcbInX                          = 0x00000200
	dcbErrorChar                    = 0x00000400
	dcbNull                         = 0x00000800
	dcbRTSControlDisableMask        = ^uint32(0x00003000)
	dcbRTSControlEnable             = 0x00001000
	dcbRTSControlHandshake          = 0x00002000
	dcbRTSControlToggle             = 0x00003000
	dcbAbortOnError                 = 0x00004000
)

const (
	noParity    = 0
	oddParity   = 1
	evenParity  = 2
	markParity  = 3
	spaceParity = 4
)

var parityMap = map[Parity]byte{
	NoParity:    noParity,
	OddParity:   oddParity,
	EvenParity:  evenParity,
	MarkParity:  markParity,
	SpaceParity: spaceParity,
}

const (
	oneStopBit   = 0
	one5StopBits = 1
	twoStopBits  = 2
)

var stopBitsMap = map[StopBits]byte{
	OneStopBit:           oneStopBit,
	OnePointFiveStopBits: one5StopBits,
	TwoStopBits:          twoStopBits,
}

const (
	commFunctionSetRTS   = 3
	commFunctionClrRTS   = 4
	commFunctionSetDTR   = 5
	commFunctionClrDTR   = 6
	commFunctionSetBreak = 8
	commFunctionClrBreak = 9
)

const (
	msCTSOn  = 0x0010
	msDSROn  = 0x0020
	msRingOn = 0x0040
	msRLSDOn = 0x0080
)

var (
	modkernel32            = windows.NewLazySystemDLL("kernel32.dll")
	procEscapeCommFunction = modkernel32.NewProc("EscapeCommFunction")
	procGetCommModemStatus = modkernel32.NewProc("GetCommModemStatus")
)

func escapeCommFunction(handle windows.Handle, function uint32) error {
	r, _, err := procEscapeCommFunction.Call(uintptr(handle), uintptr(function))
	if r == 0 {
		return err
	}
	return nil
}

func getCommModemStatus(handle windows.Handle, bits *uint32) error {
	r, _, err := procGetCommModemStatus.Call(uintptr(handle), uintptr(unsafe.Pointer(bits)))
	if r == 0 {
		return err
	}
	return nil
}

func (port *windowsPort) update(apply func(params *windows.DCB) error) error {
	params := &windows.DCB{}
	if err := windows.GetCommState(port.handle, params); err != nil {
		return err
	}
	if err := apply(params); err != nil {
		return err
	}
	return windows.SetCommState(port.handle, params)
}

func (port *windowsPort) state() (*windows.DCB, error) {
	params := &windows.DCB{}
	if err := windows.GetCommState(port.handle, params); err != nil {
		return nil, err
	}
	return params, nil
}

func setParity(params *windows.DCB, parity Parity) error {
	p, ok := parityMap[parity]
	if !ok {
		return &PortError{code: InvalidParity}
	}
	params.Parity = p
	if parity == NoParity {
		params.Flags &^= dcbParity
	} else {
		params.Flags |= dcbParity
	}
	return nil
}

func setStopBits(params *windows.DCB, bits StopBits) error {
	s, ok := stopBitsMap[bits]
	if !ok {
		return &PortError{code: InvalidStopBits}
	}
	params.StopBits = s
	return nil
}

func setDataBits(params *windows.DCB, bits int) error {
	if bits < 5 || bits > 8 {
		return &PortError{code: InvalidDataBits}
	}
	params.ByteSize = byte(bits)
	return nil
}

func setFlowControl(params *windows.DCB, flow FlowControl) error {
	params.Flags &^= dcbOutXCTSFlow | dcbInX | dcbOutX
	params.Flags &= dcbRTSControlDisableMask
	switch flow {
	case NoFlowControl:
		params.Flags |= dcbRTSControlEnable
	case SoftwareFlowControl:
		params.Flags |= dcbRTSControlEnable | dcbInX | dcbOutX
	case HardwareFlowControl:
		params.Flags |= dcbRTSControlHandshake | dcbOutXCTSFlow
	default:
		return &PortError{code: InvalidFlowControl}
	}
	return nil
}

// SetMode sets all parameters of the serial port. See the Mode structure
// for more info.
func (port *windowsPort) SetMode(mode *Mode) error {
	if err := mode.validate(); err != nil {
		return err
	}
	return port.update(func(params *windows.DCB) error {
		params.BaudRate = uint32(mode.BaudRate)
		if err := setDataBits(params, mode.dataBits()); err != nil {
			return err
		}
		if err := setParity(params, mode.Parity); err != nil {
			return err
		}
		if err := setStopBits(params, mode.StopBits); err != nil {
			return err
		}
		return setFlowControl(params, mode.FlowControl)
	})
}

// SetBaudRate changes the speed of the line.
func (port *windowsPort) SetBaudRate(baud int) error {
	if baud <= 0 {
		return &PortError{code: InvalidSpeed}
	}
	return port.update(func(params *windows.DCB) error {
		params.BaudRate = uint32(baud)
		return nil
	})
}

// SetDataBits changes the character size.
func (port *windowsPort) SetDataBits(bits int) error {
	return port.update(func(params *windows.DCB) error { return setDataBits(params, bits) })
}

// SetParity changes the parity setting.
func (port *windowsPort) SetParity(parity Parity) error {
	return port.update(func(params *windows.DCB) error { return setParity(params, parity) })
}

// SetStopBits changes the number of stop bits.
func (port *windowsPort) SetStopBits(bits StopBits) error {
	return port.update(func(params *windows.DCB) error { return setStopBits(params, bits) })
}

// SetFlowControl changes the flow control setting.
func (port *windowsPort) SetFlowControl(flow FlowControl) error {
	return port.update(func(params *windows.DCB) error { return setFlowControl(params, flow) })
}

// BaudRate reads the line speed back from the driver.
func (port *windowsPort) BaudRate() (int, error) {
	params, err := port.state()
	if err != nil {
		return 0, err
	}
	return int(params.BaudRate), nil
}

// DataBits reads the character size back from the driver.
func (port *windowsPort) DataBits() (int, error) {
	params, err := port.state()
	if err != nil {
		return 0, err
	}
	return int(params.ByteSize), nil
}

// Parity reads the parity setting back from the driver.
func (port *windowsPort) Parity() (Parity, error) {
	params, err := port.state()
	if err != nil {
		return NoParity, err
	}
	for parity, p := range parityMap {
		if p == params.Parity {
			return parity, nil
		}
	}
	return NoParity, &PortError{code: InvalidParity}
}

// StopBits reads the number of stop bits back from the driver.
func (port *windowsPort) StopBits() (StopBits, error) {
	params, err := port.state()
	if err != nil {
		return OneStopBit, err
	}
	for bits, s := range stopBitsMap {
		if s == params.StopBits {
			return bits, nil
		}
	}
	return OneStopBit, &PortError{code: InvalidStopBits}
}

// FlowControl reads the flow control setting back from the driver.
func (port *windowsPort) FlowControl() (FlowControl, error) {
	params, err := port.state()
	if err != nil {
		return NoFlowControl, err
	}
	switch {
	case params.Flags&dcbOutXCTSFlow != 0:
		return HardwareFlowControl, nil
	case params.Flags&(dcbInX|dcbOutX) != 0:
		return SoftwareFlowControl, nil
	}
	return NoFlowControl, nil
}

// SetDTR sets the modem status bit DataTerminalReady
func (port *windowsPort) SetDTR(dtr bool) error {
	fn := uint32(commFunctionClrDTR)
	if dtr {
		fn = commFunctionSetDTR
	}
	return escapeCommFunction(port.handle, fn)
}

// SetRTS sets the modem status bit RequestToSend
func (port *windowsPort) SetRTS(rts bool) error {
	// with RTS handshake the driver owns the line
	params, err := port.state()
	if err != nil {
		return err
	}
	if params.Flags&dcbRTSControlToggle == dcbRTSControlHandshake {
		return &PortError{code: InvalidFlowControl}
	}
	fn := uint32(commFunctionClrRTS)
	if rts {
		fn = commFunctionSetRTS
	}
	return escapeCommFunction(port.handle, fn)
}

// GetModemStatusBits returns the CTS, DSR, RI and DCD lines.
func (port *windowsPort) GetModemStatusBits() (*ModemStatusBits, error) {
	var bits uint32
	if err := getCommModemStatus(port.handle, &bits); err != nil {
		return nil, &PortError{code: OsError, causedBy: err}
	}
	return &ModemStatusBits{
		CTS: (bits & msCTSOn) != 0,
		DCD: (bits & msRLSDOn) != 0,
		DSR: (bits & msDSROn) != 0,
		RI:  (bits & msRingOn) != 0,
	}, nil
}

// BytesToRead returns the number of bytes received but not read yet.
func (port *windowsPort) BytesToRead() (int, error) {
	stat, err := port.queues()
	if err != nil {
		return 0, err
	}
	return int(stat.CBInQue), nil
}

// BytesToWrite returns the number of bytes written but not transmitted yet.
func (port *windowsPort) BytesToWrite() (int, error) {
	stat, err := port.queues()
	if err != nil {
		return 0, err
	}
	return int(stat.CBOutQue), nil
}

// Clear discards the buffers selected by which.
func (port *windowsPort) Clear(which ClearBuffer) error {
	var flags uint32
	switch which {
	case ClearInput:
		flags = windows.PURGE_RXCLEAR
	case ClearOutput:
		flags = windows.PURGE_TXCLEAR
	default:
		flags = windows.PURGE_RXCLEAR | windows.PURGE_TXCLEAR
	}
	return windows.PurgeComm(port.handle, flags)
}

// SetBreak starts transmitting a break.
func (port *windowsPort) SetBreak() error {
	return escapeCommFunction(port.handle, commFunctionSetBreak)
}

// ClearBreak stops transmitting a break.
func (port *windowsPort) ClearBreak() error {
	return escapeCommFunction(port.handle, commFunctionClrBreak)
}

// Drain waits until all the written data has been transmitted.
func (port *windowsPort) Drain() error {
	return windows.FlushFileBuffers(port.handle)
}

func nativeOpen(portName string, mode *Mode) (*windowsPort, error) {
	devName := portName
	if !strings.HasPrefix(devName, `\\.\`) {
		devName = `\\.\` + devName
	}
	path, err := windows.UTF16PtrFromString(devName)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateFile(
		path,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, nil,
		windows.OPEN_EXISTING,
		0,
		0)
	if err != nil {
		switch err {
		case windows.ERROR_ACCESS_DENIED:
			return nil, &PortError{code: PortBusy}
		case windows.ERROR_FILE_NOT_FOUND:
			return nil, &PortError{code: PortNotFound}
		}
		return nil, err
	}
	// Create the serial port
	port := &windowsPort{
		handle: handle,
		name:   portName,
	}
	if err := port.setup(mode); err != nil {
		port.close()
		return nil, err
	}
	return port, nil
}

func (port *windowsPort) setup(mode *Mode) error {
	err := port.update(func(params *windows.DCB) error {
		params.Flags |= dcbBinary
		params.Flags &= dcbDTRControlDisableMask
		params.Flags |= dcbDTRControlEnable
		params.Flags &^= dcbOutXDSRFlow
		params.Flags &^= dcbDSRSensitivity
		params.Flags |= dcbTXContinueOnXOFF
		params.Flags &^= dcbErrorChar
		params.Flags &^= dcbNull
		params.Flags &^= dcbAbortOnError
		params.XonLim = 2048
		params.XoffLim = 512
		params.XonChar = 17  // DC1
		params.XoffChar = 19 // C3
		return nil
	})
	if err != nil {
		return &PortError{code: InvalidSerialPort, causedBy: err}
	}
	if err := port.SetMode(mode); err != nil {
		return err
	}

	// ReadFile returns immediately with whatever is queued, WriteFile
	// waits at most 1ms for room in the output queue
	timeouts := &windows.CommTimeouts{
		ReadIntervalTimeout:         0xFFFFFFFF,
		ReadTotalTimeoutMultiplier:  0,
		ReadTotalTimeoutConstant:    0,
		WriteTotalTimeoutMultiplier: 0,
		WriteTotalTimeoutConstant:   1,
	}
	if err := windows.SetCommTimeouts(port.handle, timeouts); err != nil {
		return &PortError{code: InvalidSerialPort, causedBy: err}
	}
	return nil
}
