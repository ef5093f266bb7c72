//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abakum/go-serial-async/unixutils"
	"golang.org/x/sys/unix"
)

type nativePort = unixPort

// unixPort is a serial device or pty endpoint opened in non-blocking mode.
type unixPort struct {
	handle    int
	name      string
	exclusive bool
}

func nativeOpen(portName string, mode *Mode) (*unixPort, error) {
	h, err := unix.Open(portName, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		switch err {
		case unix.EBUSY:
			return nil, &PortError{code: PortBusy}
		case unix.EACCES:
			return nil, &PortError{code: PermissionDenied}
		case unix.ENOENT, unix.ENXIO, unix.ENODEV:
			return nil, &PortError{code: PortNotFound, causedBy: err}
		}
		return nil, err
	}
	port := &unixPort{
		handle: h,
		name:   portName,
	}
	if err := port.setup(mode); err != nil {
		port.close()
		return nil, err
	}
	return port, nil
}

// setup puts the line in raw mode and applies mode.
func (port *unixPort) setup(mode *Mode) error {
	settings, err := port.getTermSettings()
	if err != nil {
		return &PortError{code: InvalidSerialPort, causedBy: err}
	}
	setRawMode(settings)
	if err := port.setTermSettings(settings); err != nil {
		return &PortError{code: InvalidSerialPort, causedBy: err}
	}
	if mode == nil {
		return nil
	}
	return port.SetMode(mode)
}

func (port *unixPort) close() error {
	if port.exclusive {
		port.SetExclusive(false)
	}
	return unix.Close(port.handle)
}

// Fd returns the raw descriptor for use with external readiness tooling.
func (port *unixPort) Fd() uintptr {
	return uintptr(port.handle)
}

func (port *unixPort) tryRead(p []byte) (int, error) {
	n, err := unix.Read(port.handle, p)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (port *unixPort) tryWrite(p []byte) (int, error) {
	n, err := unix.Write(port.handle, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func isNativeWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// SetMode sets all parameters of the serial port. See the Mode structure
// for more info.
func (port *unixPort) SetMode(mode *Mode) error {
	if err := mode.validate(); err != nil {
		return err
	}
	settings, err := port.getTermSettings()
	if err != nil {
		return err
	}
	if err := setTermSettingsParity(mode.Parity, settings); err != nil {
		return err
	}
	if err := setTermSettingsDataBits(mode.dataBits(), settings); err != nil {
		return err
	}
	if err := setTermSettingsStopBits(mode.StopBits, settings); err != nil {
		return err
	}
	if err := setTermSettingsFlowControl(mode.FlowControl, settings); err != nil {
		return err
	}
	special, err := setTermSettingsBaudrate(mode.BaudRate, settings)
	if err != nil {
		return err
	}
	if err := port.setTermSettings(settings); err != nil {
		return err
	}
	if special {
		return port.setSpecialBaudrate(uint32(mode.BaudRate))
	}
	return nil
}

func (port *unixPort) update(apply func(*unix.Termios) error) error {
	settings, err := port.getTermSettings()
	if err != nil {
		return err
	}
	if err := apply(settings); err != nil {
		return err
	}
	return port.setTermSettings(settings)
}

// SetBaudRate changes the speed of the line.
func (port *unixPort) SetBaudRate(baud int) error {
	if baud <= 0 {
		return &PortError{code: InvalidSpeed}
	}
	settings, err := port.getTermSettings()
	if err != nil {
		return err
	}
	special, err := setTermSettingsBaudrate(baud, settings)
	if err != nil {
		return err
	}
	if err := port.setTermSettings(settings); err != nil {
		return err
	}
	if special {
		return port.setSpecialBaudrate(uint32(baud))
	}
	return nil
}

// SetDataBits changes the character size.
func (port *unixPort) SetDataBits(bits int) error {
	return port.update(func(s *unix.Termios) error { return setTermSettingsDataBits(bits, s) })
}

// SetParity changes the parity setting.
func (port *unixPort) SetParity(parity Parity) error {
	return port.update(func(s *unix.Termios) error { return setTermSettingsParity(parity, s) })
}

// SetStopBits changes the number of stop bits.
func (port *unixPort) SetStopBits(bits StopBits) error {
	return port.update(func(s *unix.Termios) error { return setTermSettingsStopBits(bits, s) })
}

// SetFlowControl changes the flow control setting.
func (port *unixPort) SetFlowControl(flow FlowControl) error {
	return port.update(func(s *unix.Termios) error { return setTermSettingsFlowControl(flow, s) })
}

// DataBits reads the character size back from the OS.
func (port *unixPort) DataBits() (int, error) {
	settings, err := port.getTermSettings()
	if err != nil {
		return 0, err
	}
	size := settings.Cflag & unix.CSIZE
	for bits, flag := range databitsMap {
		if flag == size {
			return bits, nil
		}
	}
	return 0, &PortError{code: InvalidDataBits}
}

// Parity reads the parity setting back from the OS.
func (port *unixPort) Parity() (Parity, error) {
	settings, err := port.getTermSettings()
	if err != nil {
		return NoParity, err
	}
	if settings.Cflag&unix.PARENB == 0 {
		return NoParity, nil
	}
	odd := settings.Cflag&unix.PARODD != 0
	if tcCMSPAR != 0 && settings.Cflag&tcCMSPAR != 0 {
		if odd {
			return MarkParity, nil
		}
		return SpaceParity, nil
	}
	if odd {
		return OddParity, nil
	}
	return EvenParity, nil
}

// StopBits reads the number of stop bits back from the OS.
func (port *unixPort) StopBits() (StopBits, error) {
	settings, err := port.getTermSettings()
	if err != nil {
		return OneStopBit, err
	}
	if settings.Cflag&unix.CSTOPB != 0 {
		return TwoStopBits, nil
	}
	return OneStopBit, nil
}

// FlowControl reads the flow control setting back from the OS.
func (port *unixPort) FlowControl() (FlowControl, error) {
	settings, err := port.getTermSettings()
	if err != nil {
		return NoFlowControl, err
	}
	switch {
	case settings.Cflag&tcCRTSCTS != 0:
		return HardwareFlowControl, nil
	case settings.Iflag&(unix.IXON|unix.IXOFF) != 0:
		return SoftwareFlowControl, nil
	}
	return NoFlowControl, nil
}

// SetDTR sets the modem status bit DataTerminalReady
func (port *unixPort) SetDTR(dtr bool) error {
	return port.setModemBit(unix.TIOCM_DTR, dtr)
}

// SetRTS sets the modem status bit RequestToSend
func (port *unixPort) SetRTS(rts bool) error {
	return port.setModemBit(unix.TIOCM_RTS, rts)
}

func (port *unixPort) setModemBit(bit int, on bool) error {
	status, err := port.getModemBitsStatus()
	if err != nil {
		return err
	}
	if on {
		status |= bit
	} else {
		status &^= bit
	}
	return port.setModemBitsStatus(status)
}

// GetModemStatusBits returns the CTS, DSR, RI and DCD lines.
func (port *unixPort) GetModemStatusBits() (*ModemStatusBits, error) {
	status, err := port.getModemBitsStatus()
	if err != nil {
		return nil, err
	}
	return &ModemStatusBits{
		CTS: (status & unix.TIOCM_CTS) != 0,
		DCD: (status & unix.TIOCM_CD) != 0,
		DSR: (status & unix.TIOCM_DSR) != 0,
		RI:  (status & unix.TIOCM_RI) != 0,
	}, nil
}

// BytesToRead returns the number of bytes received but not read yet.
func (port *unixPort) BytesToRead() (int, error) {
	return unix.IoctlGetInt(port.handle, ioctlInq)
}

// BytesToWrite returns the number of bytes written but not transmitted yet.
func (port *unixPort) BytesToWrite() (int, error) {
	return unix.IoctlGetInt(port.handle, ioctlOutq)
}

// SetBreak starts transmitting a break.
func (port *unixPort) SetBreak() error {
	return unix.IoctlSetInt(port.handle, unix.TIOCSBRK, 0)
}

// ClearBreak stops transmitting a break.
func (port *unixPort) ClearBreak() error {
	return unix.IoctlSetInt(port.handle, unix.TIOCCBRK, 0)
}

// Exclusive reports whether TIOCEXCL is in effect for this handle.
func (port *unixPort) Exclusive() bool {
	return port.exclusive
}

// SetExclusive toggles TIOCEXCL: while set, opening the device again
// fails with PortBusy.
func (port *unixPort) SetExclusive(exclusive bool) error {
	req := uint(unix.TIOCNXCL)
	if exclusive {
		req = unix.TIOCEXCL
	}
	if err := unix.IoctlSetInt(port.handle, req, 0); err != nil {
		return err
	}
	port.exclusive = exclusive
	return nil
}

// pipeSignal interrupts waitReady through a self-pipe.
type pipeSignal struct {
	pipe *unixutils.Pipe
}

func (s *pipeSignal) fire() error  { return s.pipe.Fire() }
func (s *pipeSignal) close() error { return s.pipe.Close() }

func (port *unixPort) newSignal() (signal, error) {
	if !unixutils.CanSelect(port.handle) {
		return nil, fmt.Errorf("descriptor %d is out of the select(2) range", port.handle)
	}
	p, err := unixutils.NewPipe()
	if err != nil {
		return nil, err
	}
	if !unixutils.CanSelect(p.ReadFD()) {
		p.Close()
		return nil, fmt.Errorf("descriptor %d is out of the select(2) range", p.ReadFD())
	}
	return &pipeSignal{pipe: p}, nil
}

// waitReady blocks in select(2) until the port is ready for dir or the
// signal pipe becomes readable.
func (port *unixPort) waitReady(dir direction, sig signal) error {
	s := sig.(*pipeSignal)
	rd := unixutils.NewFDSet(s.pipe.ReadFD())
	wr := unixutils.NewFDSet()
	if dir == dirRead {
		rd.Add(port.handle)
	} else {
		wr.Add(port.handle)
	}
	er := unixutils.NewFDSet(port.handle)
	res, err := unixutils.Select(rd, wr, er, -1)
	if err != nil {
		return err
	}
	if res.IsReadable(s.pipe.ReadFD()) {
		s.pipe.Drain()
		return errInterrupted
	}
	return nil
}

func nativeGetPortsList() ([]string, error) {
	files, err := os.ReadDir(devFolder)
	if err != nil {
		return nil, &PortError{code: ErrorEnumeratingPorts, causedBy: err}
	}

	ports := make([]string, 0, len(files))
	for _, f := range files {
		// Skip folders
		if f.IsDir() {
			continue
		}

		// Keep only devices with the correct name
		if !osPortFilter.MatchString(f.Name()) {
			continue
		}

		portName := devFolder + "/" + f.Name()

		// Check if serial port is real or is a placeholder serial port "ttySxx"
		if strings.HasPrefix(f.Name(), "ttyS") {
			port, err := nativeOpen(portName, nil)
			if err != nil {
				var serr *PortError
				if errors.As(err, &serr) && serr.Code() == InvalidSerialPort {
					continue
				}
			} else {
				port.close()
			}
		}

		// Save serial port in the resulting list
		ports = append(ports, portName)
	}

	return ports, nil
}

// termios manipulation functions

func setTermSettingsParity(parity Parity, settings *unix.Termios) error {
	switch parity {
	case NoParity:
		settings.Cflag &^= unix.PARENB | unix.PARODD | tcCMSPAR
		settings.Iflag &^= unix.INPCK
	case OddParity:
		settings.Cflag |= unix.PARENB | unix.PARODD
		settings.Cflag &^= tcCMSPAR
		settings.Iflag |= unix.INPCK
	case EvenParity:
		settings.Cflag &^= unix.PARODD | tcCMSPAR
		settings.Cflag |= unix.PARENB
		settings.Iflag |= unix.INPCK
	case MarkParity:
		if tcCMSPAR == 0 {
			return &PortError{code: InvalidParity}
		}
		settings.Cflag |= unix.PARENB | unix.PARODD | tcCMSPAR
		settings.Iflag |= unix.INPCK
	case SpaceParity:
		if tcCMSPAR == 0 {
			return &PortError{code: InvalidParity}
		}
		settings.Cflag &^= unix.PARODD
		settings.Cflag |= unix.PARENB | tcCMSPAR
		settings.Iflag |= unix.INPCK
	default:
		return &PortError{code: InvalidParity}
	}
	return nil
}

func setTermSettingsDataBits(bits int, settings *unix.Termios) error {
	databits, ok := databitsMap[bits]
	if !ok {
		return &PortError{code: InvalidDataBits}
	}
	settings.Cflag &^= unix.CSIZE
	settings.Cflag |= databits
	return nil
}

func setTermSettingsStopBits(bits StopBits, settings *unix.Termios) error {
	switch bits {
	case OneStopBit:
		settings.Cflag &^= unix.CSTOPB
	case OnePointFiveStopBits, TwoStopBits:
		settings.Cflag |= unix.CSTOPB
	default:
		return &PortError{code: InvalidStopBits}
	}
	return nil
}

func setTermSettingsFlowControl(flow FlowControl, settings *unix.Termios) error {
	switch flow {
	case NoFlowControl:
		settings.Cflag &^= tcCRTSCTS
		settings.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	case SoftwareFlowControl:
		settings.Cflag &^= tcCRTSCTS
		settings.Iflag |= unix.IXON | unix.IXOFF
	case HardwareFlowControl:
		settings.Cflag |= tcCRTSCTS
		settings.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY
	default:
		return &PortError{code: InvalidFlowControl}
	}
	return nil
}

func setRawMode(settings *unix.Termios) {
	// Set local mode
	settings.Cflag |= unix.CREAD | unix.CLOCAL

	// Set raw mode
	settings.Lflag &^= unix.ICANON | unix.ECHO | unix.ECHOE | unix.ECHOK |
		unix.ECHONL | unix.ECHOCTL | unix.ECHOPRT | unix.ECHOKE | unix.ISIG | unix.IEXTEN
	settings.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY | unix.INPCK |
		unix.IGNPAR | unix.PARMRK | unix.ISTRIP | unix.IGNBRK | unix.BRKINT | unix.INLCR |
		unix.IGNCR | unix.ICRNL | tcIUCLC
	settings.Oflag &^= unix.OPOST

	// The descriptor is non-blocking: a read returns what is available
	settings.Cc[unix.VMIN] = 1
	settings.Cc[unix.VTIME] = 0
}

// native syscall wrapper functions

func (port *unixPort) getTermSettings() (*unix.Termios, error) {
	return unix.IoctlGetTermios(port.handle, ioctlTcgetattr)
}

func (port *unixPort) setTermSettings(settings *unix.Termios) error {
	return unix.IoctlSetTermios(port.handle, ioctlTcsetattr, settings)
}

func (port *unixPort) getModemBitsStatus() (int, error) {
	return unix.IoctlGetInt(port.handle, unix.TIOCMGET)
}

func (port *unixPort) setModemBitsStatus(status int) error {
	return unix.IoctlSetPointerInt(port.handle, unix.TIOCMSET, status)
}
