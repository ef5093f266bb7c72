//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"regexp"

	"golang.org/x/sys/unix"
)

const devFolder = "/dev"

var osPortFilter = regexp.MustCompile("(ttyS|ttyHS|ttyUSB|ttyACM|ttyAMA|ttyXRUSB|rfcomm|ttyO|ttymxc)[0-9]{1,3}")

// termios manipulation functions

var baudrateMap = map[int]uint32{
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

var databitsMap = map[int]uint32{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

const tcCMSPAR = unix.CMSPAR
const tcIUCLC = unix.IUCLC

const tcCRTSCTS uint32 = unix.CRTSCTS

const ioctlTcgetattr = unix.TCGETS
const ioctlTcsetattr = unix.TCSETS
const ioctlInq = unix.TIOCINQ
const ioctlOutq = unix.TIOCOUTQ

// setTermSettingsBaudrate stores speed in settings. It reports true when
// speed has no Bxxx constant and must be applied with setSpecialBaudrate.
func setTermSettingsBaudrate(speed int, settings *unix.Termios) (bool, error) {
	baudrate, ok := baudrateMap[speed]
	if !ok {
		return true, nil
	}
	settings.Cflag &^= unix.CBAUD
	settings.Cflag |= baudrate
	settings.Ispeed = baudrate
	settings.Ospeed = baudrate
	return false, nil
}

// BaudRate reads the line speed back from the OS.
func (port *unixPort) BaudRate() (int, error) {
	settings, err := port.getTermSettings()
	if err != nil {
		return 0, err
	}
	code := settings.Cflag & unix.CBAUD
	if code == unix.BOTHER {
		return port.getSpecialBaudrate()
	}
	for speed, rate := range baudrateMap {
		if rate == code {
			return speed, nil
		}
	}
	return 0, &PortError{code: InvalidSpeed}
}

// Drain waits until all the written data has been transmitted.
func (port *unixPort) Drain() error {
	// TCSBRK with a non-zero argument is tcdrain(3)
	return unix.IoctlSetInt(port.handle, unix.TCSBRK, 1)
}

// Clear discards the buffers selected by which.
func (port *unixPort) Clear(which ClearBuffer) error {
	var queue int
	switch which {
	case ClearInput:
		queue = unix.TCIFLUSH
	case ClearOutput:
		queue = unix.TCOFLUSH
	default:
		queue = unix.TCIOFLUSH
	}
	return unix.IoctlSetInt(port.handle, unix.TCFLSH, queue)
}
