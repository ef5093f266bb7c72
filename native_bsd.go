//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build darwin || freebsd || netbsd

package serial

import (
	"golang.org/x/sys/unix"
)

const devFolder = "/dev"

var databitsMap = map[int]tcflag{
	5: unix.CS5,
	6: unix.CS6,
	7: unix.CS7,
	8: unix.CS8,
}

const tcCMSPAR tcflag = 0 // may be CMSPAR or PAREXT
const tcIUCLC tcflag = 0

const ioctlTcgetattr = unix.TIOCGETA
const ioctlTcsetattr = unix.TIOCSETA
const ioctlInq = unix.FIONREAD
const ioctlOutq = unix.TIOCOUTQ

func (port *unixPort) setSpecialBaudrate(speed uint32) error {
	return &PortError{code: InvalidSpeed}
}

// BaudRate reads the line speed back from the OS.
func (port *unixPort) BaudRate() (int, error) {
	settings, err := port.getTermSettings()
	if err != nil {
		return 0, err
	}
	return int(settings.Ospeed), nil
}

// Drain waits until all the written data has been transmitted.
func (port *unixPort) Drain() error {
	return unix.IoctlSetInt(port.handle, unix.TIOCDRAIN, 0)
}

// Clear discards the buffers selected by which.
func (port *unixPort) Clear(which ClearBuffer) error {
	// FREAD and FWRITE from sys/fcntl.h
	var what int
	switch which {
	case ClearInput:
		what = 1
	case ClearOutput:
		what = 2
	default:
		what = 1 | 2
	}
	return unix.IoctlSetPointerInt(port.handle, unix.TIOCFLUSH, what)
}
