//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"math"
	"regexp"

	"golang.org/x/sys/unix"
)

type tcflag = uint32

// see tty(4), ucom(4), zstty(4), ...
var osPortFilter = regexp.MustCompile("^([dt]ty[a-d]|[dt]ty[0-9]+|[dt]ty[CBZ][0-1]|[dt]tyU[0-9]+)$")

// CCTS_OFLOW and CRTS_IFLOW are both aliases of CRTSCTS here
const tcCRTSCTS tcflag = unix.CRTSCTS

// setTermSettingsBaudrate stores speed in settings; the kernel keeps the
// speeds as signed 32 bit values.
// See https://nxr.netbsd.org/xref/src/lib/libc/termios/cfsetspeed.c
func setTermSettingsBaudrate(speed int, settings *unix.Termios) (bool, error) {
	if speed < 50 || speed > math.MaxInt32 {
		return false, &PortError{code: InvalidSpeed}
	}
	settings.Ispeed = int32(speed)
	settings.Ospeed = int32(speed)
	return false, nil
}
