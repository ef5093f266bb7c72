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

type tcflag = uint32

var osPortFilter = regexp.MustCompile("^(cu|tty)\\..*")

const tcCCTS_OFLOW tcflag = 0x00010000
const tcCRTS_IFLOW tcflag = 0x00020000

const tcCRTSCTS tcflag = tcCCTS_OFLOW | tcCRTS_IFLOW

// setTermSettingsBaudrate stores speed in settings. BSD speed_t values are
// the rates themselves, so every positive speed is handed to the driver.
func setTermSettingsBaudrate(speed int, settings *unix.Termios) (bool, error) {
	settings.Ispeed = tcflag(speed)
	settings.Ospeed = tcflag(speed)
	return false, nil
}
