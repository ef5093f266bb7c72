//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package serial

import (
	"errors"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Pair creates two connected pseudo terminal endpoints, both in raw mode:
// bytes written on one stream are read from the other. The endpoints have
// no device name. If anything fails, every resource allocated so far is
// released before the error is returned.
func Pair() (*Stream, *Stream, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, &PortError{code: OsError, causedBy: err}
	}
	// the descriptors are duplicated so the streams own them instead of
	// the os.File runtime poller
	mfd, err := dupFile(master)
	master.Close()
	if err != nil {
		slave.Close()
		return nil, nil, &PortError{code: OsError, causedBy: err}
	}
	sfd, err := dupFile(slave)
	slave.Close()
	if err != nil {
		unix.Close(mfd)
		return nil, nil, &PortError{code: OsError, causedBy: err}
	}

	mport := &unixPort{handle: mfd}
	sport := &unixPort{handle: sfd}
	if err := sport.setup(nil); err != nil {
		mport.close()
		sport.close()
		return nil, nil, err
	}
	// not every OS accepts termios on the master side
	if err := mport.setup(nil); err != nil && !isNotTerminal(err) {
		mport.close()
		sport.close()
		return nil, nil, err
	}

	a, err := newStream(mport)
	if err != nil {
		sport.close()
		return nil, nil, err
	}
	b, err := newStream(sport)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

// isNotTerminal reports whether err means the descriptor does not accept
// terminal requests.
func isNotTerminal(err error) bool {
	return errors.Is(err, unix.ENOTTY) || errors.Is(err, unix.EINVAL)
}

func dupFile(f *os.File) (int, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	var dupErr error
	err = rc.Control(func(h uintptr) {
		fd, dupErr = unix.FcntlInt(h, unix.F_DUPFD_CLOEXEC, 0)
	})
	if err == nil {
		err = dupErr
	}
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}
