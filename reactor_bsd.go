//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build darwin || freebsd || netbsd

package serial

import "golang.org/x/sys/unix"

func openPoller() (int, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(kq)
	return kq, nil
}

func (re *reactor) change(fd int, flags int) error {
	changes := make([]unix.Kevent_t, 2)
	unix.SetKevent(&changes[0], fd, unix.EVFILT_READ, flags)
	unix.SetKevent(&changes[1], fd, unix.EVFILT_WRITE, flags)
	_, err := unix.Kevent(re.fd, changes, nil, nil)
	return err
}

// add registers fd for both directions; EV_CLEAR makes the filters edge
// triggered.
func (re *reactor) add(fd int) error {
	return re.change(fd, unix.EV_ADD|unix.EV_CLEAR)
}

func (re *reactor) remove(fd int) error {
	return re.change(fd, unix.EV_DELETE)
}

func (re *reactor) run() {
	events := make([]unix.Kevent_t, 128)
	for {
		n, err := unix.Kevent(re.fd, nil, events, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			re.fail(err)
			return
		}
		for i := 0; i < n; i++ {
			ev := &events[i]
			reg := re.lookup(int(ev.Ident))
			if reg == nil {
				continue
			}
			switch {
			case ev.Flags&unix.EV_EOF != 0 || ev.Flags&unix.EV_ERROR != 0:
				reg.notify(dirRead)
				reg.notify(dirWrite)
			case ev.Filter == unix.EVFILT_READ:
				reg.notify(dirRead)
			case ev.Filter == unix.EVFILT_WRITE:
				reg.notify(dirWrite)
			}
		}
	}
}
