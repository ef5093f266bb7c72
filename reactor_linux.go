//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "golang.org/x/sys/unix"

const (
	epollReadEvents  = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR
	epollWriteEvents = unix.EPOLLOUT | unix.EPOLLHUP | unix.EPOLLERR
)

func openPoller() (int, error) {
	return unix.EpollCreate1(unix.EPOLL_CLOEXEC)
}

// add registers fd for both directions in edge-triggered mode.
func (re *reactor) add(fd int) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(re.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (re *reactor) remove(fd int) error {
	return unix.EpollCtl(re.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (re *reactor) run() {
	events := make([]unix.EpollEvent, 128)
	for {
		n, err := unix.EpollWait(re.fd, events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			re.fail(err)
			return
		}
		for i := 0; i < n; i++ {
			ev := &events[i]
			reg := re.lookup(int(ev.Fd))
			if reg == nil {
				continue
			}
			if ev.Events&epollReadEvents != 0 {
				reg.notify(dirRead)
			}
			if ev.Events&epollWriteEvents != 0 {
				reg.notify(dirWrite)
			}
		}
	}
}
