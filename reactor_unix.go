//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package serial

import (
	"sync"

	"golang.org/x/sys/unix"
)

// registration ties one file descriptor to the reactor. For every
// direction it records whether an edge was seen since the last would-block
// and a single waker slot.
type registration struct {
	fd    int
	mu    sync.Mutex
	ready [2]bool
	seq   [2]uint64
	cells [2]wakerCell

	closed bool
	err    error
}

func newRegistration(fd int) *registration {
	// assume readiness until the first attempt says otherwise
	return &registration{fd: fd, ready: [2]bool{true, true}}
}

func (r *registration) notify(dir direction) {
	r.mu.Lock()
	r.ready[dir] = true
	r.seq[dir]++
	r.mu.Unlock()
	r.cells[dir].wake()
}

// state returns the event sequence of dir and any terminal condition.
func (r *registration) state(dir direction) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq[dir], r.terminalErr()
}

func (r *registration) terminalErr() error {
	if r.closed {
		return &PortError{code: PortClosed}
	}
	if r.err != nil {
		return &PortError{code: OsError, causedBy: r.err}
	}
	return nil
}

// clearReady drops the readiness of dir after an attempt that started at
// sequence seq returned would-block. It fails when an event arrived in the
// meantime, meaning the attempt must be repeated.
func (r *registration) clearReady(dir direction, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seq[dir] != seq || r.closed || r.err != nil {
		return false
	}
	r.ready[dir] = false
	return true
}

func (r *registration) isReady(dir direction) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready[dir] || r.closed || r.err != nil
}

// shutdown marks the registration as terminated and wakes every waiter.
func (r *registration) shutdown(err error) {
	r.mu.Lock()
	if err == nil {
		r.closed = true
	} else if r.err == nil {
		r.err = err
	}
	r.mu.Unlock()
	r.cells[dirRead].wake()
	r.cells[dirWrite].wake()
}

// reactor multiplexes the readiness of every registered descriptor on a
// single goroutine. The kernel facility behind fd is epoll or kqueue.
type reactor struct {
	fd   int
	mu   sync.Mutex
	regs map[int]*registration
	err  error
}

var (
	reactorOnce     sync.Once
	defaultReactor  *reactor
	defaultReactErr error
)

// getReactor returns the process wide reactor, starting it on first use.
func getReactor() (*reactor, error) {
	reactorOnce.Do(func() {
		fd, err := openPoller()
		if err != nil {
			defaultReactErr = &PortError{code: OsError, causedBy: err}
			return
		}
		defaultReactor = &reactor{fd: fd, regs: map[int]*registration{}}
		go defaultReactor.run()
	})
	return defaultReactor, defaultReactErr
}

func (re *reactor) register(reg *registration) error {
	re.mu.Lock()
	if re.err != nil {
		re.mu.Unlock()
		return &PortError{code: OsError, causedBy: re.err}
	}
	re.regs[reg.fd] = reg
	re.mu.Unlock()
	if err := re.add(reg.fd); err != nil {
		re.mu.Lock()
		delete(re.regs, reg.fd)
		re.mu.Unlock()
		return &PortError{code: OsError, causedBy: err}
	}
	return nil
}

func (re *reactor) deregister(reg *registration) error {
	re.mu.Lock()
	if re.regs[reg.fd] == reg {
		delete(re.regs, reg.fd)
	}
	re.mu.Unlock()
	err := re.remove(reg.fd)
	reg.shutdown(nil)
	if err == unix.ENOENT || err == unix.EBADF {
		err = nil
	}
	return err
}

func (re *reactor) lookup(fd int) *registration {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.regs[fd]
}

// fail wakes every registration with err after the poller broke down.
func (re *reactor) fail(err error) {
	re.mu.Lock()
	re.err = err
	regs := make([]*registration, 0, len(re.regs))
	for _, reg := range re.regs {
		regs = append(regs, reg)
	}
	re.mu.Unlock()
	for _, reg := range regs {
		reg.shutdown(err)
	}
}
