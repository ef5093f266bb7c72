//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package serial

// readinessAdapter drives a non-blocking descriptor from the wakeups of
// the shared reactor: operations are attempted directly and suspend on
// would-block until the next edge for their direction.
type readinessAdapter struct {
	port    *unixPort
	reactor *reactor
	reg     *registration
}

var _ adapter = (*readinessAdapter)(nil)

func newReadinessAdapter(port *unixPort) (*readinessAdapter, error) {
	re, err := getReactor()
	if err != nil {
		return nil, err
	}
	reg := newRegistration(port.handle)
	if err := re.register(reg); err != nil {
		return nil, err
	}
	return &readinessAdapter{port: port, reactor: re, reg: reg}, nil
}

func (a *readinessAdapter) attempt(dir direction, p []byte) (int, error) {
	if dir == dirRead {
		return a.port.tryRead(p)
	}
	return a.port.tryWrite(p)
}

func (a *readinessAdapter) poll(dir direction, w Waker, p []byte) (int, bool, error) {
	if len(p) == 0 {
		return 0, true, nil
	}
	for {
		seq, err := a.reg.state(dir)
		if err != nil {
			return 0, true, err
		}
		n, err := a.attempt(dir, p)
		if !IsWouldBlock(err) {
			return n, true, err
		}
		a.reg.cells[dir].set(w)
		if a.reg.clearReady(dir, seq) {
			return 0, false, nil
		}
	}
}

func (a *readinessAdapter) pollRead(w Waker, p []byte) (int, bool, error) {
	return a.poll(dirRead, w, p)
}

func (a *readinessAdapter) pollWrite(w Waker, p []byte) (int, bool, error) {
	return a.poll(dirWrite, w, p)
}

func (a *readinessAdapter) pollReady(dir direction, w Waker) (bool, error) {
	a.reg.cells[dir].set(w)
	if !a.reg.isReady(dir) {
		return false, nil
	}
	a.reg.cells[dir].clear()
	_, err := a.reg.state(dir)
	return true, err
}

func (a *readinessAdapter) pollReadReady(w Waker) (bool, error) {
	return a.pollReady(dirRead, w)
}

func (a *readinessAdapter) pollWriteReady(w Waker) (bool, error) {
	return a.pollReady(dirWrite, w)
}

// pollFlush has nothing to do: writes are not buffered at this layer.
func (a *readinessAdapter) pollFlush(w Waker) (bool, error) {
	return true, nil
}

func (a *readinessAdapter) pollShutdown(w Waker) (bool, error) {
	a.reg.cells[dirWrite].clear()
	return true, nil
}

// try performs a manual attempt. A would-block result is returned as is,
// after dropping the readiness it disproved.
func (a *readinessAdapter) try(dir direction, p []byte) (int, error) {
	seq, err := a.reg.state(dir)
	if err != nil {
		return 0, err
	}
	n, err := a.attempt(dir, p)
	if IsWouldBlock(err) {
		a.reg.clearReady(dir, seq)
	}
	return n, err
}

func (a *readinessAdapter) tryRead(p []byte) (int, error) {
	return a.try(dirRead, p)
}

func (a *readinessAdapter) tryWrite(p []byte) (int, error) {
	return a.try(dirWrite, p)
}

func (a *readinessAdapter) cancelRead() {
	a.reg.cells[dirRead].clear()
}

func (a *readinessAdapter) cancelWrite() {
	a.reg.cells[dirWrite].clear()
}

func (a *readinessAdapter) close() error {
	return a.reactor.deregister(a.reg)
}
