//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// bridgePort is the part of a native port needed to run blocking waits on
// a background goroutine. Platforms without readiness notification for
// serial devices only ever use the port through this interface.
type bridgePort interface {
	tryRead(p []byte) (int, error)
	tryWrite(p []byte) (int, error)

	// newSignal returns a signal able to interrupt waitReady.
	newSignal() (signal, error)

	// waitReady blocks until the port is ready in direction dir. It returns
	// errInterrupted as soon as sig fires.
	waitReady(dir direction, sig signal) error
}

type signal interface {
	fire() error
	close() error
}

type opKind int

const (
	opWait opKind = iota
	opTransfer
)

type bridgeResult struct {
	n   int
	err error
}

// bridgeOp is one background operation. done is written exactly once by
// the worker, everything else is owned by the goroutine polling the stream.
type bridgeOp struct {
	kind     opKind
	buf      []byte
	done     chan bridgeResult
	canceled atomic.Bool
	res      *bridgeResult
}

func (op *bridgeOp) poll() (*bridgeResult, bool) {
	if op.res != nil {
		return op.res, true
	}
	select {
	case r := <-op.done:
		op.res = &r
		return op.res, true
	default:
		return nil, false
	}
}

func (op *bridgeOp) wait() *bridgeResult {
	if op.res == nil {
		r := <-op.done
		op.res = &r
	}
	return op.res
}

type bridgeDirection struct {
	dir   direction
	sig   signal
	cell  wakerCell
	op    *bridgeOp
	spare []byte
}

// bridgeAdapter emulates readiness polling by handing every wait and
// transfer to a background goroutine and reporting its outcome through a
// one-shot channel. At most one operation per direction is in flight.
type bridgeAdapter struct {
	port   bridgePort
	mu     sync.Mutex
	dirs   [2]bridgeDirection
	closed atomic.Bool
}

var errWorkerExited = errors.New("background worker exited without a result")

func newBridgeAdapter(port bridgePort) (*bridgeAdapter, error) {
	b := &bridgeAdapter{port: port}
	for i := range b.dirs {
		sig, err := port.newSignal()
		if err != nil {
			for j := 0; j < i; j++ {
				b.dirs[j].sig.close()
			}
			return nil, &PortError{code: OsError, causedBy: err}
		}
		b.dirs[i].dir = direction(i)
		b.dirs[i].sig = sig
	}
	return b, nil
}

func (b *bridgeAdapter) start(d *bridgeDirection, kind opKind, buf []byte) {
	op := &bridgeOp{kind: kind, buf: buf, done: make(chan bridgeResult, 1)}
	d.op = op
	go b.run(d, op)
}

func (b *bridgeAdapter) run(d *bridgeDirection, op *bridgeOp) {
	res := bridgeResult{err: &PortError{code: OsError, causedBy: errWorkerExited}}
	defer func() {
		if r := recover(); r != nil {
			res = bridgeResult{err: &PortError{code: OsError, causedBy: fmt.Errorf("background %s failed: %v", d.dir, r)}}
		}
		op.done <- res
		d.cell.wake()
	}()
	res = b.transfer(d, op)
}

func (b *bridgeAdapter) transfer(d *bridgeDirection, op *bridgeOp) bridgeResult {
	for {
		if op.canceled.Load() {
			return bridgeResult{err: errInterrupted}
		}
		err := b.port.waitReady(d.dir, d.sig)
		if err == errInterrupted {
			continue
		}
		if err != nil {
			return bridgeResult{err: err}
		}
		if op.kind == opWait {
			return bridgeResult{}
		}
		var n int
		if d.dir == dirRead {
			n, err = b.port.tryRead(op.buf)
		} else {
			n, err = b.port.tryWrite(op.buf)
		}
		if IsWouldBlock(err) {
			// readiness was a false positive
			continue
		}
		return bridgeResult{n: n, err: err}
	}
}

// takeRead moves a completed read into p, keeping what does not fit.
func (d *bridgeDirection) takeRead(op *bridgeOp, res *bridgeResult, p []byte) (int, error) {
	d.op = nil
	if res.err != nil {
		return 0, res.err
	}
	n := copy(p, op.buf[:res.n])
	if n < res.n {
		d.spare = op.buf[n:res.n]
	}
	return n, nil
}

func (b *bridgeAdapter) pollRead(w Waker, p []byte) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return 0, true, &PortError{code: PortClosed}
	}
	d := &b.dirs[dirRead]
	if len(d.spare) > 0 {
		n := copy(p, d.spare)
		d.spare = d.spare[n:]
		return n, true, nil
	}
	if len(p) == 0 {
		return 0, true, nil
	}
	d.cell.set(w)
	for {
		op := d.op
		if op == nil {
			b.start(d, opTransfer, make([]byte, len(p)))
			return 0, false, nil
		}
		res, ok := op.poll()
		if !ok {
			return 0, false, nil
		}
		if res.err == errInterrupted || op.kind == opWait && res.err == nil {
			d.op = nil
			continue
		}
		d.cell.clear()
		n, err := d.takeRead(op, res, p)
		return n, true, err
	}
}

// pollWrite hands a copy of p to the background goroutine. Callers that
// get ready == false must poll again with the same bytes; the count
// reported later refers to that copy.
func (b *bridgeAdapter) pollWrite(w Waker, p []byte) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return 0, true, &PortError{code: PortClosed}
	}
	d := &b.dirs[dirWrite]
	if len(p) == 0 && d.op == nil {
		return 0, true, nil
	}
	d.cell.set(w)
	for {
		op := d.op
		if op == nil {
			if len(p) == 0 {
				d.cell.clear()
				return 0, true, nil
			}
			b.start(d, opTransfer, append([]byte(nil), p...))
			return 0, false, nil
		}
		res, ok := op.poll()
		if !ok {
			return 0, false, nil
		}
		d.op = nil
		// an abandoned write belongs to a caller that already gave up, its
		// count must not be reported for p
		if op.canceled.Load() || res.err == errInterrupted || op.kind == opWait && res.err == nil {
			continue
		}
		d.cell.clear()
		return res.n, true, res.err
	}
}

func (b *bridgeAdapter) pollReady(w Waker, d *bridgeDirection) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return true, &PortError{code: PortClosed}
	}
	if len(d.spare) > 0 {
		return true, nil
	}
	d.cell.set(w)
	for {
		op := d.op
		if op == nil {
			b.start(d, opWait, nil)
			return false, nil
		}
		res, ok := op.poll()
		if !ok {
			return false, nil
		}
		if res.err == errInterrupted {
			d.op = nil
			continue
		}
		d.cell.clear()
		if op.kind == opTransfer {
			// a finished transfer is kept for the next read or write
			return true, nil
		}
		d.op = nil
		return true, res.err
	}
}

func (b *bridgeAdapter) pollReadReady(w Waker) (bool, error) {
	return b.pollReady(w, &b.dirs[dirRead])
}

func (b *bridgeAdapter) pollWriteReady(w Waker) (bool, error) {
	return b.pollReady(w, &b.dirs[dirWrite])
}

func (b *bridgeAdapter) pollFlush(w Waker) (bool, error) {
	return true, nil
}

func (b *bridgeAdapter) pollShutdown(w Waker) (bool, error) {
	b.cancel(&b.dirs[dirWrite])
	return true, nil
}

func (b *bridgeAdapter) tryRead(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return 0, &PortError{code: PortClosed}
	}
	d := &b.dirs[dirRead]
	if len(d.spare) > 0 {
		n := copy(p, d.spare)
		d.spare = d.spare[n:]
		return n, nil
	}
	if op := d.op; op != nil {
		res, ok := op.poll()
		switch {
		case !ok && op.kind == opTransfer:
			// the background read owns the device until it completes
			return 0, ErrWouldBlock
		case ok && op.kind == opTransfer && res.err != errInterrupted:
			return d.takeRead(op, res, p)
		case ok:
			d.op = nil
		}
	}
	return b.port.tryRead(p)
}

func (b *bridgeAdapter) tryWrite(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		return 0, &PortError{code: PortClosed}
	}
	d := &b.dirs[dirWrite]
	if op := d.op; op != nil {
		res, ok := op.poll()
		switch {
		case !ok && op.kind == opTransfer:
			return 0, ErrWouldBlock
		case !ok:
			// a readiness wait may keep running alongside
		case op.kind == opTransfer && !op.canceled.Load() && res.err != errInterrupted:
			// the result is kept for the PollWrite that started it
		default:
			d.op = nil
		}
	}
	return b.port.tryWrite(p)
}

func (b *bridgeAdapter) cancel(d *bridgeDirection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d.cell.clear()
	op := d.op
	if op == nil {
		return
	}
	if _, ok := op.poll(); ok {
		switch {
		case op.kind == opWait:
			d.op = nil
		case d.dir == dirWrite:
			op.canceled.Store(true)
		}
		return
	}
	// the worker notices the flag once the signal interrupts its wait. A
	// read that already moved data still delivers it on the next poll, a
	// write is dropped when collected.
	op.canceled.Store(true)
	d.sig.fire()
}

func (b *bridgeAdapter) cancelRead() {
	b.cancel(&b.dirs[dirRead])
}

func (b *bridgeAdapter) cancelWrite() {
	b.cancel(&b.dirs[dirWrite])
}

// close interrupts both workers and waits for them to exit, so the native
// handle is never used after it is released.
func (b *bridgeAdapter) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	for i := range b.dirs {
		d := &b.dirs[i]
		if op := d.op; op != nil {
			if _, ok := op.poll(); !ok {
				op.canceled.Store(true)
				if err := d.sig.fire(); err != nil && firstErr == nil {
					firstErr = err
				}
				op.wait()
			}
			d.op = nil
		}
		d.spare = nil
		if err := d.sig.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		d.cell.wake()
	}
	return firstErr
}
