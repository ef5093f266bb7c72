//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"context"
	"io"
	"sync"
	"time"
)

// Stream is an open serial port (or pseudo terminal endpoint) driven in
// non-blocking mode. It offers three ways to do I/O:
//
//   - TryRead and TryWrite make a single attempt and never wait;
//   - PollRead, PollWrite, PollFlush and PollShutdown never wait either,
//     but register a Waker that is notified when retrying makes sense;
//   - Read, Write and their Context variants wait for the operation to
//     complete, suspending only the calling goroutine.
//
// A Stream owns its handle exclusively and cannot be duplicated.
type Stream struct {
	port    *nativePort
	adapter *platformAdapter

	// mu keeps Close from releasing the handle under a running attempt
	mu     sync.RWMutex
	closed bool
}

var _ io.ReadWriteCloser = (*Stream)(nil)

// newStream registers port with the platform adapter. The port is closed
// if the registration fails.
func newStream(port *nativePort) (*Stream, error) {
	a, err := newPlatformAdapter(port)
	if err != nil {
		port.close()
		return nil, err
	}
	return &Stream{port: port, adapter: a}, nil
}

func (s *Stream) lock() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return &PortError{code: PortClosed}
	}
	return nil
}

func (s *Stream) unlock() {
	s.mu.RUnlock()
}

// Name returns the device path the stream was opened with. It is empty
// for the endpoints created by Pair.
func (s *Stream) Name() string {
	return s.port.name
}

// Fd returns the OS handle of the stream. It remains owned by the stream
// and must not be closed or read by the caller; it is exposed for
// integration with external readiness based tooling.
func (s *Stream) Fd() uintptr {
	return s.port.Fd()
}

// TryRead makes a single attempt to read into p. When no data is
// available it returns an error for which IsWouldBlock is true.
func (s *Stream) TryRead(p []byte) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.unlock()
	return s.adapter.tryRead(p)
}

// TryWrite makes a single attempt to write p. When the output buffer is
// full it returns an error for which IsWouldBlock is true. Short writes
// are not retried.
func (s *Stream) TryWrite(p []byte) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.unlock()
	return s.adapter.tryWrite(p)
}

// PollRead attempts to read into p. If no data is available it returns
// ready == false and w is notified once a new attempt may succeed. Only
// the Waker passed to the most recent pending PollRead is notified.
func (s *Stream) PollRead(w Waker, p []byte) (n int, ready bool, err error) {
	if err := s.lock(); err != nil {
		return 0, true, err
	}
	defer s.unlock()
	return s.adapter.pollRead(w, p)
}

// PollWrite is the write counterpart of PollRead. A caller that gets
// ready == false must retry with the same p.
func (s *Stream) PollWrite(w Waker, p []byte) (n int, ready bool, err error) {
	if err := s.lock(); err != nil {
		return 0, true, err
	}
	defer s.unlock()
	return s.adapter.pollWrite(w, p)
}

// PollFlush is always ready: writes are not buffered by the stream.
func (s *Stream) PollFlush(w Waker) (ready bool, err error) {
	if err := s.lock(); err != nil {
		return true, err
	}
	defer s.unlock()
	return s.adapter.pollFlush(w)
}

// PollShutdown releases any pending write interest. It is always ready.
func (s *Stream) PollShutdown(w Waker) (ready bool, err error) {
	if err := s.lock(); err != nil {
		return true, err
	}
	defer s.unlock()
	return s.adapter.pollShutdown(w)
}

func (s *Stream) pollReadReady(w Waker) (bool, error) {
	if err := s.lock(); err != nil {
		return true, err
	}
	defer s.unlock()
	return s.adapter.pollReadReady(w)
}

func (s *Stream) pollWriteReady(w Waker) (bool, error) {
	if err := s.lock(); err != nil {
		return true, err
	}
	defer s.unlock()
	return s.adapter.pollWriteReady(w)
}

func (s *Stream) cancel(dir direction) {
	if s.lock() != nil {
		return
	}
	defer s.unlock()
	if dir == dirRead {
		s.adapter.cancelRead()
	} else {
		s.adapter.cancelWrite()
	}
}

func canceled(ctx context.Context, dir direction) error {
	code := ReadCanceled
	if dir == dirWrite {
		code = WriteCanceled
	}
	return &PortError{code: code, causedBy: ctx.Err()}
}

// await keeps calling poll until it is ready or ctx is done.
func (s *Stream) await(ctx context.Context, dir direction, poll func(w Waker) (bool, error)) error {
	w := NewChanWaker()
	for {
		ready, err := poll(w)
		if ready {
			return err
		}
		select {
		case <-w.C:
		case <-ctx.Done():
			s.cancel(dir)
			return canceled(ctx, dir)
		}
	}
}

// Readable waits until the stream is ready for reading. The readiness may
// be a false positive: a following TryRead can still report would-block.
func (s *Stream) Readable(ctx context.Context) error {
	return s.await(ctx, dirRead, s.pollReadReady)
}

// Writable waits until the stream is ready for writing. Like Readable it
// may report a false positive.
func (s *Stream) Writable(ctx context.Context) error {
	return s.await(ctx, dirWrite, s.pollWriteReady)
}

// Read waits until some data is available and reads it into p.
func (s *Stream) Read(p []byte) (int, error) {
	return s.ReadContext(context.Background(), p)
}

// ReadContext is like Read but gives up with a ReadCanceled error when
// ctx is done.
func (s *Stream) ReadContext(ctx context.Context, p []byte) (int, error) {
	var n int
	err := s.await(ctx, dirRead, func(w Waker) (bool, error) {
		var ready bool
		var err error
		n, ready, err = s.PollRead(w, p)
		return ready, err
	})
	return n, err
}

// Write waits until p can be handed to the OS and writes it with a single
// attempt. If the OS accepts only part of p, Write returns the count and
// io.ErrShortWrite.
func (s *Stream) Write(p []byte) (int, error) {
	return s.WriteContext(context.Background(), p)
}

// WriteContext is like Write but gives up with a WriteCanceled error when
// ctx is done.
func (s *Stream) WriteContext(ctx context.Context, p []byte) (int, error) {
	var n int
	err := s.await(ctx, dirWrite, func(w Waker) (bool, error) {
		var ready bool
		var err error
		n, ready, err = s.PollWrite(w, p)
		return ready, err
	})
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

// Flush returns once PollFlush is ready.
func (s *Stream) Flush() error {
	return s.await(context.Background(), dirWrite, s.PollFlush)
}

// Close releases the registration and the OS handle. Pending operations
// on other goroutines fail with PortClosed. Closing twice is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.adapter.close()
	if cerr := s.port.close(); err == nil {
		err = cerr
	}
	return err
}

// TryClone always fails with FunctionNotImplemented: two handles sharing
// one registration would race for readiness notifications.
func (s *Stream) TryClone() (*Stream, error) {
	return nil, &PortError{code: FunctionNotImplemented}
}

func (s *Stream) configure(f func() error) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()
	return f()
}

// SetMode sets all parameters of the serial port. See the Mode structure
// for more info.
func (s *Stream) SetMode(mode *Mode) error {
	return s.configure(func() error { return s.port.SetMode(mode) })
}

// BaudRate returns the current line speed.
func (s *Stream) BaudRate() (baud int, err error) {
	err = s.configure(func() error { baud, err = s.port.BaudRate(); return err })
	return
}

// SetBaudRate changes the line speed.
func (s *Stream) SetBaudRate(baud int) error {
	return s.configure(func() error { return s.port.SetBaudRate(baud) })
}

// DataBits returns the current character size.
func (s *Stream) DataBits() (bits int, err error) {
	err = s.configure(func() error { bits, err = s.port.DataBits(); return err })
	return
}

// SetDataBits changes the character size (5, 6, 7 or 8).
func (s *Stream) SetDataBits(bits int) error {
	return s.configure(func() error { return s.port.SetDataBits(bits) })
}

// Parity returns the current parity setting.
func (s *Stream) Parity() (parity Parity, err error) {
	err = s.configure(func() error { parity, err = s.port.Parity(); return err })
	return
}

// SetParity changes the parity setting.
func (s *Stream) SetParity(parity Parity) error {
	return s.configure(func() error { return s.port.SetParity(parity) })
}

// StopBits returns the current number of stop bits.
func (s *Stream) StopBits() (bits StopBits, err error) {
	err = s.configure(func() error { bits, err = s.port.StopBits(); return err })
	return
}

// SetStopBits changes the number of stop bits.
func (s *Stream) SetStopBits(bits StopBits) error {
	return s.configure(func() error { return s.port.SetStopBits(bits) })
}

// FlowControl returns the current flow control setting.
func (s *Stream) FlowControl() (flow FlowControl, err error) {
	err = s.configure(func() error { flow, err = s.port.FlowControl(); return err })
	return
}

// SetFlowControl changes the flow control setting.
func (s *Stream) SetFlowControl(flow FlowControl) error {
	return s.configure(func() error { return s.port.SetFlowControl(flow) })
}

// Timeout always returns 0: operations on a Stream never time out by
// themselves, use a context instead.
func (s *Stream) Timeout() time.Duration {
	return 0
}

// SetTimeout validates t and otherwise ignores it.
func (s *Stream) SetTimeout(t time.Duration) error {
	if t < 0 {
		return &PortError{code: InvalidTimeoutValue}
	}
	return nil
}

// SetDTR sets the modem status bit DataTerminalReady
func (s *Stream) SetDTR(dtr bool) error {
	return s.configure(func() error { return s.port.SetDTR(dtr) })
}

// SetRTS sets the modem status bit RequestToSend
func (s *Stream) SetRTS(rts bool) error {
	return s.configure(func() error { return s.port.SetRTS(rts) })
}

// GetModemStatusBits returns a ModemStatusBits structure containing the
// modem status bits for the serial port (CTS, DSR, etc...)
func (s *Stream) GetModemStatusBits() (bits *ModemStatusBits, err error) {
	err = s.configure(func() error { bits, err = s.port.GetModemStatusBits(); return err })
	return
}

// BytesToRead returns the number of bytes received but not read yet.
func (s *Stream) BytesToRead() (n int, err error) {
	err = s.configure(func() error { n, err = s.port.BytesToRead(); return err })
	return
}

// BytesToWrite returns the number of bytes written but not transmitted
// yet.
func (s *Stream) BytesToWrite() (n int, err error) {
	err = s.configure(func() error { n, err = s.port.BytesToWrite(); return err })
	return
}

// Clear discards the selected buffers.
func (s *Stream) Clear(which ClearBuffer) error {
	return s.configure(func() error { return s.port.Clear(which) })
}

// ResetInputBuffer purges the serial port's receive buffer.
func (s *Stream) ResetInputBuffer() error {
	return s.Clear(ClearInput)
}

// ResetOutputBuffer purges the serial port's transmit buffer.
func (s *Stream) ResetOutputBuffer() error {
	return s.Clear(ClearOutput)
}

// SetBreak starts transmitting a break signal.
func (s *Stream) SetBreak() error {
	return s.configure(s.port.SetBreak)
}

// ClearBreak stops transmitting a break signal.
func (s *Stream) ClearBreak() error {
	return s.configure(s.port.ClearBreak)
}

// Drain waits until all the data written has been transmitted. It blocks
// the calling goroutine.
func (s *Stream) Drain() error {
	return s.configure(s.port.Drain)
}
