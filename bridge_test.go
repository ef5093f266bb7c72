//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePort is an in-memory bridgePort: reads wait until feed is called,
// writes always succeed.
type fakePort struct {
	mu          sync.Mutex
	in          []byte
	out         []byte
	arrived     chan struct{}
	panicOnWait bool

	// when writeGate is set tryWrite reports on writeEntered and blocks
	// until the gate is closed
	writeGate    chan struct{}
	writeEntered chan struct{}
}

func newFakePort() *fakePort {
	return &fakePort{arrived: make(chan struct{}, 1)}
}

func (p *fakePort) feed(data string) {
	p.mu.Lock()
	p.in = append(p.in, data...)
	p.mu.Unlock()
	select {
	case p.arrived <- struct{}{}:
	default:
	}
}

func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.out)
}

func (p *fakePort) tryRead(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.in) == 0 {
		return 0, ErrWouldBlock
	}
	n := copy(b, p.in)
	p.in = p.in[n:]
	return n, nil
}

func (p *fakePort) tryWrite(b []byte) (int, error) {
	if p.writeGate != nil {
		select {
		case p.writeEntered <- struct{}{}:
		default:
		}
		<-p.writeGate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = append(p.out, b...)
	return len(b), nil
}

type fakeSignal struct {
	c chan struct{}
}

func (s *fakeSignal) fire() error {
	select {
	case s.c <- struct{}{}:
	default:
	}
	return nil
}

func (s *fakeSignal) close() error { return nil }

func (p *fakePort) newSignal() (signal, error) {
	return &fakeSignal{c: make(chan struct{}, 1)}, nil
}

func (p *fakePort) waitReady(dir direction, sig signal) error {
	if p.panicOnWait {
		panic("device vanished")
	}
	if dir == dirWrite {
		return nil
	}
	for {
		p.mu.Lock()
		ready := len(p.in) > 0
		p.mu.Unlock()
		if ready {
			return nil
		}
		select {
		case <-p.arrived:
		case <-sig.(*fakeSignal).c:
			return errInterrupted
		}
	}
}

func requireWoken(t *testing.T, w *ChanWaker) {
	t.Helper()
	select {
	case <-w.C:
	case <-time.After(5 * time.Second):
		require.Fail(t, "waker not notified")
	}
}

func requireNotWoken(t *testing.T, w *ChanWaker) {
	t.Helper()
	select {
	case <-w.C:
		require.Fail(t, "unexpected wakeup")
	case <-time.After(20 * time.Millisecond):
	}
}

func newTestBridge(t *testing.T, port bridgePort) *bridgeAdapter {
	b, err := newBridgeAdapter(port)
	require.NoError(t, err)
	t.Cleanup(func() { b.close() })
	return b
}

func TestBridgeReadKeepsSpareBytes(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	w := NewChanWaker()

	_, ready, err := b.pollRead(w, make([]byte, 8))
	require.NoError(t, err)
	require.False(t, ready)

	port.feed("abcdef")
	requireWoken(t, w)

	buf := make([]byte, 4)
	n, ready, err := b.pollRead(w, buf)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, "abcd", string(buf[:n]))

	// the rest is served without another background read
	n, ready, err = b.pollRead(w, buf)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, "ef", string(buf[:n]))

	n, err = b.tryRead(buf)
	require.True(t, IsWouldBlock(err))
	require.Zero(t, n)
}

func TestBridgeWorkerPanicBecomesOsError(t *testing.T) {
	port := newFakePort()
	port.panicOnWait = true
	b := newTestBridge(t, port)
	w := NewChanWaker()

	_, ready, err := b.pollRead(w, make([]byte, 8))
	require.NoError(t, err)
	require.False(t, ready)
	requireWoken(t, w)

	_, ready, err = b.pollRead(w, make([]byte, 8))
	require.True(t, ready)
	requireCode(t, err, OsError)
	require.Contains(t, err.Error(), "device vanished")
}

func TestBridgeLastWakerWins(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	first := NewChanWaker()
	second := NewChanWaker()

	_, ready, _ := b.pollRead(first, make([]byte, 8))
	require.False(t, ready)
	_, ready, _ = b.pollRead(second, make([]byte, 8))
	require.False(t, ready)

	port.feed("x")
	requireWoken(t, second)
	requireNotWoken(t, first)

	buf := make([]byte, 8)
	n, ready, err := b.pollRead(second, buf)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, "x", string(buf[:n]))
}

func TestBridgeCancelReleasesPendingRead(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	w := NewChanWaker()

	_, ready, _ := b.pollRead(w, make([]byte, 8))
	require.False(t, ready)
	b.cancelRead()
	requireNotWoken(t, w)

	// a new read starts over and still gets the data
	port.feed("after")
	buf := make([]byte, 8)
	require.Eventually(t, func() bool {
		n, ready, err := b.pollRead(w, buf)
		return err == nil && ready && string(buf[:n]) == "after"
	}, 5*time.Second, time.Millisecond)
}

func TestBridgeTryReadWhileTransferInFlight(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	w := NewChanWaker()

	_, ready, _ := b.pollRead(w, make([]byte, 8))
	require.False(t, ready)
	_, err := b.tryRead(make([]byte, 8))
	require.ErrorIs(t, err, ErrWouldBlock)

	port.feed("data")
	requireWoken(t, w)
	buf := make([]byte, 8)
	n, err := b.tryRead(buf)
	require.NoError(t, err)
	require.Equal(t, "data", string(buf[:n]))
}

func TestBridgeReadinessThenTryRead(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	w := NewChanWaker()

	ready, err := b.pollReadReady(w)
	require.NoError(t, err)
	require.False(t, ready)

	port.feed("hello")
	requireWoken(t, w)
	ready, err = b.pollReadReady(w)
	require.NoError(t, err)
	require.True(t, ready)

	buf := make([]byte, 16)
	n, err := b.tryRead(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestBridgeWrite(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	w := NewChanWaker()

	data := []byte("payload")
	_, ready, err := b.pollWrite(w, data)
	require.NoError(t, err)
	require.False(t, ready)
	requireWoken(t, w)

	n, ready, err := b.pollWrite(w, data)
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, len(data), n)
	require.Equal(t, "payload", port.written())

	ready, err = b.pollFlush(w)
	require.NoError(t, err)
	require.True(t, ready)
	ready, err = b.pollShutdown(w)
	require.NoError(t, err)
	require.True(t, ready)
}

func TestBridgeCloseWakesAndFails(t *testing.T) {
	port := newFakePort()
	b, err := newBridgeAdapter(port)
	require.NoError(t, err)
	w := NewChanWaker()

	_, ready, _ := b.pollRead(w, make([]byte, 8))
	require.False(t, ready)

	require.NoError(t, b.close())
	requireWoken(t, w)
	require.NoError(t, b.close())

	_, ready, err = b.pollRead(w, make([]byte, 8))
	require.True(t, ready)
	requireCode(t, err, PortClosed)
	_, err = b.tryWrite([]byte("x"))
	requireCode(t, err, PortClosed)
}

func TestBridgeCanceledWriteIsNotReportedForNextWrite(t *testing.T) {
	port := newFakePort()
	port.writeGate = make(chan struct{})
	port.writeEntered = make(chan struct{}, 1)
	b := newTestBridge(t, port)
	w := NewChanWaker()

	_, ready, err := b.pollWrite(w, []byte("old"))
	require.NoError(t, err)
	require.False(t, ready)
	select {
	case <-port.writeEntered:
	case <-time.After(5 * time.Second):
		require.Fail(t, "background write not started")
	}

	// the caller gives up while the worker is inside the write
	b.cancelWrite()
	close(port.writeGate)

	next := []byte("NEWDATA")
	var n int
	require.Eventually(t, func() bool {
		n, ready, err = b.pollWrite(w, next)
		return ready
	}, 5*time.Second, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, len(next), n)
	require.Equal(t, "oldNEWDATA", port.written())
}

func TestBridgeCanceledCompletedWriteIsDropped(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	w := NewChanWaker()

	_, ready, _ := b.pollWrite(w, []byte("old"))
	require.False(t, ready)
	requireWoken(t, w)
	b.cancelWrite()

	n, err := b.tryWrite([]byte("new"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "oldnew", port.written())

	n, ready, err = b.pollWrite(w, []byte("again"))
	require.NoError(t, err)
	require.False(t, ready)
	requireWoken(t, w)
	n, ready, err = b.pollWrite(w, []byte("again"))
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, 5, n)
}

func TestBridgeTryWriteKeepsPendingPollResult(t *testing.T) {
	port := newFakePort()
	b := newTestBridge(t, port)
	w := NewChanWaker()

	_, ready, _ := b.pollWrite(w, []byte("first"))
	require.False(t, ready)
	requireWoken(t, w)

	n, err := b.tryWrite([]byte("xy"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, ready, err = b.pollWrite(w, []byte("first"))
	require.NoError(t, err)
	require.True(t, ready)
	require.Equal(t, 5, n)
	require.Equal(t, "firstxy", port.written())
}
