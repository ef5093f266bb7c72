//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package serial

import (
	"testing"

	"github.com/abakum/go-serial-async/unixutils"
	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// openBridgedPty wraps the slave side of a new pty with a bridgeAdapter,
// whatever adapter the build selected for streams.
func openBridgedPty(t *testing.T) (*bridgeAdapter, func(string)) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})
	port, err := nativeOpen(slave.Name(), &Mode{BaudRate: 9600})
	require.NoError(t, err)
	b, err := newBridgeAdapter(port)
	require.NoError(t, err)
	t.Cleanup(func() {
		b.close()
		port.close()
	})
	send := func(s string) {
		_, err := master.Write([]byte(s))
		require.NoError(t, err)
	}
	return b, send
}

func TestBridgeOverPtyRead(t *testing.T) {
	b, send := openBridgedPty(t)
	w := NewChanWaker()
	buf := make([]byte, 16)

	_, ready, err := b.pollRead(w, buf)
	require.NoError(t, err)
	require.False(t, ready)

	send("hello")
	var got []byte
	for len(got) < 5 {
		requireWoken(t, w)
		n, ready, err := b.pollRead(w, buf)
		require.NoError(t, err)
		if ready {
			got = append(got, buf[:n]...)
		}
	}
	require.Equal(t, "hello", string(got))
}

func TestBridgeOverPtyCancelInterruptsSelect(t *testing.T) {
	b, send := openBridgedPty(t)
	w := NewChanWaker()

	ready, err := b.pollReadReady(w)
	require.NoError(t, err)
	require.False(t, ready)

	// the background select(2) must be released through the signal pipe
	b.cancelRead()
	requireNotWoken(t, w)

	send("x")
	for {
		ready, err := b.pollReadReady(w)
		require.NoError(t, err)
		if ready {
			break
		}
		requireWoken(t, w)
	}
	buf := make([]byte, 4)
	n, err := b.tryRead(buf)
	require.NoError(t, err)
	require.Equal(t, "x", string(buf[:n]))
}

func TestBridgeOverPtyCloseJoinsWorkers(t *testing.T) {
	b, _ := openBridgedPty(t)
	w := NewChanWaker()
	_, ready, _ := b.pollRead(w, make([]byte, 4))
	require.False(t, ready)
	b.pollWriteReady(w)

	require.NoError(t, b.close())
	requireWoken(t, w)
}

func TestBridgeRejectsDescriptorOutOfSelectRange(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		master.Close()
		slave.Close()
	})

	high := 1
	for unixutils.CanSelect(high) {
		high *= 2
	}
	fd, err := unix.FcntlInt(slave.Fd(), unix.F_DUPFD_CLOEXEC, high)
	if err != nil {
		t.Skipf("can't get a descriptor above %d: %v", high, err)
	}
	t.Cleanup(func() { unix.Close(fd) })

	_, err = newBridgeAdapter(&unixPort{handle: fd})
	requireCode(t, err, OsError)
	require.Contains(t, err.Error(), "select(2)")
}
