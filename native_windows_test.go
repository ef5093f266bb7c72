//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestPort(t *testing.T) *Stream {
	ports, err := GetPortsList()
	if err != nil || len(ports) == 0 {
		t.SkipNow()
	}

	mode := Mode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
	port, err := Open(ports[0], &mode)
	if err != nil {
		// the first port may be in use by something else
		t.Skipf("cannot open %s: %v", ports[0], err)
	}
	// prevent port from being busy in other tests
	t.Cleanup(func() {
		port.Close()
		time.Sleep(time.Millisecond)
	})
	return port
}

func TestWindowsOpenClose(t *testing.T) {
	port := openTestPort(t)
	require.Equal(t, "bridge", platformStrategy)
	baud, err := port.BaudRate()
	require.NoError(t, err)
	require.Equal(t, 115200, baud)
	require.NoError(t, port.Close())
	require.NoError(t, port.Close())
}

func TestWindowsCloseStopsPendingRead(t *testing.T) {
	port := openTestPort(t)

	done := make(chan error, 1)
	go func() {
		_, err := port.ReadContext(context.Background(), make([]byte, 100))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, port.Close())

	select {
	case err := <-done:
		requireCode(t, err, PortClosed)
	case <-time.After(5 * time.Second):
		require.Fail(t, "expected reading to be done")
	}
}

func TestWindowsReadCanceled(t *testing.T) {
	port := openTestPort(t)

	readCtx, readCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer readCancel()
	_, err := port.ReadContext(readCtx, make([]byte, 100))
	requireCode(t, err, ReadCanceled)
}
