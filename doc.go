//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

/*
Package serial drives serial ports and pseudo terminals without blocking
OS threads.

The canonical import for this library is the following:

	import "github.com/abakum/go-serial-async"

It is possibile to get the list of available serial ports with the
GetPortsList function:

	ports, err := serial.GetPortsList()
	if err != nil {
		log.Fatal(err)
	}
	for _, port := range ports {
		fmt.Printf("Found port: %v\n", port)
	}

The serial port can be opened with the Open function:

	mode := &serial.Mode{
		BaudRate: 115200,
	}
	port, err := serial.Open("/dev/ttyUSB0", mode)
	if err != nil {
		log.Fatal(err)
	}

If mode is nil the port is opened at 9600_N81. The configuration can be
changed at any time with SetMode or with the single parameter setters
(SetBaudRate, SetParity and so on).

The returned Stream implements io.ReadWriteCloser. Read and Write suspend
only the calling goroutine; ReadContext and WriteContext give up when the
context is done, leaving the stream usable:

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := port.ReadContext(ctx, buff)

Code that runs its own scheduling can use the poll interface instead.
PollRead and PollWrite never wait: when the operation cannot proceed they
return ready == false and remember the Waker, which is notified once a
retry makes sense. Only the most recently registered Waker of each
direction is notified. TryRead and TryWrite make a single attempt and
report would-block through IsWouldBlock.

Pair creates two connected pseudo terminal streams, useful for testing
protocols without hardware:

	a, b, err := serial.Pair()

On Linux, macOS, FreeBSD and NetBSD readiness comes from a single epoll or
kqueue reactor shared by all streams. On Windows a background worker
performs the transfers and hands the results back. Building with the
serialbridge tag selects the worker based strategy on Unix as well.

The codec subpackage splits a byte stream into frames.
*/
package serial
