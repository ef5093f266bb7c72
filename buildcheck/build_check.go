//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package buildcheck is compiled for every supported GOOS to make sure
// the public API stays the same everywhere. It is never run.
package buildcheck

import (
	"context"

	"github.com/abakum/go-serial-async"
	"github.com/abakum/go-serial-async/codec"
	"github.com/abakum/go-serial-async/enumerator"
)

func BuildTest() {
	serial.GetPortsList()
	enumerator.GetDetailedPortsList()
	mode := &serial.Mode{
		BaudRate: 9600,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, _ := serial.Open("", mode)
	port.SetMode(mode)
	buff := make([]byte, 100)
	port.Write(buff)
	port.Read(buff)
	port.ReadContext(context.Background(), buff)
	port.TryRead(buff)
	port.TryWrite(buff)
	port.Readable(context.Background())
	port.Writable(context.Background())
	w := serial.NewChanWaker()
	port.PollRead(w, buff)
	port.PollWrite(w, buff)
	port.PollFlush(w)
	port.PollShutdown(w)
	port.SetDTR(true)
	port.SetRTS(true)
	port.GetModemStatusBits()
	port.SetBreak()
	port.ClearBreak()
	port.Drain()

	framed := codec.NewFramed(port, codec.NewLineCodec(0))
	framed.WriteFrame([]byte("ping"))
	framed.ReadFrame()
	port.Close()
}
