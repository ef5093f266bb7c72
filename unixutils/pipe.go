//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package unixutils

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Pipe is a non-blocking unix-pipe used as a wakeup signal: one side fires
// it by writing a byte, the other side waits for the read end to become
// readable in a Select call and then drains it.
type Pipe struct {
	opened bool
	rd     int
	wr     int
}

// NewPipe creates a new non-blocking, close-on-exec pipe
func NewPipe() (*Pipe, error) {
	fds := []int{0, 0}
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, err
		}
	}
	return &Pipe{
		rd:     fds[0],
		wr:     fds[1],
		opened: true,
	}, nil
}

// ReadFD returns the file handle for the read side of the pipe.
func (p *Pipe) ReadFD() int {
	if !p.opened {
		return -1
	}
	return p.rd
}

// WriteFD returns the file handle for the write side of the pipe.
func (p *Pipe) WriteFD() int {
	if !p.opened {
		return -1
	}
	return p.wr
}

// Fire makes the read side readable. Firing an already fired pipe is a no-op.
func (p *Pipe) Fire() error {
	if !p.opened {
		return fmt.Errorf("Pipe not opened")
	}
	_, err := unix.Write(p.wr, []byte{1})
	if err == unix.EAGAIN {
		// the pipe is full, so it is already readable
		return nil
	}
	return err
}

// Drain consumes every pending byte so the read side stops being readable.
func (p *Pipe) Drain() error {
	if !p.opened {
		return fmt.Errorf("Pipe not opened")
	}
	var buf [64]byte
	for {
		n, err := unix.Read(p.rd, buf[:])
		if err == unix.EAGAIN || n == 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Close the pipe
func (p *Pipe) Close() error {
	if !p.opened {
		return fmt.Errorf("Pipe not opened")
	}
	err1 := unix.Close(p.rd)
	err2 := unix.Close(p.wr)
	p.opened = false
	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}
	return nil
}
