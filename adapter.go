//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "errors"

type direction int

const (
	dirRead direction = iota
	dirWrite
)

func (d direction) String() string {
	if d == dirRead {
		return "read"
	}
	return "write"
}

// adapter is the capability set every platform strategy provides on top
// of a native port. The concrete strategy is chosen at build time through
// the platformAdapter alias, so Stream never dispatches through this
// interface; it only documents and checks the contract.
//
// Poll methods never block. They return ready == false after storing w as
// the interest of their direction, replacing any earlier unresolved one.
type adapter interface {
	pollRead(w Waker, p []byte) (n int, ready bool, err error)
	pollWrite(w Waker, p []byte) (n int, ready bool, err error)
	pollReadReady(w Waker) (ready bool, err error)
	pollWriteReady(w Waker) (ready bool, err error)
	pollFlush(w Waker) (ready bool, err error)
	pollShutdown(w Waker) (ready bool, err error)

	tryRead(p []byte) (int, error)
	tryWrite(p []byte) (int, error)

	cancelRead()
	cancelWrite()
	close() error
}

var (
	_ adapter = (*bridgeAdapter)(nil)

	// errInterrupted is returned by waitReady when its signal fires.
	errInterrupted = errors.New("serial: wait interrupted")
)
