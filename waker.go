//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import "sync"

// Waker is notified when an operation that returned "not ready" from one of
// the Poll methods may now make progress. Wake may be called from any
// goroutine and must not block.
type Waker interface {
	Wake()
}

// WakerFunc adapts an ordinary function to the Waker interface.
type WakerFunc func()

// Wake calls f()
func (f WakerFunc) Wake() { f() }

// ChanWaker is a Waker that signals a channel. Wakeups that arrive while a
// previous one is still unconsumed are coalesced.
type ChanWaker struct {
	C chan struct{}
}

// NewChanWaker returns a ready to use ChanWaker
func NewChanWaker() *ChanWaker {
	return &ChanWaker{C: make(chan struct{}, 1)}
}

// Wake signals w.C without blocking
func (w *ChanWaker) Wake() {
	select {
	case w.C <- struct{}{}:
	default:
	}
}

// wakerCell holds the interest registered by the most recent poll in one
// direction. Storing a new waker replaces the old one.
type wakerCell struct {
	mu    sync.Mutex
	waker Waker
}

func (c *wakerCell) set(w Waker) {
	c.mu.Lock()
	c.waker = w
	c.mu.Unlock()
}

func (c *wakerCell) clear() {
	c.set(nil)
}

// wake notifies and forgets the stored waker, if any.
func (c *wakerCell) wake() {
	c.mu.Lock()
	w := c.waker
	c.waker = nil
	c.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}
