//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package serial

// Exclusive reports whether the stream holds the device in exclusive mode.
func (s *Stream) Exclusive() bool {
	if s.lock() != nil {
		return false
	}
	defer s.unlock()
	return s.port.Exclusive()
}

// SetExclusive toggles exclusive mode: while set, further attempts to open
// the same device fail with PortBusy.
func (s *Stream) SetExclusive(exclusive bool) error {
	return s.configure(func() error { return s.port.SetExclusive(exclusive) })
}
