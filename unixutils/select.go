//
// Copyright 2014-2024 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || freebsd || netbsd

package unixutils

import (
	"time"
	"unsafe"

	"github.com/creack/goselect"
	"golang.org/x/sys/unix"
)

// FDSet is a set of file descriptors suitable for a select call
type FDSet struct {
	set goselect.FDSet
	max int
}

// NewFDSet creates a set of file descriptors suitable for a Select call.
func NewFDSet(fds ...int) *FDSet {
	s := &FDSet{max: -1}
	s.Add(fds...)
	return s
}

// fdSetSize is the number of descriptors an FDSet can hold.
const fdSetSize = int(unsafe.Sizeof(goselect.FDSet{})) * 8

// CanSelect reports whether fd can be added to an FDSet.
func CanSelect(fd int) bool {
	return fd >= 0 && fd < fdSetSize
}

// Add adds the file descriptors passed as parameter to the FDSet.
// Descriptors for which CanSelect is false make Add panic.
func (s *FDSet) Add(fds ...int) {
	for _, fd := range fds {
		s.set.Set(uintptr(fd))
		if fd > s.max {
			s.max = fd
		}
	}
}

// FDResultSets contains the result of a Select operation.
type FDResultSets struct {
	readable  goselect.FDSet
	writeable goselect.FDSet
	errors    goselect.FDSet
}

// IsReadable test if a file descriptor is ready to be read.
func (r *FDResultSets) IsReadable(fd int) bool {
	return r.readable.IsSet(uintptr(fd))
}

// IsWritable test if a file descriptor is ready to be written.
func (r *FDResultSets) IsWritable(fd int) bool {
	return r.writeable.IsSet(uintptr(fd))
}

// IsError test if a file descriptor is in error state.
func (r *FDResultSets) IsError(fd int) bool {
	return r.errors.IsSet(uintptr(fd))
}

// Select performs a select system call,
// file descriptors in the rd set are tested for read-events,
// file descriptors in the wd set are tested for write-events and
// file descriptors in the er set are tested for error-events.
// The function will block until an event happens or the timeout expires,
// a negative timeout blocks forever. Interrupted system calls are
// restarted. The function return an FDResultSets that contains all the
// file descriptor that have a pending read/write/error event.
func Select(rd, wr, er *FDSet, timeout time.Duration) (*FDResultSets, error) {
	max := -1
	res := &FDResultSets{}
	if rd != nil && rd.max > max {
		max = rd.max
	}
	if wr != nil && wr.max > max {
		max = wr.max
	}
	if er != nil && er.max > max {
		max = er.max
	}
	for {
		var r, w, e *goselect.FDSet
		if rd != nil {
			res.readable = rd.set
			r = &res.readable
		}
		if wr != nil {
			res.writeable = wr.set
			w = &res.writeable
		}
		if er != nil {
			res.errors = er.set
			e = &res.errors
		}
		err := goselect.Select(max+1, r, w, e, timeout)
		if err == unix.EINTR {
			continue
		}
		return res, err
	}
}
