//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package unixutils

import (
	"time"

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

// Add adds the file descriptors passed as parameter to the FDSet.
// Negative descriptors are ignored.
func (s *FDSet) Add(fds ...int) {
	for _, fd := range fds {
		if fd < 0 {
			continue
		}
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
	return fd >= 0 && r.readable.IsSet(uintptr(fd))
}

// IsWritable test if a file descriptor is ready to be written.
func (r *FDResultSets) IsWritable(fd int) bool {
	return fd >= 0 && r.writeable.IsSet(uintptr(fd))
}

// IsError test if a file descriptor is in error state.
func (r *FDResultSets) IsError(fd int) bool {
	return fd >= 0 && r.errors.IsSet(uintptr(fd))
}

// selectRetries bounds the restarts of a select interrupted by a signal.
const selectRetries = 16

// Select performs a select system call,
// file descriptors in the rd set are tested for read-events,
// file descriptors in the wd set are tested for write-events and
// file descriptors in the er set are tested for error-events.
// The function will block until an event happens or the timeout expires,
// a negative timeout blocks forever. EINTR is retried.
// The function return an FDResultSets that contains all the file descriptor
// that have a pending read/write/error event.
func Select(rd, wr, er *FDSet, timeout time.Duration) (FDResultSets, error) {
	max := -1
	res := FDResultSets{}
	if rd != nil {
		res.readable = rd.set
		max = rd.max
	}
	if wr != nil {
		res.writeable = wr.set
		if wr.max > max {
			max = wr.max
		}
	}
	if er != nil {
		res.errors = er.set
		if er.max > max {
			max = er.max
		}
	}

	var err error
	for i := 0; i < selectRetries; i++ {
		r, w, e := res.readable, res.writeable, res.errors
		err = goselect.Select(max+1, &r, &w, &e, timeout)
		if err != unix.EINTR {
			res.readable, res.writeable, res.errors = r, w, e
			break
		}
	}
	if err != nil {
		return FDResultSets{}, err
	}
	return res, nil
}
