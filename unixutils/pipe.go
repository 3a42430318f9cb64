//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package unixutils

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrPipeClosed is returned by operations on a closed Pipe.
var ErrPipeClosed = errors.New("pipe not opened")

// Pipe represents a unix-pipe
type Pipe struct {
	opened bool
	rd     int
	wr     int
}

// NewPipe creates a new pipe
func NewPipe() (*Pipe, error) {
	fds := []int{0, 0}
	if err := unix.Pipe(fds); err != nil {
		return nil, err
	}
	return &Pipe{
		rd:     fds[0],
		wr:     fds[1],
		opened: true,
	}, nil
}

// NewNonblockingPipe creates a pipe whose ends never block: a full pipe
// drops writes, an empty one returns EAGAIN. It suits wake-up signals.
func NewNonblockingPipe() (*Pipe, error) {
	p, err := NewPipe()
	if err != nil {
		return nil, err
	}
	for _, fd := range []int{p.rd, p.wr} {
		if err := unix.SetNonblock(fd, true); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
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

// Write to the pipe the content of data. Returns the number of bytes written.
func (p *Pipe) Write(data []byte) (int, error) {
	if !p.opened {
		return 0, ErrPipeClosed
	}
	return unix.Write(p.wr, data)
}

// Read from the pipe into the data array. Returns the number of bytes read.
func (p *Pipe) Read(data []byte) (int, error) {
	if !p.opened {
		return 0, ErrPipeClosed
	}
	return unix.Read(p.rd, data)
}

// Signal writes one byte, ignoring a full pipe.
func (p *Pipe) Signal() error {
	_, err := p.Write([]byte{0})
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// Drain empties a non-blocking pipe.
func (p *Pipe) Drain() {
	var buf [64]byte
	for {
		n, err := p.Read(buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close the pipe
func (p *Pipe) Close() error {
	if !p.opened {
		return ErrPipeClosed
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
