//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

import (
	"slices"
	"sync"
)

// listeners is a registration list. Emission works on a copy, so a
// listener may register or unregister others, itself included.
type listeners[F any] struct {
	mu     sync.Mutex
	nextID int
	ids    []int
	funcs  []F
}

func (l *listeners[F]) add(f F) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.ids = append(l.ids, id)
	l.funcs = append(l.funcs, f)

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *listeners[F]) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := slices.Index(l.ids, id); i >= 0 {
		l.ids = slices.Delete(l.ids, i, i+1)
		l.funcs = slices.Delete(l.funcs, i, i+1)
	}
}

func (l *listeners[F]) snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.funcs)
}

type portEvents struct {
	dataReady   listeners[func()]
	dataFlushed listeners[func(n int64)]
	errors      listeners[func(code PortErrorCode)]
}

func (e *portEvents) emitDataReady() {
	for _, f := range e.dataReady.snapshot() {
		f()
	}
}

func (e *portEvents) emitDataFlushed(n int64) {
	for _, f := range e.dataFlushed.snapshot() {
		f(n)
	}
}

func (e *portEvents) emitError(code PortErrorCode) {
	for _, f := range e.errors.snapshot() {
		f(code)
	}
}

// OnDataReady registers f to be called when new data entered the read
// buffer. The returned function unregisters it.
//
// Listeners run without any lock held: they may call every method of the
// port, Close and the blocking waits included.
func (p *Port) OnDataReady(f func()) func() {
	return p.events.dataReady.add(f)
}

// OnDataFlushed registers f to be called with the number of bytes moved
// from the write buffer to the device.
func (p *Port) OnDataFlushed(f func(n int64)) func() {
	return p.events.dataFlushed.add(f)
}

// OnError registers f to be called every time an operation fails.
func (p *Port) OnError(f func(code PortErrorCode)) func() {
	return p.events.errors.add(f)
}
