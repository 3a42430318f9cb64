//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package serial

// LockOracle grants exclusive ownership of a device across processes.
// The lockfile package provides the UUCP implementation used by default
// on POSIX systems.
type LockOracle interface {
	Lock(location string) error
	Unlock(location string) error
	// IsLocked reports whether some process holds the lock, and whether
	// that process is this one.
	IsLocked(location string) (locked, ownedByUs bool, err error)
}
