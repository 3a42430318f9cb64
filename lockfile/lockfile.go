//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package lockfile implements UUCP style device locks: a file named
// LCK..<device> holding the PID of the owner in HDB format.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrLocked is returned by Lock when another live process owns the device.
var ErrLocked = errors.New("lockfile: device locked by another process")

// ErrNoLockDir is returned when none of the lock directories is writable.
var ErrNoLockDir = errors.New("lockfile: no writable lock directory")

// unreadableGrace is how long a lock file that holds no PID yet is
// considered in the making rather than stale.
const unreadableGrace = 5 * time.Second

// DefaultDirs are the lock directories tried in order.
func DefaultDirs() []string {
	return []string{"/var/lock", "/var/spool/lock", os.TempDir()}
}

// UUCP is a lock oracle backed by lock files. It is safe for concurrent use
// as long as the file system honors O_EXCL.
type UUCP struct {
	dirs []string
	pid  int
}

// NewUUCP returns an oracle using dirs, or DefaultDirs when none is given.
func NewUUCP(dirs ...string) *UUCP {
	if len(dirs) == 0 {
		dirs = DefaultDirs()
	}
	return &UUCP{dirs: dirs, pid: os.Getpid()}
}

// Path returns the lock file used for location.
func (u *UUCP) Path(location string) (string, error) {
	for _, dir := range u.dirs {
		if writable(dir) {
			return filepath.Join(dir, lockName(location)), nil
		}
	}
	return "", ErrNoLockDir
}

func lockName(location string) string {
	return "LCK.." + filepath.Base(location)
}

// Lock creates the lock file for location. A stale file left by a dead
// process is removed first. Locking twice from the same process succeeds.
// The PID is written to a temporary file that is then linked in place, so
// the lock never shows up empty.
func (u *UUCP) Lock(location string) error {
	locked, ours, err := u.IsLocked(location)
	if err != nil {
		return err
	}
	if ours {
		return nil
	}
	if locked {
		return ErrLocked
	}
	path, err := u.Path(location)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "LTMP.")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := fmt.Fprintf(tmp, "%10d\n", u.pid); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Link(tmp.Name(), path); errors.Is(err, os.ErrExist) {
		return ErrLocked
	} else if err != nil {
		return err
	}
	return nil
}

// Unlock removes the lock file if this process owns it.
func (u *UUCP) Unlock(location string) error {
	locked, ours, err := u.IsLocked(location)
	if err != nil || !locked {
		return err
	}
	if !ours {
		return ErrLocked
	}
	path, err := u.Path(location)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// IsLocked reads the lock file of location. A file naming a process that
// no longer exists is stale and gets removed. So does a file that can't be
// parsed, once it is older than unreadableGrace: a younger one may belong
// to a locker that has not written its PID yet.
func (u *UUCP) IsLocked(location string) (bool, bool, error) {
	path, err := u.Path(location)
	if err != nil {
		return false, false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, false, nil
	} else if err != nil {
		return false, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, false, nil
	} else if err != nil {
		return false, false, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil && time.Since(info.ModTime()) < unreadableGrace {
		return true, false, nil
	}
	if err != nil || pid <= 0 || !processAlive(pid) {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, false, err
		}
		return false, false, nil
	}
	return true, pid == u.pid, nil
}
