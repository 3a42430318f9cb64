//
// Copyright 2014-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

//go:build unix

package lockfile

import "golang.org/x/sys/unix"

func processAlive(pid int) bool {
	// EPERM means the process exists but belongs to someone else
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

func writable(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}
