// Package native
//
// (C) Copyright Alex Gaetano Padula
//
// Licensed under the Mozilla Public License, v. 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build unix

package native

import (
	"golang.org/x/sys/unix"
)

// Native open flags
const (
	O_RDONLY = unix.O_RDONLY
	O_WRONLY = unix.O_WRONLY
	O_RDWR   = unix.O_RDWR
	O_CREAT  = unix.O_CREAT
	O_EXCL   = unix.O_EXCL
	O_APPEND = unix.O_APPEND
	O_TRUNC  = unix.O_TRUNC
)

// Stderr is the standard error descriptor
var Stderr = uintptr(unix.Stderr)

// Open opens a file with the specified name and flags, returning its descriptor.
// The descriptor is close-on-exec.
func Open(name string, flags int, perm uint32) (uintptr, error) {
	fd, err := unix.Open(name, flags|unix.O_CLOEXEC, perm)
	if err != nil {
		return InvalidFd, err
	}
	return uintptr(fd), nil
}

// Close closes a descriptor
func Close(fd uintptr) error {
	return unix.Close(int(fd))
}

// Unlink removes a directory entry. Open descriptors on the file stay valid.
func Unlink(name string) error {
	return unix.Unlink(name)
}
