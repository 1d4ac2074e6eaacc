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

//go:build windows

package native

import (
	"golang.org/x/sys/windows"
)

// Native open flags
const (
	O_RDONLY = windows.O_RDONLY
	O_WRONLY = windows.O_WRONLY
	O_RDWR   = windows.O_RDWR
	O_CREAT  = windows.O_CREAT
	O_EXCL   = windows.O_EXCL
	O_APPEND = windows.O_APPEND
	O_TRUNC  = windows.O_TRUNC
)

// Stderr is the standard error handle
var Stderr = uintptr(windows.Stderr)

// Open maps the POSIX style flags onto CreateFile and returns the handle.
// Files are shared for delete so an open file can be unlinked, which is
// what delete-on-close relies on.
func Open(name string, flags int, perm uint32) (uintptr, error) {
	var access uint32

	switch flags & (O_RDONLY | O_WRONLY | O_RDWR) {
	case O_RDONLY:
		access = windows.GENERIC_READ
	case O_WRONLY:
		access = windows.GENERIC_WRITE
	case O_RDWR:
		access = windows.GENERIC_READ | windows.GENERIC_WRITE
	default:
		access = windows.GENERIC_READ
	}

	if flags&O_APPEND != 0 {
		// Append-only writes, every write lands at the end of the file
		access &^= windows.GENERIC_WRITE
		access |= windows.FILE_APPEND_DATA
	}

	hasCreate := flags&O_CREAT != 0
	hasTrunc := flags&O_TRUNC != 0
	hasExcl := flags&O_EXCL != 0

	var creation uint32
	switch {
	case hasCreate && hasExcl:
		creation = windows.CREATE_NEW
	case hasCreate && hasTrunc:
		creation = windows.CREATE_ALWAYS
	case hasCreate:
		creation = windows.OPEN_ALWAYS
	case hasTrunc:
		creation = windows.TRUNCATE_EXISTING
	default:
		creation = windows.OPEN_EXISTING
	}

	attrs := uint32(windows.FILE_ATTRIBUTE_NORMAL)
	if hasCreate && perm&0200 == 0 {
		attrs = windows.FILE_ATTRIBUTE_READONLY
	}

	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return InvalidFd, err
	}

	handle, err := windows.CreateFile(
		namePtr,
		access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		creation,
		attrs,
		0,
	)
	if err != nil {
		return InvalidFd, err
	}

	return uintptr(handle), nil
}

// Close closes a handle
func Close(fd uintptr) error {
	return windows.CloseHandle(windows.Handle(fd))
}

// Unlink removes a directory entry
func Unlink(name string) error {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}
	return windows.DeleteFile(namePtr)
}
