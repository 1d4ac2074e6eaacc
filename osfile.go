// Package portio
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
package portio

import (
	"fmt"

	"github.com/wildcatdb/portio/native"
	"github.com/wildcatdb/portio/pool"
)

// Fd returns the native descriptor behind the handle, the stream's descriptor
// for a buffered handle. The handle keeps ownership, so the caller must not
// close a descriptor taken from an owned handle.
func (f *File) Fd() (uintptr, error) {
	if f == nil {
		return native.InvalidFd, ErrNoFile
	}

	if f.stream != nil {
		return f.stream.Fd(), nil
	}

	if f.fd == native.InvalidFd {
		return native.InvalidFd, ErrNoFile
	}
	return f.fd, nil
}

// PutOSFile wraps a descriptor the caller owns into *slot, allocating a
// handle from p if the slot is empty. The handle is unbuffered and borrowed:
// it is not registered with the pool and neither Close nor pool teardown
// closes fd.
func PutOSFile(slot **File, fd uintptr, p *pool.Pool) error {
	if slot == nil || fd == native.InvalidFd {
		return ErrInvalidArgument
	}

	if err := checkPool(p); err != nil {
		return err
	}

	f, err := slotFile(slot, p)
	if err != nil {
		return err
	}

	f.mode = ModeUnbuffered
	f.own = borrowed
	f.fd = fd
	f.stream = nil
	f.eof = false
	f.timeout = NoTimeout

	f.log(fmt.Sprintf("wrapped descriptor %d", fd))
	return nil
}

// NewFromFd returns a new borrowed handle around fd allocated from p
func NewFromFd(fd uintptr, p *pool.Pool) (*File, error) {
	var f *File
	if err := PutOSFile(&f, fd, p); err != nil {
		return nil, err
	}
	return f, nil
}

// OpenStderr stores a fresh handle on the standard error descriptor in
// *slot, replacing whatever the slot held. Standard error is never closed
// through it.
func OpenStderr(slot **File, p *pool.Pool) error {
	if slot == nil {
		return ErrInvalidArgument
	}

	if err := checkPool(p); err != nil {
		return err
	}

	f, err := newFile(p)
	if err != nil {
		return err
	}

	f.mode = ModeUnbuffered
	f.own = borrowed
	f.fd = native.Stderr

	*slot = f
	return nil
}
