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
	"errors"
	"io"
	"os"

	"github.com/wildcatdb/portio/pool"
)

var (
	// ErrInvalidArgument is returned when a required handle or slot is missing
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoContext is returned when the pool is missing or already destroyed
	ErrNoContext = errors.New("no pool")

	// ErrAccessDenied is returned for intent combinations that cannot be opened
	ErrAccessDenied = errors.New("access denied")

	// ErrNoFile is returned when a handle holds no native resource
	ErrNoFile = errors.New("no file")

	// ErrOutOfMemory is returned when the pool cannot allocate a handle
	ErrOutOfMemory = errors.New("out of memory")

	// ErrStream wraps the error indicator of a buffered stream
	ErrStream = errors.New("stream error")
)

// EOF is the status reported by (*File).EOF once end of file was reached.
// It is not a failure.
var EOF = io.EOF

// poolErr maps pool allocation failures onto the handle error set
func poolErr(err error) error {
	switch {
	case errors.Is(err, pool.ErrDestroyed):
		return ErrNoContext
	case errors.Is(err, pool.ErrExhausted):
		return ErrOutOfMemory
	}
	return err
}

// pathErr wraps a native failure with the operation and path, keeping the
// platform error reachable through errors.Is and errors.As
func pathErr(op, name string, err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return err
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}
