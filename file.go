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

// Package portio is a portable file handle. A File is either a raw
// descriptor (unbuffered) or a buffered stream, is allocated from a
// pool.Pool and is closed by that pool's teardown unless it was closed
// explicitly first. Handles built around descriptors the caller already
// owns are borrowed and never close them.
package portio

import (
	"errors"
	"fmt"
	"time"

	"github.com/wildcatdb/portio/native"
	"github.com/wildcatdb/portio/pool"
)

// Mode selects which native representation backs a File
type Mode int

const (
	ModeUnbuffered Mode = iota // Raw descriptor
	ModeBuffered               // Buffered stream
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeUnbuffered:
		return "unbuffered"
	case ModeBuffered:
		return "buffered"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// NoTimeout is the timeout of a freshly opened handle
const NoTimeout time.Duration = -1

// InvalidFd is what Fd reports for a handle without a descriptor
const InvalidFd = native.InvalidFd

// ownership decides whether releasing a handle closes its native resource
type ownership int

const (
	owned    ownership = iota // Opened here, closed here
	borrowed                  // Supplied by the caller, never closed here
)

// File is a portable file handle
type File struct {
	pool       *pool.Pool     // Owning pool, never reassigned
	id         int64          // Label for log lines
	mode       Mode           // Which of fd and stream is authoritative
	fd         uintptr        // Raw descriptor, InvalidFd when not open
	stream     *native.Stream // Buffered stream, nil when not open
	name       string         // Path the handle was opened with, empty if none
	flag       Flag           // Intents the handle was opened with
	eof        bool           // End-of-file state of an unbuffered handle
	timeout    time.Duration  // Inert here, for readers and writers built on top
	pipe       bool           // Handle wraps a pipe endpoint
	own        ownership
	registered bool // Cleanup registered with the pool
}

// newFile allocates a zeroed, closed handle from p
func newFile(p *pool.Pool) (*File, error) {
	f, err := pool.Make[File](p)
	if err != nil {
		return nil, poolErr(err)
	}

	f.pool = p
	f.id = p.NextID()
	f.fd = native.InvalidFd
	f.timeout = NoTimeout
	return f, nil
}

// checkPool returns ErrNoContext for a missing or destroyed pool
func checkPool(p *pool.Pool) error {
	if p == nil || p.Destroyed() {
		return ErrNoContext
	}
	return nil
}

// slotFile returns the handle in *slot, allocating one from p if the slot is
// empty. A handle already in the slot must be closed and belong to p.
func slotFile(slot **File, p *pool.Pool) (*File, error) {
	f := *slot
	if f == nil {
		var err error
		if f, err = newFile(p); err != nil {
			return nil, err
		}
		*slot = f
		return f, nil
	}

	if f.pool != p || !f.closed() || f.registered {
		return nil, ErrInvalidArgument
	}
	return f, nil
}

// Open opens name and returns a new handle allocated from p. When the native
// open fails the handle is still returned, closed and at EOF, next to the error.
func Open(name string, flag Flag, perm Perm, p *pool.Pool) (*File, error) {
	var f *File
	err := OpenFile(&f, name, flag, perm, p)
	return f, err
}

// OpenFile opens name into *slot. An empty slot gets a handle allocated from
// p. On success the handle is closed automatically when p is cleared or
// destroyed, unless Close gets to it first.
//
// Intent errors are reported before anything is allocated or opened. A failed
// native open leaves the handle in the slot with no descriptor and its EOF
// state set, and returns the platform error wrapped in an *os.PathError.
func OpenFile(slot **File, name string, flag Flag, perm Perm, p *pool.Pool) error {
	if slot == nil {
		return ErrInvalidArgument
	}

	if err := checkPool(p); err != nil {
		return err
	}

	oflags, streamMode, err := TranslateFlags(flag)
	if err != nil {
		return err
	}

	f, err := slotFile(slot, p)
	if err != nil {
		return err
	}

	f.name, err = p.Strdup(name)
	if err != nil {
		return poolErr(err)
	}

	f.flag = flag
	f.own = owned
	f.fd = native.InvalidFd
	f.stream = nil

	if flag&Buffered != 0 {
		f.mode = ModeBuffered
		f.stream, err = native.OpenStream(name, streamMode)
	} else {
		f.mode = ModeUnbuffered
		f.fd, err = native.Open(name, oflags, perm.Native())
	}

	if err != nil {
		f.fd = native.InvalidFd
		f.stream = nil
		f.eof = true
		f.log(fmt.Sprintf("open %s (%s) failed: %v", name, flag, err))
		return pathErr("open", name, err)
	}

	if flag&DeleteOnClose != 0 {
		// The open handle outlives its directory entry
		if err := native.Unlink(name); err != nil {
			f.log(fmt.Sprintf("unlink %s on open failed: %v", name, err))
		}
	}

	f.timeout = NoTimeout
	f.eof = false
	f.pipe = false

	if err := p.RegisterCleanup(f, f.cleanup, pool.NullCleanup); err != nil {
		// The pool was destroyed underneath us
		_ = f.release()
		return poolErr(err)
	}
	f.registered = true

	f.log(fmt.Sprintf("opened %s (%s) %s", name, flag, f.mode))
	return nil
}

// cleanup is what the pool runs at teardown
func (f *File) cleanup() error {
	f.registered = false
	if err := f.release(); err != nil {
		return fmt.Errorf("file %d: %w", f.id, err)
	}
	return nil
}

// release closes the native resource of an owned handle and neutralizes the
// descriptor fields. A borrowed handle is only neutralized.
func (f *File) release() error {
	if f.own == borrowed {
		f.fd = native.InvalidFd
		f.stream = nil
		return nil
	}

	var err error
	switch {
	case f.stream != nil:
		err = f.stream.Close()
	case f.fd != native.InvalidFd:
		err = native.Close(f.fd)
	default:
		return nil
	}

	if err != nil {
		return pathErr("close", f.name, err)
	}

	f.fd = native.InvalidFd
	f.stream = nil
	return nil
}

// closed reports whether the handle holds no native resource
func (f *File) closed() bool {
	return f.fd == native.InvalidFd && f.stream == nil
}

// Close releases the native resource and unregisters the pool cleanup.
// Closing a closed handle does nothing. If the native close fails the error
// is returned and the cleanup stays registered, the handle must not be used
// afterwards.
func (f *File) Close() error {
	if f == nil {
		return ErrInvalidArgument
	}

	if f.closed() {
		return nil
	}

	if err := f.release(); err != nil {
		f.log(fmt.Sprintf("close failed: %v", err))
		return err
	}

	if f.registered {
		f.pool.KillCleanup(f)
		f.registered = false
	}

	f.log("closed")
	return nil
}

// Remove unlinks name. If the file is open somewhere its storage is reclaimed
// once the last handle on it is closed.
func Remove(name string, p *pool.Pool) error {
	if err := checkPool(p); err != nil {
		return err
	}

	if err := native.Unlink(name); err != nil {
		return pathErr("remove", name, err)
	}

	p.Log(fmt.Sprintf("removed %s", name))
	return nil
}

// EOF returns EOF once the end of the file has been reached, nil otherwise.
// A buffered handle reports its stream's indicator. An unbuffered handle
// reports the state set by SetEOF or by a failed open.
func (f *File) EOF() error {
	if f == nil {
		return ErrInvalidArgument
	}

	if f.mode == ModeBuffered && f.stream != nil {
		if f.stream.EOF() {
			return EOF
		}
		return nil
	}

	if f.eof {
		return EOF
	}
	return nil
}

// SetEOF records the end-of-file state of an unbuffered handle. Readers set
// it when a read returns zero bytes.
func (f *File) SetEOF(eof bool) {
	f.eof = eof
}

// Err reports the error indicator of a buffered handle as an error wrapping
// ErrStream and the recorded failure. Unbuffered handles keep no such
// indicator and get errors.ErrUnsupported.
func (f *File) Err() error {
	if f == nil {
		return ErrInvalidArgument
	}

	if f.mode != ModeBuffered || f.stream == nil {
		return errors.ErrUnsupported
	}

	if err := f.stream.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStream, err)
	}
	return nil
}

// Name returns the path the handle was opened with
func (f *File) Name() string {
	return f.name
}

// Mode returns the handle's I/O mode
func (f *File) Mode() Mode {
	return f.mode
}

// Flag returns the intents the handle was opened with
func (f *File) Flag() Flag {
	return f.flag
}

// Pool returns the pool that owns the handle
func (f *File) Pool() *pool.Pool {
	return f.pool
}

// ID returns the handle's identifier
func (f *File) ID() int64 {
	return f.id
}

// Stream returns the buffered stream of a buffered handle, nil otherwise
func (f *File) Stream() *native.Stream {
	return f.stream
}

// Timeout returns the blocking timeout, NoTimeout by default
func (f *File) Timeout() time.Duration {
	return f.timeout
}

// SetTimeout sets the blocking timeout
func (f *File) SetTimeout(d time.Duration) {
	f.timeout = d
}

// IsPipe reports whether the handle wraps a pipe endpoint
func (f *File) IsPipe() bool {
	return f.pipe
}

// SetPipe marks the handle as wrapping a pipe endpoint
func (f *File) SetPipe(pipe bool) {
	f.pipe = pipe
}

// Borrowed reports whether the handle wraps a descriptor it does not own
func (f *File) Borrowed() bool {
	return f.own == borrowed
}

// log logs a message through the owning pool
func (f *File) log(msg string) {
	if f.pool != nil {
		f.pool.Log(fmt.Sprintf("file %d: %s", f.id, msg))
	}
}
