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
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildcatdb/portio/native"
	"github.com/wildcatdb/portio/pool"
)

func newPool(t *testing.T) *pool.Pool {
	t.Helper()
	p := pool.New(nil)
	t.Cleanup(func() { _ = p.Destroy() })
	return p
}

func TestOpenCreatesUnbufferedHandle(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "out.txt")

	f, err := Open(path, Write|Create|Truncate, UserRead|UserWrite, p)
	require.NoError(t, err)
	require.NotNil(t, f)

	assert.Equal(t, ModeUnbuffered, f.Mode())
	assert.Equal(t, path, f.Name())
	assert.Equal(t, Write|Create|Truncate, f.Flag())
	assert.Same(t, p, f.Pool())
	assert.Equal(t, NoTimeout, f.Timeout())
	assert.False(t, f.IsPipe())
	assert.False(t, f.Borrowed())
	assert.NoError(t, f.EOF())

	fd, err := f.Fd()
	require.NoError(t, err)
	assert.NotEqual(t, InvalidFd, fd)
	assert.Nil(t, f.Stream(), "an open handle holds a descriptor or a stream, never both")
	assert.Equal(t, 1, p.Cleanups())

	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	assert.Equal(t, 0, p.Cleanups())
}

func TestOpenBufferedHandle(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "buffered.txt")

	w, err := Open(path, Write|Create|Buffered, PermOSDefault, p)
	require.NoError(t, err)
	assert.Equal(t, ModeBuffered, w.Mode())
	require.NotNil(t, w.Stream())
	assert.Equal(t, "w", w.Stream().Mode())
	assert.Equal(t, InvalidFd, w.fd, "an open handle holds a descriptor or a stream, never both")

	fd, err := w.Fd()
	require.NoError(t, err)
	assert.NotEqual(t, InvalidFd, fd)

	_, err = w.Stream().Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Nil(t, w.Stream())

	r, err := Open(path, Read|Buffered, PermOSDefault, p)
	require.NoError(t, err)
	assert.NoError(t, r.EOF())
	assert.NoError(t, r.Err())

	data, err := io.ReadAll(r.Stream())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, EOF, r.EOF())

	_, err = r.Stream().Write([]byte("nope"))
	require.Error(t, err)

	err = r.Err()
	assert.ErrorIs(t, err, ErrStream)
	assert.ErrorIs(t, err, native.ErrNotWritable)

	r.Stream().ClearErr()
	assert.NoError(t, r.Err())
	assert.NoError(t, r.EOF())
}

func TestOpenBufferedAppend(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0600))

	f, err := Open(path, Write|Append|Buffered, PermOSDefault, p)
	require.NoError(t, err)
	assert.Equal(t, "a", f.Stream().Mode())

	_, err = f.Stream().Write([]byte("two\n"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestOpenArgumentErrors(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "x")

	assert.ErrorIs(t, OpenFile(nil, path, Read, PermOSDefault, p), ErrInvalidArgument)

	var f *File
	assert.ErrorIs(t, OpenFile(&f, path, Read, PermOSDefault, nil), ErrNoContext)
	assert.Nil(t, f)

	dead := pool.New(nil)
	require.NoError(t, dead.Destroy())
	assert.ErrorIs(t, OpenFile(&f, path, Read, PermOSDefault, dead), ErrNoContext)
	assert.Nil(t, f)
}

func TestOpenAccessDeniedBeforeAnyFilesystemCall(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "x")

	var f *File
	err := OpenFile(&f, path, Create|Exclusive, PermOSDefault, p)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Nil(t, f, "nothing is allocated for a denied open")
	assert.Equal(t, int64(0), p.BytesAllocated())

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "no file may be created")

	_, err = Open(path, Read|Exclusive, PermOSDefault, p)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestOpenNativeErrorPassthrough(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "missing")

	f, err := Open(path, Read, PermOSDefault, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var pe *os.PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "open", pe.Op)
	assert.Equal(t, path, pe.Path)

	require.NotNil(t, f, "the handle stays in the slot")
	assert.Equal(t, EOF, f.EOF())
	_, err = f.Fd()
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Equal(t, 0, p.Cleanups(), "failed opens register nothing")
	assert.NoError(t, f.Close())

	_, err = Open(path, Read|Buffered, PermOSDefault, p)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	existing := filepath.Join(t.TempDir(), "existing")
	require.NoError(t, os.WriteFile(existing, nil, 0600))
	_, err = Open(existing, Write|Create|Exclusive, UserRead|UserWrite, p)
	assert.True(t, errors.Is(err, fs.ErrExist))
}

func TestOpenOutOfMemory(t *testing.T) {
	p := pool.New(&pool.Options{MaxBytes: 1})
	defer p.Destroy()

	path := filepath.Join(t.TempDir(), "x")
	_, err := Open(path, Write|Create, PermOSDefault, p)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestCloseIsIdempotent(t *testing.T) {
	p := pool.New(nil)
	path := filepath.Join(t.TempDir(), "twice")

	f, err := Open(path, Read|Write|Create, UserRead|UserWrite, p)
	require.NoError(t, err)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err = f.Fd()
	assert.ErrorIs(t, err, ErrNoFile)

	var nilFile *File
	assert.ErrorIs(t, nilFile.Close(), ErrInvalidArgument)
	assert.ErrorIs(t, nilFile.EOF(), ErrInvalidArgument)
	assert.ErrorIs(t, nilFile.Err(), ErrInvalidArgument)

	// The killed cleanup must not run again at teardown
	assert.Equal(t, 0, p.Cleanups())
	require.NoError(t, p.Destroy())
}

func TestPoolTeardownClosesHandles(t *testing.T) {
	p := pool.New(nil)
	dir := t.TempDir()

	raw, err := Open(filepath.Join(dir, "raw"), Write|Create, UserRead|UserWrite, p)
	require.NoError(t, err)
	buffered, err := Open(filepath.Join(dir, "buffered"), Write|Create|Buffered, PermOSDefault, p)
	require.NoError(t, err)
	early, err := Open(filepath.Join(dir, "early"), Write|Create, UserRead|UserWrite, p)
	require.NoError(t, err)
	require.NoError(t, early.Close())

	assert.Equal(t, 2, p.Cleanups())
	require.NoError(t, p.Destroy())

	for _, f := range []*File{raw, buffered, early} {
		assert.True(t, f.closed())
		assert.False(t, f.registered)
		_, err := f.Fd()
		assert.ErrorIs(t, err, ErrNoFile)
		assert.NoError(t, f.Close(), "closing after teardown is a no-op")
	}
}

func TestSubPoolTeardownClosesHandles(t *testing.T) {
	parent := newPool(t)
	child, err := parent.NewSubPool()
	require.NoError(t, err)

	f, err := Open(filepath.Join(t.TempDir(), "child"), Write|Create, UserRead|UserWrite, child)
	require.NoError(t, err)

	require.NoError(t, parent.Clear())
	assert.True(t, f.closed())
}

func TestSlotReuse(t *testing.T) {
	p := newPool(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	var f *File
	require.NoError(t, OpenFile(&f, a, Write|Create, UserRead|UserWrite, p))
	first := f

	assert.ErrorIs(t, OpenFile(&f, b, Write|Create, UserRead|UserWrite, p), ErrInvalidArgument, "an open handle cannot be reused")

	other := newPool(t)
	require.NoError(t, f.Close())
	assert.ErrorIs(t, OpenFile(&f, b, Write|Create, UserRead|UserWrite, other), ErrInvalidArgument, "the owning pool never changes")

	require.NoError(t, OpenFile(&f, b, Write|Create, UserRead|UserWrite, p))
	assert.Same(t, first, f)
	assert.Equal(t, b, f.Name())
	assert.Equal(t, 1, p.Cleanups())
	require.NoError(t, f.Close())
}

func TestSetEOF(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "eof")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	f, err := Open(path, Read, PermOSDefault, p)
	require.NoError(t, err)
	defer f.Close()

	assert.NoError(t, f.EOF())
	f.SetEOF(true)
	assert.Equal(t, EOF, f.EOF())
	assert.ErrorIs(t, f.EOF(), io.EOF)
	f.SetEOF(false)
	assert.NoError(t, f.EOF())
}

func TestErrUnsupportedOnUnbuffered(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "raw")

	f, err := Open(path, Write|Create, UserRead|UserWrite, p)
	require.NoError(t, err)
	defer f.Close()

	assert.ErrorIs(t, f.Err(), errors.ErrUnsupported)
}

func TestTimeoutAndPipeState(t *testing.T) {
	p := newPool(t)

	f, err := Open(filepath.Join(t.TempDir(), "state"), Write|Create, UserRead|UserWrite, p)
	require.NoError(t, err)
	defer f.Close()

	f.SetTimeout(0)
	f.SetPipe(true)
	assert.Equal(t, int64(0), int64(f.Timeout()))
	assert.True(t, f.IsPipe())
}

func TestDeleteOnClose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory entries of open files are removed lazily on windows")
	}

	p := newPool(t)
	path := filepath.Join(t.TempDir(), "doc")
	require.NoError(t, os.WriteFile(path, []byte("shared contents"), 0600))

	first, err := Open(path, Read, PermOSDefault, p)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	second, err := Open(path, Read|DeleteOnClose, PermOSDefault, p)
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "the entry is gone right after the open")

	for _, f := range []*File{first, second} {
		fd, err := f.Fd()
		require.NoError(t, err)

		buf := make([]byte, 64)
		n, err := native.Pread(fd, buf, 0)
		require.NoError(t, err)
		assert.Equal(t, "shared contents", string(buf[:n]))
	}

	require.NoError(t, first.Close())

	fd, err := second.Fd()
	require.NoError(t, err)
	buf := make([]byte, 6)
	n, err := native.Pread(fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(buf[:n]))

	require.NoError(t, second.Close())
}

func TestRemove(t *testing.T) {
	p := newPool(t)
	path := filepath.Join(t.TempDir(), "victim")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	assert.ErrorIs(t, Remove(path, nil), ErrNoContext)

	require.NoError(t, Remove(path, p))
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	err = Remove(path, p)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	var pe *os.PathError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "remove", pe.Op)
}

func TestFileLogsThroughPool(t *testing.T) {
	logs := make(chan string, 100)
	p := pool.New(&pool.Options{LogChannel: logs})

	f, err := Open(filepath.Join(t.TempDir(), "logged"), Write|Create, UserRead|UserWrite, p)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, p.Destroy())
	close(logs)

	prefix := fmt.Sprintf("pool %d: file %d: ", p.ID(), f.ID())

	var opened, closed bool
	for line := range logs {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		opened = opened || strings.Contains(line, "opened")
		closed = closed || strings.HasSuffix(line, "closed")
	}

	assert.True(t, opened)
	assert.True(t, closed)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "unbuffered", ModeUnbuffered.String())
	assert.Equal(t, "buffered", ModeBuffered.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
