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
package native

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrInvalidMode is returned for a stream mode string fopen would reject
	ErrInvalidMode = errors.New("invalid stream mode")

	// ErrNotReadable is recorded when reading from a stream opened write-only
	ErrNotReadable = errors.New("stream not open for reading")

	// ErrNotWritable is recorded when writing to a stream opened read-only
	ErrNotWritable = errors.New("stream not open for writing")
)

// Stream is a buffered stream over an open file. Like a stdio FILE it keeps
// sticky end-of-file and error indicators that only ClearErr resets.
type Stream struct {
	file     *os.File      // Underlying file
	mode     string        // Mode string the stream was opened with
	rd       *bufio.Reader // Read side buffer
	wr       *bufio.Writer // Write side buffer
	readable bool          // Opened for reading
	writable bool          // Opened for writing
	eof      bool          // End-of-file indicator
	err      error         // Error indicator, first error wins
}

// ParseMode converts an fopen style mode string ("r", "w", "a", optionally
// followed by '+', 'b' and, for "w", 'x') into os.OpenFile flags.
func ParseMode(mode string) (int, error) {
	if mode == "" {
		return 0, ErrInvalidMode
	}

	var flag int
	switch mode[0] {
	case 'r':
		flag = os.O_RDONLY
	case 'w':
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case 'a':
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	for _, c := range mode[1:] {
		switch c {
		case '+':
			flag = flag&^(os.O_RDONLY|os.O_WRONLY) | os.O_RDWR
		case 'b':
			// No text/binary distinction
		case 'x':
			if mode[0] != 'w' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
			}
			flag |= os.O_EXCL
		default:
			return 0, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
		}
	}

	return flag, nil
}

// OpenStream opens name as a buffered stream. Errors from the open are
// returned unchanged.
func OpenStream(name string, mode string) (*Stream, error) {
	flag, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(name, flag, StreamPerm)
	if err != nil {
		return nil, err
	}

	access := flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
	return &Stream{
		file:     f,
		mode:     mode,
		rd:       bufio.NewReader(f),
		wr:       bufio.NewWriter(f),
		readable: access == os.O_RDONLY || access == os.O_RDWR,
		writable: access == os.O_WRONLY || access == os.O_RDWR,
	}, nil
}

// setErr records err on the error indicator unless one is already set
func (s *Stream) setErr(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Read reads buffered data. Hitting the end of the file sets the EOF
// indicator, any other failure sets the error indicator.
func (s *Stream) Read(p []byte) (int, error) {
	if !s.readable {
		s.setErr(ErrNotReadable)
		return 0, ErrNotReadable
	}

	// Pending writes must reach the file before it is read back
	if s.wr.Buffered() > 0 {
		if err := s.wr.Flush(); err != nil {
			s.setErr(err)
			return 0, err
		}
	}

	n, err := s.rd.Read(p)
	if err == io.EOF {
		s.eof = true
	} else if err != nil {
		s.setErr(err)
	}
	return n, err
}

// Write buffers p for writing
func (s *Stream) Write(p []byte) (int, error) {
	if !s.writable {
		s.setErr(ErrNotWritable)
		return 0, ErrNotWritable
	}

	// Give back read-ahead so the write lands where the caller left off
	if n := s.rd.Buffered(); n > 0 {
		if _, err := s.file.Seek(-int64(n), io.SeekCurrent); err != nil {
			s.setErr(err)
			return 0, err
		}
		s.rd.Reset(s.file)
	}

	n, err := s.wr.Write(p)
	if err != nil {
		s.setErr(err)
	}
	return n, err
}

// Flush writes any buffered data to the file
func (s *Stream) Flush() error {
	if err := s.wr.Flush(); err != nil {
		s.setErr(err)
		return err
	}
	return nil
}

// EOF reports the end-of-file indicator
func (s *Stream) EOF() bool {
	return s.eof
}

// Err returns the error recorded on the error indicator, nil if it is clear
func (s *Stream) Err() error {
	return s.err
}

// ClearErr resets both the end-of-file and the error indicator
func (s *Stream) ClearErr() {
	s.eof = false
	s.err = nil
}

// Mode returns the mode string the stream was opened with
func (s *Stream) Mode() string {
	return s.mode
}

// Name returns the name the stream was opened with
func (s *Stream) Name() string {
	return s.file.Name()
}

// Fd returns the descriptor underlying the stream
func (s *Stream) Fd() uintptr {
	return s.file.Fd()
}

// Close flushes pending writes and closes the file. The first failure is
// returned, the file is closed either way.
func (s *Stream) Close() error {
	flushErr := s.wr.Flush()
	closeErr := s.file.Close()

	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
