// Package main
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

// Command portio opens a path through a portable file handle and prints
// what the handle looks like as Extended JSON.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/wildcatdb/portio"
	"github.com/wildcatdb/portio/native"
	"github.com/wildcatdb/portio/pool"
)

// readChunk is the size of each positional read while hashing
const readChunk = 64 * 1024

// report is what gets printed for an opened handle
type report struct {
	Path    string `bson:"path"`
	Intent  string `bson:"intent"`
	Stream  string `bson:"streamMode,omitempty"`
	Mode    string `bson:"mode"`
	Fd      int64  `bson:"fd"`
	EOF     bool   `bson:"eof"`
	Deleted bool   `bson:"deletedOnOpen,omitempty"`
	Sum     string `bson:"xxh64,omitempty"`
	Size    int64  `bson:"bytesHashed,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "portio:", err)
		os.Exit(1)
	}
}

// run parses args, opens the path and writes the report to stdout
func run(args []string, stdout, stderr io.Writer) (err error) {
	fset := flag.NewFlagSet("portio", flag.ContinueOnError)
	fset.SetOutput(stderr)

	var (
		read      = fset.Bool("read", false, "open for reading")
		write     = fset.Bool("write", false, "open for writing")
		create    = fset.Bool("create", false, "create the file if it does not exist")
		appendF   = fset.Bool("append", false, "append every write")
		truncate  = fset.Bool("truncate", false, "truncate on open")
		binary    = fset.Bool("binary", false, "binary mode (no effect)")
		buffered  = fset.Bool("buffered", false, "open through a buffered stream")
		excl      = fset.Bool("excl", false, "fail if the file exists (with -create)")
		deleteDOC = fset.Bool("delete", false, "unlink the path right after opening")
		permStr   = fset.String("perm", "", "octal creation mode, OS default when empty")
		sum       = fset.Bool("sum", false, "hash the contents through the extracted descriptor")
		verbose   = fset.Bool("v", false, "stream pool log lines to stderr")
	)

	fset.Usage = func() {
		fmt.Fprintln(stderr, "usage: portio [flags] PATH")
		fset.PrintDefaults()
	}

	if err := fset.Parse(args); err != nil {
		return err
	}

	if fset.NArg() != 1 {
		fset.Usage()
		return errors.New("exactly one path is required")
	}
	path := fset.Arg(0)

	perm, err := parsePerm(*permStr)
	if err != nil {
		return err
	}

	var intent portio.Flag
	for _, b := range []struct {
		set  bool
		flag portio.Flag
	}{
		{*read, portio.Read},
		{*write, portio.Write},
		{*create, portio.Create},
		{*appendF, portio.Append},
		{*truncate, portio.Truncate},
		{*binary, portio.Binary},
		{*buffered, portio.Buffered},
		{*excl, portio.Exclusive},
		{*deleteDOC, portio.DeleteOnClose},
	} {
		if b.set {
			intent |= b.flag
		}
	}

	opts := &pool.Options{}
	var wg sync.WaitGroup
	if *verbose {
		opts.LogChannel = make(chan string, 64)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for line := range opts.LogChannel {
				fmt.Fprintln(stderr, line)
			}
		}()
	}

	p := pool.New(opts)
	defer func() {
		if derr := p.Destroy(); derr != nil && err == nil {
			err = derr
		}
		if opts.LogChannel != nil {
			close(opts.LogChannel)
			wg.Wait()
		}
	}()

	_, streamMode, err := portio.TranslateFlags(intent)
	if err != nil {
		return fmt.Errorf("%s: %w", intent, err)
	}

	f, err := portio.Open(path, intent, perm, p)
	if err != nil {
		return err
	}

	rep, err := describe(f, streamMode, *sum)
	if err != nil {
		return err
	}

	out, err := bson.MarshalExtJSON(rep, false, false)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if _, err := fmt.Fprintln(stdout, string(out)); err != nil {
		return err
	}

	return f.Close()
}

// describe builds the report for an open handle
func describe(f *portio.File, streamMode string, sum bool) (*report, error) {
	fd, err := f.Fd()
	if err != nil {
		return nil, err
	}

	rep := &report{
		Path:    f.Name(),
		Intent:  f.Flag().String(),
		Mode:    f.Mode().String(),
		Fd:      int64(fd),
		EOF:     errors.Is(f.EOF(), portio.EOF),
		Deleted: f.Flag()&portio.DeleteOnClose != 0,
	}

	if f.Mode() == portio.ModeBuffered {
		rep.Stream = streamMode
	}

	if sum {
		digest, n, err := hashFd(fd)
		if err != nil {
			return nil, fmt.Errorf("failed to hash %s: %w", f.Name(), err)
		}
		rep.Sum = fmt.Sprintf("%016x", digest)
		rep.Size = n
		if f.Mode() == portio.ModeUnbuffered {
			f.SetEOF(true)
			rep.EOF = true
		}
	}

	return rep, nil
}

// hashFd hashes everything readable through fd without moving its offset
func hashFd(fd uintptr) (uint64, int64, error) {
	h := xxhash.New()
	buf := make([]byte, readChunk)

	var off int64
	for {
		n, err := native.Pread(fd, buf, off)
		if err != nil {
			return 0, off, err
		}
		if n == 0 {
			return h.Sum64(), off, nil
		}
		_, _ = h.Write(buf[:n])
		off += int64(n)
	}
}

// parsePerm parses an octal mode such as 0644 or 4755
func parsePerm(s string) (portio.Perm, error) {
	if s == "" {
		return portio.PermOSDefault, nil
	}

	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil || v > 07777 {
		return 0, fmt.Errorf("invalid permission %q", s)
	}

	fm := fs.FileMode(v & 0777)
	if v&04000 != 0 {
		fm |= fs.ModeSetuid
	}
	if v&02000 != 0 {
		fm |= fs.ModeSetgid
	}
	if v&01000 != 0 {
		fm |= fs.ModeSticky
	}
	return portio.PermFromFileMode(fm), nil
}
