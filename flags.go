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
	"strconv"
	"strings"

	"github.com/wildcatdb/portio/native"
)

// Flag is a bitmask of portable open intents
type Flag uint32

// Open intents
const (
	Read          Flag = 1 << iota // Open for reading
	Write                          // Open for writing
	Create                         // Create the file if it does not exist
	Append                         // Every write goes to the end of the file
	Truncate                       // Truncate the file to zero length on open
	Binary                         // Accepted, has no effect
	Buffered                       // Open through a buffered stream instead of a raw descriptor
	Exclusive                      // Fail if the file exists, only valid with Create
	DeleteOnClose                  // Unlink the path right after a successful open
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{Read, "Read"},
	{Write, "Write"},
	{Create, "Create"},
	{Append, "Append"},
	{Truncate, "Truncate"},
	{Binary, "Binary"},
	{Buffered, "Buffered"},
	{Exclusive, "Exclusive"},
	{DeleteOnClose, "DeleteOnClose"},
}

// String renders the set bits as Read|Write|Create
func (f Flag) String() string {
	if f == 0 {
		return "0"
	}

	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
			f &^= fn.flag
		}
	}

	if f != 0 {
		parts = append(parts, "0x"+strconv.FormatUint(uint64(f), 16))
	}

	return strings.Join(parts, "|")
}

// TranslateFlags converts an intent bitmask into native open flags and the
// equivalent stream mode string. It fails with ErrAccessDenied when neither
// Read nor Write is requested or when Exclusive is given without Create.
// Binary and Buffered do not change the result. Truncate has no stream mode
// counterpart, "w" already truncates and "r+" never does.
func TranslateFlags(flag Flag) (int, string, error) {
	var oflags int
	var mode []byte

	switch {
	case flag&Read != 0 && flag&Write != 0:
		oflags = native.O_RDWR
		mode = []byte("r+")
	case flag&Read != 0:
		oflags = native.O_RDONLY
		mode = []byte("r")
	case flag&Write != 0:
		oflags = native.O_WRONLY
		mode = []byte("w")
	default:
		return 0, "", ErrAccessDenied
	}

	if flag&Create != 0 {
		oflags |= native.O_CREAT
		if flag&Exclusive != 0 {
			oflags |= native.O_EXCL
		}
	}

	if flag&Exclusive != 0 && flag&Create == 0 {
		return 0, "", ErrAccessDenied
	}

	if flag&Append != 0 {
		oflags |= native.O_APPEND
		mode[0] = 'a'
	}

	if flag&Truncate != 0 {
		oflags |= native.O_TRUNC
	}

	return oflags, string(mode), nil
}
