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

// Pread reads from a specific offset without needing to Seek first.
// Reading at or past the end of the file returns 0 bytes and no error.
func Pread(fd uintptr, data []byte, offset int64) (int, error) {
	var overlapped windows.Overlapped
	overlapped.OffsetHigh = uint32(offset >> 32)
	overlapped.Offset = uint32(offset)

	var bytesRead uint32
	err := windows.ReadFile(windows.Handle(fd), data, &bytesRead, &overlapped)
	if err == windows.ERROR_HANDLE_EOF {
		return 0, nil
	}
	return int(bytesRead), err
}
