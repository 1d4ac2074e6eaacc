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

// Pread reads from a specific offset without moving the descriptor's file offset
func Pread(fd uintptr, data []byte, offset int64) (int, error) {
	return unix.Pread(int(fd), data, offset)
}
