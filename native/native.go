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

// Package native holds the platform primitives the portable file layer is
// built on: raw descriptor open/close/unlink, positional reads and a
// stdio-like buffered stream. Errors are returned exactly as the platform
// reports them.
package native

// InvalidFd marks a descriptor slot that holds nothing (-1 as a uintptr)
const InvalidFd = ^uintptr(0)

// DefaultPerm is the creation mode used when the caller asks for the native
// default. The process umask still applies.
const DefaultPerm = uint32(0777)

// StreamPerm is the creation mode of files created through OpenStream, as fopen does
const StreamPerm = 0666
