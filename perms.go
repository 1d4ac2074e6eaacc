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
	"io/fs"

	"github.com/wildcatdb/portio/native"
)

// Perm is a set of portable permission bits
type Perm uint32

// Permission bits
const (
	UserRead   Perm = 0x0400
	UserWrite  Perm = 0x0200
	UserExec   Perm = 0x0100
	GroupRead  Perm = 0x0040
	GroupWrite Perm = 0x0020
	GroupExec  Perm = 0x0010
	WorldRead  Perm = 0x0004
	WorldWrite Perm = 0x0002
	WorldExec  Perm = 0x0001

	SetUID Perm = 0x8000
	SetGID Perm = 0x4000
	Sticky Perm = 0x2000

	// PermOSDefault asks for the platform default creation mode. It is a bit
	// of its own so it can never be confused with "no permissions".
	PermOSDefault Perm = 1 << 31
)

// permBits pairs each portable bit with its native mode bit
var permBits = []struct {
	perm   Perm
	native uint32
}{
	{UserRead, 0400}, {UserWrite, 0200}, {UserExec, 0100},
	{GroupRead, 0040}, {GroupWrite, 0020}, {GroupExec, 0010},
	{WorldRead, 0004}, {WorldWrite, 0002}, {WorldExec, 0001},
	{SetUID, 04000}, {SetGID, 02000}, {Sticky, 01000},
}

// Native returns the mode bits handed to the native open call
func (p Perm) Native() uint32 {
	if p&PermOSDefault != 0 {
		return native.DefaultPerm
	}

	var mode uint32
	for _, b := range permBits {
		if p&b.perm != 0 {
			mode |= b.native
		}
	}
	return mode
}

// FileMode returns p as an fs.FileMode
func (p Perm) FileMode() fs.FileMode {
	mode := p.Native()
	fm := fs.FileMode(mode & 0777)
	if mode&04000 != 0 {
		fm |= fs.ModeSetuid
	}
	if mode&02000 != 0 {
		fm |= fs.ModeSetgid
	}
	if mode&01000 != 0 {
		fm |= fs.ModeSticky
	}
	return fm
}

// PermFromFileMode converts an fs.FileMode into portable permission bits
func PermFromFileMode(fm fs.FileMode) Perm {
	mode := uint32(fm.Perm())
	if fm&fs.ModeSetuid != 0 {
		mode |= 04000
	}
	if fm&fs.ModeSetgid != 0 {
		mode |= 02000
	}
	if fm&fs.ModeSticky != 0 {
		mode |= 01000
	}

	var p Perm
	for _, b := range permBits {
		if mode&b.native != 0 {
			p |= b.perm
		}
	}
	return p
}
