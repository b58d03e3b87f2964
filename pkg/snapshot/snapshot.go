// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package snapshot models the records of an ext2 filesystem metadata dump.
package snapshot

import (
	"github.com/siderolabs/gen/optional"
)

// BlockNumber is a filesystem block number, 0 means "no block".
type BlockNumber int64

// InodeNumber is a filesystem inode number, valid inode numbers start at 1.
type InodeNumber int64

// RootInode is the inode of the root directory.
const RootInode InodeNumber = 2

// Block pointer slots of an inode.
const (
	DirectPointers = 12
	BlockPointers  = DirectPointers + 3

	SingleIndirectSlot = DirectPointers
	DoubleIndirectSlot = DirectPointers + 1
	TripleIndirectSlot = DirectPointers + 2
)

// FileType is the file type letter of an inode record.
type FileType byte

// File types.
const (
	FileTypeRegular   FileType = 'f'
	FileTypeDirectory FileType = 'd'
	FileTypeSymlink   FileType = 's'
	FileTypeOther     FileType = '?'
)

// String implements fmt.Stringer.
func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "regular"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Level is the indirection level of a block reference.
type Level int

// Indirection levels.
const (
	LevelDirect Level = iota
	LevelSingle
	LevelDouble
	LevelTriple
)

// Label returns the level prefix used in anomaly messages.
//
// Direct blocks have no label, all other labels carry a trailing space.
func (l Level) Label() string {
	switch l {
	case LevelSingle:
		return "INDIRECT "
	case LevelDouble:
		return "DOUBLE INDIRECT "
	case LevelTriple:
		return "TRIPLE INDIRECT "
	default:
		return ""
	}
}

// SlotLevel returns the indirection level of the inode pointer slot.
func SlotLevel(slot int) Level {
	switch slot {
	case SingleIndirectSlot:
		return LevelSingle
	case DoubleIndirectSlot:
		return LevelDouble
	case TripleIndirectSlot:
		return LevelTriple
	default:
		return LevelDirect
	}
}

// Superblock describes the whole filesystem geometry.
type Superblock struct {
	TotalBlocks           int64
	TotalInodes           int64
	BlockSize             int64
	InodeSize             int64
	BlocksPerGroup        int64
	InodesPerGroup        int64
	FirstNonReservedInode InodeNumber
}

// Group describes the metadata layout of a block group.
type Group struct {
	Number      int64
	Blocks      int64
	Inodes      int64
	FreeBlocks  int64
	FreeInodes  int64
	BlockBitmap BlockNumber
	InodeBitmap BlockNumber
	InodeTable  BlockNumber
}

// Inode is an allocated inode.
type Inode struct {
	Number     InodeNumber
	Type       FileType
	Mode       uint32
	Owner      int64
	Group      int64
	LinkCount  int64
	ChangeTime string
	ModifyTime string
	AccessTime string
	Size       int64
	Blocks     int64

	// Pointers is empty for symlinks which keep the target inline.
	Pointers [BlockPointers]BlockNumber
}

// DirEnt is a single directory entry.
type DirEnt struct {
	Parent       InodeNumber
	Offset       int64
	Inode        InodeNumber
	RecordLength int64
	NameLength   int64
	Name         string
}

// QuotedName returns the entry name the way it appears in the dump.
func (d DirEnt) QuotedName() string {
	return "'" + d.Name + "'"
}

// IsDot is true for the "." entry.
func (d DirEnt) IsDot() bool {
	return d.Name == "."
}

// IsDotDot is true for the ".." entry.
func (d DirEnt) IsDotDot() bool {
	return d.Name == ".."
}

// Indirect is a block pointer stored in an indirect block.
type Indirect struct {
	Inode         InodeNumber
	Level         Level
	Offset        int64
	IndirectBlock BlockNumber
	Block         BlockNumber
}

// Snapshot is the fully materialized metadata dump.
type Snapshot struct {
	Superblock optional.Optional[Superblock]
	Group      optional.Optional[Group]

	FreeBlocks []BlockNumber
	FreeInodes []InodeNumber

	Inodes    []Inode
	DirEnts   []DirEnt
	Indirects []Indirect
}
