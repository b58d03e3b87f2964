// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package layout derives the filesystem geometry used by every consistency check.
package layout

import (
	"errors"
	"fmt"

	"github.com/siderolabs/gen/optional"

	"github.com/siderolabs/fscheck/pkg/snapshot"
)

const (
	// PointerSize is the on-disk size of a block pointer.
	PointerSize = 4

	// DefaultFirstNonReservedBlock is used when the dump has no group descriptor.
	//
	// It matches a single-group ext2 filesystem with 1 KiB blocks.
	DefaultFirstNonReservedBlock snapshot.BlockNumber = 8
)

var (
	// ErrNoSuperblock is returned when the dump carries no superblock record.
	ErrNoSuperblock = errors.New("no superblock record found")

	// ErrInvalidGeometry is returned when the superblock describes an impossible layout.
	ErrInvalidGeometry = errors.New("invalid filesystem geometry")
)

// Layout is the derived geometry of the filesystem.
type Layout struct {
	TotalBlocks           int64
	TotalInodes           int64
	BlockSize             int64
	InodeSize             int64
	InodesPerGroup        int64
	FirstNonReservedInode snapshot.InodeNumber

	InodesPerBlock        int64
	InodeTableBlocks      int64
	FirstNonReservedBlock snapshot.BlockNumber
	PointersPerBlock      int64

	// HasGroup is false when FirstNonReservedBlock is the default.
	HasGroup bool
}

// Derive computes the layout from the superblock and the group descriptor.
func Derive(superblock optional.Optional[snapshot.Superblock], group optional.Optional[snapshot.Group]) (*Layout, error) {
	sb, ok := superblock.Get()
	if !ok {
		return nil, ErrNoSuperblock
	}

	switch {
	case sb.BlockSize < PointerSize:
		return nil, fmt.Errorf("%w: block size %d", ErrInvalidGeometry, sb.BlockSize)
	case sb.InodeSize <= 0 || sb.InodeSize > sb.BlockSize:
		return nil, fmt.Errorf("%w: inode size %d with block size %d", ErrInvalidGeometry, sb.InodeSize, sb.BlockSize)
	case sb.TotalBlocks < 0 || sb.TotalInodes < 0:
		return nil, fmt.Errorf("%w: %d blocks, %d inodes", ErrInvalidGeometry, sb.TotalBlocks, sb.TotalInodes)
	}

	l := &Layout{
		TotalBlocks:           sb.TotalBlocks,
		TotalInodes:           sb.TotalInodes,
		BlockSize:             sb.BlockSize,
		InodeSize:             sb.InodeSize,
		InodesPerGroup:        sb.InodesPerGroup,
		FirstNonReservedInode: sb.FirstNonReservedInode,
		PointersPerBlock:      sb.BlockSize / PointerSize,
		InodesPerBlock:        sb.BlockSize / sb.InodeSize,
		FirstNonReservedBlock: DefaultFirstNonReservedBlock,
	}

	l.InodeTableBlocks = l.InodesPerGroup / l.InodesPerBlock

	if g, ok := group.Get(); ok {
		// the inode table follows the inode bitmap block
		l.FirstNonReservedBlock = g.InodeBitmap + snapshot.BlockNumber(l.InodeTableBlocks) + 1
		l.HasGroup = true
	}

	return l, nil
}

// IsValidBlock is true for block numbers inside the filesystem.
func (l *Layout) IsValidBlock(block snapshot.BlockNumber) bool {
	return block >= 0 && int64(block) <= l.TotalBlocks
}

// IsReservedBlock is true for blocks owned by filesystem metadata.
//
// The block one past the end is reserved as well.
func (l *Layout) IsReservedBlock(block snapshot.BlockNumber) bool {
	switch {
	case block >= 0 && block <= 2:
		return true
	case block >= 0 && block < l.FirstNonReservedBlock:
		return true
	default:
		return int64(block) == l.TotalBlocks
	}
}

// IsValidInode is true for inode numbers inside the filesystem.
func (l *Layout) IsValidInode(inode snapshot.InodeNumber) bool {
	return inode >= 1 && int64(inode) <= l.TotalInodes
}

// IsReservedInode is true for inodes reserved by the filesystem, the root inode is never reserved.
func (l *Layout) IsReservedInode(inode snapshot.InodeNumber) bool {
	return inode == 1 || (inode >= 3 && inode < l.FirstNonReservedInode)
}

// DataBlocks returns the half-open range of blocks which must be either used or free.
func (l *Layout) DataBlocks() (first, end snapshot.BlockNumber) {
	return l.FirstNonReservedBlock, snapshot.BlockNumber(l.TotalBlocks)
}

// OffsetForLevel returns the logical block offset of the first block addressed through
// the inode pointer slot of the given level.
func OffsetForLevel(level snapshot.Level, pointersPerBlock int64) int64 {
	switch level {
	case snapshot.LevelSingle:
		return snapshot.DirectPointers
	case snapshot.LevelDouble:
		return snapshot.DirectPointers + pointersPerBlock
	case snapshot.LevelTriple:
		return snapshot.DirectPointers + pointersPerBlock + pointersPerBlock*pointersPerBlock
	default:
		return 0
	}
}

// SlotOffset returns the level and logical offset of an inode pointer slot.
func (l *Layout) SlotOffset(slot int) (snapshot.Level, int64) {
	level := snapshot.SlotLevel(slot)
	if level == snapshot.LevelDirect {
		return level, int64(slot)
	}

	return level, OffsetForLevel(level, l.PointersPerBlock)
}
