// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package layout_test

import (
	"testing"

	"github.com/siderolabs/gen/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/fscheck/internal/pkg/fsck/layout"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

var superblock = snapshot.Superblock{
	TotalBlocks:           64,
	TotalInodes:           24,
	BlockSize:             1024,
	InodeSize:             128,
	BlocksPerGroup:        8192,
	InodesPerGroup:        24,
	FirstNonReservedInode: 11,
}

func TestDerive(t *testing.T) {
	l, err := layout.Derive(optional.Some(superblock), optional.Some(snapshot.Group{
		BlockBitmap: 3,
		InodeBitmap: 4,
		InodeTable:  5,
	}))
	require.NoError(t, err)

	assert.True(t, l.HasGroup)
	assert.EqualValues(t, 256, l.PointersPerBlock)
	assert.EqualValues(t, 8, l.InodesPerBlock)
	assert.EqualValues(t, 3, l.InodeTableBlocks)
	assert.Equal(t, snapshot.BlockNumber(8), l.FirstNonReservedBlock)

	first, end := l.DataBlocks()
	assert.Equal(t, snapshot.BlockNumber(8), first)
	assert.Equal(t, snapshot.BlockNumber(64), end)
}

func TestDeriveWithoutGroup(t *testing.T) {
	sb := superblock
	sb.InodesPerGroup = 2048

	l, err := layout.Derive(optional.Some(sb), optional.None[snapshot.Group]())
	require.NoError(t, err)

	assert.False(t, l.HasGroup)
	assert.Equal(t, layout.DefaultFirstNonReservedBlock, l.FirstNonReservedBlock)
}

func TestDeriveErrors(t *testing.T) {
	_, err := layout.Derive(optional.None[snapshot.Superblock](), optional.None[snapshot.Group]())
	assert.ErrorIs(t, err, layout.ErrNoSuperblock)

	for _, mutate := range []func(*snapshot.Superblock){
		func(sb *snapshot.Superblock) { sb.BlockSize = 0 },
		func(sb *snapshot.Superblock) { sb.InodeSize = 0 },
		func(sb *snapshot.Superblock) { sb.InodeSize = 4096 },
		func(sb *snapshot.Superblock) { sb.TotalBlocks = -1 },
	} {
		sb := superblock
		mutate(&sb)

		_, err = layout.Derive(optional.Some(sb), optional.None[snapshot.Group]())
		assert.ErrorIs(t, err, layout.ErrInvalidGeometry)
	}
}

func TestBlocks(t *testing.T) {
	l, err := layout.Derive(optional.Some(superblock), optional.Some(snapshot.Group{InodeBitmap: 4}))
	require.NoError(t, err)

	for _, test := range []struct {
		block    snapshot.BlockNumber
		valid    bool
		reserved bool
	}{
		{block: -1, valid: false, reserved: false},
		{block: 0, valid: true, reserved: true},
		{block: 2, valid: true, reserved: true},
		{block: 7, valid: true, reserved: true},
		{block: 8, valid: true, reserved: false},
		{block: 63, valid: true, reserved: false},
		{block: 64, valid: true, reserved: true},
		{block: 65, valid: false, reserved: false},
	} {
		assert.Equal(t, test.valid, l.IsValidBlock(test.block), "block %d", test.block)
		assert.Equal(t, test.reserved, l.IsReservedBlock(test.block), "block %d", test.block)
	}
}

func TestInodes(t *testing.T) {
	l, err := layout.Derive(optional.Some(superblock), optional.None[snapshot.Group]())
	require.NoError(t, err)

	assert.False(t, l.IsValidInode(0))
	assert.True(t, l.IsValidInode(1))
	assert.True(t, l.IsValidInode(24))
	assert.False(t, l.IsValidInode(25))

	assert.True(t, l.IsReservedInode(1))
	assert.False(t, l.IsReservedInode(snapshot.RootInode))
	assert.True(t, l.IsReservedInode(3))
	assert.True(t, l.IsReservedInode(10))
	assert.False(t, l.IsReservedInode(11))
}

func TestOffsetForLevel(t *testing.T) {
	assert.EqualValues(t, 0, layout.OffsetForLevel(snapshot.LevelDirect, 256))
	assert.EqualValues(t, 12, layout.OffsetForLevel(snapshot.LevelSingle, 256))
	assert.EqualValues(t, 268, layout.OffsetForLevel(snapshot.LevelDouble, 256))
	assert.EqualValues(t, 65804, layout.OffsetForLevel(snapshot.LevelTriple, 256))
	assert.EqualValues(t, 1036, layout.OffsetForLevel(snapshot.LevelDouble, 1024))
}

func TestSlotOffset(t *testing.T) {
	l, err := layout.Derive(optional.Some(superblock), optional.None[snapshot.Group]())
	require.NoError(t, err)

	for _, test := range []struct {
		slot   int
		level  snapshot.Level
		offset int64
	}{
		{slot: 0, level: snapshot.LevelDirect, offset: 0},
		{slot: 11, level: snapshot.LevelDirect, offset: 11},
		{slot: 12, level: snapshot.LevelSingle, offset: 12},
		{slot: 13, level: snapshot.LevelDouble, offset: 268},
		{slot: 14, level: snapshot.LevelTriple, offset: 65804},
	} {
		level, offset := l.SlotOffset(test.slot)
		assert.Equal(t, test.level, level, "slot %d", test.slot)
		assert.Equal(t, test.offset, offset, "slot %d", test.slot)
	}
}
