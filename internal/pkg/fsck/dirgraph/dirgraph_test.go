// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package dirgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/siderolabs/fscheck/internal/pkg/fsck/dirgraph"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

type bounds int64

func (b bounds) IsValidInode(inode snapshot.InodeNumber) bool {
	return inode >= 1 && int64(inode) <= int64(b)
}

type allocation map[snapshot.InodeNumber]struct{}

func (a allocation) IsUnallocated(inode snapshot.InodeNumber) bool {
	_, ok := a[inode]

	return ok
}

func dirent(parent, inode snapshot.InodeNumber, name string) snapshot.DirEnt {
	return snapshot.DirEnt{Parent: parent, Inode: inode, Name: name}
}

func validate(t *testing.T, entries []snapshot.DirEnt, unallocated allocation) (*dirgraph.Validator, []string) {
	t.Helper()

	set := report.NewSet()
	validator := dirgraph.NewValidator(bounds(32), unallocated, set, zaptest.NewLogger(t))

	validator.BuildParents(entries)
	validator.Validate(entries)

	var messages []string

	for _, anomaly := range set.Drain() {
		messages = append(messages, anomaly.Message)
	}

	return validator, messages
}

func TestValidateClean(t *testing.T) {
	validator, messages := validate(t, []snapshot.DirEnt{
		dirent(2, 2, "."),
		dirent(2, 2, ".."),
		dirent(2, 11, "lost+found"),
		dirent(2, 12, "file"),
		dirent(11, 11, "."),
		dirent(11, 2, ".."),
	}, nil)

	assert.Empty(t, messages)

	assert.EqualValues(t, 3, validator.ObservedLinks(2))
	assert.EqualValues(t, 2, validator.ObservedLinks(11))
	assert.EqualValues(t, 1, validator.ObservedLinks(12))
	assert.EqualValues(t, 0, validator.ObservedLinks(13))

	parent, ok := validator.ParentOf(11)
	require.True(t, ok)
	assert.Equal(t, snapshot.RootInode, parent)

	parent, ok = validator.ParentOf(snapshot.RootInode)
	require.True(t, ok)
	assert.Equal(t, snapshot.RootInode, parent)
}

func TestValidateLinks(t *testing.T) {
	_, messages := validate(t, []snapshot.DirEnt{
		dirent(2, 12, "dir"),
		dirent(12, 13, "."),
		dirent(12, 99, ".."),
		dirent(2, 3, ".."),
	}, nil)

	assert.Equal(t, []string{
		"DIRECTORY INODE 12 NAME '.' LINK TO INODE 13 SHOULD BE 12",
		"DIRECTORY INODE 12 NAME '..' INVALID INODE 99",
		"DIRECTORY INODE 12 NAME '..' LINK TO INODE 99 SHOULD BE 2",
		"DIRECTORY INODE 2 NAME '..' LINK TO INODE 3 SHOULD BE 2",
	}, messages)
}

func TestValidateInodes(t *testing.T) {
	_, messages := validate(t, []snapshot.DirEnt{
		dirent(2, 0, "zero"),
		dirent(2, 40, "big"),
		dirent(2, 20, "gone"),
	}, allocation{20: {}})

	assert.Equal(t, []string{
		"DIRECTORY INODE 2 NAME 'zero' INVALID INODE 0",
		"DIRECTORY INODE 2 NAME 'big' INVALID INODE 40",
		"DIRECTORY INODE 2 NAME 'gone' UNALLOCATED INODE 20",
	}, messages)
}

func TestParentFirstWriterWins(t *testing.T) {
	validator, messages := validate(t, []snapshot.DirEnt{
		dirent(2, 12, "a"),
		dirent(11, 12, "b"),
		dirent(12, 2, ".."),
	}, nil)

	parent, ok := validator.ParentOf(12)
	require.True(t, ok)
	assert.Equal(t, snapshot.RootInode, parent)
	assert.Empty(t, messages)
}

func TestDotDotWithoutParent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	set := report.NewSet()
	validator := dirgraph.NewValidator(bounds(32), allocation{}, set, zap.New(core))

	entries := []snapshot.DirEnt{dirent(15, 3, "..")}

	validator.BuildParents(entries)
	validator.Validate(entries)

	assert.False(t, set.HasAnomalies())
	assert.EqualValues(t, 1, validator.ObservedLinks(3))
	assert.Equal(t, 1, logs.FilterMessage("directory has no recorded parent, skipping '..' check").Len())
}
