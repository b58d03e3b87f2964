// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package inodestate reconciles inode allocation with the free inode list.
package inodestate

import (
	"slices"

	"github.com/siderolabs/gen/maps"
	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// Tracker keeps the set of inodes which have not been seen allocated yet.
type Tracker struct {
	sink report.Sink

	free        map[snapshot.InodeNumber]struct{}
	unallocated map[snapshot.InodeNumber]struct{}
}

// NewTracker seeds the unallocated set with [first, last].
//
// The root inode is always allocated and is never part of the set.
func NewTracker(first, last snapshot.InodeNumber, freeInodes []snapshot.InodeNumber, sink report.Sink) *Tracker {
	t := &Tracker{
		sink:        sink,
		free:        xslices.ToSet(freeInodes),
		unallocated: map[snapshot.InodeNumber]struct{}{},
	}

	for inode := max(first, 1); inode <= last; inode++ {
		if inode == snapshot.RootInode {
			continue
		}

		t.unallocated[inode] = struct{}{}
	}

	return t
}

// Allocate marks the inode as in use.
func (t *Tracker) Allocate(inode snapshot.InodeNumber) {
	delete(t.unallocated, inode)

	if t.IsFree(inode) {
		t.sink.Report(report.AllocatedInodeOnFreelist(inode))
	}
}

// IsFree is true when the inode is on the free inode list.
func (t *Tracker) IsFree(inode snapshot.InodeNumber) bool {
	_, ok := t.free[inode]

	return ok
}

// IsUnallocated is true when the inode has not been allocated.
func (t *Tracker) IsUnallocated(inode snapshot.InodeNumber) bool {
	_, ok := t.unallocated[inode]

	return ok
}

// Unallocated returns the inodes which were never allocated, in ascending order.
func (t *Tracker) Unallocated() []snapshot.InodeNumber {
	inodes := maps.Keys(t.unallocated)
	slices.Sort(inodes)

	return inodes
}

// Sweep reports every unallocated inode which is missing from the free inode list.
func (t *Tracker) Sweep() {
	for _, inode := range t.Unallocated() {
		if !t.IsFree(inode) {
			t.sink.Report(report.UnallocatedInodeNotOnFreelist(inode))
		}
	}
}
