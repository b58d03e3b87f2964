// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package dirgraph validates directory entries against the directory hierarchy.
package dirgraph

import (
	"go.uber.org/zap"

	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// Bounds answers inode bounds questions.
type Bounds interface {
	IsValidInode(snapshot.InodeNumber) bool
}

// Allocation answers inode allocation questions.
type Allocation interface {
	IsUnallocated(snapshot.InodeNumber) bool
}

// Validator walks directory entries.
type Validator struct {
	bounds     Bounds
	allocation Allocation
	sink       report.Sink
	logger     *zap.Logger

	parents map[snapshot.InodeNumber]snapshot.InodeNumber
	links   map[snapshot.InodeNumber]int64
}

// NewValidator creates a Validator with the root directory as its own parent.
func NewValidator(bounds Bounds, allocation Allocation, sink report.Sink, logger *zap.Logger) *Validator {
	return &Validator{
		bounds:     bounds,
		allocation: allocation,
		sink:       sink,
		logger:     logger,
		parents: map[snapshot.InodeNumber]snapshot.InodeNumber{
			snapshot.RootInode: snapshot.RootInode,
		},
		links: map[snapshot.InodeNumber]int64{},
	}
}

// BuildParents records the parent of every inode named by a regular entry.
//
// The first entry naming an inode wins.
func (v *Validator) BuildParents(entries []snapshot.DirEnt) {
	for _, entry := range entries {
		if entry.IsDot() || entry.IsDotDot() {
			continue
		}

		if _, ok := v.parents[entry.Inode]; ok {
			continue
		}

		v.parents[entry.Inode] = entry.Parent
	}
}

// ParentOf returns the recorded parent of a directory.
func (v *Validator) ParentOf(inode snapshot.InodeNumber) (snapshot.InodeNumber, bool) {
	parent, ok := v.parents[inode]

	return parent, ok
}

// Validate checks every entry and counts the links to every referenced inode.
func (v *Validator) Validate(entries []snapshot.DirEnt) {
	for _, entry := range entries {
		v.validate(entry)

		v.links[entry.Inode]++
	}
}

func (v *Validator) validate(entry snapshot.DirEnt) {
	if !v.bounds.IsValidInode(entry.Inode) {
		v.sink.Report(report.DirectoryInvalidInode(entry))
	}

	if v.allocation.IsUnallocated(entry.Inode) {
		v.sink.Report(report.DirectoryUnallocatedInode(entry))
	}

	switch {
	case entry.IsDot():
		if entry.Inode != entry.Parent {
			v.sink.Report(report.DirectoryLink(entry, entry.Parent))
		}
	case entry.IsDotDot():
		parent, ok := v.ParentOf(entry.Parent)
		if !ok {
			v.logger.Debug("directory has no recorded parent, skipping '..' check", zap.Int64("inode", int64(entry.Parent)))

			return
		}

		if entry.Inode != parent {
			v.sink.Report(report.DirectoryLink(entry, parent))
		}
	}
}

// ObservedLinks returns the number of directory entries referencing the inode.
func (v *Validator) ObservedLinks(inode snapshot.InodeNumber) int64 {
	return v.links[inode]
}
