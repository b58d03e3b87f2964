// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package fsck cross-validates an ext2 metadata snapshot.
package fsck

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/siderolabs/fscheck/internal/pkg/fsck/blockref"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/dirgraph"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/inodestate"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/layout"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/linkcount"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
	"github.com/siderolabs/fscheck/pkg/logging"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// ErrAlreadyRun is returned when a Checker is run twice.
var ErrAlreadyRun = errors.New("checker has already run")

// Result of a check.
type Result struct {
	Anomalies []report.Anomaly `yaml:"anomalies"`
	Summary   Summary          `yaml:"summary"`
}

// Consistent is true when no anomalies were found.
func (r *Result) Consistent() bool {
	return len(r.Anomalies) == 0
}

// Checker holds the state accumulated by the checks of a single snapshot.
type Checker struct {
	opts Options
	snap *snapshot.Snapshot

	layout    *layout.Layout
	anomalies *report.Set
	blocks    *blockref.Tracker
	inodes    *inodestate.Tracker
	dirs      *dirgraph.Validator

	ran bool
}

// New derives the layout of the snapshot and prepares the trackers.
func New(snap *snapshot.Snapshot, setters ...Option) (*Checker, error) {
	opts := NewDefaultOptions(setters...)

	l, err := layout.Derive(snap.Superblock, snap.Group)
	if err != nil {
		return nil, fmt.Errorf("error deriving filesystem layout: %w", err)
	}

	if !l.HasGroup {
		opts.Logger.Warn("no group descriptor record, assuming default data block start",
			zap.Int64("first_data_block", int64(l.FirstNonReservedBlock)))
	}

	opts.Logger.Debug("filesystem layout derived",
		zap.Int64("blocks", l.TotalBlocks),
		zap.Int64("inodes", l.TotalInodes),
		zap.Int64("block_size", l.BlockSize),
		zap.Int64("inode_table_blocks", l.InodeTableBlocks),
		zap.Int64("first_data_block", int64(l.FirstNonReservedBlock)),
		zap.Int64("first_inode", int64(l.FirstNonReservedInode)),
	)

	anomalies := report.NewSet()
	inodes := inodestate.NewTracker(l.FirstNonReservedInode, snapshot.InodeNumber(l.TotalInodes), snap.FreeInodes, anomalies)

	return &Checker{
		opts:      opts,
		snap:      snap,
		layout:    l,
		anomalies: anomalies,
		blocks:    blockref.NewTracker(l, snap.FreeBlocks, anomalies),
		inodes:    inodes,
		dirs:      dirgraph.NewValidator(l, inodes, anomalies, opts.Logger.With(logging.Component("dirgraph"))),
	}, nil
}

// Layout returns the derived filesystem layout.
func (c *Checker) Layout() *layout.Layout {
	return c.layout
}

// Run executes all passes in order.
//
// Passes depend on state built by the previous ones, so ctx is only checked between passes.
func (c *Checker) Run(ctx context.Context) (*Result, error) {
	if c.ran {
		return nil, ErrAlreadyRun
	}

	c.ran = true

	passes := []struct {
		name string
		run  func()
	}{
		{"inodes", c.checkInodes},
		{"unallocated inodes", c.inodes.Sweep},
		{"indirect blocks", c.checkIndirects},
		{"unreferenced blocks", func() { c.blocks.SweepUnreferenced(c.layout.DataBlocks()) }},
		{"directory entries", c.checkDirEnts},
		{"link counts", func() { linkcount.Reconcile(c.snap.Inodes, c.dirs, c.anomalies) }},
	}

	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		before := c.anomalies.Len()

		pass.run()

		c.opts.Logger.Debug("pass finished", zap.String("pass", pass.name), zap.Int("anomalies", c.anomalies.Len()-before))
	}

	summary := c.summarize()

	anomalies := c.anomalies.Drain()
	if c.opts.Sorted {
		anomalies = report.Sorted(anomalies)
	}

	return &Result{
		Anomalies: anomalies,
		Summary:   summary,
	}, nil
}

// hasBlockPointers is false for symlinks which keep their target inside the inode.
func (c *Checker) hasBlockPointers(inode snapshot.Inode) bool {
	switch inode.Type {
	case snapshot.FileTypeRegular, snapshot.FileTypeDirectory:
		return true
	default:
		return inode.Size > c.opts.InlineDataThreshold
	}
}

func (c *Checker) checkInodes() {
	for _, inode := range c.snap.Inodes {
		c.inodes.Allocate(inode.Number)

		if !c.hasBlockPointers(inode) {
			continue
		}

		for slot, block := range inode.Pointers {
			level, offset := c.layout.SlotOffset(slot)

			c.blocks.Reference(blockref.Claimant{
				Level:  level,
				Block:  block,
				Inode:  inode.Number,
				Offset: offset,
			})
		}
	}
}

func (c *Checker) checkIndirects() {
	for _, indirect := range c.snap.Indirects {
		c.blocks.Reference(blockref.Claimant{
			Level:  indirect.Level,
			Block:  indirect.Block,
			Inode:  indirect.Inode,
			Offset: indirect.Offset,
		})
	}
}

func (c *Checker) checkDirEnts() {
	c.dirs.BuildParents(c.snap.DirEnts)
	c.dirs.Validate(c.snap.DirEnts)
}

// Check is a shorthand for New followed by Run.
func Check(ctx context.Context, snap *snapshot.Snapshot, setters ...Option) (*Result, error) {
	checker, err := New(snap, setters...)
	if err != nil {
		return nil, err
	}

	return checker.Run(ctx)
}
