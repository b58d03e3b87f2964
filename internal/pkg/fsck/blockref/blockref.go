// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blockref tracks which inodes claim which blocks.
package blockref

import (
	"github.com/siderolabs/gen/xslices"

	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// Geometry answers block bounds questions.
type Geometry interface {
	IsValidBlock(snapshot.BlockNumber) bool
	IsReservedBlock(snapshot.BlockNumber) bool
}

// Claimant is an (inode, offset, level) claim on a block.
type Claimant struct {
	Level  snapshot.Level
	Block  snapshot.BlockNumber
	Inode  snapshot.InodeNumber
	Offset int64
}

// Tracker maps block numbers to their claimants.
type Tracker struct {
	geometry Geometry
	sink     report.Sink

	free   map[snapshot.BlockNumber]struct{}
	claims map[snapshot.BlockNumber][]Claimant
}

// NewTracker creates a Tracker, freeBlocks is the free block list of the dump.
func NewTracker(geometry Geometry, freeBlocks []snapshot.BlockNumber, sink report.Sink) *Tracker {
	return &Tracker{
		geometry: geometry,
		sink:     sink,
		free:     xslices.ToSet(freeBlocks),
		claims:   map[snapshot.BlockNumber][]Claimant{},
	}
}

// Reference records a claim on a block and reports everything wrong with it.
//
// Block 0 is a hole and is ignored. The claim is recorded even if the block
// is invalid or reserved.
func (t *Tracker) Reference(c Claimant) {
	if c.Block == 0 {
		return
	}

	if !t.geometry.IsValidBlock(c.Block) {
		t.sink.Report(report.InvalidBlock(c.Level, c.Block, c.Inode, c.Offset))
	}

	if t.geometry.IsReservedBlock(c.Block) {
		t.sink.Report(report.ReservedBlock(c.Level, c.Block, c.Inode, c.Offset))
	}

	if t.IsFree(c.Block) {
		t.sink.Report(report.AllocatedBlockOnFreelist(c.Block))
	}

	claims := append(t.claims[c.Block], c)
	t.claims[c.Block] = claims

	if len(claims) > 1 {
		for _, claim := range claims {
			t.sink.Report(report.DuplicateBlock(claim.Level, claim.Block, claim.Inode, claim.Offset))
		}
	}
}

// IsFree is true when the block is on the free block list.
func (t *Tracker) IsFree(block snapshot.BlockNumber) bool {
	_, ok := t.free[block]

	return ok
}

// IsReferenced is true when the block has at least one claimant.
func (t *Tracker) IsReferenced(block snapshot.BlockNumber) bool {
	return len(t.claims[block]) > 0
}

// Claimants returns the claims recorded for the block.
func (t *Tracker) Claimants(block snapshot.BlockNumber) []Claimant {
	return t.claims[block]
}

// Referenced returns the number of distinct blocks with claimants.
func (t *Tracker) Referenced() int {
	return len(t.claims)
}

// SweepUnreferenced reports every block in [first, end) which is neither free nor claimed.
func (t *Tracker) SweepUnreferenced(first, end snapshot.BlockNumber) {
	for block := max(first, 0); block < end; block++ {
		if t.IsFree(block) || t.IsReferenced(block) {
			continue
		}

		t.sink.Report(report.UnreferencedBlock(block))
	}
}
