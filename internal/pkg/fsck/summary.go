// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package fsck

import (
	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// Summary describes the checked snapshot.
type Summary struct {
	BlockSize   int64 `yaml:"blockSize"`
	TotalBlocks int64 `yaml:"totalBlocks"`
	TotalInodes int64 `yaml:"totalInodes"`

	RegularFiles int `yaml:"regularFiles"`
	Directories  int `yaml:"directories"`
	Symlinks     int `yaml:"symlinks"`
	OtherInodes  int `yaml:"otherInodes"`

	ReservedInodes   int `yaml:"reservedInodes"`
	FreeInodes       int `yaml:"freeInodes"`
	FreeBlocks       int `yaml:"freeBlocks"`
	ReferencedBlocks int `yaml:"referencedBlocks"`

	Anomalies map[report.Kind]int `yaml:"anomalies,omitempty"`
}

func (c *Checker) summarize() Summary {
	summary := Summary{
		BlockSize:        c.layout.BlockSize,
		TotalBlocks:      c.layout.TotalBlocks,
		TotalInodes:      c.layout.TotalInodes,
		FreeInodes:       len(c.snap.FreeInodes),
		FreeBlocks:       len(c.snap.FreeBlocks),
		ReferencedBlocks: c.blocks.Referenced(),
	}

	for _, inode := range c.snap.Inodes {
		switch inode.Type {
		case snapshot.FileTypeRegular:
			summary.RegularFiles++
		case snapshot.FileTypeDirectory:
			summary.Directories++
		case snapshot.FileTypeSymlink:
			summary.Symlinks++
		default:
			summary.OtherInodes++
		}
	}

	for inode := snapshot.InodeNumber(1); inode < c.layout.FirstNonReservedInode && int64(inode) <= c.layout.TotalInodes; inode++ {
		if c.layout.IsReservedInode(inode) {
			summary.ReservedInodes++
		}
	}

	for _, kind := range report.Kinds {
		if n := c.anomalies.Count(kind); n > 0 {
			if summary.Anomalies == nil {
				summary.Anomalies = map[report.Kind]int{}
			}

			summary.Anomalies[kind] = n
		}
	}

	return summary
}
