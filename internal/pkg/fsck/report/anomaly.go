// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package report collects consistency anomalies.
package report

import (
	"fmt"

	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// Kind classifies an anomaly.
type Kind string

// Anomaly kinds.
const (
	KindInvalidBlock              Kind = "invalid-block"
	KindReservedBlock             Kind = "reserved-block"
	KindAllocatedBlockOnFreelist  Kind = "allocated-block-on-freelist"
	KindDuplicateBlock            Kind = "duplicate-block"
	KindUnreferencedBlock         Kind = "unreferenced-block"
	KindAllocatedInodeOnFreelist  Kind = "allocated-inode-on-freelist"
	KindUnallocatedInodeNotOnFree Kind = "unallocated-inode-not-on-freelist"
	KindDirectoryInvalidInode     Kind = "directory-invalid-inode"
	KindDirectoryUnallocatedInode Kind = "directory-unallocated-inode"
	KindDirectoryLink             Kind = "directory-link"
	KindLinkCount                 Kind = "link-count"
)

// Kinds lists all anomaly kinds in report order.
var Kinds = []Kind{
	KindInvalidBlock,
	KindReservedBlock,
	KindAllocatedBlockOnFreelist,
	KindDuplicateBlock,
	KindUnreferencedBlock,
	KindAllocatedInodeOnFreelist,
	KindUnallocatedInodeNotOnFree,
	KindDirectoryInvalidInode,
	KindDirectoryUnallocatedInode,
	KindDirectoryLink,
	KindLinkCount,
}

// Anomaly is a single consistency finding.
//
// Two anomalies are the same finding when their messages are equal.
type Anomaly struct {
	Kind    Kind   `yaml:"kind"`
	Message string `yaml:"message"`
}

// String implements fmt.Stringer.
func (a Anomaly) String() string {
	return a.Message
}

func blockAnomaly(kind Kind, prefix string, level snapshot.Level, block snapshot.BlockNumber, inode snapshot.InodeNumber, offset int64) Anomaly {
	return Anomaly{
		Kind:    kind,
		Message: fmt.Sprintf("%s %sBLOCK %d IN INODE %d AT OFFSET %d", prefix, level.Label(), block, inode, offset),
	}
}

// InvalidBlock is a block pointer outside the filesystem.
func InvalidBlock(level snapshot.Level, block snapshot.BlockNumber, inode snapshot.InodeNumber, offset int64) Anomaly {
	return blockAnomaly(KindInvalidBlock, "INVALID", level, block, inode, offset)
}

// ReservedBlock is a block pointer into filesystem metadata.
func ReservedBlock(level snapshot.Level, block snapshot.BlockNumber, inode snapshot.InodeNumber, offset int64) Anomaly {
	return blockAnomaly(KindReservedBlock, "RESERVED", level, block, inode, offset)
}

// DuplicateBlock is one of several claims on the same block.
func DuplicateBlock(level snapshot.Level, block snapshot.BlockNumber, inode snapshot.InodeNumber, offset int64) Anomaly {
	return blockAnomaly(KindDuplicateBlock, "DUPLICATE", level, block, inode, offset)
}

// AllocatedBlockOnFreelist is a referenced block which is declared free.
func AllocatedBlockOnFreelist(block snapshot.BlockNumber) Anomaly {
	return Anomaly{
		Kind:    KindAllocatedBlockOnFreelist,
		Message: fmt.Sprintf("ALLOCATED BLOCK %d ON FREELIST", block),
	}
}

// UnreferencedBlock is a data block which is neither used nor free.
func UnreferencedBlock(block snapshot.BlockNumber) Anomaly {
	return Anomaly{
		Kind:    KindUnreferencedBlock,
		Message: fmt.Sprintf("UNREFERENCED BLOCK %d", block),
	}
}

// AllocatedInodeOnFreelist is an inode in use which is declared free.
func AllocatedInodeOnFreelist(inode snapshot.InodeNumber) Anomaly {
	return Anomaly{
		Kind:    KindAllocatedInodeOnFreelist,
		Message: fmt.Sprintf("ALLOCATED INODE %d ON FREELIST", inode),
	}
}

// UnallocatedInodeNotOnFreelist is an unused inode which is not declared free.
func UnallocatedInodeNotOnFreelist(inode snapshot.InodeNumber) Anomaly {
	return Anomaly{
		Kind:    KindUnallocatedInodeNotOnFree,
		Message: fmt.Sprintf("UNALLOCATED INODE %d NOT ON FREELIST", inode),
	}
}

// DirectoryInvalidInode is a directory entry pointing outside the inode table.
func DirectoryInvalidInode(entry snapshot.DirEnt) Anomaly {
	return Anomaly{
		Kind:    KindDirectoryInvalidInode,
		Message: fmt.Sprintf("DIRECTORY INODE %d NAME %s INVALID INODE %d", entry.Parent, entry.QuotedName(), entry.Inode),
	}
}

// DirectoryUnallocatedInode is a directory entry pointing to an unused inode.
func DirectoryUnallocatedInode(entry snapshot.DirEnt) Anomaly {
	return Anomaly{
		Kind:    KindDirectoryUnallocatedInode,
		Message: fmt.Sprintf("DIRECTORY INODE %d NAME %s UNALLOCATED INODE %d", entry.Parent, entry.QuotedName(), entry.Inode),
	}
}

// DirectoryLink is a "." or ".." entry pointing to the wrong inode.
func DirectoryLink(entry snapshot.DirEnt, expected snapshot.InodeNumber) Anomaly {
	return Anomaly{
		Kind:    KindDirectoryLink,
		Message: fmt.Sprintf("DIRECTORY INODE %d NAME %s LINK TO INODE %d SHOULD BE %d", entry.Parent, entry.QuotedName(), entry.Inode, expected),
	}
}

// LinkCount is a mismatch between the observed and the declared link count.
func LinkCount(inode snapshot.InodeNumber, observed, declared int64) Anomaly {
	return Anomaly{
		Kind:    KindLinkCount,
		Message: fmt.Sprintf("INODE %d HAS %d LINKS BUT LINKCOUNT IS %d", inode, observed, declared),
	}
}
