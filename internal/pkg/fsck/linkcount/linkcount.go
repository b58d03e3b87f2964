// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package linkcount compares observed link counts with the declared ones.
package linkcount

import (
	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// Observer returns the number of directory entries referencing an inode.
type Observer interface {
	ObservedLinks(snapshot.InodeNumber) int64
}

// Reconcile reports every inode whose declared link count differs from the observed one.
func Reconcile(inodes []snapshot.Inode, observer Observer, sink report.Sink) {
	for _, inode := range inodes {
		if observed := observer.ObservedLinks(inode.Number); observed != inode.LinkCount {
			sink.Report(report.LinkCount(inode.Number, observed, inode.LinkCount))
		}
	}
}
