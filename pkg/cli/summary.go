// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gertd/go-pluralize"
	"github.com/ryanuber/columnize"

	"github.com/siderolabs/fscheck/internal/pkg/fsck"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
)

// RenderSummary writes a table describing the checked filesystem.
func RenderSummary(w io.Writer, summary fsck.Summary) error {
	plural := pluralize.NewClient()

	count := func(n int, noun string) string {
		return fmt.Sprintf("%s | %s", humanize.Comma(int64(n)), plural.Pluralize(noun, n, false))
	}

	s := []string{
		fmt.Sprintf("%s | block size", humanize.IBytes(uint64(summary.BlockSize))),
		fmt.Sprintf("%s | total blocks", humanize.Comma(summary.TotalBlocks)),
		fmt.Sprintf("%s | total inodes", humanize.Comma(summary.TotalInodes)),
		count(summary.RegularFiles, "regular file"),
		count(summary.Directories, "directory"),
		count(summary.Symlinks, "symbolic link"),
		count(summary.OtherInodes, "other inode"),
		count(summary.ReservedInodes, "reserved inode"),
		count(summary.FreeInodes, "free inode"),
		count(summary.FreeBlocks, "free block"),
		count(summary.ReferencedBlocks, "referenced block"),
	}

	total := 0

	for _, kind := range report.Kinds {
		n, ok := summary.Anomalies[kind]
		if !ok {
			continue
		}

		total += n

		s = append(s, fmt.Sprintf("%s | %s", humanize.Comma(int64(n)), kind))
	}

	s = append(s, count(total, "anomaly"))

	_, err := fmt.Fprintln(w, columnize.SimpleFormat(s))

	return err
}
