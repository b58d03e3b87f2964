// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/siderolabs/fscheck/internal/pkg/fsck"
	"github.com/siderolabs/fscheck/internal/pkg/fsck/report"
)

// IsTerminal is true when w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && isatty.IsTerminal(f.Fd())
}

// AnomalyWriter prints one anomaly per line.
type AnomalyWriter struct {
	w         io.Writer
	colorized bool
}

// NewAnomalyWriter creates an AnomalyWriter, lines are colored by kind if colorized is set.
func NewAnomalyWriter(w io.Writer, colorized bool) *AnomalyWriter {
	return &AnomalyWriter{
		w:         w,
		colorized: colorized,
	}
}

func kindColor(kind report.Kind) *color.Color {
	switch kind {
	case report.KindInvalidBlock, report.KindReservedBlock, report.KindDuplicateBlock:
		return color.New(color.FgRed)
	case report.KindAllocatedBlockOnFreelist, report.KindUnreferencedBlock,
		report.KindAllocatedInodeOnFreelist, report.KindUnallocatedInodeNotOnFree:
		return color.New(color.FgYellow)
	case report.KindDirectoryInvalidInode, report.KindDirectoryUnallocatedInode, report.KindDirectoryLink:
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgBlue)
	}
}

// Write prints the anomalies.
func (aw *AnomalyWriter) Write(anomalies []report.Anomaly) error {
	for _, anomaly := range anomalies {
		line := anomaly.Message

		if aw.colorized {
			c := kindColor(anomaly.Kind)
			c.EnableColor()

			line = c.Sprint(line)
		}

		if _, err := fmt.Fprintln(aw.w, line); err != nil {
			return err
		}
	}

	return nil
}

// RenderYAML writes the full result as a YAML document.
func RenderYAML(w io.Writer, result *fsck.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}

	return enc.Close()
}
