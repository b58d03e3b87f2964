// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
)

// outputFormat implements pflag.Value for --output.
type outputFormat string

const (
	outputText outputFormat = "text"
	outputYAML outputFormat = "yaml"
)

var _ pflag.Value = (*outputFormat)(nil)

func (o *outputFormat) String() string {
	return string(*o)
}

func (o *outputFormat) Set(value string) error {
	switch outputFormat(value) {
	case outputText, outputYAML:
		*o = outputFormat(value)

		return nil
	default:
		return fmt.Errorf("unsupported output format %q, expected %q or %q", value, outputText, outputYAML)
	}
}

func (o *outputFormat) Type() string {
	return "format"
}
