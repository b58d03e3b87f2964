// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package fsck

import "go.uber.org/zap"

// DefaultInlineDataThreshold is the largest symlink target stored inside the inode.
const DefaultInlineDataThreshold = 60

// Option to control checker settings.
type Option func(*Options)

// Options for the checker.
type Options struct {
	Logger              *zap.Logger
	Sorted              bool
	InlineDataThreshold int64
}

// WithLogger sets the logger for diagnostic messages.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSortedOutput orders anomalies by message instead of by first occurrence.
func WithSortedOutput(sorted bool) Option {
	return func(o *Options) {
		o.Sorted = sorted
	}
}

// WithInlineDataThreshold sets the size up to which symlinks carry no block pointers.
func WithInlineDataThreshold(threshold int64) Option {
	return func(o *Options) {
		o.InlineDataThreshold = threshold
	}
}

// NewDefaultOptions builds options with specified setters applied.
func NewDefaultOptions(setters ...Option) Options {
	opt := Options{
		Logger:              zap.NewNop(),
		InlineDataThreshold: DefaultInlineDataThreshold,
	}

	for _, o := range setters {
		o(&opt)
	}

	return opt
}
