// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cli provides helpers shared by the command line tools.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// WithContext wraps function call to provide a context cancellable with ^C.
//
// The notice about the abort is written to w.
func WithContext(ctx context.Context, w io.Writer, f func(context.Context) error) error {
	wrappedCtx, wrappedCtxCancel := context.WithCancel(ctx)
	defer wrappedCtxCancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	defer signal.Stop(sigCh)

	exited := make(chan struct{})
	defer close(exited)

	go func() {
		select {
		case <-sigCh:
			wrappedCtxCancel()

			fmt.Fprintln(w, "Signal received, aborting after the current pass...")
		case <-wrappedCtx.Done():
		case <-exited:
		}
	}()

	return f(wrappedCtx)
}
