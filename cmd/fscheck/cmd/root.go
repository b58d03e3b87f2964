// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cmd implements the fscheck command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/siderolabs/gen/xerrors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siderolabs/fscheck/internal/pkg/fsck"
	"github.com/siderolabs/fscheck/pkg/cli"
	"github.com/siderolabs/fscheck/pkg/logging"
	"github.com/siderolabs/fscheck/pkg/snapshot"
)

// Exit codes.
const (
	ExitConsistent   = 0
	ExitFatal        = 1
	ExitInconsistent = 2
)

// ErrInconsistent is returned when the check found anomalies.
var ErrInconsistent = errors.New("filesystem snapshot is inconsistent")

// usageError tags errors caused by a bad invocation.
type usageError struct{}

var rootCmdFlags struct {
	output   outputFormat
	sort     bool
	summary  bool
	noColor  bool
	logLevel string
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fscheck <snapshot.csv>",
	Short: "Check an ext2 metadata snapshot for consistency",
	Long: `Cross-validates the superblock, group descriptor, free lists, inodes,
directory entries and indirect block records of a metadata snapshot and prints
every inconsistency found, one per line.

Exit status is 0 when the snapshot is consistent, 2 when inconsistencies were
found and 1 on usage or input errors.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return xerrors.NewTaggedf[usageError]("expected exactly one snapshot file, got %d arg(s)", len(args))
		}

		return nil
	},
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.WithContext(cmd.Context(), cmd.ErrOrStderr(), func(ctx context.Context) error {
			return run(ctx, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		})
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(context.Background())
}

func execute(ctx context.Context) int {
	cmd, err := rootCmd.ExecuteContextC(ctx)

	switch {
	case err == nil:
		return ExitConsistent
	case errors.Is(err, ErrInconsistent):
		return ExitInconsistent
	}

	stderr := cmd.ErrOrStderr()

	fmt.Fprintln(stderr, err.Error())

	if xerrors.TagIs[usageError](err) {
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, cmd.UsageString())
	}

	return ExitFatal
}

func run(ctx context.Context, path string, stdout, stderr io.Writer) error {
	level, err := logging.ParseLevel(rootCmdFlags.logLevel)
	if err != nil {
		return xerrors.NewTaggedf[usageError]("%w", err)
	}

	logger := logging.Console(stderr, level, cli.IsTerminal(stderr) && !rootCmdFlags.noColor).
		With(logging.Component("fscheck"))

	defer logger.Sync() //nolint:errcheck

	snap, err := load(path, logger)
	if err != nil {
		return err
	}

	result, err := fsck.Check(ctx, snap,
		fsck.WithLogger(logger),
		fsck.WithSortedOutput(rootCmdFlags.sort),
	)
	if err != nil {
		return err
	}

	logger.Info("check finished", zap.String("snapshot", path), zap.Int("anomalies", len(result.Anomalies)))

	switch rootCmdFlags.output {
	case outputYAML:
		err = cli.RenderYAML(stdout, result)
	default:
		err = cli.NewAnomalyWriter(stdout, cli.IsTerminal(stdout) && !rootCmdFlags.noColor).Write(result.Anomalies)
	}

	if err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}

	if rootCmdFlags.summary {
		if err = cli.RenderSummary(stderr, result.Summary); err != nil {
			return fmt.Errorf("error writing summary: %w", err)
		}
	}

	if !result.Consistent() {
		return ErrInconsistent
	}

	return nil
}

func load(path string, logger *zap.Logger) (*snapshot.Snapshot, error) {
	if filepath.Ext(path) != ".csv" {
		return nil, xerrors.NewTaggedf[usageError]("input file must be a '.csv' file: %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}

		return nil, fmt.Errorf("cannot open %q: %w", path, err)
	}

	defer f.Close() //nolint:errcheck

	snap, err := snapshot.Read(f, logger)
	if err != nil {
		return nil, fmt.Errorf("error parsing %q: %w", path, err)
	}

	return snap, nil
}

func init() {
	rootCmdFlags.output = outputText

	rootCmd.Flags().VarP(&rootCmdFlags.output, "output", "o", "output format (text, yaml)")
	rootCmd.Flags().BoolVar(&rootCmdFlags.sort, "sort", false, "sort anomalies by message instead of order of discovery")
	rootCmd.Flags().BoolVar(&rootCmdFlags.summary, "summary", false, "print a filesystem summary to stderr")
	rootCmd.Flags().BoolVar(&rootCmdFlags.noColor, "no-color", false, "disable colored output")
	rootCmd.Flags().StringVar(&rootCmdFlags.logLevel, "log-level", "warn", "diagnostic log level (debug, info, warn, error)")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return xerrors.NewTaggedf[usageError]("%w", err)
	})
}
