package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"fortio.org/safecast"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Sumatoshi-tech/importsplit/pkg/batch"
	"github.com/Sumatoshi-tech/importsplit/pkg/config"
	"github.com/Sumatoshi-tech/importsplit/pkg/observability"
	"github.com/Sumatoshi-tech/importsplit/pkg/report"
	"github.com/Sumatoshi-tech/importsplit/pkg/rewrite"
)

// exitPendingChanges is the exit status of --check when a rewrite is pending.
const exitPendingChanges = 3

const (
	stdinArg  = "-"
	stdinName = "stdin"
)

var (
	// ErrStdinTooLarge indicates stdin above the configured max file size.
	ErrStdinTooLarge = errors.New("stdin exceeds max file size")
	// ErrWriteStdin indicates --write combined with stdin input.
	ErrWriteStdin = errors.New("--write cannot be used with stdin")
	// ErrConflictingFlags indicates --write combined with --check.
	ErrConflictingFlags = errors.New("--write and --check are mutually exclusive")
	// ErrFilesFailed indicates at least one file could not be transformed.
	ErrFilesFailed = errors.New("files failed to transform")
	// ErrNoInput indicates an implicit stdin read from an interactive terminal.
	ErrNoInput = errors.New("no input: pass files, --all or pipe a source on stdin")
)

type transformOptions struct {
	dialect       string
	format        string
	stdinFilename string
	targets       []string
	workers       int
	write         bool
	diff          bool
	check         bool
	all           bool
}

func transformCmd(flags *rootFlags) *cobra.Command {
	opts := &transformOptions{}

	cmd := &cobra.Command{
		Use:   "transform [files...]",
		Short: "Split named lodash imports in files or stdin",
		Long: `Rewrite every top-level "import { a, b as c } from 'lodash'" declaration
into one "import x = require('lodash/y');" line per member.

With no arguments, or "-", the source is read from stdin and the result is
written to stdout. Directories are walked for TypeScript and JavaScript files.`,
		Example: `  importsplit transform < src/app.ts
  importsplit transform --diff src/
  importsplit transform --write --all
  importsplit transform --check -f json src/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, flags, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.write, "write", false, "write the result back to each file")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print a unified diff instead of the result")
	cmd.Flags().BoolVar(&opts.check, "check", false, "exit with status 3 when any file would be rewritten")
	cmd.Flags().BoolVar(&opts.all, "all", false, "transform every matching file under the current directory")
	cmd.Flags().StringVar(&opts.dialect, "dialect", "", "grammar: typescript, tsx, javascript or auto")
	cmd.Flags().StringSliceVar(&opts.targets, "target", nil, "module to split (repeatable, default lodash)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "parallel workers (0 = number of CPUs)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", report.FormatText, "summary format: text, table, json, yaml")
	cmd.Flags().StringVar(&opts.stdinFilename, "stdin-filename", "", "file name used to pick the dialect for stdin")

	return cmd
}

func runTransform(cmd *cobra.Command, flags *rootFlags, opts *transformOptions, args []string) error {
	if opts.write && opts.check {
		return ErrConflictingFlags
	}

	stdin := readsStdin(args, opts.all)
	if stdin && opts.write {
		return ErrWriteStdin
	}

	if stdin && len(args) == 0 && interactive(cmd.InOrStdin()) {
		return ErrNoInput
	}

	a, err := newApp(flags, observability.ModeCLI, overrides{
		dialect: opts.dialect,
		targets: opts.targets,
		workers: opts.workers,
	})
	if err != nil {
		return err
	}
	defer a.close()

	if stdin {
		return transformStdin(cmd, a, opts)
	}

	return transformFiles(cmd, a, flags, opts, args)
}

func readsStdin(args []string, all bool) bool {
	if len(args) == 1 && args[0] == stdinArg {
		return true
	}

	return len(args) == 0 && !all
}

// interactive reports whether in is a terminal.
func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)

	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int.
}

func transformStdin(cmd *cobra.Command, a *app, opts *transformOptions) error {
	limit := a.cfg.Transform.MaxFileSizeBytes

	readLimit, err := safecast.Conv[int64](limit + 1)
	if err != nil {
		return fmt.Errorf("stdin limit: %w", err)
	}

	source, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), readLimit))
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	if uint64(len(source)) > limit {
		return fmt.Errorf("%w (%s)", ErrStdinTooLarge, humanize.Bytes(limit))
	}

	// A failed transform already passed the source through and was logged.
	result, _ := a.loader.LoadResult(cmd.Context(), opts.stdinFilename, string(source))

	out := cmd.OutOrStdout()

	switch {
	case opts.check:
		if result.Changed() {
			return &exitCodeError{code: exitPendingChanges, msg: "stdin would be rewritten"}
		}

		return nil
	case opts.diff:
		name := opts.stdinFilename
		if name == "" {
			name = stdinName
		}

		return report.WriteDiff(out, rewrite.UnifiedDiff(name, string(source), result.Output))
	default:
		_, err = io.WriteString(out, result.Output)
		if err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}

		return nil
	}
}

func transformFiles(cmd *cobra.Command, a *app, flags *rootFlags, opts *transformOptions, args []string) error {
	paths, err := expandPaths(args, opts.all, a.cfg.Transform)
	if err != nil {
		return err
	}

	runner := &batch.Runner{
		Engines:     a.engines,
		Logger:      a.logger,
		RED:         a.red,
		Rewrite:     a.rewrite,
		Workers:     a.cfg.Transform.Workers,
		MaxFileSize: a.cfg.Transform.MaxFileSizeBytes,
		Write:       opts.write,
	}

	results, err := runner.Run(cmd.Context(), paths)
	if err != nil {
		return err
	}

	if opts.diff {
		for _, fr := range results {
			err = report.WriteDiff(cmd.OutOrStdout(), fr.Diff())
			if err != nil {
				return err
			}
		}
	}

	summary := report.Summarize(results)

	err = writeSummary(cmd, flags, opts.format, summary)
	if err != nil {
		return err
	}

	failErr := summary.Err()
	if failErr != nil {
		return fmt.Errorf("%w: %d of %d\n%w", ErrFilesFailed, summary.Failed, summary.Files, failErr)
	}

	if opts.check && summary.Changed > 0 {
		return &exitCodeError{
			code: exitPendingChanges,
			msg:  fmt.Sprintf("%d of %d files would be rewritten", summary.Changed, summary.Files),
		}
	}

	return nil
}

// writeSummary prints text summaries to stderr and machine formats to stdout.
func writeSummary(cmd *cobra.Command, flags *rootFlags, format string, summary report.Summary) error {
	if format == report.FormatText || format == "" {
		if flags.quiet {
			return nil
		}

		return report.Write(cmd.ErrOrStderr(), format, summary)
	}

	return report.Write(cmd.OutOrStdout(), format, summary)
}

// expandPaths turns arguments into a file list, walking directories.
// Missing paths are kept so the runner reports them.
func expandPaths(args []string, all bool, cfg config.TransformConfig) ([]string, error) {
	if all && len(args) == 0 {
		args = []string{"."}
	}

	var paths []string

	for _, arg := range args {
		info, statErr := os.Stat(arg)
		if statErr != nil || !info.IsDir() {
			paths = append(paths, arg)

			continue
		}

		files, err := batch.Collect(arg, cfg.Extensions, cfg.SkipVendor)
		if err != nil {
			return nil, fmt.Errorf("collect %s: %w", arg, err)
		}

		paths = append(paths, files...)
	}

	return paths, nil
}
