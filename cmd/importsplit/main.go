// Package main provides the importsplit CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/importsplit/pkg/version"
)

// exitCodeError carries a process exit status other than 1.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	cfgFile string
	verbose bool
	quiet   bool
}

func main() {
	version.InitBinaryVersion()

	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.msg)
		os.Exit(exitErr.code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "importsplit",
		Short: "Split named lodash imports into per-member require imports",
		Long: `importsplit rewrites

  import { map, filter as f } from 'lodash';

into

  import map = require('lodash/map');
  import f = require('lodash/filter');

so bundlers only pull in the lodash modules that are actually used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file (default is .importsplit.yaml in . or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(transformCmd(flags))
	rootCmd.AddCommand(serveCmd(flags))
	rootCmd.AddCommand(mcpCmd(flags))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "importsplit %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
