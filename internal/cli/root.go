// Package cli implements the dtrack command tree.
//
// Every command except init operates on an open project: the project root
// is discovered by walking up from the working directory, backends are
// opened from project config, and the command maps one high-level project
// operation to terminal output. Exit codes: 0 on success, non-zero when a
// stage fails, an integrity violation is found, or any operation errors.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotrack/internal/logger"
	"github.com/marmos91/dittotrack/pkg/project"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	// LogLevel overrides the configured log level when set.
	LogLevel string
}

// NewRootCommand creates the root command for the dtrack CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dtrack",
		Short: "Reproducible pipelines and large-file versioning",
		Long: `dtrack versions large files outside git and re-runs pipeline stages
only when their inputs changed.

Stage records (*.stage) are small YAML files committed to version control;
file content lives in a local content-addressable cache and is synchronized
on demand with remote object storage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.LogLevel != "" {
				logger.SetLevel(opts.LogLevel)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (DEBUG|INFO|WARN|ERROR)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewReproCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewLockCommand(opts))
	cmd.AddCommand(NewUnlockCommand(opts))

	return cmd
}

// openProject opens the project containing the working directory and
// re-applies a --log-level override on top of the project config.
func openProject(ctx context.Context, opts *RootOptions) (*project.Project, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	p, err := project.Open(ctx, wd)
	if err != nil {
		return nil, err
	}

	if err := logger.SetOutput(p.Config().Logging.Output); err != nil {
		p.Close()
		return nil, err
	}
	if opts.LogLevel != "" {
		logger.SetLevel(opts.LogLevel)
	} else {
		logger.SetLevel(p.Config().Logging.Level)
	}

	return p, nil
}
