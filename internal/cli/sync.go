package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotrack/pkg/checksum"
	"github.com/marmos91/dittotrack/pkg/project"
	"github.com/marmos91/dittotrack/pkg/sync"
)

// SyncOptions holds the flags shared by push, pull and fetch.
type SyncOptions struct {
	*RootOptions
	Remote string
	Jobs   int
	DryRun bool
}

func (o *SyncOptions) transferOptions(args []string) project.TransferOptions {
	opts := project.TransferOptions{
		Remote: o.Remote,
		Jobs:   o.Jobs,
	}
	if len(args) == 1 {
		opts.Target = args[0]
	}
	return opts
}

// addSyncFlags registers the flags shared by the transfer commands.
func addSyncFlags(cmd *cobra.Command, opts *SyncOptions) {
	cmd.Flags().StringVarP(&opts.Remote, "remote", "r", "", "remote name (default from config)")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "parallel transfers (default from config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would transfer without moving bytes")
}

// reportDelta prints the objects a dry-run transfer would move.
func reportDelta(cmd *cobra.Command, verb string, sums []checksum.Checksum, unavailable []checksum.Checksum) {
	fmt.Fprintf(cmd.OutOrStdout(), "would %s %d object(s)\n", verb, len(sums))
	for _, sum := range sums {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", sum)
	}
	for _, sum := range unavailable {
		fmt.Fprintf(cmd.OutOrStdout(), "  unavailable: %s\n", sum)
	}
}

// reportTransfer prints the transfer report and converts per-object
// failures into a command error.
func reportTransfer(cmd *cobra.Command, report *sync.Report) error {
	if report == nil {
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
	for _, failure := range report.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s: %v\n", failure.Checksum, failure.Err)
	}

	if !report.OK() {
		return fmt.Errorf("%d object(s) failed to transfer", len(report.Failed))
	}
	return nil
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push [target]",
		Short: "Upload referenced objects to a remote",
		Long: `Upload the cache objects the project references and the remote is
missing. Objects already on the remote are skipped, so re-running after an
interruption resumes where it left off.

Example:
  dtrack push
  dtrack push train --remote backup --jobs 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer p.Close()

			transfer := opts.transferOptions(args)
			if opts.DryRun {
				status, err := p.RemoteStatus(cmd.Context(), transfer.Remote, transfer.Target)
				if err != nil {
					return err
				}
				reportDelta(cmd, "upload", status.Missing, nil)
				return nil
			}

			report, err := p.Push(cmd.Context(), transfer)
			if err != nil {
				return err
			}
			return reportTransfer(cmd, report)
		},
	}

	addSyncFlags(cmd, opts)
	return cmd
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch [target]",
		Short: "Download referenced objects into the cache",
		Long: `Download missing referenced objects from a remote into the local cache
without touching the workspace. Downloaded bytes are verified against
their checksum before being installed.

Example:
  dtrack fetch
  dtrack fetch data/clean.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer p.Close()

			transfer := opts.transferOptions(args)
			if opts.DryRun {
				status, err := p.RemoteStatus(cmd.Context(), transfer.Remote, transfer.Target)
				if err != nil {
					return err
				}
				reportDelta(cmd, "download", status.Wanted, status.Unavailable)
				return nil
			}

			report, err := p.Fetch(cmd.Context(), transfer)
			if err != nil {
				return err
			}
			return reportTransfer(cmd, report)
		},
	}

	addSyncFlags(cmd, opts)
	return cmd
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull [target]",
		Short: "Fetch objects and check them out",
		Long: `Fetch missing referenced objects into the cache, then materialize them
into the workspace. Equivalent to fetch followed by checkout.

Example:
  dtrack pull
  dtrack pull train --remote origin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer p.Close()

			transfer := opts.transferOptions(args)
			if opts.DryRun {
				status, err := p.RemoteStatus(cmd.Context(), transfer.Remote, transfer.Target)
				if err != nil {
					return err
				}
				reportDelta(cmd, "download", status.Wanted, status.Unavailable)
				return nil
			}

			report, checkouts, err := p.Pull(cmd.Context(), transfer)
			if err != nil {
				return err
			}
			if err := reportTransfer(cmd, report); err != nil {
				return err
			}

			failed := 0
			for _, res := range checkouts {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", res.Path, res.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("checkout failed for %d file(s)", failed)
			}
			return nil
		},
	}

	addSyncFlags(cmd, opts)
	return cmd
}
