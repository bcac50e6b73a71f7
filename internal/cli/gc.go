package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotrack/pkg/project"
)

// GCOptions holds flags for the gc command.
type GCOptions struct {
	*RootOptions
	Policy string
	DryRun bool
	Jobs   int
}

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GCOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove unreferenced objects from the cache",
		Long: `Mark-and-sweep the local object cache: objects no stage record
references are deleted. Remotes are never touched, so a swept object that
still exists remotely can be pulled back.

Example:
  dtrack gc --dry-run
  dtrack gc --policy workspace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer p.Close()

			stats, err := p.GC(cmd.Context(), project.GCOptions{
				Policy: project.GCPolicy(opts.Policy),
				DryRun: opts.DryRun,
				Jobs:   opts.Jobs,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), stats.Summary())
			if stats.FailedCount > 0 {
				return fmt.Errorf("failed to remove %d object(s)", stats.FailedCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Policy, "policy", string(project.GCPolicyWorkspace), "retention policy (workspace|all)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be swept without deleting")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "parallel deletions (default from config)")

	return cmd
}
