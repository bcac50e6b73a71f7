package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Target string
	Remote string
	Cloud  bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status [target]",
		Short: "Show pipeline staleness or the remote object delta",
		Long: `Without --cloud, evaluate each stage against its recorded checksums and
report whether it is up to date, stale, or locked. Nothing is executed.

With --cloud, compare the project's referenced objects against a remote and
report what push and pull would transfer.

Example:
  dtrack status
  dtrack status --cloud --remote origin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Target = args[0]
			}

			p, err := openProject(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer p.Close()

			out := cmd.OutOrStdout()

			if opts.Cloud {
				status, err := p.RemoteStatus(cmd.Context(), opts.Remote, opts.Target)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%d object(s) to push, %d to pull, %d unavailable\n",
					len(status.Missing), len(status.Wanted), len(status.Unavailable))
				for _, sum := range status.Unavailable {
					fmt.Fprintf(out, "  unavailable: %s\n", sum)
				}
				return nil
			}

			results, err := p.PipelineStatus(cmd.Context(), opts.Target)
			if err != nil {
				return err
			}

			for _, res := range results {
				fmt.Fprintf(out, "%-20s %s\n", res.Stage, res.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Cloud, "cloud", false, "compare against a remote instead of evaluating staleness")
	cmd.Flags().StringVarP(&opts.Remote, "remote", "r", "", "remote name (default from config)")

	return cmd
}
