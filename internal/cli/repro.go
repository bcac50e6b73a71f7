package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotrack/pkg/engine"
)

// ReproOptions holds flags for the repro command.
type ReproOptions struct {
	*RootOptions
	Target string
	Force  bool
	DryRun bool
}

// NewReproCommand creates the repro command.
func NewReproCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReproOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "repro [target]",
		Short: "Bring stages up to date",
		Long: `Walk the dependency graph in producer-before-consumer order, re-execute
stages whose inputs changed, and commit fresh outputs to the cache.

With a target (stage name or output path), only that stage and its
ancestors are considered. Re-running an up-to-date pipeline executes
nothing.

Example:
  dtrack repro
  dtrack repro train
  dtrack repro --dry-run`,
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

			results, err := p.Repro(cmd.Context(), engine.Options{
				Target: opts.Target,
				Force:  opts.Force,
				DryRun: opts.DryRun,
			})

			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", res.Stage, res.Status)
			}

			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "re-execute stages even when up to date")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would run without executing")

	return cmd
}
