package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotrack/pkg/stage"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Name    string
	Deps    []string
	Outs    []string
	NoCache []string
	WorkDir string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add --name <stage> [flags] -- <command...>",
		Short: "Declare a new pipeline stage",
		Long: `Declare a stage: a shell command together with its dependencies and
outputs. The declaration is written to <name>.stage at the project root;
nothing is executed until repro.

Paths are relative to the project root.

Example:
  dtrack add --name prepare --deps data/raw.csv --outs data/clean.csv -- python clean.py
  dtrack add --name report --deps data/clean.csv --outs-no-cache report.md -- python report.py`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer p.Close()

			s := &stage.Stage{
				Name:    opts.Name,
				Command: strings.Join(args, " "),
				WorkDir: opts.WorkDir,
			}
			for _, dep := range opts.Deps {
				s.Deps = append(s.Deps, stage.Dependency{Path: dep})
			}
			for _, out := range opts.Outs {
				s.Outs = append(s.Outs, stage.Output{Path: out})
			}
			for _, out := range opts.NoCache {
				s.Outs = append(s.Outs, stage.Output{Path: out, NoCache: true})
			}

			if err := p.AddStage(cmd.Context(), s); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added stage %s\n", s.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "stage name (required)")
	cmd.Flags().StringSliceVarP(&opts.Deps, "deps", "d", nil, "dependency paths")
	cmd.Flags().StringSliceVarP(&opts.Outs, "outs", "o", nil, "output paths (cached)")
	cmd.Flags().StringSliceVar(&opts.NoCache, "outs-no-cache", nil, "output paths excluded from the cache")
	cmd.Flags().StringVarP(&opts.WorkDir, "wdir", "w", "", "working directory for the command, relative to the project root")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}
