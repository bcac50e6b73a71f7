package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout [target]",
		Short: "Materialize committed outputs into the workspace",
		Long: `Link committed outputs from the cache into the workspace. Files are
materialized read-only (hardlink, symlink, or copy, per config); the
workspace copy is a disposable view of the cache.

Per-file failures are reported and do not abort the rest of the checkout.

Example:
  dtrack checkout
  dtrack checkout data/clean.csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			p, err := openProject(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer p.Close()

			results, err := p.Checkout(cmd.Context(), target)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				switch {
				case res.Err != nil:
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", res.Path, res.Err)
				case res.Linked:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: restored\n", res.Path)
				}
			}

			if failed > 0 {
				return fmt.Errorf("checkout failed for %d file(s)", failed)
			}
			return nil
		},
	}

	return cmd
}
