package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [target]",
		Short: "Check cache object integrity",
		Long: `Re-hash the committed cache objects the project references and
cross-check each against its key, the checksum state, and the stage record.
An optional target (stage name or output path) restricts the check to that
stage and its ancestors. Divergence is reported, never repaired: fix by
re-running the stage or re-pulling the object.

Exits non-zero when any object diverges.

Example:
  dtrack verify
  dtrack verify train`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer p.Close()

			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			results, err := p.Verify(cmd.Context(), target)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %v\n", res.Path, res.Stage, res.Err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d object(s) checked, %d corrupt\n", len(results), failed)
			if failed > 0 {
				return fmt.Errorf("integrity check failed for %d object(s)", failed)
			}
			return nil
		},
	}
}
