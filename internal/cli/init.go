package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittotrack/pkg/project"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a project in the current directory",
		Long: `Create the .dittotrack control directory, marking the current directory
as a project root. Stage records anywhere under the root are picked up by
the other commands.

Example:
  dtrack init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to determine working directory: %w", err)
			}
			return project.Init(cmd.Context(), wd)
		},
	}
}
