package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RemoveOptions holds flags for the remove command.
type RemoveOptions struct {
	*RootOptions
	Outputs bool
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemoveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "remove <stage>",
		Short: "Delete a stage record",
		Long: `Delete the named stage's record. With --outputs, its workspace output
files are deleted too. Cache objects are left alone; gc reclaims them once
nothing references them.

Example:
  dtrack remove prepare
  dtrack remove prepare --outputs`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer p.Close()

			if err := p.RemoveStage(cmd.Context(), args[0], opts.Outputs); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed stage %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Outputs, "outputs", false, "also delete workspace output files")

	return cmd
}

// NewLockCommand creates the lock command.
func NewLockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <stage>",
		Short: "Freeze a stage",
		Long: `Mark a stage locked. Locked stages are never re-executed: a stale
locked stage is skipped with a warning during repro.

Example:
  dtrack lock train`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer p.Close()

			return p.SetLocked(cmd.Context(), args[0], true)
		},
	}
}

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <stage>",
		Short: "Unfreeze a stage",
		Long: `Clear a stage's locked flag so repro may re-execute it when stale.

Example:
  dtrack unlock train`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer p.Close()

			return p.SetLocked(cmd.Context(), args[0], false)
		},
	}
}
