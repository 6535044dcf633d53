package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pablasso/sidegen/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "sidegen %s (commit %s, built %s)\n",
				version.Version, version.CommitSHA, version.BuildDate)
			return nil
		},
	}
}
