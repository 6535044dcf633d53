package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newArchsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "archs",
		Short: "List the available architectures",
		Long:  `List the built-in architectures and the ones declared in the settings file. The selected one is marked with *.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := opts.cfg.ArchitectureName()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tNAME\tVERSION\tINPUTS\tCHECKPOINTS")
			for _, a := range opts.cfg.AllArchitectures() {
				mark := ""
				if strings.EqualFold(a.Name, selected) {
					mark = "*"
				}
				inputs := make([]string, len(a.Inputs))
				for i, k := range a.Inputs {
					inputs[i] = k.String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					mark,
					a.Name,
					a.Version,
					strings.Join(inputs, ","),
					len(a.Checkpoints),
				)
			}
			return w.Flush()
		},
	}
}
