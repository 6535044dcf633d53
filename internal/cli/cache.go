package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and prune the checkpoint cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "ls",
			Short: "List cached checkpoints",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.openCache()
				if err != nil {
					return err
				}
				defer c.Close()

				entries, err := c.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list cache: %w", err)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Cache is empty.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "SIZE\tSTORED\tLOCATOR")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\n", formatSize(e.Size), formatAge(e.StoredAt), e.Locator)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "rm LOCATOR...",
			Short: "Remove cached checkpoints",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.openCache()
				if err != nil {
					return err
				}
				defer c.Close()

				for _, locator := range args {
					removed, err := c.Delete(cmd.Context(), locator)
					if err != nil {
						return err
					}
					if !removed {
						return fmt.Errorf("not cached: %s", locator)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", locator)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached checkpoint",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.openCache()
				if err != nil {
					return err
				}
				defer c.Close()

				n, err := c.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached checkpoints.\n", n)
				return nil
			},
		},
	)
	return cmd
}

// formatAge returns a human-readable relative time string.
func formatAge(t time.Time) string {
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// formatSize renders a byte count with a binary unit.
func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
