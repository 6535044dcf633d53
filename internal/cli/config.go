package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the settings file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.settingsPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if opts.cfg.Architecture == "" {
				opts.cfg.Architecture = opts.cfg.ArchitectureName()
			}
			if err := opts.cfg.SaveFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(opts.cfg); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the settings file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), opts.settingsPath())
				return nil
			},
		},
		initCmd,
	)
	return cmd
}
