package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pablasso/sidegen/internal/logging"
	"github.com/pablasso/sidegen/internal/tui"
)

type tuiFlags struct {
	sourceDir string
	outputDir string
	debug     bool
	logFile   string
}

// bindTUI makes the root command launch the terminal UI when no subcommand
// is given.
func bindTUI(cmd *cobra.Command, opts *options) {
	var flags tuiFlags
	cmd.Flags().StringVar(&flags.sourceDir, "sources", ".", "Directory holding the input views as <domain>.png")
	cmd.Flags().StringVar(&flags.outputDir, "out", ".", "Directory receiving saved views")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Request intermediate outputs with every generation")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Log file (default next to the cache database)")
	cmd.Args = cobra.NoArgs
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runTUI(opts, flags)
	}
}

func runTUI(opts *options, flags tuiFlags) error {
	logPath := flags.logFile
	if logPath == "" {
		logPath = defaultLogFile(opts.cfg.CacheFile())
	}
	closer, err := logging.ConfigureFile(logPath, opts.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closer.Close()

	m, c, err := opts.openModel()
	if err != nil {
		return err
	}
	defer c.Close()

	return tui.Run(tui.Options{
		Model:     m,
		SourceDir: flags.sourceDir,
		OutputDir: flags.outputDir,
		Debug:     flags.debug,
	})
}

func defaultLogFile(cacheFile string) string {
	return filepath.Join(filepath.Dir(cacheFile), "sidegen.log")
}
