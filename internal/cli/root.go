// Package cli implements the sidegen command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pablasso/sidegen/internal/acquire"
	"github.com/pablasso/sidegen/internal/cache"
	"github.com/pablasso/sidegen/internal/config"
	"github.com/pablasso/sidegen/internal/display"
	"github.com/pablasso/sidegen/internal/fetch"
	"github.com/pablasso/sidegen/internal/logging"
	"github.com/pablasso/sidegen/internal/model"
	"github.com/pablasso/sidegen/internal/runtime"
	"github.com/pablasso/sidegen/internal/telemetry"
	"github.com/pablasso/sidegen/internal/version"
)

// options holds the persistent flags and the configuration they resolve to.
type options struct {
	configPath     string
	logLevel       string
	cachePath      string
	archName       string
	modelURLPrefix string

	cfg *config.Config
	// status is the terminal status line. Log records go through it so they
	// never interleave with redraws.
	status *display.Display
	traces *telemetry.Output
}

// NewRootCmd builds the sidegen command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "sidegen",
		Short: "Generate missing views of pixel-art character sprites",
		Long: `Sidegen generates the missing facing directions of a 64x64 pixel-art
character from the views you already have. Run without arguments for the
interactive terminal UI.`,
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(); err != nil {
				return err
			}
			opts.status = display.New(cmd.ErrOrStderr())
			if err := logging.ConfigureWriter(opts.status, opts.cfg.LogLevel); err != nil {
				return err
			}
			opts.traces = telemetry.Install()
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.traces.Close(cmd.Context())
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Settings file (default "+config.Path()+")")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&opts.cachePath, "cache", "", "Checkpoint cache database")
	f.StringVar(&opts.archName, "arch", "", "Architecture to load (default "+config.DefaultArchitecture+")")
	f.StringVar(&opts.modelURLPrefix, "model-url-prefix", "", "Base URL or directory of the published checkpoints")

	bindTUI(cmd, opts)
	cmd.AddCommand(
		newArchsCmd(opts),
		newFetchCmd(opts),
		newGenerateCmd(opts),
		newCacheCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the settings file and applies flag overrides.
func (o *options) load() error {
	path := o.configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.cachePath != "" {
		cfg.CachePath = o.cachePath
	}
	if o.archName != "" {
		cfg.Architecture = o.archName
	}
	if o.modelURLPrefix != "" {
		cfg.ModelURLPrefix = o.modelURLPrefix
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// settingsPath returns the file the settings were read from.
func (o *options) settingsPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	return config.Path()
}

// openCache opens the checkpoint cache. The caller closes it.
func (o *options) openCache() (*cache.SQLite, error) {
	c, err := cache.Open(o.cfg.CacheFile())
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return c, nil
}

// openModel wires the selected architecture to the cache, the fetchers and
// the runtime. The returned cache must be closed once the model is done.
func (o *options) openModel() (*model.Local, *cache.SQLite, error) {
	a, err := o.cfg.SelectedArchitecture()
	if err != nil {
		return nil, nil, err
	}
	c, err := o.openCache()
	if err != nil {
		return nil, nil, err
	}
	acq := acquire.New(c, fetch.NewRouter())
	return model.NewLocal(a, acq, runtime.Identity{}), c, nil
}
