package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pablasso/sidegen/internal/display"
	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/imageio"
	"github.com/pablasso/sidegen/internal/model"
	"github.com/pablasso/sidegen/internal/task"
)

type generateFlags struct {
	sources []string
	target  string
	out     string
	debug   bool
}

func newGenerateCmd(opts *options) *cobra.Command {
	var flags generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one missing view from the views you have",
		Long: `Generate the --target view from one or more --source views. Each source is
given as domain=path.png; images are scaled to 64x64.`,
		Example: `  sidegen generate --source back=hero-back.png --target front
  sidegen generate --arch collagan --source back=b.png --source left=l.png --target right --out right.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, flags)
		},
	}

	cmd.Flags().StringArrayVar(&flags.sources, "source", nil, "Source view as domain=path.png (repeatable)")
	cmd.Flags().StringVar(&flags.target, "target", "", "Domain to generate: back|left|front|right")
	cmd.Flags().StringVar(&flags.out, "out", "", "Output PNG (default <target>.png)")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Also save the architecture's intermediate outputs")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("target")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *options, flags generateFlags) error {
	target, err := domain.ParseConcrete(flags.target)
	if err != nil {
		return err
	}
	sources, err := parseSources(flags.sources)
	if err != nil {
		return err
	}
	if _, ok := sources[target]; ok {
		return fmt.Errorf("%s is both a source and the target", target)
	}
	out := flags.out
	if out == "" {
		out = target.String() + ".png"
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	m, c, err := opts.openModel()
	if err != nil {
		return err
	}
	defer c.Close()

	d := opts.status
	if err := loadModel(ctx, m, d); err != nil {
		return err
	}

	req := model.Request{Sources: sources, Target: target, Debug: flags.debug}
	gen, ok, err := m.SelectGenerator(req.SourceDomains(), []domain.Domain{target})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("unsupported domain combination: %s to %s for %s (loaded: %s)",
			joinDomains(req.SourceDomains()), target, m.Architecture().Name, joinPairs(m.SupportedPairs()))
	}

	t := gen.NewGenerationTask()
	res, err := runGeneration(ctx, d, t, req)
	if err != nil {
		return err
	}

	if err := res.Image.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %s)\n", out, gen.Checkpoint().Name(), res.Elapsed)

	for _, p := range res.Partial {
		view := &model.DebugView{Name: p.Name}
		img, err := view.Render(res)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skip %v\n", err)
			continue
		}
		path := debugPath(out, p.Name)
		if err := img.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	}
	return nil
}

// runGeneration runs t while d shows its progress. The status line is torn
// down on every return path.
func runGeneration(ctx context.Context, d *display.Display, t *model.GenerationTask, req model.Request) (model.Result, error) {
	d.UpdateLabel("generate " + req.Target.String())
	d.UpdateSettled(0, 0)
	d.UpdateStatus(display.StatusRunning)
	d.Start()
	defer d.Stop()
	unwatch := d.Watch(t.Progress())
	defer unwatch()

	res, err := t.Run(ctx, req)
	switch {
	case err == nil:
		d.UpdateStatus(display.StatusCompleted)
	case errors.Is(err, task.ErrAborted):
		d.UpdateStatus(display.StatusCancelled)
	default:
		d.UpdateStatus(display.StatusFailed)
	}
	return res, err
}

// parseSources reads domain=path pairs.
func parseSources(values []string) (map[domain.Domain]*imageio.Image, error) {
	sources := make(map[domain.Domain]*imageio.Image, len(values))
	for _, v := range values {
		name, path, ok := strings.Cut(v, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --source %q: expected domain=path.png", v)
		}
		d, err := domain.ParseConcrete(name)
		if err != nil {
			return nil, err
		}
		if _, dup := sources[d]; dup {
			return nil, fmt.Errorf("duplicate --source for %s", d)
		}
		img, err := imageio.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load %s source: %w", d, err)
		}
		sources[d] = img
	}
	return sources, nil
}

// debugPath places an intermediate output next to out: hero.png and
// "decoder/conv:0" become hero.decoder_conv_0.png.
func debugPath(out, name string) string {
	ext := filepath.Ext(out)
	base := strings.TrimSuffix(out, ext)
	if ext == "" {
		ext = ".png"
	}
	clean := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(name)
	return base + "." + clean + ext
}

func joinPairs(ps []domain.Pair) string {
	if len(ps) == 0 {
		return "none"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Source.String() + "->" + p.Target.String()
	}
	return strings.Join(parts, ", ")
}

func joinDomains(ds []domain.Domain) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, "+")
}
