package model

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/imageio"
	"github.com/pablasso/sidegen/internal/progress"
	"github.com/pablasso/sidegen/internal/registry"
	"github.com/pablasso/sidegen/internal/runtime"
	"github.com/pablasso/sidegen/internal/task"
)

// GenerationTask produces one missing view.
type GenerationTask = task.Task[Request, Result]

// Request is one generation: the available views and the wanted one.
type Request struct {
	Sources map[domain.Domain]*imageio.Image
	Target  domain.Domain
	// Debug also returns the architecture's intermediate outputs.
	Debug bool
}

// SourceDomains returns the provided domains in canonical order.
func (r Request) SourceDomains() []domain.Domain {
	var out []domain.Domain
	for _, d := range domain.Ordered {
		if r.Sources[d] != nil {
			out = append(out, d)
		}
	}
	return out
}

func (r Request) validate() error {
	if len(r.SourceDomains()) == 0 {
		return &registry.ValidationError{Reason: "no source views", Err: registry.ErrInvalidRequest}
	}
	if _, err := domain.ParseConcrete(string(r.Target)); err != nil {
		return &registry.ValidationError{Reason: err.Error(), Err: registry.ErrInvalidRequest}
	}
	return nil
}

// Result is a generated view.
type Result struct {
	Image *imageio.Image
	// Partial holds the requested intermediate outputs in debug mode.
	Partial []runtime.NamedValue
	Elapsed time.Duration
}

// Generator is a loaded checkpoint bound to its (source, target) slot.
type Generator struct {
	model      *Local
	checkpoint arch.Checkpoint
	backend    runtime.Backend
}

// Checkpoint returns the checkpoint the generator was loaded from.
func (g *Generator) Checkpoint() arch.Checkpoint { return g.checkpoint }

// NewGenerationTask returns a fresh Pending task. It waits for the model to
// be loaded and for any extra prerequisites given in opts.
func (g *Generator) NewGenerationTask(opts ...task.Option) *GenerationTask {
	opts = append([]task.Option{task.WithPrerequisites(g.model.Loaded())}, opts...)
	return task.New("generate "+g.checkpoint.Name(), g.generate, opts...)
}

func (g *Generator) generate(ctx context.Context, req Request, p *progress.Observable) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	inputs, err := assembleInputs(g.model.arch.Inputs, req, g.primarySource(req))
	if err != nil {
		return Result{}, err
	}
	p.Set(0.5)

	outputNames := []string{runtime.DefaultOutput}
	if req.Debug {
		outputNames = append(outputNames, g.model.arch.DebugOutputs...)
	}

	// Execution cannot be interrupted, so this is the last cancellation point.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	outputs, err := g.model.runtime.Execute(g.backend, inputs, outputNames)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, &ComputeError{Op: "execute", Checkpoint: g.checkpoint.Name(), Err: err}
	}
	slog.Info("Generated view.", "checkpoint", g.checkpoint.Name(), "target", req.Target, "elapsed", elapsed)

	if len(outputs) == 0 {
		return Result{}, &ComputeError{Op: "execute", Checkpoint: g.checkpoint.Name(), Err: fmt.Errorf("no outputs")}
	}
	img, err := imageio.FromNormalized(outputs[0].Tensor.Data)
	if err != nil {
		return Result{}, &ComputeError{Op: "decode", Checkpoint: g.checkpoint.Name(), Err: err}
	}

	res := Result{Image: img, Elapsed: elapsed}
	if req.Debug {
		res.Partial = outputs[1:]
	}
	return res, nil
}

// primarySource picks the view fed to single-source inputs: the checkpoint's
// own source when provided, otherwise the first provided view.
func (g *Generator) primarySource(req Request) domain.Domain {
	if !g.checkpoint.Source.IsWildcard() && req.Sources[g.checkpoint.Source] != nil {
		return g.checkpoint.Source
	}
	return req.SourceDomains()[0]
}
