package model

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/pablasso/sidegen/internal/acquire"
	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/imageio"
	"github.com/pablasso/sidegen/internal/progress"
	"github.com/pablasso/sidegen/internal/registry"
	"github.com/pablasso/sidegen/internal/runtime"
	"github.com/pablasso/sidegen/internal/task"
)

func sprite(seed uint8) *imageio.Image {
	im := imageio.Blank()
	for i := range im.Pix {
		im.Pix[i] = seed + uint8(i%7)
	}
	return im
}

func loadedModel(t *testing.T, a arch.Architecture, rt runtime.Runtime) *Local {
	t.Helper()
	m := NewLocal(a, acquire.New(nil, &fakeFetcher{}), rt)
	if _, err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := waitLoaded(t, m); err != nil {
		t.Fatalf("model not ready: %v", err)
	}
	return m
}

func resolve(t *testing.T, m *Local, sources []domain.Domain, target domain.Domain) *Generator {
	t.Helper()
	g, ok, err := m.SelectGenerator(sources, []domain.Domain{target})
	if err != nil || !ok {
		t.Fatalf("SelectGenerator(%v, %s) = %v, %v", sources, target, ok, err)
	}
	return g
}

func TestGenerate_Pix2Pix(t *testing.T) {
	m := loadedModel(t, testArch(), &countingRuntime{})
	g := resolve(t, m, []domain.Domain{domain.Back}, domain.Front)

	back := sprite(10)
	req := Request{
		Sources: map[domain.Domain]*imageio.Image{domain.Back: back, domain.Left: sprite(90)},
		Target:  domain.Front,
	}
	res, err := g.NewGenerationTask().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !bytes.Equal(res.Image.Pix, back.Pix) {
		t.Error("expected the checkpoint's own source view to be used")
	}
	if res.Partial != nil {
		t.Error("partial outputs only in debug mode")
	}
}

func TestGenerate_CollaGANUsesStackedViews(t *testing.T) {
	a := arch.Builtins("mem://")[2]
	m := loadedModel(t, a, &countingRuntime{})
	g := resolve(t, m, []domain.Domain{domain.Left, domain.Right}, domain.Front)

	right := sprite(40)
	req := Request{
		Sources: map[domain.Domain]*imageio.Image{domain.Right: right},
		Target:  domain.Front,
	}
	res, err := g.NewGenerationTask().Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !bytes.Equal(res.Image.Pix, right.Pix) {
		t.Error("expected identity runtime to echo the only provided view")
	}
}

func TestGenerate_Debug(t *testing.T) {
	a := arch.Builtins("mem://")[1]
	a.DebugOutputs = []string{"attention"}
	m := loadedModel(t, a, &countingRuntime{})
	g := resolve(t, m, []domain.Domain{domain.Left}, domain.Right)

	left := sprite(3)
	res, err := g.NewGenerationTask().Run(context.Background(), Request{
		Sources: map[domain.Domain]*imageio.Image{domain.Left: left},
		Target:  domain.Right,
		Debug:   true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Partial) != 1 || res.Partial[0].Name != "attention" {
		t.Fatalf("unexpected partial outputs %+v", res.Partial)
	}

	var view DebugView
	view.Cycle(res)
	if view.Name != "attention" {
		t.Errorf("Cycle() selected %q", view.Name)
	}
	img, err := view.Render(res)
	if err != nil || !bytes.Equal(img.Pix, left.Pix) {
		t.Errorf("Render() = %v", err)
	}
	view.Cycle(res)
	if view.Name != "" {
		t.Errorf("expected wrap back to the generated view, got %q", view.Name)
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	m := loadedModel(t, testArch(), &countingRuntime{})
	g := resolve(t, m, []domain.Domain{domain.Back}, domain.Front)

	tests := []struct {
		name string
		req  Request
	}{
		{"no sources", Request{Target: domain.Front}},
		{"wildcard target", Request{Sources: map[domain.Domain]*imageio.Image{domain.Back: sprite(1)}, Target: domain.Any}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.NewGenerationTask().Run(context.Background(), tt.req)
			if !errors.Is(err, registry.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestGenerate_ComputeFailure(t *testing.T) {
	rt := &countingRuntime{}
	m := loadedModel(t, testArch(), rt)
	g := resolve(t, m, []domain.Domain{domain.Back}, domain.Front)

	rt.executeErr = errors.New("kernel crashed")
	tk := g.NewGenerationTask()
	_, err := tk.Run(context.Background(), Request{
		Sources: map[domain.Domain]*imageio.Image{domain.Back: sprite(1)},
		Target:  domain.Front,
	})
	if !errors.Is(err, ErrCompute) {
		t.Fatalf("expected ErrCompute, got %v", err)
	}
	if tk.State() != task.StateFailed {
		t.Errorf("expected Failed, got %s", tk.State())
	}
}

func TestGenerate_WaitsForModel(t *testing.T) {
	rt := &countingRuntime{ready: make(chan struct{})}
	m := NewLocal(testArch(), acquire.New(nil, &fakeFetcher{}), rt)
	m.Initialize(context.Background())

	g := &Generator{model: m, checkpoint: testArch().Checkpoints[0]}
	extra := task.New("extra", func(ctx context.Context, _ struct{}, _ *progress.Observable) (struct{}, error) {
		return struct{}{}, nil
	})
	tk := g.NewGenerationTask(task.WithPrerequisites(extra))

	errCh := make(chan error, 1)
	go func() {
		_, err := tk.Run(context.Background(), Request{
			Sources: map[domain.Domain]*imageio.Image{domain.Back: sprite(1)},
			Target:  domain.Front,
		})
		errCh <- err
	}()

	extra.Run(context.Background(), struct{}{})
	select {
	case err := <-errCh:
		t.Fatalf("generation ran before the model was ready: %v", err)
	default:
	}
	if tk.State() != task.StatePending {
		t.Errorf("expected Pending while waiting, got %s", tk.State())
	}

	tk.Cancel()
	if err := <-errCh; !errors.Is(err, task.ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	close(rt.ready)
	waitLoaded(t, m)
}

func TestGenerate_FailedModelPropagates(t *testing.T) {
	rt := &countingRuntime{Identity: runtime.Identity{ReadyErr: errors.New("no backend")}}
	m := NewLocal(testArch(), acquire.New(nil, &fakeFetcher{}), rt)
	m.Initialize(context.Background())
	waitLoaded(t, m)
	before := rt.executions.Load()

	g := &Generator{model: m, checkpoint: testArch().Checkpoints[0]}
	tk := g.NewGenerationTask()
	_, err := tk.Run(context.Background(), Request{
		Sources: map[domain.Domain]*imageio.Image{domain.Back: sprite(1)},
		Target:  domain.Front,
	})
	if !errors.Is(err, task.ErrDependency) {
		t.Fatalf("expected ErrDependency, got %v", err)
	}
	if rt.executions.Load() != before {
		t.Error("generation body must not run")
	}
}
