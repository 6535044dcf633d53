package views

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/sidegen/internal/acquire"
	"github.com/pablasso/sidegen/internal/arch"
	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/fetch"
	"github.com/pablasso/sidegen/internal/model"
	"github.com/pablasso/sidegen/internal/runtime"
)

// stubFetcher serves a minimal model.json for every locator except those in
// fail, optionally blocking until released.
type stubFetcher struct {
	fail    map[string]bool
	release chan struct{}
}

func (f *stubFetcher) Stream(ctx context.Context, locator string, onProgress fetch.ProgressFunc) ([]byte, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail[locator] {
		return nil, errors.New("404 not found")
	}
	onProgress(1)
	return []byte(`{"signature":{}}`), nil
}

func testArch() arch.Architecture {
	return arch.Architecture{
		Name:    "pix2pix",
		Version: "test",
		Inputs:  []arch.InputKind{arch.InputSourceImage},
		Checkpoints: []arch.Checkpoint{
			{Source: domain.Back, Target: domain.Front, Locator: "mem://back-to-front"},
			{Source: domain.Back, Target: domain.Left, Locator: "mem://back-to-left"},
		},
	}
}

func newTestModel(f *stubFetcher) *model.Local {
	return model.NewLocal(testArch(), acquire.New(nil, f), runtime.Identity{})
}

// loadedModel returns a model whose readiness signal has settled.
func loadedModel(t *testing.T) *model.Local {
	t.Helper()
	m := newTestModel(&stubFetcher{})
	if _, err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.WaitLoaded(ctx); err != nil {
		t.Fatalf("WaitLoaded() error = %v", err)
	}
	return m
}

// next runs cmd and returns its message, failing the test if it blocks.
func next(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("command did not produce a message")
		return nil
	}
}
