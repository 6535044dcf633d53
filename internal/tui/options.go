package tui

import "github.com/pablasso/sidegen/internal/model"

// Options configures TUI startup behavior.
type Options struct {
	// Model is initialized by Run; it must not have been initialized yet.
	Model *model.Local
	// SourceDir holds the input views as <domain>.png.
	SourceDir string
	// OutputDir receives saved generations as <domain>.png.
	OutputDir string
	// Debug requests intermediate outputs with every generation.
	Debug bool
}
