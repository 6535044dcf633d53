// Package msgs defines shared message types for TUI view transitions.
package msgs

// View transition messages

// GoToGenerateMsg signals transition to the generation view once the model
// is loaded.
type GoToGenerateMsg struct{}

// ModelLoadedMsg is sent when the model's readiness signal settles. Err is
// nil when the model is usable, even if some checkpoints failed.
type ModelLoadedMsg struct {
	Err error
}
