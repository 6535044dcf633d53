package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/imageio"
	"github.com/pablasso/sidegen/internal/model"
	"github.com/pablasso/sidegen/internal/tui/msgs"
	"github.com/pablasso/sidegen/internal/tui/styles"
	"github.com/pablasso/sidegen/internal/tui/views"
)

// Minimum terminal size for a usable layout.
const (
	MinTerminalWidth  = 60
	MinTerminalHeight = 15
)

// View represents the different screens in the TUI.
type View int

const (
	ViewLoading View = iota
	ViewGenerate
)

// Model is the main Bubble Tea model that orchestrates all views.
type Model struct {
	currentView View
	width       int
	height      int

	loading  views.LoadingModel
	generate views.GenerateModel
}

// Run loads the model and starts the TUI application.
func Run(opts Options) error {
	if opts.Model == nil {
		return fmt.Errorf("tui: no model configured")
	}
	sources, err := views.LoadSources(opts.SourceDir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tasks, err := opts.Model.Initialize(ctx)
	if err != nil {
		return err
	}

	p := tea.NewProgram(
		newModel(opts, tasks, sources, opts.Model.IsCached(ctx), cancel),
		tea.WithAltScreen(),
	)
	_, err = p.Run()
	return err
}

func newModel(opts Options, tasks []*model.LoadTask, sources map[domain.Domain]*imageio.Image, cached map[string]bool, cancel context.CancelFunc) Model {
	return Model{
		currentView: ViewLoading,
		loading:     views.NewLoadingModel(opts.Model, tasks, cached, cancel),
		generate:    views.NewGenerateModel(opts.Model, sources, opts.OutputDir, opts.Debug),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loading.Init()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.loading.SetSize(msg.Width, msg.Height)
		m.generate.SetSize(msg.Width, msg.Height)
		return m, nil

	case msgs.GoToGenerateMsg:
		m.currentView = ViewGenerate
		m.generate.SetSize(m.width, m.height)
		return m, m.generate.Init()
	}

	var cmd tea.Cmd
	switch m.currentView {
	case ViewLoading:
		m.loading, cmd = m.loading.Update(msg)
	case ViewGenerate:
		m.generate, cmd = m.generate.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width > 0 && m.height > 0 && (m.width < MinTerminalWidth || m.height < MinTerminalHeight) {
		return m.renderTerminalTooSmall()
	}
	switch m.currentView {
	case ViewGenerate:
		return m.generate.View()
	default:
		return m.loading.View()
	}
}

func (m Model) renderTerminalTooSmall() string {
	var b strings.Builder
	b.WriteString(styles.ErrorStyle.Render("Terminal too small"))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Minimum: %dx%d\n", MinTerminalWidth, MinTerminalHeight))
	b.WriteString(fmt.Sprintf("Current: %dx%d\n", m.width, m.height))
	return b.String()
}
