package views

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/sidegen/internal/domain"
	"github.com/pablasso/sidegen/internal/imageio"
	"github.com/pablasso/sidegen/internal/model"
	"github.com/pablasso/sidegen/internal/task"
	"github.com/pablasso/sidegen/internal/tui/components"
	"github.com/pablasso/sidegen/internal/tui/styles"
)

// genState represents the current state of the generation view.
type genState int

const (
	genIdle genState = iota
	genRunning
	genDone
)

// GenerateModel is the model for the generation view: pick source views and
// a target, run the generator, inspect and save the result.
type GenerateModel struct {
	model     *model.Local
	sources   map[domain.Domain]*imageio.Image
	enabled   map[domain.Domain]bool
	target    domain.Domain
	outputDir string

	state    genState
	debug    bool
	view     *model.DebugView
	running  *model.GenerationTask
	progress float64
	result   *model.Result
	message  string
	warn     bool
	err      error

	spinner spinner.Model
	events  eventBus

	width  int
	height int
}

// Message types for generation events

// GenerationProgressMsg carries the running generation's progress.
type GenerationProgressMsg struct {
	TaskID string
	Value  float64
}

// GenerationDoneMsg is sent when a generation task settles.
type GenerationDoneMsg struct {
	TaskID string
	Result model.Result
	Err    error
}

// NewGenerateModel creates a GenerateModel over the loaded model. Every
// provided source starts enabled; the target defaults to the first domain
// without a source.
func NewGenerateModel(m *model.Local, sources map[domain.Domain]*imageio.Image, outputDir string, debug bool) GenerateModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	enabled := make(map[domain.Domain]bool, len(sources))
	target := domain.Front
	targetSet := false
	for _, d := range domain.Ordered {
		if sources[d] != nil {
			enabled[d] = true
		} else if !targetSet {
			target, targetSet = d, true
		}
	}
	if targetSet {
		enabled[target] = false
	}

	return GenerateModel{
		model:     m,
		sources:   sources,
		enabled:   enabled,
		target:    target,
		outputDir: outputDir,
		debug:     debug,
		view:      &model.DebugView{},
		spinner:   s,
		events:    newEventBus(64),
	}
}

// Init implements tea.Model.
func (m GenerateModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.events.listen())
}

// SetSize updates the view dimensions.
func (m *GenerateModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Update implements tea.Model.
func (m GenerateModel) Update(msg tea.Msg) (GenerateModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case GenerationProgressMsg:
		if m.running != nil && msg.TaskID == m.running.ID() {
			m.progress = msg.Value
		}
		return m, m.events.listen()

	case GenerationDoneMsg:
		if m.running == nil || msg.TaskID != m.running.ID() {
			return m, m.events.listen()
		}
		m.running = nil
		m.state = genDone
		m.warn = false
		switch {
		case msg.Err == nil:
			res := msg.Result
			m.result = &res
			m.err = nil
			m.message = fmt.Sprintf("Generated %s in %s", m.target, res.Elapsed.Round(time.Millisecond))
		case errors.Is(msg.Err, task.ErrAborted):
			m.message = "Generation cancelled"
			m.warn = true
		default:
			m.err = msg.Err
		}
		return m, m.events.listen()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m GenerateModel) handleKey(msg tea.KeyMsg) (GenerateModel, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		if m.running != nil {
			m.running.Cancel()
		}
		return m, tea.Quit
	case "esc":
		if m.running != nil {
			m.running.Cancel()
		}
	case "1", "2", "3", "4":
		d := domain.Ordered[int(key[0]-'1')]
		if m.sources[d] != nil && d != m.target {
			m.enabled[d] = !m.enabled[d]
		}
	case "left", "h":
		m.cycleTarget(-1)
	case "right", "l":
		m.cycleTarget(1)
	case "d":
		m.debug = !m.debug
	case "tab":
		if m.result != nil {
			m.view.Cycle(*m.result)
		}
	case "s":
		m.save()
	case "enter":
		if m.running == nil {
			return m.start()
		}
	}
	return m, nil
}

func (m *GenerateModel) cycleTarget(step int) {
	n := len(domain.Ordered)
	i := (m.target.Index() + step + n) % n
	m.target = domain.Ordered[i]
	m.enabled[m.target] = false
}

// Request returns the generation request for the current selection.
func (m GenerateModel) Request() model.Request {
	req := model.Request{
		Sources: make(map[domain.Domain]*imageio.Image),
		Target:  m.target,
		Debug:   m.debug,
	}
	for _, d := range domain.Ordered {
		if m.enabled[d] && d != m.target && m.sources[d] != nil {
			req.Sources[d] = m.sources[d]
		}
	}
	return req
}

// start resolves the generator for the current selection and runs a fresh
// generation task.
func (m GenerateModel) start() (GenerateModel, tea.Cmd) {
	req := m.Request()
	m.err, m.message, m.warn = nil, "", false

	if len(req.Sources) == 0 {
		m.message = "Enable at least one source view"
		return m, nil
	}
	gen, ok, err := m.model.SelectGenerator(req.SourceDomains(), []domain.Domain{req.Target})
	if err != nil {
		m.err = err
		return m, nil
	}
	if !ok {
		m.err = fmt.Errorf("unsupported domain combination: %s to %s", joinDomains(req.SourceDomains()), req.Target)
		return m, nil
	}

	t := gen.NewGenerationTask()
	m.running = t
	m.state = genRunning
	m.progress = 0
	m.view.Name = ""

	events := m.events
	t.Progress().AddListener(func(v float64) {
		events.offer(GenerationProgressMsg{TaskID: t.ID(), Value: v})
	})
	go func() {
		res, err := t.Run(context.Background(), req)
		events <- GenerationDoneMsg{TaskID: t.ID(), Result: res, Err: err}
	}()
	return m, nil
}

func (m *GenerateModel) save() {
	m.err, m.warn = nil, false
	if m.result == nil || m.result.Image == nil {
		m.message = "Nothing to save yet"
		return
	}
	path := filepath.Join(m.outputDir, m.target.String()+".png")
	if err := m.result.Image.Save(path); err != nil {
		m.err = err
		return
	}
	m.message = "Saved " + path
}

// View implements tea.Model.
func (m GenerateModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Generate with %s", m.model.Architecture().Name)))
	b.WriteString("\n")

	var cols []string
	for i, d := range domain.Ordered {
		cols = append(cols, m.renderSource(i, d))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteString("\n\n")

	b.WriteString(m.renderOutput())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.ErrorStyle.Render(m.err.Error()))
	case m.warn:
		b.WriteString(styles.WarningStyle.Render(m.message))
	case m.message != "":
		b.WriteString(styles.SubtleStyle.Render(m.message))
	}

	items := []string{"1-4 Toggle source", "←→ Target", "Enter Generate", "d Debug", "s Save", "q Quit"}
	if m.running != nil {
		items = []string{"Esc Cancel", "q Quit"}
	} else if m.debug && m.result != nil && len(m.result.Partial) > 0 {
		items = append([]string{"Tab Debug output"}, items...)
	}
	statusBar := components.NewStatusBar().Render(m.width, items)
	return lipgloss.NewStyle().Height(m.height-1).Render(b.String()) + "\n" + statusBar
}

func (m GenerateModel) renderSource(i int, d domain.Domain) string {
	label := fmt.Sprintf("%d %s", i+1, d)
	switch {
	case d == m.target:
		label = styles.SelectedStyle.Render(label + " ◆ target")
	case m.sources[d] == nil:
		label = styles.SubtleStyle.Render(label + " (none)")
	case m.enabled[d]:
		label = styles.SuccessStyle.Render(label + " ✓")
	default:
		label = styles.SubtleStyle.Render(label)
	}
	img := m.sources[d]
	if d == m.target || !m.enabled[d] {
		img = nil
	}
	sprite := components.NewSprite(img, 4).View()
	return styles.BoxStyle.Render(label + "\n" + sprite)
}

func (m GenerateModel) renderOutput() string {
	var header string
	switch m.state {
	case genRunning:
		header = fmt.Sprintf("%s Generating %s  %s", m.spinner.View(), m.target, components.NewProgress(m.progress, 20).View())
	case genDone:
		header = fmt.Sprintf("Output: %s", m.target)
		if m.view.Name != "" {
			header += styles.SubtleStyle.Render(" [" + m.view.Name + "]")
		}
	default:
		header = styles.SubtleStyle.Render("Press Enter to generate " + m.target.String())
	}

	var img *imageio.Image
	if m.result != nil {
		rendered, err := m.view.Render(*m.result)
		if err != nil {
			header += " " + styles.ErrorStyle.Render(err.Error())
		} else {
			img = rendered
		}
	}
	return header + "\n" + components.NewSprite(img, 2).View()
}

func joinDomains(ds []domain.Domain) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, "+")
}

// LoadSources reads <dir>/<domain>.png for every concrete domain. Missing
// files are skipped; any other read error is returned.
func LoadSources(dir string) (map[domain.Domain]*imageio.Image, error) {
	sources := make(map[domain.Domain]*imageio.Image)
	if dir == "" {
		return sources, nil
	}
	for _, d := range domain.Ordered {
		path := filepath.Join(dir, d.String()+".png")
		img, err := imageio.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s source: %w", d, err)
		}
		sources[d] = img
	}
	return sources, nil
}
