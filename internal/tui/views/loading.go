package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/sidegen/internal/model"
	"github.com/pablasso/sidegen/internal/progress"
	"github.com/pablasso/sidegen/internal/task"
	"github.com/pablasso/sidegen/internal/tui/components"
	"github.com/pablasso/sidegen/internal/tui/msgs"
	"github.com/pablasso/sidegen/internal/tui/styles"
)

// CheckpointRow holds display information for one load task.
type CheckpointRow struct {
	Name   string
	Cached bool
	State  task.State
	Err    error
}

// LoadingModel is the model for the checkpoint loading view.
type LoadingModel struct {
	archName  string
	rows      []CheckpointRow
	tasks     []*model.LoadTask
	loaded    task.Settler
	watch     *progress.Computed
	aggregate float64
	startTime time.Time

	spinner spinner.Model
	list    components.List
	events  eventBus
	cancel  context.CancelFunc

	done bool
	err  error

	width  int
	height int
}

// Message types for loading events

// LoadProgressMsg carries the aggregate progress of all load tasks.
type LoadProgressMsg struct {
	Value float64
}

// CheckpointSettledMsg is sent when one load task settles.
type CheckpointSettledMsg struct {
	Index int
	State task.State
	Err   error
}

// NewLoadingModel creates a LoadingModel watching tasks. cancel aborts the
// pipeline when the user quits during loading.
func NewLoadingModel(m *model.Local, tasks []*model.LoadTask, cached map[string]bool, cancel context.CancelFunc) LoadingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SelectedStyle

	rows := make([]CheckpointRow, len(tasks))
	for i, ckpt := range m.Architecture().Checkpoints {
		if i >= len(rows) {
			break
		}
		rows[i] = CheckpointRow{Name: ckpt.Name(), Cached: cached[ckpt.Name()], State: task.StatePending}
	}

	return LoadingModel{
		archName:  m.Architecture().Name,
		rows:      rows,
		tasks:     tasks,
		loaded:    m.Loaded(),
		watch:     model.Watch(tasks),
		startTime: time.Now(),
		spinner:   s,
		list:      components.NewList(0, 0),
		events:    newEventBus(len(tasks) + 32),
		cancel:    cancel,
	}
}

// Init implements tea.Model.
func (m LoadingModel) Init() tea.Cmd {
	m.subscribe()
	return tea.Batch(
		m.spinner.Tick,
		m.events.listen(),
	)
}

// subscribe bridges progress listeners and task settlement into the event
// bus.
func (m LoadingModel) subscribe() {
	m.watch.AddListener(func(v float64) {
		m.events.offer(LoadProgressMsg{Value: v})
	})
	m.watch.OnComplete(func(v float64) {
		go func() { m.events <- LoadProgressMsg{Value: v} }()
	})
	for i, t := range m.tasks {
		go func(i int, t *model.LoadTask) {
			<-t.Done()
			m.events <- CheckpointSettledMsg{Index: i, State: t.State(), Err: t.Err()}
		}(i, t)
	}
	go func() {
		<-m.loaded.Done()
		m.events <- msgs.ModelLoadedMsg{Err: m.loaded.Err()}
	}()
}

// Update implements tea.Model.
func (m LoadingModel) Update(msg tea.Msg) (LoadingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case LoadProgressMsg:
		m.aggregate = msg.Value
		return m, m.events.listen()

	case CheckpointSettledMsg:
		if msg.Index >= 0 && msg.Index < len(m.rows) {
			m.rows[msg.Index].State = msg.State
			m.rows[msg.Index].Err = msg.Err
			m.list.SetRows(m.renderRows())
			m.list.Reveal(msg.Index)
		}
		m.aggregate = m.watch.Value()
		return m, m.events.listen()

	case msgs.ModelLoadedMsg:
		m.done = true
		m.err = msg.Err
		m.watch.Close()
		if msg.Err != nil {
			return m, nil
		}
		return m, func() tea.Msg { return msgs.GoToGenerateMsg{} }

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

// SetSize updates the view dimensions.
func (m *LoadingModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-loadingChrome)
	m.list.SetRows(m.renderRows())
}

// loadingChrome counts the lines around the checkpoint list: title with its
// margin, progress, spacing, the failure message block and the status bar.
const loadingChrome = 8

// Rows returns the current checkpoint rows.
func (m LoadingModel) Rows() []CheckpointRow {
	return m.rows
}

// View implements tea.Model.
func (m LoadingModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Loading %s", m.archName)))
	b.WriteString("\n")

	barWidth := m.width - 10
	if barWidth > 40 {
		barWidth = 40
	}
	b.WriteString(components.NewProgress(m.aggregate, barWidth).View())
	b.WriteString("  ")
	b.WriteString(styles.SubtleStyle.Render(formatElapsed(time.Since(m.startTime))))
	b.WriteString("\n\n")

	list := m.list
	list.SetRows(m.renderRows())
	b.WriteString(list.View())
	b.WriteString("\n")

	if m.done && m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render("Model failed to load: " + m.err.Error()))
		b.WriteString("\n")
	}

	content := b.String()
	statusBar := components.NewStatusBar().Render(m.width, []string{"q Quit"})
	contentHeight := m.height - 1
	return lipgloss.NewStyle().Height(contentHeight).Render(content) + "\n" + statusBar
}

func (m LoadingModel) renderRows() []string {
	out := make([]string, len(m.rows))
	for i, row := range m.rows {
		out[i] = m.renderRow(row)
	}
	return out
}

func (m LoadingModel) renderRow(row CheckpointRow) string {
	var indicator, detail string
	switch row.State {
	case task.StateSucceeded:
		indicator = styles.SuccessStyle.Render("✓")
	case task.StateFailed:
		indicator = styles.ErrorStyle.Render("✗")
		if row.Err != nil {
			detail = styles.ErrorStyle.Render(" " + row.Err.Error())
		}
	case task.StateCancelled:
		indicator = styles.WarningStyle.Render("○")
		detail = styles.SubtleStyle.Render(" cancelled")
	default:
		indicator = m.spinner.View()
	}
	name := row.Name
	if row.Cached {
		name += styles.SubtleStyle.Render(" (cached)")
	}
	return fmt.Sprintf("  %s %s%s", indicator, name, detail)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d - m*time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d", m, s)
}
