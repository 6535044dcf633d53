// Package display renders a single-line progress status for CLI commands.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pablasso/sidegen/internal/progress"
)

const (
	refreshInterval = 200 * time.Millisecond
	barWidth        = 20
)

// Status represents the current execution status.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// State holds the current display state.
type State struct {
	Label     string
	Settled   int
	Total     int
	Fraction  float64
	Status    Status
	StartTime time.Time
}

// Display manages the terminal status line. It is also an io.Writer: log
// output written through it clears the status line first and shares its
// lock, so records and redraws never interleave on the terminal.
type Display struct {
	mu       sync.Mutex
	writeMu  sync.Mutex // serializes writes to writer
	writer   io.Writer
	state    State
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup // Ensures goroutine exits before Stop() returns
	active   bool
	lastLine string
}

// New creates a new Display writing to the given writer.
func New(w io.Writer) *Display {
	return &Display{
		writer: w,
		done:   make(chan struct{}),
	}
}

// Start begins the display update loop.
func (d *Display) Start() {
	d.mu.Lock()
	if d.active {
		d.mu.Unlock()
		return
	}
	d.active = true
	d.state.StartTime = time.Now()
	d.ticker = time.NewTicker(refreshInterval)
	d.done = make(chan struct{})
	d.lastLine = ""
	d.wg.Add(1)
	ticker, done := d.ticker, d.done
	d.mu.Unlock()

	go d.updateLoop(ticker, done)
}

// Stop halts the display update loop and clears the status line.
// Blocks until the update goroutine has exited to prevent race conditions.
func (d *Display) Stop() {
	d.mu.Lock()
	if !d.active {
		d.mu.Unlock()
		return
	}
	d.active = false
	ticker, done := d.ticker, d.done
	d.mu.Unlock()

	ticker.Stop()
	close(done)
	d.wg.Wait()
	d.clearLine()
}

// Write implements io.Writer. While the status line is shown it is cleared
// before p is written and redrawn on the next tick.
func (d *Display) Write(p []byte) (int, error) {
	d.mu.Lock()
	active := d.active
	d.lastLine = ""
	d.mu.Unlock()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if active {
		if _, err := io.WriteString(d.writer, "\r\033[K"); err != nil {
			return 0, err
		}
	}
	return d.writer.Write(p)
}

// UpdateLabel sets what is being worked on.
func (d *Display) UpdateLabel(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Label = label
}

// UpdateSettled updates how many of total units have settled.
func (d *Display) UpdateSettled(settled, total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Settled = settled
	d.state.Total = total
}

// UpdateProgress updates the aggregate fraction.
func (d *Display) UpdateProgress(fraction float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Fraction = fraction
}

// UpdateStatus updates the execution status.
func (d *Display) UpdateStatus(status Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Status = status
}

// Watch mirrors src into the progress fraction until the returned function
// is called.
func (d *Display) Watch(src progress.Source) (stop func()) {
	id := src.Follow(d.UpdateProgress)
	return func() { src.RemoveListener(id) }
}

// updateLoop periodically renders the status line.
func (d *Display) updateLoop(ticker *time.Ticker, done <-chan struct{}) {
	defer d.wg.Done()
	d.render()
	for {
		select {
		case <-ticker.C:
			d.render()
		case <-done:
			return
		}
	}
}

// render draws the current status line.
func (d *Display) render() {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	state := d.state
	lastLine := d.lastLine
	active := d.active
	d.mu.Unlock()

	line := d.formatLine(state, time.Since(state.StartTime))

	// Only update if changed (reduces flicker)
	if !active || line == lastLine {
		return
	}

	d.mu.Lock()
	d.lastLine = line
	d.mu.Unlock()

	fmt.Fprintf(d.writer, "\r\033[K%s", line)
}

// formatLine creates the status line string.
func (d *Display) formatLine(state State, elapsed time.Duration) string {
	if state.Label == "" {
		return ""
	}

	label := state.Label
	if len(label) > 40 {
		label = label[:37] + "..."
	}

	parts := []string{label}
	if state.Total > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d settled", state.Settled, state.Total))
	}
	parts = append(parts,
		formatBar(state.Fraction),
		"⏱ "+formatDuration(elapsed),
		state.Status.String(),
	)
	return strings.Join(parts, " │ ")
}

// clearLine clears the status line.
func (d *Display) clearLine() {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	fmt.Fprintf(d.writer, "\r\033[K")
}

// PrintAbove prints a message above the status line.
// Use this for important messages that shouldn't be overwritten.
func (d *Display) PrintAbove(format string, args ...interface{}) {
	d.writeMu.Lock()
	fmt.Fprintf(d.writer, "\r\033[K"+format+"\n", args...)
	d.writeMu.Unlock()
	d.mu.Lock()
	d.lastLine = ""
	d.mu.Unlock()
	d.render()
}

func formatBar(fraction float64) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * barWidth)
	return fmt.Sprintf("%s%s %3d%%",
		strings.Repeat("█", filled),
		strings.Repeat("░", barWidth-filled),
		int(fraction*100))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
