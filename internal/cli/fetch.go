package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pablasso/sidegen/internal/display"
	"github.com/pablasso/sidegen/internal/model"
	"github.com/pablasso/sidegen/internal/task"
)

func newFetchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download and cache the selected architecture's checkpoints",
		Long: `Acquire every checkpoint of the selected architecture, serving cached
copies where present, and wait until the model is ready. Checkpoints that
fail are reported; the model stays usable with the rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			m, c, err := opts.openModel()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := loadModel(ctx, m, opts.status); err != nil {
				return err
			}

			ok := 0
			for _, t := range m.Tasks() {
				if t.State() == task.StateSucceeded {
					ok++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ready: %d/%d checkpoints loaded\n",
				m.Architecture().Name, ok, len(m.Tasks()))
			return nil
		},
	}
}

// loadModel initializes m and drives d until the model is ready. Failed
// checkpoints are printed above the status line as they settle.
func loadModel(ctx context.Context, m *model.Local, d *display.Display) error {
	tasks, err := m.Initialize(ctx)
	if err != nil {
		return err
	}

	watch := model.Watch(tasks)
	defer watch.Close()

	d.UpdateLabel("load " + m.Architecture().Name)
	d.UpdateSettled(0, len(tasks))
	d.UpdateStatus(display.StatusRunning)
	d.Start()
	defer d.Stop()
	unwatch := d.Watch(watch)
	defer unwatch()

	var (
		mu      sync.Mutex
		settled int
		wg      sync.WaitGroup
	)
	for _, t := range tasks {
		wg.Add(1)
		go func(t *model.LoadTask) {
			defer wg.Done()
			<-t.Done()
			mu.Lock()
			settled++
			d.UpdateSettled(settled, len(tasks))
			mu.Unlock()
			if t.State() == task.StateFailed {
				d.PrintAbove("✗ %s: %v", t.Name(), t.Err())
			}
		}(t)
	}

	err = m.WaitLoaded(ctx)
	wg.Wait()

	switch {
	case err == nil:
		d.UpdateStatus(display.StatusCompleted)
		return nil
	case errors.Is(err, task.ErrAborted) || errors.Is(err, context.Canceled):
		d.UpdateStatus(display.StatusCancelled)
		return fmt.Errorf("loading cancelled")
	default:
		d.UpdateStatus(display.StatusFailed)
		return fmt.Errorf("model not ready: %w", err)
	}
}
