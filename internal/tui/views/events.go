package views

import tea "github.com/charmbracelet/bubbletea"

// eventBus carries messages from task goroutines and progress listeners into
// the Bubble Tea loop.
type eventBus chan tea.Msg

func newEventBus(size int) eventBus {
	return make(eventBus, size)
}

// listen returns a command that waits for the next message.
func (b eventBus) listen() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-b
		if !ok {
			return nil
		}
		return msg
	}
}

// offer sends msg unless the bus is full. Progress updates are lossy; the
// next one supersedes a dropped one.
func (b eventBus) offer(msg tea.Msg) {
	select {
	case b <- msg:
	default:
	}
}
