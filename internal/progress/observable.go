// Package progress provides observable progress values and their aggregation.
package progress

import "sync"

// Observable holds a single progress value in [0,1] and notifies listeners
// whenever it changes. Concurrent Sets are delivered in commit order; the
// last value a listener receives is the current one.
type Observable struct {
	mu        sync.Mutex
	value     float64
	listeners dispatcher
}

// NewObservable creates an Observable starting at value (clamped to [0,1]).
func NewObservable(value float64) *Observable {
	return &Observable{value: clamp(value)}
}

// Value returns the current progress.
func (o *Observable) Value() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// Set updates the progress and notifies listeners if the value changed.
// Values outside [0,1] are clamped.
func (o *Observable) Set(value float64) {
	value = clamp(value)

	o.mu.Lock()
	if o.value == value {
		o.mu.Unlock()
		return
	}
	o.value = value
	o.mu.Unlock()

	o.listeners.publish(o.current)
}

// AddListener registers fn to be called on every value change.
func (o *Observable) AddListener(fn Listener) ListenerID {
	return o.listeners.add(fn)
}

// Follow registers fn and also delivers the current value to it, ordered
// with every concurrent change, so a mirror of o cannot end up behind it.
func (o *Observable) Follow(fn Listener) ListenerID {
	return o.listeners.follow(fn, o.current)
}

// RemoveListener unregisters a listener. It reports whether the listener
// was registered.
func (o *Observable) RemoveListener(id ListenerID) bool {
	return o.listeners.remove(id)
}

func (o *Observable) current() (float64, bool) {
	return o.Value(), true
}

func clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
