package progress

import "sync"

// Source is anything whose progress can be observed.
type Source interface {
	Value() float64
	AddListener(fn Listener) ListenerID
	// Follow is AddListener plus one ordered delivery of the current value.
	Follow(fn Listener) ListenerID
	RemoveListener(id ListenerID) bool
}

// Computed aggregates a fixed set of sources into one value: the equally
// weighted arithmetic mean of the sources' current values.
//
// A source that stalls (for example because its task failed) keeps its last
// value, so the aggregate stays below 1. Callers that care about failures
// must inspect the tasks themselves.
type Computed struct {
	sources []Source
	subs    []ListenerID

	mu     sync.Mutex
	last   []float64
	value  float64
	closed bool

	listeners dispatcher
}

// NewComputed subscribes to sources and returns their aggregate. The list is
// copied; later changes to the caller's slice are not tracked.
func NewComputed(sources ...Source) *Computed {
	c := &Computed{
		sources: append([]Source(nil), sources...),
		last:    make([]float64, len(sources)),
	}
	for i, src := range c.sources {
		c.last[i] = src.Value()
	}
	c.value = mean(c.last)

	// Follow rather than AddListener: a change between the snapshot above
	// and the subscription is redelivered instead of lost.
	c.subs = make([]ListenerID, len(c.sources))
	for i, src := range c.sources {
		c.subs[i] = src.Follow(func(v float64) { c.update(i, v) })
	}
	return c
}

// Value returns the current aggregate.
func (c *Computed) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Len returns the number of aggregated sources.
func (c *Computed) Len() int {
	return len(c.sources)
}

// AddListener registers fn to receive the aggregate on every recomputation.
// Listeners stay registered until removed; see OnComplete for a one-shot
// registration.
func (c *Computed) AddListener(fn Listener) ListenerID {
	return c.listeners.add(fn)
}

// Follow registers fn and also delivers the current aggregate to it.
func (c *Computed) Follow(fn Listener) ListenerID {
	return c.listeners.follow(fn, c.current)
}

// RemoveListener unregisters a listener. Safe to call from inside fn.
func (c *Computed) RemoveListener(id ListenerID) bool {
	return c.listeners.remove(id)
}

// OnComplete calls fn exactly once with the aggregate the first time it
// reaches 1. If the aggregate is already complete, fn is called immediately.
func (c *Computed) OnComplete(fn Listener) {
	if v := c.Value(); v >= 1 {
		fn(v)
		return
	}

	var (
		once sync.Once
		id   ListenerID
		ch   = make(chan struct{})
	)
	id = c.listeners.add(func(v float64) {
		if v < 1 {
			return
		}
		<-ch
		once.Do(func() {
			c.listeners.remove(id)
			fn(v)
		})
	})
	close(ch)

	// A source may have completed between the first check and the add.
	if v := c.Value(); v >= 1 {
		once.Do(func() {
			c.listeners.remove(id)
			fn(v)
		})
	}
}

// Close detaches the aggregate from its sources. Listeners are not called
// after Close returns.
func (c *Computed) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	for i, src := range c.sources {
		src.RemoveListener(c.subs[i])
	}
}

func (c *Computed) update(i int, v float64) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.last[i] = v
	c.value = mean(c.last)
	c.mu.Unlock()

	c.listeners.publish(c.current)
}

func (c *Computed) current() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, !c.closed
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 1
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
