package progress

import "sync"

// Listener receives a progress value in [0,1].
type Listener func(value float64)

// ListenerID identifies a registered listener so it can be removed later.
type ListenerID uint64

// listenerSet is a registry of listeners that tolerates add/remove calls
// from inside a listener callback.
type listenerSet struct {
	mu     sync.Mutex
	nextID ListenerID
	fns    map[ListenerID]Listener
	order  []ListenerID
}

func (s *listenerSet) add(fn Listener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[ListenerID]Listener)
	}
	s.nextID++
	id := s.nextID
	s.fns[id] = fn
	s.order = append(s.order, id)
	return id
}

func (s *listenerSet) remove(id ListenerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fns[id]; !ok {
		return false
	}
	delete(s.fns, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *listenerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// notify calls every listener with value. The set is snapshotted first and
// each listener is looked up again right before it is called, so a listener
// removed by an earlier callback is skipped.
func (s *listenerSet) notify(value float64) {
	s.mu.Lock()
	ids := make([]ListenerID, len(s.order))
	copy(ids, s.order)
	s.mu.Unlock()

	for _, id := range ids {
		s.mu.Lock()
		fn, ok := s.fns[id]
		s.mu.Unlock()
		if ok {
			fn(value)
		}
	}
}

// dispatcher serializes deliveries to a listenerSet. Each delivery reads
// the owner's value at delivery time, so concurrent changes reach listeners
// in commit order and the last value delivered is always the latest one.
// Delivery is synchronous: when publish returns, every listener has seen a
// value at least as recent as the change that triggered it. Listeners must
// not change the owner that is notifying them.
type dispatcher struct {
	listenerSet

	deliverMu sync.Mutex
}

// reader reads the owner's committed value; ok is false once the owner is
// detached and nothing more should be delivered.
type reader func() (value float64, ok bool)

// publish delivers the current value to every listener.
func (d *dispatcher) publish(read reader) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	if v, ok := read(); ok {
		d.notify(v)
	}
}

// follow registers fn and delivers the current value to it alone, ordered
// with every other delivery.
func (d *dispatcher) follow(fn Listener, read reader) ListenerID {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	id := d.add(fn)
	if v, ok := read(); ok {
		fn(v)
	}
	return id
}
