// Package registry resolves a requested (sources, target) combination to a
// loaded backend, falling back to wildcard slots when no exact backend was
// declared.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pablasso/sidegen/internal/domain"
)

var (
	// ErrNotImplemented is reported for request shapes the design does not
	// support, such as several target domains at once.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidRequest is reported for requests without sources or targets.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDuplicate is returned when a slot is populated twice.
	ErrDuplicate = errors.New("slot already populated")
)

// ValidationError describes an unsupported resolution request.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("resolve generator: %s: %v", e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Registry is a two-level map from source domain (or Many) to target domain
// (or Any) to a value. It is populated during loading and read afterwards;
// all methods are safe for concurrent use.
type Registry[V any] struct {
	mu    sync.RWMutex
	slots map[domain.Domain]map[domain.Domain]V
}

// New creates an empty registry.
func New[V any]() *Registry[V] {
	return &Registry[V]{slots: make(map[domain.Domain]map[domain.Domain]V)}
}

// Insert stores v at (source, target). A populated slot is never overwritten.
func (r *Registry[V]) Insert(source, target domain.Domain, v V) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets, ok := r.slots[source]
	if !ok {
		targets = make(map[domain.Domain]V)
		r.slots[source] = targets
	}
	if _, exists := targets[target]; exists {
		return fmt.Errorf("insert %s-to-%s: %w", source, target, ErrDuplicate)
	}
	targets[target] = v
	return nil
}

// Get returns the value stored exactly at (source, target).
func (r *Registry[V]) Get(source, target domain.Domain) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.slots[source][target]
	return v, ok
}

// Resolve finds the value that should serve a request for sources → targets.
//
// Several targets are not supported. Several sources resolve through the
// Many slot. A single source tries, in order: exact source and target,
// exact source with Any target, Any source with exact target, and Any/Any.
//
// When no slot is populated Resolve returns ok == false and a nil error;
// detecting that configuration problem is the caller's job.
func (r *Registry[V]) Resolve(sources, targets []domain.Domain) (v V, ok bool, err error) {
	switch {
	case len(targets) > 1:
		return v, false, &ValidationError{
			Reason: fmt.Sprintf("%d target domains requested", len(targets)),
			Err:    ErrNotImplemented,
		}
	case len(targets) == 0:
		return v, false, &ValidationError{Reason: "no target domain", Err: ErrInvalidRequest}
	case len(sources) == 0:
		return v, false, &ValidationError{Reason: "no source domain", Err: ErrInvalidRequest}
	}

	target := targets[0]
	for _, key := range candidates(sources, target) {
		if v, ok := r.Get(key.Source, key.Target); ok {
			return v, true, nil
		}
	}
	return v, false, nil
}

// candidates lists the slots to probe, closest match first.
func candidates(sources []domain.Domain, target domain.Domain) []domain.Pair {
	if len(sources) > 1 {
		return []domain.Pair{
			{Source: domain.Many, Target: target},
			{Source: domain.Many, Target: domain.Any},
		}
	}
	source := sources[0]
	return []domain.Pair{
		{Source: source, Target: target},
		{Source: source, Target: domain.Any},
		{Source: domain.Any, Target: target},
		{Source: domain.Any, Target: domain.Any},
	}
}

// Len returns the number of populated slots.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, targets := range r.slots {
		n += len(targets)
	}
	return n
}

// Keys returns every populated slot, sorted by source then target.
func (r *Registry[V]) Keys() []domain.Pair {
	r.mu.RLock()
	keys := make([]domain.Pair, 0)
	for s, targets := range r.slots {
		for t := range targets {
			keys = append(keys, domain.Pair{Source: s, Target: t})
		}
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Source != keys[j].Source {
			return keys[i].Source < keys[j].Source
		}
		return keys[i].Target < keys[j].Target
	})
	return keys
}
