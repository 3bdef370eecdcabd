package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Readiness polling defaults.
const (
	DefaultPollInterval = 300 * time.Millisecond
	DefaultPollAttempts = 100
)

// Status is one row of the readiness table.
type Status struct {
	Category Category
	ID       ID
	Ready    bool
}

// Registry holds the engines of a session and answers readiness questions.
// Engines may be added at any time, e.g. once a slow engine finished loading.
type Registry struct {
	mu       sync.RWMutex
	markup   map[ID]Markup
	math     map[ID]Engine
	diagrams Diagrams
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		markup: make(map[ID]Markup),
		math:   make(map[ID]Engine),
	}
}

// AddMarkup registers a markup engine, replacing one with the same ID.
func (r *Registry) AddMarkup(m Markup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markup[m.ID()] = m
}

// AddMath registers a math engine. It must implement InPlaceMath,
// PreMarkupMath or both.
func (r *Registry) AddMath(m Engine) error {
	_, inPlace := m.(InPlaceMath)
	_, preMarkup := m.(PreMarkupMath)
	if !inPlace && !preMarkup {
		return fmt.Errorf("%w: %q implements no math capability", ErrUnknownEngine, m.ID())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.math[m.ID()] = m
	return nil
}

// SetDiagrams registers the diagram engine.
func (r *Registry) SetDiagrams(d Diagrams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diagrams = d
}

// Markup returns the markup engine with the given ID.
func (r *Registry) Markup(id ID) (Markup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markup[id]
	if !ok {
		return nil, fmt.Errorf("%w: markup %q", ErrUnknownEngine, id)
	}
	return m, nil
}

// HasMath reports whether a math engine with the ID is registered.
// NoMath is always known.
func (r *Registry) HasMath(id ID) bool {
	if id == NoMath {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.math[id]
	return ok
}

// InPlaceMath returns the in-place capability of the math engine id.
func (r *Registry) InPlaceMath(id ID) (InPlaceMath, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.math[id].(InPlaceMath)
	return m, ok
}

// PreMarkupMath returns the pre-markup capability of the math engine id.
func (r *Registry) PreMarkupMath(id ID) (PreMarkupMath, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.math[id].(PreMarkupMath)
	return m, ok
}

// Diagrams returns the diagram engine, or nil.
func (r *Registry) Diagrams() Diagrams {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.diagrams
}

// Snapshot returns the readiness of every registered engine.
func (r *Registry) Snapshot() map[ID]bool {
	table := r.Table()
	out := make(map[ID]bool, len(table))
	for _, s := range table {
		out[s.ID] = s.Ready
	}
	return out
}

// Table returns the readiness table sorted by category then ID.
func (r *Registry) Table() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Status
	for id, m := range r.markup {
		out = append(out, Status{Category: CategoryMarkup, ID: id, Ready: m.Ready()})
	}
	for id, m := range r.math {
		out = append(out, Status{Category: CategoryMath, ID: id, Ready: m.Ready()})
	}
	if r.diagrams != nil {
		out = append(out, Status{Category: CategoryDiagram, ID: r.diagrams.ID(), Ready: r.diagrams.Ready()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MinimumReady reports whether at least one markup engine and one math
// engine are ready.
func (r *Registry) MinimumReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	markupReady := false
	for _, m := range r.markup {
		if m.Ready() {
			markupReady = true
			break
		}
	}
	if !markupReady {
		return false
	}
	for _, m := range r.math {
		if m.Ready() {
			return true
		}
	}
	return false
}

// WaitReady polls MinimumReady every interval until it holds, maxAttempts
// polls were made (ErrEngineUnavailable) or ctx is done.
// Non-positive arguments use DefaultPollInterval and DefaultPollAttempts.
func (r *Registry) WaitReady(ctx context.Context, interval time.Duration, maxAttempts int) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollAttempts
	}

	if r.MinimumReady() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if r.MinimumReady() {
			return nil
		}
	}
	return fmt.Errorf("%w: %d polls every %v", ErrEngineUnavailable, maxAttempts, interval)
}
