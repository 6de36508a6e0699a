package engine

import "fmt"

// Reactive wraps one entity's component of type T so that every write
// through the wrapper both stores the value and flags it dirty. It is
// the convenience layer over Set plus MarkDirty; systems that prefer
// explicit marking can ignore it entirely.
type Reactive[T any] struct {
	world *World
	owner Entity
	id    ComponentID
	st    *store[T]
}

// Wrap builds a Reactive accessor for an existing component. The world
// must have been created with EnableProxyTracking, the entity must be
// alive and the component present.
func Wrap[T any](w *World, e Entity) (*Reactive[T], error) {
	if !w.cfg.EnableProxyTracking {
		return nil, fmt.Errorf("wrap component: proxy tracking disabled")
	}
	id, st, err := typedStore[T](w)
	if err != nil {
		return nil, fmt.Errorf("wrap component: %w", err)
	}
	w.mu.RLock()
	m, err := w.metaFor(e)
	present := err == nil && m.comps.has(id)
	w.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("wrap component: %w", err)
	}
	if !present {
		return nil, fmt.Errorf("wrap component %q: %w", st.name, ErrComponentNotPresent)
	}
	return &Reactive[T]{world: w, owner: e, id: id, st: st}, nil
}

// Entity returns the wrapped entity handle
func (r *Reactive[T]) Entity() Entity {
	return r.owner
}

// Get returns the current component value. The second return is false
// when the entity has died or the component was removed since Wrap.
func (r *Reactive[T]) Get() (T, bool) {
	var zero T
	w := r.world
	w.mu.RLock()
	defer w.mu.RUnlock()
	if _, err := w.metaFor(r.owner); err != nil {
		return zero, false
	}
	v, ok := r.st.get(r.owner)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set validates and stores the value, then flags the component dirty
// so watchers are notified at the end of the tick
func (r *Reactive[T]) Set(v T) error {
	if err := r.st.check(&v); err != nil {
		return fmt.Errorf("reactive set: %w", err)
	}
	w := r.world
	w.mu.Lock()
	defer w.mu.Unlock()
	m, err := w.metaFor(r.owner)
	if err != nil {
		return fmt.Errorf("reactive set: %w", err)
	}
	if !m.comps.has(r.id) {
		return fmt.Errorf("reactive set %q: %w", r.st.name, ErrComponentNotPresent)
	}
	w.captureBaseline(r.owner, r.id, r.st)
	r.st.set(r.owner, v)
	w.flagChange(dirtyKey{entity: r.owner, id: r.id})
	return nil
}

// Update applies an in-place mutation and stores the result as Set
// does. The closure sees a copy; returning without modifying it still
// counts as a write.
func (r *Reactive[T]) Update(fn func(*T)) error {
	v, ok := r.Get()
	if !ok {
		return fmt.Errorf("reactive update %q: %w", r.st.name, ErrComponentNotPresent)
	}
	fn(&v)
	return r.Set(v)
}
