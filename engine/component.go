package engine

import (
	"fmt"
	"reflect"
)

// typedStore resolves the registered store for T. The reflect.Type
// lookup is the registration-time map; everything past this point is
// ID-indexed.
func typedStore[T any](w *World) (ComponentID, *store[T], error) {
	rt := reflect.TypeFor[T]()
	w.mu.RLock()
	id, ok := w.byType[rt]
	var st storage
	if ok {
		st = w.stores[id]
	}
	w.mu.RUnlock()
	if !ok {
		return 0, nil, fmt.Errorf("component type %v not registered", rt)
	}
	return id, st.(*store[T]), nil
}

// Add attaches a component to the entity, or overwrites the value when
// the type is already present. The registered validator runs first;
// rejection returns ErrInvalidComponentState and leaves the store
// untouched. A fresh attach raises OnComponentAdded on watching
// systems and updates live queries immediately.
func Add[T any](w *World, e Entity, v T) error {
	id, st, err := typedStore[T](w)
	if err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	if err := st.check(&v); err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	if err := w.attach(e, id, st, func() { st.set(e, v) }); err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	return nil
}

// Set is the overwrite-flavored synonym of Add: the write primitive
// for mutate-and-mark call sites
func Set[T any](w *World, e Entity, v T) error {
	return Add(w, e, v)
}

// Get returns the component value for the entity. The second result is
// false when the entity is dead or does not carry the type; the
// dynamic surface (ComponentByID) reports the distinction as errors.
func Get[T any](w *World, e Entity) (T, bool) {
	var zero T
	id, st, err := typedStore[T](w)
	if err != nil {
		return zero, false
	}
	w.mu.RLock()
	m, merr := w.metaFor(e)
	ok := merr == nil && m.comps.has(id)
	w.mu.RUnlock()
	if !ok {
		return zero, false
	}
	return st.get(e)
}

// Has reports whether the entity carries component type T
func Has[T any](w *World, e Entity) bool {
	id, _, err := typedStore[T](w)
	if err != nil {
		return false
	}
	return w.HasComponentByID(e, id)
}

// Remove detaches component type T. Removing an absent type fails with
// ErrComponentNotPresent; a stale handle fails with ErrUnknownEntity.
func Remove[T any](w *World, e Entity) error {
	id, st, err := typedStore[T](w)
	if err != nil {
		return fmt.Errorf("remove component: %w", err)
	}
	if err := w.detach(e, id, st); err != nil {
		return fmt.Errorf("remove component: %w", err)
	}
	return nil
}
