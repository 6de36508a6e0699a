package engine

import "fmt"

// SetSingleton stores the world-owned instance of component type T.
// Singletons are not attached to any entity; watching systems receive
// their change notifications through MarkSingletonDirty with the nil
// entity. The registered validator applies.
func SetSingleton[T any](w *World, v T) error {
	id, st, err := typedStore[T](w)
	if err != nil {
		return fmt.Errorf("set singleton: %w", err)
	}
	if err := st.check(&v); err != nil {
		return fmt.Errorf("set singleton: %w", err)
	}
	w.mu.Lock()
	w.captureSingletonBaseline(id)
	w.singletons[id] = v
	w.mu.Unlock()
	return nil
}

// Singleton returns the world-owned instance of T
func Singleton[T any](w *World) (T, bool) {
	var zero T
	id, _, err := typedStore[T](w)
	if err != nil {
		return zero, false
	}
	w.mu.RLock()
	v, ok := w.singletons[id]
	w.mu.RUnlock()
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// SetSingletonByID is the dynamic flavor used by plugins and scripts.
// A nil value selects the type's default construction.
func (w *World) SetSingletonByID(id ComponentID, v any) error {
	w.mu.RLock()
	st := w.storeByID(id)
	w.mu.RUnlock()
	if st == nil {
		return fmt.Errorf("set singleton: unknown component id %d", id)
	}
	if v == nil {
		v = st.defaultAny()
	}
	val, err := st.validateAny(v)
	if err != nil {
		return fmt.Errorf("set singleton: %w", err)
	}
	w.mu.Lock()
	w.captureSingletonBaseline(id)
	w.singletons[id] = val
	w.mu.Unlock()
	return nil
}

// SingletonByID returns the singleton value, or ErrComponentNotPresent
// when none has been set
func (w *World) SingletonByID(id ComponentID) (any, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := w.storeByID(id)
	if st == nil {
		return nil, fmt.Errorf("singleton: unknown component id %d", id)
	}
	v, ok := w.singletons[id]
	if !ok {
		return nil, fmt.Errorf("singleton %q: %w", st.componentName(), ErrComponentNotPresent)
	}
	return v, nil
}
