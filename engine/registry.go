package engine

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// MaxComponentTypes is the ceiling on registered component types per
// world, fixed by the 256-bit component mask
const MaxComponentTypes = 256

// ComponentID is the stable integer key a component type receives at
// registration. Every lookup after registration goes through the ID;
// reflection is used once, at registration, to capture type identity
// and size.
type ComponentID uint16

// ComponentOptions carries the optional registration metadata for a
// component type
type ComponentOptions[T any] struct {
	// Validate is invoked on every add and overwrite. Returning an
	// error rejects the value and leaves the store untouched.
	Validate func(*T) error

	// Default constructs the instance used by prefabs and stamping
	// when no value is supplied. Nil means the zero value.
	Default func() T
}

// RegisterComponent registers T under the given name and returns its
// ComponentID. Names and Go types must both be unique within a world.
func RegisterComponent[T any](w *World, name string) (ComponentID, error) {
	return RegisterComponentWith[T](w, name, ComponentOptions[T]{})
}

// RegisterComponentWith registers T with a validator and default
// constructor
func RegisterComponentWith[T any](w *World, name string, opts ComponentOptions[T]) (ComponentID, error) {
	if name == "" {
		return 0, fmt.Errorf("register component: empty name")
	}
	rt := reflect.TypeFor[T]()

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.byName[name]; ok {
		return 0, fmt.Errorf("register component %q: name already registered", name)
	}
	if _, ok := w.byType[rt]; ok {
		return 0, fmt.Errorf("register component %q: type %v already registered", name, rt)
	}
	if len(w.stores) >= MaxComponentTypes {
		return 0, fmt.Errorf("register component %q: limit of %d types reached", name, MaxComponentTypes)
	}

	id := ComponentID(len(w.stores))
	st := newStore[T](id, name, rt.Size(), opts)
	w.stores = append(w.stores, st)
	w.byName[name] = id
	w.byType[rt] = id

	if w.cfg.Debug {
		w.log.Debug("component registered",
			zap.String("component", name), zap.Uint16("id", uint16(id)))
	}
	return id, nil
}

// TypeID returns the ComponentID registered for T
func TypeID[T any](w *World) (ComponentID, bool) {
	rt := reflect.TypeFor[T]()
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.byType[rt]
	return id, ok
}

// ComponentID resolves a registered component name to its ID
func (w *World) ComponentID(name string) (ComponentID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.byName[name]
	return id, ok
}

// ComponentName returns the registered name for an ID
func (w *World) ComponentName(id ComponentID) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if int(id) >= len(w.stores) {
		return "", false
	}
	return w.stores[id].componentName(), true
}

// ComponentTypes returns the number of registered component types
func (w *World) ComponentTypes() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.stores)
}

// storeByID returns the storage for id, or nil when out of range.
// Caller must hold w.mu.
func (w *World) storeByID(id ComponentID) storage {
	if int(id) >= len(w.stores) {
		return nil
	}
	return w.stores[id]
}
