package engine

import (
	"fmt"
	"sync"
)

// storage is the type-erased face of a per-type component store. The
// world addresses stores by ComponentID; the generic accessors reach
// the typed store underneath via assertion.
type storage interface {
	componentID() ComponentID
	componentName() string
	typeSize() uintptr

	// storeAny writes a value that already passed validateAny or came
	// from decodeAny/defaultAny
	storeAny(e Entity, v any)
	getAny(e Entity) (any, bool)
	removeAny(e Entity) bool
	hasAny(e Entity) bool
	count() int

	defaultAny() any
	matchesType(v any) bool
	validateAny(v any) (any, error)

	// decodeAny funnels a codec's unmarshal function into the concrete
	// type, so serializers and prefab loaders never reflect over
	// component types themselves
	decodeAny(unmarshal func(any) error) (any, error)
}

// store holds all instances of one component type, keyed by entity.
// Values are stored by value; a map insert copies, which is what gives
// the change tracker its pre-write baselines for free.
type store[T any] struct {
	mu       sync.RWMutex
	id       ComponentID
	name     string
	size     uintptr
	data     map[Entity]T
	validate func(*T) error
	makeNew  func() T
}

func newStore[T any](id ComponentID, name string, size uintptr, opts ComponentOptions[T]) *store[T] {
	return &store[T]{
		id:       id,
		name:     name,
		size:     size,
		data:     make(map[Entity]T, 64),
		validate: opts.Validate,
		makeNew:  opts.Default,
	}
}

func (s *store[T]) componentID() ComponentID { return s.id }
func (s *store[T]) componentName() string    { return s.name }
func (s *store[T]) typeSize() uintptr        { return s.size }

// get retrieves the component for an entity
func (s *store[T]) get(e Entity) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[e]
	return val, ok
}

// set inserts or overwrites the component for an entity. The value has
// already passed validation.
func (s *store[T]) set(e Entity, val T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[e] = val
}

// remove deletes the component, reporting whether it was present
func (s *store[T]) remove(e Entity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[e]; !ok {
		return false
	}
	delete(s.data, e)
	return true
}

func (s *store[T]) has(e Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[e]
	return ok
}

// check runs the registered validator against val
func (s *store[T]) check(val *T) error {
	if s.validate == nil {
		return nil
	}
	if err := s.validate(val); err != nil {
		return fmt.Errorf("component %q: %w: %v", s.name, ErrInvalidComponentState, err)
	}
	return nil
}

func (s *store[T]) storeAny(e Entity, v any) {
	if val, ok := v.(T); ok {
		s.set(e, val)
	}
}

func (s *store[T]) getAny(e Entity) (any, bool) {
	return s.get(e)
}

func (s *store[T]) removeAny(e Entity) bool {
	return s.remove(e)
}

func (s *store[T]) hasAny(e Entity) bool {
	return s.has(e)
}

func (s *store[T]) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *store[T]) defaultAny() any {
	if s.makeNew != nil {
		return s.makeNew()
	}
	var zero T
	return zero
}

func (s *store[T]) matchesType(v any) bool {
	_, ok := v.(T)
	return ok
}

// validateAny runs the validator against an arbitrary candidate value,
// returning the (possibly normalized) value on success
func (s *store[T]) validateAny(v any) (any, error) {
	val, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("component %q: value type %T does not match registered type", s.name, v)
	}
	if err := s.check(&val); err != nil {
		return nil, err
	}
	return val, nil
}

func (s *store[T]) decodeAny(unmarshal func(any) error) (any, error) {
	var val T
	if s.makeNew != nil {
		val = s.makeNew()
	}
	if err := unmarshal(&val); err != nil {
		return nil, fmt.Errorf("component %q: decode: %w", s.name, err)
	}
	if err := s.check(&val); err != nil {
		return nil, err
	}
	return val, nil
}
