package engine

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// World owns all runtime state: the component registry, entity
// metadata, per-type stores, live queries, systems and the change
// tracker. Nothing is process-global; several worlds can coexist.
//
// Execution is single-threaded and cooperative: one goroutine calls
// Update and the mutating API. The internal locks exist so auxiliary
// goroutines (status displays, debug dumps) can read concurrently;
// they never change observable callback ordering, and no user callback
// runs while a lock is held.
type World struct {
	mu    sync.RWMutex
	cfg   Config
	log   *zap.Logger
	clock TimeProvider

	// component registry, indexed by ComponentID
	byName map[string]ComponentID
	byType map[reflect.Type]ComponentID
	stores []storage

	// entity metadata, indexed by Entity.ID; slot 0 is never issued
	meta         []entityMeta
	free         []uint32
	aliveCount   int
	pendingCount int
	destroyQueue []Entity

	// live queries and their interest indexes
	queries      []*Query
	compInterest map[ComponentID][]*Query
	tagInterest  map[string][]*Query

	// systems
	systems   []*System
	sysByName map[string]*System
	execOrder []*System

	// tick state
	acc       time.Duration
	fixedStep time.Duration
	frame     uint64

	// change tracking
	watchers    map[ComponentID][]*System
	changes     map[dirtyKey]*changeRecord
	changeOrder []dirtyKey

	// singletons, keyed by ComponentID
	singletons map[ComponentID]any

	// prefab templates by name
	prefabs map[string]Prefab

	metrics *worldMetrics
}

// NewWorld creates a world from the given configuration
func NewWorld(cfg Config) *World {
	cfg = cfg.withDefaults()
	w := &World{
		cfg:          cfg,
		log:          cfg.Logger,
		clock:        cfg.Clock,
		byName:       make(map[string]ComponentID),
		byType:       make(map[reflect.Type]ComponentID),
		meta:         make([]entityMeta, 1, 256), // slot 0 reserved as nil
		compInterest: make(map[ComponentID][]*Query),
		tagInterest:  make(map[string][]*Query),
		sysByName:    make(map[string]*System),
		fixedStep:    cfg.fixedStep(),
		watchers:     make(map[ComponentID][]*System),
		changes:      make(map[dirtyKey]*changeRecord),
		singletons:   make(map[ComponentID]any),
		prefabs:      make(map[string]Prefab),
	}
	if cfg.Status != nil {
		w.metrics = newWorldMetrics(cfg.Status)
	}
	return w
}

// metaFor resolves a handle to its live metadata. Caller holds w.mu.
func (w *World) metaFor(e Entity) (*entityMeta, error) {
	if e.ID == 0 || int(e.ID) >= len(w.meta) {
		return nil, ErrUnknownEntity
	}
	m := &w.meta[e.ID]
	if !m.alive || m.version != e.Version {
		return nil, ErrUnknownEntity
	}
	return m, nil
}

// CreateEntity creates a new entity with an optional display name and
// returns its handle
func (w *World) CreateEntity(name string) Entity {
	w.mu.Lock()

	var id uint32
	if n := len(w.free); n > 0 {
		id = w.free[n-1]
		w.free = w.free[:n-1]
		m := &w.meta[id]
		m.alive = true
		m.pending = false
		m.name = name
		m.comps = mask256{}
		m.tags = nil
	} else {
		id = uint32(len(w.meta))
		w.meta = append(w.meta, entityMeta{version: 1, alive: true, name: name})
	}
	e := w.meta[id].handle(id)
	w.aliveCount++

	// A bare entity can only match constraint-free queries, but the
	// per-query check is cheap and keeps one code path
	for _, q := range w.queries {
		w.reevaluateQuery(q, e)
	}
	w.mu.Unlock()
	return e
}

// DestroyEntity immediately removes the entity, its components and its
// query memberships. Watching systems receive removal callbacks for
// each attached component. Prefer QueueFree inside system callbacks.
func (w *World) DestroyEntity(e Entity) error {
	if err := w.destroyNow(e); err != nil {
		return fmt.Errorf("destroy entity: %w", err)
	}
	return nil
}

// destroyNow performs the physical removal and fires removal callbacks
func (w *World) destroyNow(e Entity) error {
	w.mu.Lock()
	m, err := w.metaFor(e)
	if err != nil {
		w.mu.Unlock()
		return err
	}

	type firing struct {
		sys *System
		id  ComponentID
	}
	var fires []firing
	for id := ComponentID(0); int(id) < len(w.stores); id++ {
		if !m.comps.has(id) {
			continue
		}
		w.stores[id].removeAny(e)
		delete(w.changes, dirtyKey{entity: e, id: id})
		for _, s := range w.watchers[id] {
			if s.onRemoved != nil {
				fires = append(fires, firing{s, id})
			}
		}
	}

	if m.pending {
		w.pendingCount--
	}
	m.alive = false
	m.pending = false
	m.version++
	m.name = ""
	m.tags = nil
	m.comps = mask256{}
	w.free = append(w.free, e.ID)
	w.aliveCount--

	for _, q := range w.queries {
		q.drop(e)
	}
	w.mu.Unlock()

	for _, f := range fires {
		if f.sys.enabled.Load() {
			f.sys.onRemoved(w, e, f.id)
		}
	}
	return nil
}

// QueueFree marks the entity for destruction at the end of the current
// tick. It leaves every query result set at once, but stays alive, so
// a system pass already iterating it can still read its components.
// Queue-freeing an already-pending entity is a no-op.
func (w *World) QueueFree(e Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	m, err := w.metaFor(e)
	if err != nil {
		return fmt.Errorf("queue free: %w", err)
	}
	if m.pending {
		return nil
	}
	m.pending = true
	w.pendingCount++
	w.destroyQueue = append(w.destroyQueue, e)
	for _, q := range w.queries {
		q.drop(e)
	}
	return nil
}

// flushDestroyQueue physically removes queue-freed entities. Removal
// callbacks may queue further entities; the loop drains until empty.
func (w *World) flushDestroyQueue() {
	for {
		w.mu.Lock()
		if len(w.destroyQueue) == 0 {
			w.mu.Unlock()
			return
		}
		batch := w.destroyQueue
		w.destroyQueue = nil
		w.mu.Unlock()

		for _, e := range batch {
			// Stale entries (already destroyed directly) are skipped
			_ = w.destroyNow(e)
		}
	}
}

// IsAlive reports whether the handle refers to a live entity. Entities
// pending destruction are still alive until the end-of-tick flush.
func (w *World) IsAlive(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, err := w.metaFor(e)
	return err == nil
}

// IsPendingDestroy reports whether the entity has been queue-freed and
// awaits the end-of-tick flush
func (w *World) IsPendingDestroy(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, err := w.metaFor(e)
	return err == nil && m.pending
}

// EntityCount returns the number of live entities, including those
// pending destruction
func (w *World) EntityCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.aliveCount
}

// EntityName returns the display name of the entity
func (w *World) EntityName(e Entity) (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, err := w.metaFor(e)
	if err != nil {
		return "", fmt.Errorf("entity name: %w", err)
	}
	return m.name, nil
}

// SetEntityName updates the display name. Names are labels, not keys;
// uniqueness is not enforced.
func (w *World) SetEntityName(e Entity, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, err := w.metaFor(e)
	if err != nil {
		return fmt.Errorf("set entity name: %w", err)
	}
	m.name = name
	return nil
}

// AddTag attaches a string tag. Adding a present tag is a no-op.
func (w *World) AddTag(e Entity, tag string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, err := w.metaFor(e)
	if err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	if m.tags == nil {
		m.tags = make(map[string]struct{}, 4)
	} else if _, ok := m.tags[tag]; ok {
		return nil
	}
	m.tags[tag] = struct{}{}
	for _, q := range w.tagInterest[tag] {
		w.reevaluateQuery(q, e)
	}
	return nil
}

// RemoveTag detaches a tag. Removing an absent tag is a no-op.
func (w *World) RemoveTag(e Entity, tag string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, err := w.metaFor(e)
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	if _, ok := m.tags[tag]; !ok {
		return nil
	}
	delete(m.tags, tag)
	for _, q := range w.tagInterest[tag] {
		w.reevaluateQuery(q, e)
	}
	return nil
}

// HasTag reports whether the entity carries the tag
func (w *World) HasTag(e Entity, tag string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, err := w.metaFor(e)
	if err != nil {
		return false
	}
	_, ok := m.tags[tag]
	return ok
}

// Tags returns the entity's tags in sorted order
func (w *World) Tags(e Entity) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, err := w.metaFor(e)
	if err != nil || len(m.tags) == 0 {
		return nil
	}
	tags := make([]string, 0, len(m.tags))
	for t := range m.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// attach writes a component through the supplied store write and keeps
// the mask, baselines, queries and watcher callbacks consistent. The
// value must already be validated.
func (w *World) attach(e Entity, id ComponentID, st storage, write func()) error {
	w.mu.Lock()
	m, err := w.metaFor(e)
	if err != nil {
		w.mu.Unlock()
		return err
	}

	present := m.comps.has(id)
	if present {
		w.captureBaseline(e, id, st)
	}
	write()

	var added []*System
	if !present {
		m.comps.set(id)
		for _, q := range w.compInterest[id] {
			w.reevaluateQuery(q, e)
		}
		for _, s := range w.watchers[id] {
			if s.onAdded != nil {
				added = append(added, s)
			}
		}
	}
	w.mu.Unlock()

	for _, s := range added {
		if s.enabled.Load() {
			s.onAdded(w, e, id)
		}
	}
	return nil
}

// detach removes a component, cancels its pending change record and
// fires removal callbacks on watching systems
func (w *World) detach(e Entity, id ComponentID, st storage) error {
	w.mu.Lock()
	m, err := w.metaFor(e)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if !m.comps.has(id) {
		w.mu.Unlock()
		return fmt.Errorf("component %q: %w", st.componentName(), ErrComponentNotPresent)
	}

	st.removeAny(e)
	m.comps.clear(id)
	delete(w.changes, dirtyKey{entity: e, id: id})
	for _, q := range w.compInterest[id] {
		w.reevaluateQuery(q, e)
	}
	var removed []*System
	for _, s := range w.watchers[id] {
		if s.onRemoved != nil {
			removed = append(removed, s)
		}
	}
	w.mu.Unlock()

	for _, s := range removed {
		if s.enabled.Load() {
			s.onRemoved(w, e, id)
		}
	}
	return nil
}

// AddComponentByID attaches or overwrites a component through the
// dynamic surface used by prefabs, plugins and serializers. A nil
// value selects the type's default construction.
func (w *World) AddComponentByID(e Entity, id ComponentID, v any) error {
	w.mu.RLock()
	st := w.storeByID(id)
	w.mu.RUnlock()
	if st == nil {
		return fmt.Errorf("add component: unknown component id %d", id)
	}
	if v == nil {
		v = st.defaultAny()
	}
	val, err := st.validateAny(v)
	if err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	if err := w.attach(e, id, st, func() { st.storeAny(e, val) }); err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	return nil
}

// ComponentByID returns the component value, or ErrComponentNotPresent
// when the entity does not carry the type
func (w *World) ComponentByID(e Entity, id ComponentID) (any, error) {
	w.mu.RLock()
	st := w.storeByID(id)
	if st == nil {
		w.mu.RUnlock()
		return nil, fmt.Errorf("component: unknown component id %d", id)
	}
	m, err := w.metaFor(e)
	if err != nil {
		w.mu.RUnlock()
		return nil, fmt.Errorf("component: %w", err)
	}
	if !m.comps.has(id) {
		w.mu.RUnlock()
		return nil, fmt.Errorf("component %q: %w", st.componentName(), ErrComponentNotPresent)
	}
	w.mu.RUnlock()

	v, _ := st.getAny(e)
	return v, nil
}

// RemoveComponentByID detaches a component through the dynamic surface
func (w *World) RemoveComponentByID(e Entity, id ComponentID) error {
	w.mu.RLock()
	st := w.storeByID(id)
	w.mu.RUnlock()
	if st == nil {
		return fmt.Errorf("remove component: unknown component id %d", id)
	}
	if err := w.detach(e, id, st); err != nil {
		return fmt.Errorf("remove component: %w", err)
	}
	return nil
}

// HasComponentByID reports whether the entity carries the component
func (w *World) HasComponentByID(e Entity, id ComponentID) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, err := w.metaFor(e)
	if err != nil {
		return false
	}
	return m.comps.has(id)
}
