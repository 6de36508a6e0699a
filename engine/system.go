package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lixenwraith/manifold/status"
)

// ActFunc is the per-entity callback a system runs against its matched
// set. Components are fetched inside via Get/Set; the snapshot the
// system iterates is fixed for the pass.
type ActFunc func(t *Tick, e Entity)

// TransitionFunc receives component attach/detach notifications on
// watching systems, immediately at transition time
type TransitionFunc func(w *World, e Entity, id ComponentID)

// ChangeFunc receives end-of-tick change notifications for watched
// components. old is the value before the tick's first write, cur the
// value after its last. Singleton changes carry the nil entity.
type ChangeFunc func(w *World, e Entity, id ComponentID, old, cur any)

// SystemConfig describes a system registration
type SystemConfig struct {
	// Name is the unique key for enable/disable and ordering constraints
	Name string

	// Priority orders systems when constraints leave a tie; higher runs
	// earlier
	Priority int

	// Query selects the entities the Act callback iterates
	Query QuerySpec

	// Fixed selects the fixed-timestep cadence; otherwise the system
	// runs once per Update with the caller's delta
	Fixed bool

	// Before and After name systems this one must precede or follow.
	// Names not registered yet are allowed; the constraint takes effect
	// when they register.
	Before []string
	After  []string

	// Watch lists component types whose add/remove/change events this
	// system receives
	Watch []ComponentID

	Act                ActFunc
	OnComponentAdded   TransitionFunc
	OnComponentRemoved TransitionFunc
	OnComponentChanged ChangeFunc
}

// System is the registered record. Enabled state is atomic so a system
// disabled mid-tick stops executing within the same tick.
type System struct {
	name      string
	priority  int
	fixed     bool
	before    []string
	after     []string
	watch     []ComponentID
	act       ActFunc
	onAdded   TransitionFunc
	onRemoved TransitionFunc
	onChanged ChangeFunc
	query     *Query
	regIndex  int
	enabled   atomic.Bool

	statsMu     sync.Mutex
	calls       uint64
	avgDuration time.Duration
	lastMatched int

	mAvg *status.AtomicFloat
}

// SystemStats is the profiling snapshot for one system
type SystemStats struct {
	Name        string
	Enabled     bool
	Fixed       bool
	Priority    int
	Calls       uint64
	AvgDuration time.Duration
	LastMatched int
}

// statsWindow bounds the rolling average so it tracks recent behavior
const statsWindow = 100

// recordRun folds one execution into the rolling average
func (s *System) recordRun(d time.Duration, matched int) {
	s.statsMu.Lock()
	s.calls++
	n := s.calls
	if n > statsWindow {
		n = statsWindow
	}
	s.avgDuration += (d - s.avgDuration) / time.Duration(n)
	s.lastMatched = matched
	avg := s.avgDuration
	s.statsMu.Unlock()

	if s.mAvg != nil {
		s.mAvg.Set(float64(avg) / float64(time.Millisecond))
	}
}

// snapshot copies the profiling state
func (s *System) snapshot() SystemStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return SystemStats{
		Name:        s.name,
		Enabled:     s.enabled.Load(),
		Fixed:       s.fixed,
		Priority:    s.priority,
		Calls:       s.calls,
		AvgDuration: s.avgDuration,
		LastMatched: s.lastMatched,
	}
}

// CreateSystem registers a system. The name must be unused, the watch
// list must name registered types, and the before/after constraints
// must stay acyclic across all registered systems; a violated
// constraint set fails with ErrSchedulingCycle and the registration is
// rolled back. Systems start enabled.
func (w *World) CreateSystem(cfg SystemConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("create system: empty name")
	}

	w.mu.Lock()
	if _, ok := w.sysByName[cfg.Name]; ok {
		w.mu.Unlock()
		return fmt.Errorf("create system %q: %w", cfg.Name, ErrDuplicateSystemName)
	}
	for _, id := range cfg.Watch {
		if int(id) >= len(w.stores) {
			w.mu.Unlock()
			return fmt.Errorf("create system %q: unknown watched component id %d", cfg.Name, id)
		}
	}

	q, err := w.createQuery(cfg.Query)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create system %q: %w", cfg.Name, err)
	}

	s := &System{
		name:      cfg.Name,
		priority:  cfg.Priority,
		fixed:     cfg.Fixed,
		before:    append([]string(nil), cfg.Before...),
		after:     append([]string(nil), cfg.After...),
		watch:     append([]ComponentID(nil), cfg.Watch...),
		act:       cfg.Act,
		onAdded:   cfg.OnComponentAdded,
		onRemoved: cfg.OnComponentRemoved,
		onChanged: cfg.OnComponentChanged,
		query:     q,
		regIndex:  len(w.systems),
	}
	s.enabled.Store(true)
	w.systems = append(w.systems, s)
	w.sysByName[cfg.Name] = s

	order, err := w.resolveOrder()
	if err != nil {
		w.systems = w.systems[:len(w.systems)-1]
		delete(w.sysByName, cfg.Name)
		w.removeQuery(q)
		w.mu.Unlock()
		return fmt.Errorf("create system %q: %w", cfg.Name, err)
	}
	w.execOrder = order

	for _, id := range s.watch {
		w.watchers[id] = append(w.watchers[id], s)
	}
	if w.metrics != nil {
		s.mAvg = w.metrics.systemAvg(cfg.Name)
	}

	if w.cfg.Debug {
		names := make([]string, len(order))
		for i, o := range order {
			names[i] = o.name
		}
		w.log.Debug("system registered",
			zap.String("system", cfg.Name), zap.Strings("order", names))
	}
	w.mu.Unlock()
	return nil
}

// removeQuery unregisters a query and its interest entries. Only the
// system registration rollback uses it; queries otherwise live as long
// as the world. Caller holds w.mu.
func (w *World) removeQuery(q *Query) {
	for i, cand := range w.queries {
		if cand == q {
			w.queries = append(w.queries[:i], w.queries[i+1:]...)
			break
		}
	}
	for _, id := range interestIDs(q.spec) {
		w.compInterest[id] = dropQuery(w.compInterest[id], q)
	}
	for _, tag := range interestTags(q.spec) {
		w.tagInterest[tag] = dropQuery(w.tagInterest[tag], q)
	}
}

func dropQuery(list []*Query, q *Query) []*Query {
	for i, cand := range list {
		if cand == q {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// EnableSystem resumes execution of a disabled system
func (w *World) EnableSystem(name string) error {
	return w.setSystemEnabled(name, true)
}

// DisableSystem removes the system from execution without touching its
// query or profiling history. There is no removal primitive.
func (w *World) DisableSystem(name string) error {
	return w.setSystemEnabled(name, false)
}

func (w *World) setSystemEnabled(name string, enabled bool) error {
	w.mu.RLock()
	s, ok := w.sysByName[name]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("system %q: not registered", name)
	}
	s.enabled.Store(enabled)
	return nil
}

// SystemStats returns the profiling snapshot for a system
func (w *World) SystemStats(name string) (SystemStats, error) {
	w.mu.RLock()
	s, ok := w.sysByName[name]
	w.mu.RUnlock()
	if !ok {
		return SystemStats{}, fmt.Errorf("system %q: not registered", name)
	}
	return s.snapshot(), nil
}

// SystemNames returns the registered system names in execution order
func (w *World) SystemNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, len(w.execOrder))
	for i, s := range w.execOrder {
		names[i] = s.name
	}
	return names
}
