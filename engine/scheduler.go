package engine

import (
	"time"

	"go.uber.org/zap"
)

// Tick carries the execution context into system callbacks
type Tick struct {
	World *World
	Dt    time.Duration
	Frame uint64
}

// Seconds returns the delta as float seconds for simulation math
func (t *Tick) Seconds() float64 {
	return t.Dt.Seconds()
}

// Update advances the world by dt. One call is one tick:
//
//  1. Whole fixed steps are drained from the accumulator; each step
//     runs every enabled fixed system once, in execution order.
//  2. Every enabled variable system runs once with dt.
//  3. Watched dirty flags dispatch OnComponentChanged and clear.
//  4. Queue-freed entities are physically destroyed.
//  5. Metrics publish.
//
// Fixed systems therefore execute floor(cumulative/step) times across
// any sequence of Update calls, independent of how the deltas are
// chunked. Systems run to completion on the calling goroutine; a
// panicking callback aborts the rest of the tick.
func (w *World) Update(dt time.Duration) {
	w.mu.Lock()
	w.frame++
	frame := w.frame
	steps := 0
	if w.fixedStep > 0 && dt > 0 {
		w.acc += dt
		steps = int(w.acc / w.fixedStep)
		w.acc -= time.Duration(steps) * w.fixedStep
	}
	step := w.fixedStep
	order := make([]*System, len(w.execOrder))
	copy(order, w.execOrder)
	w.mu.Unlock()

	if w.cfg.Debug && steps > 1 {
		w.log.Debug("fixed step catch-up", zap.Int("steps", steps), zap.Uint64("frame", frame))
	}

	for i := 0; i < steps; i++ {
		for _, s := range order {
			if s.fixed && s.enabled.Load() {
				w.runSystem(s, step, frame)
			}
		}
	}
	for _, s := range order {
		if !s.fixed && s.enabled.Load() {
			w.runSystem(s, dt, frame)
		}
	}

	w.dispatchChanges()
	w.flushDestroyQueue()
	w.publishMetrics(frame)
}

// runSystem executes one pass: snapshot the query, iterate, profile.
// The snapshot is fixed for the pass; entities destroyed outright
// mid-pass are skipped at invocation, queue-freed ones still run.
func (w *World) runSystem(s *System, dt time.Duration, frame uint64) {
	start := w.clock.Now()
	snap := s.query.Entities()
	if s.act != nil {
		t := &Tick{World: w, Dt: dt, Frame: frame}
		for _, e := range snap {
			if !w.handleValid(e) {
				continue
			}
			s.act(t, e)
		}
	}
	s.recordRun(w.clock.Now().Sub(start), len(snap))
}

// handleValid reports whether the handle still points at a live slot
func (w *World) handleValid(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, err := w.metaFor(e)
	return err == nil
}

// resolveOrder topologically sorts the registered systems by their
// before/after constraints, breaking ties by descending priority and
// then by registration order, so execution is fully deterministic.
// Caller holds w.mu.
func (w *World) resolveOrder() ([]*System, error) {
	n := len(w.systems)
	indeg := make(map[*System]int, n)
	succ := make(map[*System][]*System, n)
	addEdge := func(from, to *System) {
		succ[from] = append(succ[from], to)
		indeg[to]++
	}
	for _, s := range w.systems {
		for _, name := range s.before {
			if t, ok := w.sysByName[name]; ok {
				addEdge(s, t)
			}
		}
		for _, name := range s.after {
			if t, ok := w.sysByName[name]; ok {
				addEdge(t, s)
			}
		}
	}

	remaining := make([]*System, n)
	copy(remaining, w.systems)
	order := make([]*System, 0, n)

	// Quadratic ready-node selection; system counts are small
	for len(order) < n {
		best := -1
		for i, s := range remaining {
			if s == nil || indeg[s] != 0 {
				continue
			}
			if best == -1 {
				best = i
				continue
			}
			b := remaining[best]
			if s.priority > b.priority || (s.priority == b.priority && s.regIndex < b.regIndex) {
				best = i
			}
		}
		if best == -1 {
			return nil, ErrSchedulingCycle
		}
		s := remaining[best]
		remaining[best] = nil
		order = append(order, s)
		for _, t := range succ[s] {
			indeg[t]--
		}
	}
	return order, nil
}
