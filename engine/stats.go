package engine

import (
	"sync/atomic"
	"time"

	"github.com/lixenwraith/manifold/status"
)

// entityOverheadBytes approximates the bookkeeping cost per live
// entity (meta slot, mask, query membership) on top of component
// payloads
const entityOverheadBytes = 64

// WorldStats is a point-in-time snapshot of world occupancy and
// system timings
type WorldStats struct {
	Frame          uint64
	Entities       int
	PendingDestroy int
	ComponentTypes int
	Components     int
	Queries        int
	DirtyPending   int
	MemoryEstimate uint64
	Systems        []SystemStats
}

// worldMetrics holds cached status registry slots so the hot path
// never touches the registry maps
type worldMetrics struct {
	reg             *status.Registry
	ticks           *atomic.Int64
	entities        *atomic.Int64
	components      *atomic.Int64
	systems         *atomic.Int64
	memory          *atomic.Int64
	dirtyDispatched *atomic.Int64
	proxyTracking   *atomic.Bool
	slowestSystem   *status.AtomicString
}

func newWorldMetrics(reg *status.Registry) *worldMetrics {
	return &worldMetrics{
		reg:             reg,
		ticks:           reg.Ints.Get("engine.ticks"),
		entities:        reg.Ints.Get("engine.entities"),
		components:      reg.Ints.Get("engine.components"),
		systems:         reg.Ints.Get("engine.systems"),
		memory:          reg.Ints.Get("engine.memory_estimate"),
		dirtyDispatched: reg.Ints.Get("engine.dirty_dispatched"),
		proxyTracking:   reg.Bools.Get("engine.proxy_tracking"),
		slowestSystem:   reg.Strings.Get("engine.slowest_system"),
	}
}

func (m *worldMetrics) systemAvg(name string) *status.AtomicFloat {
	return m.reg.Floats.Get("engine.system." + name + ".avg_ms")
}

// memoryEstimate sums component payloads plus per-entity overhead.
// Caller must hold w.mu.
func (w *World) memoryEstimate() uint64 {
	var total uint64
	for _, st := range w.stores {
		total += uint64(st.count()) * uint64(st.typeSize())
	}
	total += uint64(w.aliveCount) * entityOverheadBytes
	return total
}

// componentInstances counts attached components across all stores.
// Caller must hold w.mu.
func (w *World) componentInstances() int {
	total := 0
	for _, st := range w.stores {
		total += st.count()
	}
	return total
}

// publishMetrics mirrors world occupancy into the status registry at
// the end of each tick
func (w *World) publishMetrics(frame uint64) {
	if w.metrics == nil {
		return
	}
	w.mu.RLock()
	entities := w.aliveCount - w.pendingCount
	components := w.componentInstances()
	memory := w.memoryEstimate()
	systems := make([]*System, len(w.execOrder))
	copy(systems, w.execOrder)
	w.mu.RUnlock()

	w.metrics.ticks.Store(int64(frame))
	w.metrics.entities.Store(int64(entities))
	w.metrics.components.Store(int64(components))
	w.metrics.systems.Store(int64(len(systems)))
	w.metrics.memory.Store(int64(memory))
	w.metrics.proxyTracking.Store(w.cfg.EnableProxyTracking)

	// The worst rolling average names the current bottleneck
	slowest := ""
	var worst time.Duration
	for _, s := range systems {
		snap := s.snapshot()
		if snap.Calls > 0 && snap.AvgDuration >= worst {
			worst = snap.AvgDuration
			slowest = snap.Name
		}
	}
	w.metrics.slowestSystem.Store(slowest)
}

// Stats returns a consistent snapshot of world occupancy, pending
// work and per-system timing
func (w *World) Stats() WorldStats {
	w.mu.RLock()
	stats := WorldStats{
		Frame:          w.frame,
		Entities:       w.aliveCount - w.pendingCount,
		PendingDestroy: w.pendingCount,
		ComponentTypes: len(w.stores),
		Components:     w.componentInstances(),
		Queries:        len(w.queries),
		DirtyPending:   len(w.changeOrder),
		MemoryEstimate: w.memoryEstimate(),
	}
	systems := make([]*System, len(w.execOrder))
	copy(systems, w.execOrder)
	w.mu.RUnlock()

	stats.Systems = make([]SystemStats, 0, len(systems))
	for _, s := range systems {
		stats.Systems = append(stats.Systems, s.snapshot())
	}
	return stats
}
