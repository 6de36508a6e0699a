package engine

import "fmt"

// dirtyKey identifies one tracked value: a component on an entity, or
// a singleton when entity is the nil handle
type dirtyKey struct {
	entity Entity
	id     ComponentID
}

// changeRecord accumulates one tick's tracking state for a key. The
// baseline is the value before the tick's first write, captured on the
// write path for watched types; flagged means a mark was requested and
// dispatch will fire. A record can hold a baseline without being
// flagged: a write happened, but nothing asked for notification.
type changeRecord struct {
	baseline    any
	hasBaseline bool
	flagged     bool
}

// captureBaseline snapshots the pre-write value for a watched type,
// once per tick. Caller holds w.mu and calls before the store write.
func (w *World) captureBaseline(e Entity, id ComponentID, st storage) {
	if len(w.watchers[id]) == 0 {
		return
	}
	k := dirtyKey{entity: e, id: id}
	rec := w.changes[k]
	if rec == nil {
		rec = &changeRecord{}
		w.changes[k] = rec
	}
	if rec.hasBaseline {
		return
	}
	if old, ok := st.getAny(e); ok {
		rec.baseline = old
		rec.hasBaseline = true
	}
}

// captureSingletonBaseline is the singleton flavor: the old value
// comes from the singleton table instead of a store. Caller holds w.mu.
func (w *World) captureSingletonBaseline(id ComponentID) {
	if len(w.watchers[id]) == 0 {
		return
	}
	k := dirtyKey{entity: NilEntity, id: id}
	rec := w.changes[k]
	if rec == nil {
		rec = &changeRecord{}
		w.changes[k] = rec
	}
	if rec.hasBaseline {
		return
	}
	if old, ok := w.singletons[id]; ok {
		rec.baseline = old
		rec.hasBaseline = true
	}
}

// flagChange sets the dirty flag for a key, recording dispatch order.
// Caller holds w.mu.
func (w *World) flagChange(k dirtyKey) {
	rec := w.changes[k]
	if rec == nil {
		rec = &changeRecord{}
		w.changes[k] = rec
	}
	if !rec.flagged {
		rec.flagged = true
		w.changeOrder = append(w.changeOrder, k)
	}
}

// MarkDirty flags a component value as changed so watching systems
// receive OnComponentChanged at the end of the tick. Callers that
// mutate through Set and then mark get the pre-write value delivered
// as the old value; marking without a write delivers the current value
// as both.
func (w *World) MarkDirty(e Entity, id ComponentID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.storeByID(id)
	if st == nil {
		return fmt.Errorf("mark dirty: unknown component id %d", id)
	}
	m, err := w.metaFor(e)
	if err != nil {
		return fmt.Errorf("mark dirty: %w", err)
	}
	if !m.comps.has(id) {
		return fmt.Errorf("mark dirty: component %q: %w", st.componentName(), ErrComponentNotPresent)
	}
	w.flagChange(dirtyKey{entity: e, id: id})
	return nil
}

// MarkSingletonDirty flags the singleton of the given type
func (w *World) MarkSingletonDirty(id ComponentID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := w.storeByID(id)
	if st == nil {
		return fmt.Errorf("mark singleton dirty: unknown component id %d", id)
	}
	if _, ok := w.singletons[id]; !ok {
		return fmt.Errorf("mark singleton dirty: singleton %q: %w", st.componentName(), ErrComponentNotPresent)
	}
	w.flagChange(dirtyKey{entity: NilEntity, id: id})
	return nil
}

// dispatchChanges delivers OnComponentChanged for every flagged,
// watched value, then clears all flags and baselines. Runs once per
// tick, after every system pass, so notifications reflect the tick's
// cumulative effect: old is the value before the first write, new the
// value after the last. Flags set by the callbacks themselves belong
// to the next tick.
func (w *World) dispatchChanges() {
	w.mu.Lock()

	type delivery struct {
		sys      *System
		key      dirtyKey
		old, cur any
	}
	var deliveries []delivery
	for _, k := range w.changeOrder {
		rec := w.changes[k]
		if rec == nil || !rec.flagged {
			continue
		}
		watchers := w.watchers[k.id]
		if len(watchers) == 0 {
			continue
		}

		var cur any
		if k.entity.IsNil() {
			v, ok := w.singletons[k.id]
			if !ok {
				continue
			}
			cur = v
		} else {
			v, ok := w.stores[k.id].getAny(k.entity)
			if !ok {
				continue
			}
			cur = v
		}
		old := cur
		if rec.hasBaseline {
			old = rec.baseline
		}
		for _, s := range watchers {
			if s.onChanged != nil {
				deliveries = append(deliveries, delivery{s, k, old, cur})
			}
		}
	}

	clear(w.changes)
	w.changeOrder = w.changeOrder[:0]
	dirtyDispatched := len(deliveries)
	w.mu.Unlock()

	for _, d := range deliveries {
		if d.sys.enabled.Load() {
			d.sys.onChanged(w, d.key.entity, d.key.id, d.old, d.cur)
		}
	}

	if w.metrics != nil && dirtyDispatched > 0 {
		w.metrics.dirtyDispatched.Add(int64(dirtyDispatched))
	}
}
