package engine

import (
	"fmt"
	"sort"
)

// ComponentRecord pairs a component's registered name with its
// current value
type ComponentRecord struct {
	ID    ComponentID
	Name  string
	Value any
}

// EntityRecord is one entity's row in a world traversal
type EntityRecord struct {
	Entity     Entity
	Name       string
	Tags       []string
	Components []ComponentRecord
}

// Traverse visits every live entity in ascending handle order,
// including those pending destruction. Serializers build on this. The
// visit callback runs without world locks held; it sees a snapshot
// taken at call time.
func (w *World) Traverse(visit func(EntityRecord) error) error {
	w.mu.RLock()
	records := make([]EntityRecord, 0, w.aliveCount)
	for id := uint32(1); id < uint32(len(w.meta)); id++ {
		m := &w.meta[id]
		if !m.alive {
			continue
		}
		e := m.handle(id)
		rec := EntityRecord{Entity: e, Name: m.name}
		if len(m.tags) > 0 {
			rec.Tags = make([]string, 0, len(m.tags))
			for tag := range m.tags {
				rec.Tags = append(rec.Tags, tag)
			}
			sort.Strings(rec.Tags)
		}
		for _, st := range w.stores {
			cid := st.componentID()
			if !m.comps.has(cid) {
				continue
			}
			v, ok := st.getAny(e)
			if !ok {
				continue
			}
			rec.Components = append(rec.Components, ComponentRecord{
				ID:    cid,
				Name:  st.componentName(),
				Value: v,
			})
		}
		records = append(records, rec)
	}
	w.mu.RUnlock()

	for _, rec := range records {
		if err := visit(rec); err != nil {
			return err
		}
	}
	return nil
}

// RestoreEntity materializes an entity at an exact handle. It exists
// for serializers rebuilding a world from a snapshot and requires the
// slot to be unused, which holds on a freshly created world. Gaps
// below the restored ID become dead slots that CreateEntity will not
// recycle.
func (w *World) RestoreEntity(e Entity, name string) error {
	if e.ID == 0 || e.Version == 0 {
		return fmt.Errorf("restore entity: invalid handle %d:%d", e.ID, e.Version)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for int(e.ID) >= len(w.meta) {
		w.meta = append(w.meta, entityMeta{})
	}
	m := &w.meta[e.ID]
	if m.alive {
		return fmt.Errorf("restore entity: id %d already live", e.ID)
	}
	if m.version != 0 {
		return fmt.Errorf("restore entity: id %d slot already used", e.ID)
	}
	m.version = e.Version
	m.alive = true
	m.pending = false
	m.name = name
	m.comps = mask256{}
	m.tags = nil
	w.aliveCount++
	for _, q := range w.queries {
		w.reevaluateQuery(q, e)
	}
	return nil
}

// DecodeComponent constructs a component value of the given type by
// running a codec's unmarshal function against a typed destination.
// The registered validator applies to the decoded value.
func (w *World) DecodeComponent(id ComponentID, unmarshal func(any) error) (any, error) {
	w.mu.RLock()
	st := w.storeByID(id)
	w.mu.RUnlock()
	if st == nil {
		return nil, fmt.Errorf("decode component: unknown component id %d", id)
	}
	return st.decodeAny(unmarshal)
}
