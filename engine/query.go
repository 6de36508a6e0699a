package engine

import "fmt"

// QuerySpec declares the predicates a live query matches entities
// against. All four predicate groups must hold simultaneously:
// every All component present, no None component present, at least one
// AnyOf component present (when AnyOf is non-empty), every WithTags tag
// present and no WithoutTags tag present. An empty spec matches every
// alive, non-pending entity.
type QuerySpec struct {
	All         []ComponentID
	None        []ComponentID
	AnyOf       []ComponentID
	WithTags    []string
	WithoutTags []string
}

// Query is a live result set over a QuerySpec. Membership is
// re-evaluated incrementally on every store transition touching a
// relevant component or tag, never by rescanning the world. Result
// order is the order entities entered the set, stable across ticks
// while membership is unchanged.
type Query struct {
	world *World
	spec  QuerySpec

	all  mask256
	none mask256
	any  mask256

	members []Entity
	index   map[Entity]int
}

// CreateQuery compiles a spec into a live query and populates it with
// the currently matching entities in ascending handle order
func (w *World) CreateQuery(spec QuerySpec) (*Query, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.createQuery(spec)
}

// createQuery is the lock-held implementation shared with system
// registration
func (w *World) createQuery(spec QuerySpec) (*Query, error) {
	for _, ids := range [][]ComponentID{spec.All, spec.None, spec.AnyOf} {
		for _, id := range ids {
			if int(id) >= len(w.stores) {
				return nil, fmt.Errorf("create query: unknown component id %d", id)
			}
		}
	}

	q := &Query{
		world: w,
		spec:  spec,
		all:   maskOf(spec.All),
		none:  maskOf(spec.None),
		any:   maskOf(spec.AnyOf),
		index: make(map[Entity]int),
	}

	for id := uint32(1); id < uint32(len(w.meta)); id++ {
		m := &w.meta[id]
		if !m.alive || m.pending {
			continue
		}
		e := m.handle(id)
		if q.matches(m) {
			q.index[e] = len(q.members)
			q.members = append(q.members, e)
		}
	}

	w.queries = append(w.queries, q)
	for _, id := range interestIDs(spec) {
		w.compInterest[id] = append(w.compInterest[id], q)
	}
	for _, tag := range interestTags(spec) {
		w.tagInterest[tag] = append(w.tagInterest[tag], q)
	}
	return q, nil
}

// interestIDs returns the component ids whose transitions can change
// this query's membership, deduplicated
func interestIDs(spec QuerySpec) []ComponentID {
	seen := make(map[ComponentID]struct{})
	var ids []ComponentID
	for _, group := range [][]ComponentID{spec.All, spec.None, spec.AnyOf} {
		for _, id := range group {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func interestTags(spec QuerySpec) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, group := range [][]string{spec.WithTags, spec.WithoutTags} {
		for _, tag := range group {
			if _, ok := seen[tag]; !ok {
				seen[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// matches evaluates the compiled predicates against entity metadata.
// Caller holds w.mu.
func (q *Query) matches(m *entityMeta) bool {
	if !m.alive || m.pending {
		return false
	}
	if !m.comps.containsAll(q.all) {
		return false
	}
	if m.comps.intersects(q.none) {
		return false
	}
	if !q.any.isZero() && !m.comps.intersects(q.any) {
		return false
	}
	for _, tag := range q.spec.WithTags {
		if _, ok := m.tags[tag]; !ok {
			return false
		}
	}
	for _, tag := range q.spec.WithoutTags {
		if _, ok := m.tags[tag]; ok {
			return false
		}
	}
	return true
}

// reevaluateQuery reconciles one entity's membership after a relevant
// transition. Caller holds w.mu.
func (w *World) reevaluateQuery(q *Query, e Entity) {
	m := &w.meta[e.ID]
	match := m.version == e.Version && q.matches(m)
	_, in := q.index[e]
	switch {
	case match && !in:
		q.index[e] = len(q.members)
		q.members = append(q.members, e)
	case !match && in:
		q.drop(e)
	}
}

// drop splices the entity out of the result set, preserving the
// insertion order of the remaining members. Caller holds w.mu.
func (q *Query) drop(e Entity) {
	idx, ok := q.index[e]
	if !ok {
		return
	}
	copy(q.members[idx:], q.members[idx+1:])
	q.members = q.members[:len(q.members)-1]
	delete(q.index, e)
	for i := idx; i < len(q.members); i++ {
		q.index[q.members[i]] = i
	}
}

// Entities returns a snapshot copy of the current result set in
// insertion order. Systems iterate the snapshot, so mutations during
// the pass cannot invalidate it.
func (q *Query) Entities() []Entity {
	q.world.mu.RLock()
	defer q.world.mu.RUnlock()
	out := make([]Entity, len(q.members))
	copy(out, q.members)
	return out
}

// Len returns the current result count
func (q *Query) Len() int {
	q.world.mu.RLock()
	defer q.world.mu.RUnlock()
	return len(q.members)
}

// Contains reports whether the entity is currently in the result set
func (q *Query) Contains(e Entity) bool {
	q.world.mu.RLock()
	defer q.world.mu.RUnlock()
	_, ok := q.index[e]
	return ok
}

// Spec returns the query's specification
func (q *Query) Spec() QuerySpec {
	return q.spec
}
