package engine

// Entity is a lightweight generational handle identifying one entity in a
// World. The ID indexes the world's metadata table; the Version is bumped
// every time an ID slot is recycled, so handles held across a destroy
// become invalid instead of silently aliasing the new occupant.
//
// The zero Entity is the nil handle: no live entity ever compares equal
// to it, since ID 0 is never issued.
type Entity struct {
	ID      uint32
	Version uint32
}

// NilEntity is the zero handle. Singleton change callbacks carry it as
// the entity argument.
var NilEntity = Entity{}

// IsNil reports whether e is the zero handle
func (e Entity) IsNil() bool {
	return e == NilEntity
}

// entityMeta is the per-slot bookkeeping record. Slots are addressed by
// Entity.ID and reused through the world free list; version mismatches
// against the stored handle detect stale access.
type entityMeta struct {
	version uint32
	alive   bool
	pending bool // queue-freed, awaiting end-of-tick flush
	name    string
	comps   mask256
	tags    map[string]struct{}
}

// handle rebuilds the Entity for a live slot
func (m *entityMeta) handle(id uint32) Entity {
	return Entity{ID: id, Version: m.version}
}
