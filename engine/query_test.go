package engine

import (
	"testing"
)

// Test All constraint filtering
func TestQueryAll(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")
	velID, _ := RegisterComponent[Velocity](w, "velocity")

	e1 := w.CreateEntity("both")
	Add(w, e1, Position{})
	Add(w, e1, Velocity{})
	e2 := w.CreateEntity("pos-only")
	Add(w, e2, Position{})

	q, err := w.CreateQuery(QuerySpec{All: []ComponentID{posID, velID}})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Expected 1 match, got %d", q.Len())
	}
	if !q.Contains(e1) {
		t.Errorf("Expected e1 in result set")
	}
	if q.Contains(e2) {
		t.Errorf("Expected e2 excluded")
	}
}

// Test None constraint exclusion
func TestQueryNone(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")
	velID, _ := RegisterComponent[Velocity](w, "velocity")

	still := w.CreateEntity("still")
	Add(w, still, Position{})
	moving := w.CreateEntity("moving")
	Add(w, moving, Position{})
	Add(w, moving, Velocity{})

	q, err := w.CreateQuery(QuerySpec{
		All:  []ComponentID{posID},
		None: []ComponentID{velID},
	})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	if q.Len() != 1 || !q.Contains(still) {
		t.Errorf("Expected only the still entity, got %v", q.Entities())
	}
}

// Test AnyOf constraint
func TestQueryAnyOf(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")
	velID, _ := RegisterComponent[Velocity](w, "velocity")
	RegisterComponent[Health](w, "health")

	e1 := w.CreateEntity("pos")
	Add(w, e1, Position{})
	e2 := w.CreateEntity("vel")
	Add(w, e2, Velocity{})
	e3 := w.CreateEntity("hp")
	Add(w, e3, Health{})

	q, err := w.CreateQuery(QuerySpec{AnyOf: []ComponentID{posID, velID}})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("Expected 2 matches, got %d", q.Len())
	}
	if q.Contains(e3) {
		t.Errorf("Expected health-only entity excluded")
	}
}

// Test tag constraints
func TestQueryTags(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")

	friend := w.CreateEntity("friend")
	Add(w, friend, Position{})
	w.AddTag(friend, "friendly")

	foe := w.CreateEntity("foe")
	Add(w, foe, Position{})
	w.AddTag(foe, "hostile")

	q, err := w.CreateQuery(QuerySpec{
		All:         []ComponentID{posID},
		WithTags:    []string{"hostile"},
		WithoutTags: []string{"friendly"},
	})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	if q.Len() != 1 || !q.Contains(foe) {
		t.Errorf("Expected only the hostile entity, got %v", q.Entities())
	}

	// Tag transitions move membership immediately
	w.RemoveTag(foe, "hostile")
	if q.Len() != 0 {
		t.Errorf("Expected empty after tag removal, got %d", q.Len())
	}
	w.AddTag(foe, "hostile")
	if !q.Contains(foe) {
		t.Errorf("Expected membership restored after re-tag")
	}
}

// Test that component transitions update membership immediately
func TestQueryLiveMembership(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")

	q, err := w.CreateQuery(QuerySpec{All: []ComponentID{posID}})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}

	e := w.CreateEntity("e")
	if q.Len() != 0 {
		t.Fatalf("Expected empty before add, got %d", q.Len())
	}

	Add(w, e, Position{})
	if !q.Contains(e) {
		t.Errorf("Expected membership right after add")
	}

	Remove[Position](w, e)
	if q.Contains(e) {
		t.Errorf("Expected membership dropped right after remove")
	}
}

// Test result set ordering is insertion order, preserved across removals
func TestQueryInsertionOrder(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")

	q, err := w.CreateQuery(QuerySpec{All: []ComponentID{posID}})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}

	var created []Entity
	for i := 0; i < 5; i++ {
		e := w.CreateEntity("e")
		Add(w, e, Position{X: float64(i)})
		created = append(created, e)
	}

	members := q.Entities()
	for i, e := range created {
		if members[i] != e {
			t.Fatalf("Expected insertion order at %d, got %v", i, members)
		}
	}

	// Removing from the middle keeps the relative order of the rest
	w.DestroyEntity(created[2])
	want := []Entity{created[0], created[1], created[3], created[4]}
	members = q.Entities()
	if len(members) != len(want) {
		t.Fatalf("Expected %d members, got %d", len(want), len(members))
	}
	for i := range want {
		if members[i] != want[i] {
			t.Errorf("Expected order preserved at %d, got %v", i, members)
		}
	}
}

// Test queries created after population see existing entities
func TestQueryInitialPopulation(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")

	for i := 0; i < 3; i++ {
		e := w.CreateEntity("e")
		Add(w, e, Position{})
	}

	q, err := w.CreateQuery(QuerySpec{All: []ComponentID{posID}})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	if q.Len() != 3 {
		t.Errorf("Expected 3 pre-existing matches, got %d", q.Len())
	}
}

// Test the empty spec matches every live entity
func TestQueryEmptySpec(t *testing.T) {
	w := newTestWorld()
	RegisterComponent[Position](w, "position")

	bare := w.CreateEntity("bare")
	withComp := w.CreateEntity("comp")
	Add(w, withComp, Position{})

	q, err := w.CreateQuery(QuerySpec{})
	if err != nil {
		t.Fatalf("CreateQuery failed: %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("Expected both entities, got %d", q.Len())
	}

	// Pending entities leave all result sets
	w.QueueFree(bare)
	if q.Len() != 1 {
		t.Errorf("Expected pending entity excluded, got %d", q.Len())
	}
}

// Test unknown component IDs are rejected at creation
func TestQueryUnknownComponent(t *testing.T) {
	w := newTestWorld()
	if _, err := w.CreateQuery(QuerySpec{All: []ComponentID{42}}); err == nil {
		t.Errorf("Expected unknown component id rejection")
	}
}

// Test Entities returns a snapshot unaffected by later mutation
func TestQueryEntitiesSnapshot(t *testing.T) {
	w := newTestWorld()
	posID, _ := RegisterComponent[Position](w, "position")

	e1 := w.CreateEntity("a")
	Add(w, e1, Position{})
	q, _ := w.CreateQuery(QuerySpec{All: []ComponentID{posID}})

	snap := q.Entities()
	e2 := w.CreateEntity("b")
	Add(w, e2, Position{})

	if len(snap) != 1 {
		t.Errorf("Expected snapshot isolated from later adds, got %d", len(snap))
	}
	if q.Len() != 2 {
		t.Errorf("Expected live query to see 2, got %d", q.Len())
	}
}
