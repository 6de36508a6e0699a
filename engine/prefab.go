package engine

import (
	"fmt"
	"sort"
)

// PrefabComponent names one component construction in a template. A
// nil Value selects the type's default construction at stamp time.
type PrefabComponent struct {
	ID    ComponentID
	Value any
}

// Prefab is a named entity template: a display name, tags and a list
// of component constructions applied in order
type Prefab struct {
	Name       string
	EntityName string
	Tags       []string
	Components []PrefabComponent
}

// RegisterPrefab validates and stores a template. Component IDs must
// be registered and non-nil values must match their component's Go
// type exactly. Names are unique.
func (w *World) RegisterPrefab(p Prefab) error {
	if p.Name == "" {
		return fmt.Errorf("register prefab: empty name")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.prefabs[p.Name]; exists {
		return fmt.Errorf("register prefab %q: already registered", p.Name)
	}
	for _, pc := range p.Components {
		st := w.storeByID(pc.ID)
		if st == nil {
			return fmt.Errorf("register prefab %q: unknown component id %d", p.Name, pc.ID)
		}
		if pc.Value != nil && !st.matchesType(pc.Value) {
			return fmt.Errorf("register prefab %q: component %q: value type %T does not match",
				p.Name, st.componentName(), pc.Value)
		}
	}
	stored := Prefab{
		Name:       p.Name,
		EntityName: p.EntityName,
		Tags:       append([]string(nil), p.Tags...),
		Components: append([]PrefabComponent(nil), p.Components...),
	}
	w.prefabs[p.Name] = stored
	return nil
}

// CreateFromPrefab stamps a new entity from a registered template.
// Tags are applied first, then components in template order. If any
// component fails validation the partially built entity is destroyed
// and the error returned.
func (w *World) CreateFromPrefab(name string) (Entity, error) {
	w.mu.RLock()
	p, ok := w.prefabs[name]
	w.mu.RUnlock()
	if !ok {
		return NilEntity, fmt.Errorf("create from prefab: %q not registered", name)
	}

	display := p.EntityName
	if display == "" {
		display = p.Name
	}
	e := w.CreateEntity(display)
	for _, tag := range p.Tags {
		if err := w.AddTag(e, tag); err != nil {
			_ = w.DestroyEntity(e)
			return NilEntity, fmt.Errorf("create from prefab %q: %w", name, err)
		}
	}
	for _, pc := range p.Components {
		if err := w.AddComponentByID(e, pc.ID, pc.Value); err != nil {
			_ = w.DestroyEntity(e)
			return NilEntity, fmt.Errorf("create from prefab %q: %w", name, err)
		}
	}
	return e, nil
}

// Prefabs returns the registered template names in sorted order
func (w *World) Prefabs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.prefabs))
	for name := range w.prefabs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
