// Package snapshot serializes world state to JSON and restores it. The
// engine supplies the traversal and typed decoding; this package owns
// the encoding: entity identity, tags and component field values
// round-trip, with an xxhash checksum over the payload to catch
// corrupted or truncated files.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/lixenwraith/manifold/engine"
)

// FormatVersion identifies the snapshot layout. Readers reject
// versions they do not know.
const FormatVersion = 1

// ErrChecksum is returned when a snapshot payload does not hash to its
// recorded checksum
var ErrChecksum = errors.New("snapshot checksum mismatch")

// EntityState is one entity's serialized row. Components are keyed by
// registered component name and hold their JSON-encoded field values.
type EntityState struct {
	ID         uint32                     `json:"id"`
	Version    uint32                     `json:"version"`
	Name       string                     `json:"name,omitempty"`
	Tags       []string                   `json:"tags,omitempty"`
	Components map[string]json.RawMessage `json:"components,omitempty"`
}

// Snapshot is a point-in-time capture of a world
type Snapshot struct {
	Version    int                        `json:"version"`
	Entities   []EntityState              `json:"entities"`
	Singletons map[string]json.RawMessage `json:"singletons,omitempty"`
}

// envelope is the on-disk wrapper: the payload plus its hash
type envelope struct {
	Checksum uint64          `json:"checksum"`
	Data     json.RawMessage `json:"data"`
}

// Capture serializes every live entity, including those pending
// destruction, and every set singleton
func Capture(w *engine.World) (*Snapshot, error) {
	s := &Snapshot{Version: FormatVersion}

	err := w.Traverse(func(rec engine.EntityRecord) error {
		es := EntityState{
			ID:      rec.Entity.ID,
			Version: rec.Entity.Version,
			Name:    rec.Name,
			Tags:    rec.Tags,
		}
		if len(rec.Components) > 0 {
			es.Components = make(map[string]json.RawMessage, len(rec.Components))
			for _, c := range rec.Components {
				raw, err := json.Marshal(c.Value)
				if err != nil {
					return fmt.Errorf("marshal component %q: %w", c.Name, err)
				}
				es.Components[c.Name] = raw
			}
		}
		s.Entities = append(s.Entities, es)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	for id := engine.ComponentID(0); int(id) < w.ComponentTypes(); id++ {
		v, err := w.SingletonByID(id)
		if err != nil {
			continue
		}
		name, _ := w.ComponentName(id)
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("capture: marshal singleton %q: %w", name, err)
		}
		if s.Singletons == nil {
			s.Singletons = make(map[string]json.RawMessage)
		}
		s.Singletons[name] = raw
	}
	return s, nil
}

// Restore materializes a snapshot into a world. The world must already
// have the snapshot's component types registered under the same names;
// it is expected to be freshly created, since entity handles are
// restored at their exact IDs and versions. Registered validators run
// against every decoded value.
func Restore(w *engine.World, s *Snapshot) error {
	if s.Version != FormatVersion {
		return fmt.Errorf("restore: unsupported snapshot version %d", s.Version)
	}

	for _, es := range s.Entities {
		e := engine.Entity{ID: es.ID, Version: es.Version}
		if err := w.RestoreEntity(e, es.Name); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		for _, tag := range es.Tags {
			if err := w.AddTag(e, tag); err != nil {
				return fmt.Errorf("restore entity %d: %w", es.ID, err)
			}
		}
		// Deterministic attach order regardless of map iteration
		names := make([]string, 0, len(es.Components))
		for name := range es.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			id, ok := w.ComponentID(name)
			if !ok {
				return fmt.Errorf("restore entity %d: component type %q not registered", es.ID, name)
			}
			raw := es.Components[name]
			v, err := w.DecodeComponent(id, func(dst any) error {
				return json.Unmarshal(raw, dst)
			})
			if err != nil {
				return fmt.Errorf("restore entity %d: %w", es.ID, err)
			}
			if err := w.AddComponentByID(e, id, v); err != nil {
				return fmt.Errorf("restore entity %d: %w", es.ID, err)
			}
		}
	}

	names := make([]string, 0, len(s.Singletons))
	for name := range s.Singletons {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id, ok := w.ComponentID(name)
		if !ok {
			return fmt.Errorf("restore: singleton type %q not registered", name)
		}
		raw := s.Singletons[name]
		v, err := w.DecodeComponent(id, func(dst any) error {
			return json.Unmarshal(raw, dst)
		})
		if err != nil {
			return fmt.Errorf("restore singleton %q: %w", name, err)
		}
		if err := w.SetSingletonByID(id, v); err != nil {
			return fmt.Errorf("restore singleton %q: %w", name, err)
		}
	}
	return nil
}

// Encode marshals the snapshot into its checksummed wire form
func Encode(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	env := envelope{Checksum: xxhash.Sum64(data), Data: data}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}

// Decode verifies the checksum and unmarshals the snapshot
func Decode(data []byte) (*Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if xxhash.Sum64(env.Data) != env.Checksum {
		return nil, ErrChecksum
	}
	var s Snapshot
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Save captures the world and writes the encoded snapshot to path
func Save(w *engine.World, path string) error {
	s, err := Capture(w)
	if err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads, verifies and restores a snapshot file into the world
func Load(w *engine.World, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s, err := Decode(data)
	if err != nil {
		return err
	}
	return Restore(w, s)
}
