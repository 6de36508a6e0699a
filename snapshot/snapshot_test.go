package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/manifold/engine"
)

type Position struct {
	X, Y float64
}

type Health struct {
	Current, Max int
}

type Gravity struct {
	G float64
}

// registerTypes installs the component set both capture and restore
// worlds share
func registerTypes(t *testing.T, w *engine.World) (engine.ComponentID, engine.ComponentID, engine.ComponentID) {
	t.Helper()
	pos, err := engine.RegisterComponent[Position](w, "position")
	require.NoError(t, err)
	hp, err := engine.RegisterComponentWith[Health](w, "health", engine.ComponentOptions[Health]{
		Validate: func(h *Health) error {
			if h.Current > h.Max {
				h.Current = h.Max
			}
			return nil
		},
	})
	require.NoError(t, err)
	grav, err := engine.RegisterComponent[Gravity](w, "gravity")
	require.NoError(t, err)
	return pos, hp, grav
}

func TestRoundTrip(t *testing.T) {
	src := engine.NewWorld(engine.Config{})
	_, _, grav := registerTypes(t, src)

	player := src.CreateEntity("player")
	require.NoError(t, src.AddTag(player, "player"))
	require.NoError(t, engine.Add(src, player, Position{X: 3, Y: 4}))
	require.NoError(t, engine.Add(src, player, Health{Current: 80, Max: 100}))

	rock := src.CreateEntity("rock")
	require.NoError(t, engine.Add(src, rock, Position{X: -1, Y: 0}))

	require.NoError(t, src.SetSingletonByID(grav, Gravity{G: 9.81}))

	snap, err := Capture(src)
	require.NoError(t, err)
	data, err := Encode(snap)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)

	dst := engine.NewWorld(engine.Config{})
	registerTypes(t, dst)
	require.NoError(t, Restore(dst, decoded))

	require.Equal(t, 2, dst.EntityCount())
	require.True(t, dst.IsAlive(player))
	require.True(t, dst.HasTag(player, "player"))

	name, err := dst.EntityName(player)
	require.NoError(t, err)
	require.Equal(t, "player", name)

	pos, ok := engine.Get[Position](dst, player)
	require.True(t, ok)
	require.Equal(t, Position{X: 3, Y: 4}, pos)

	hp, ok := engine.Get[Health](dst, player)
	require.True(t, ok)
	require.Equal(t, Health{Current: 80, Max: 100}, hp)

	g, ok := engine.Singleton[Gravity](dst)
	require.True(t, ok)
	require.Equal(t, 9.81, g.G)
}

func TestChecksumRejectsTamper(t *testing.T) {
	src := engine.NewWorld(engine.Config{})
	registerTypes(t, src)
	e := src.CreateEntity("thing")
	require.NoError(t, engine.Add(src, e, Position{X: 1}))

	snap, err := Capture(src)
	require.NoError(t, err)
	data, err := Encode(snap)
	require.NoError(t, err)

	// Flip a payload byte past the checksum field
	data[len(data)-10] ^= 0x20
	_, err = Decode(data)
	require.ErrorIs(t, err, ErrChecksum)
}

func TestRestoreUnknownComponent(t *testing.T) {
	src := engine.NewWorld(engine.Config{})
	registerTypes(t, src)
	e := src.CreateEntity("thing")
	require.NoError(t, engine.Add(src, e, Position{X: 1}))

	snap, err := Capture(src)
	require.NoError(t, err)

	dst := engine.NewWorld(engine.Config{})
	err = Restore(dst, snap)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestValidatorRunsOnRestore(t *testing.T) {
	src := engine.NewWorld(engine.Config{})
	registerTypes(t, src)
	e := src.CreateEntity("thing")
	require.NoError(t, engine.Add(src, e, Health{Current: 50, Max: 100}))

	snap, err := Capture(src)
	require.NoError(t, err)
	// Corrupt the stored value past what the validator allows
	snap.Entities[0].Components["health"] = []byte(`{"Current":500,"Max":100}`)

	dst := engine.NewWorld(engine.Config{})
	registerTypes(t, dst)
	require.NoError(t, Restore(dst, snap))

	hp, ok := engine.Get[Health](dst, e)
	require.True(t, ok)
	// Validator clamps on decode
	require.Equal(t, 100, hp.Current)
}

func TestSaveLoadFile(t *testing.T) {
	src := engine.NewWorld(engine.Config{})
	registerTypes(t, src)
	e := src.CreateEntity("saved")
	require.NoError(t, engine.Add(src, e, Position{X: 7, Y: 8}))

	path := filepath.Join(t.TempDir(), "world.json")
	require.NoError(t, Save(src, path))

	dst := engine.NewWorld(engine.Config{})
	registerTypes(t, dst)
	require.NoError(t, Load(dst, path))

	pos, ok := engine.Get[Position](dst, e)
	require.True(t, ok)
	require.Equal(t, Position{X: 7, Y: 8}, pos)
}
