package luascript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/manifold/bus"
	"github.com/lixenwraith/manifold/engine"
	"github.com/lixenwraith/manifold/plugin"
)

func newScriptHost(t *testing.T) (*plugin.Host, *engine.World, *bus.Bus) {
	t.Helper()
	w := engine.NewWorld(engine.Config{})
	b := bus.New()
	return plugin.NewHost(w, b, nil), w, b
}

func TestInstallRunsInlineSource(t *testing.T) {
	h, w, _ := newScriptHost(t)

	script := New(Options{Source: `
		spawned = engine.spawn("scripted")
		engine.tag(spawned, "from-lua")
	`})
	require.NoError(t, h.Install(script))

	q, err := w.CreateQuery(engine.QuerySpec{WithTags: []string{"from-lua"}})
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())

	e := q.Entities()[0]
	name, err := w.EntityName(e)
	require.NoError(t, err)
	require.Equal(t, "scripted", name)
}

func TestOnTick(t *testing.T) {
	h, w, b := newScriptHost(t)

	ticks := 0
	b.Subscribe("script.tick", func(bus.Message) { ticks++ })

	script := New(Options{Source: `
		function on_tick(dt)
			engine.publish("script.tick", tostring(dt))
		end
	`})
	require.NoError(t, h.Install(script))

	w.Update(16 * time.Millisecond)
	w.Update(16 * time.Millisecond)
	require.Equal(t, 2, ticks)
}

func TestScriptDir(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "boot.lua"), []byte(`
		booted = engine.spawn("booted")
		engine.tag(booted, "booted")
	`), 0o644)
	require.NoError(t, err)
	// Non-lua files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	h, w, _ := newScriptHost(t)
	require.NoError(t, h.Install(New(Options{ScriptDir: dir})))

	q, err := w.CreateQuery(engine.QuerySpec{WithTags: []string{"booted"}})
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())
}

func TestMissingScriptDirTolerated(t *testing.T) {
	h, _, _ := newScriptHost(t)
	err := h.Install(New(Options{ScriptDir: "/nonexistent/scripts"}))
	require.NoError(t, err)
}

func TestBrokenSourceFailsInstall(t *testing.T) {
	h, _, _ := newScriptHost(t)

	err := h.Install(New(Options{Source: `this is not lua (`}))
	require.Error(t, err)
	require.False(t, h.Installed(pluginName))
}

func TestRunCapability(t *testing.T) {
	h, w, _ := newScriptHost(t)
	require.NoError(t, h.Install(New(Options{})))

	run, ok := h.Capability("luascript.run")
	require.True(t, ok)

	doString := run.(func(string) error)
	require.NoError(t, doString(`engine.tag(engine.spawn("late"), "late")`))
	require.Error(t, doString(`nonsense ~~`))

	q, err := w.CreateQuery(engine.QuerySpec{WithTags: []string{"late"}})
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())
}

func TestUninstall(t *testing.T) {
	h, w, b := newScriptHost(t)

	ticks := 0
	b.Subscribe("script.tick", func(bus.Message) { ticks++ })

	script := New(Options{Source: `
		function on_tick(dt)
			engine.publish("script.tick", "")
		end
	`})
	require.NoError(t, h.Install(script))
	w.Update(time.Millisecond)
	require.Equal(t, 1, ticks)

	require.NoError(t, h.Uninstall(pluginName))

	// The driver system is disabled and the driver entity gone
	w.Update(time.Millisecond)
	require.Equal(t, 1, ticks)
	require.Equal(t, 0, w.EntityCount())

	_, ok := h.Capability("luascript.run")
	require.False(t, ok)

	// Idempotent
	require.NoError(t, script.Uninstall())
}

type gravity struct {
	X, Y float64
}

type bounds struct {
	W, H int
}

func TestSingletonBindings(t *testing.T) {
	h, w, _ := newScriptHost(t)
	_, err := engine.RegisterComponent[gravity](w, "gravity")
	require.NoError(t, err)
	require.NoError(t, engine.SetSingleton(w, gravity{Y: -9.8}))

	script := New(Options{Source: `
		g = engine.singleton("gravity")
		ok = engine.set_singleton("gravity", {X = 1.5, Y = g.Y * 2})
		missing = engine.singleton("no-such-component")
	`})
	require.NoError(t, h.Install(script))

	g, found := engine.Singleton[gravity](w)
	require.True(t, found)
	require.Equal(t, gravity{X: 1.5, Y: -19.6}, g)

	require.NoError(t, script.DoString(`
		assert(g.Y == -9.8, "expected readback of the stored singleton")
		assert(ok == true, "expected set_singleton to succeed")
		assert(missing == nil, "expected nil for an unregistered name")
	`))
}

func TestSetSingletonDefaultConstruction(t *testing.T) {
	h, w, _ := newScriptHost(t)
	_, err := engine.RegisterComponentWith(w, "bounds", engine.ComponentOptions[bounds]{
		Default: func() bounds { return bounds{W: 80, H: 24} },
	})
	require.NoError(t, err)

	require.NoError(t, h.Install(New(Options{Source: `engine.set_singleton("bounds")`})))

	b, found := engine.Singleton[bounds](w)
	require.True(t, found)
	require.Equal(t, bounds{W: 80, H: 24}, b)
}

func TestEntityRoundTrip(t *testing.T) {
	h, w, _ := newScriptHost(t)

	script := New(Options{Source: `
		victim = engine.spawn("victim")
		alive_before = engine.is_alive(victim)
		engine.destroy(victim)
		alive_after = engine.is_alive(victim)
	`})
	require.NoError(t, h.Install(script))

	require.NoError(t, script.DoString(`
		assert(alive_before == true, "expected alive before destroy")
		assert(alive_after == false, "expected dead after destroy")
	`))
	// Only the driver entity remains
	require.Equal(t, 1, w.EntityCount())
}
