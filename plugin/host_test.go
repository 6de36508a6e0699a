package plugin

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/manifold/bus"
	"github.com/lixenwraith/manifold/engine"
)

// Gravity is the test component a plugin registers
type Gravity struct {
	Strength float64
}

// gravityPlugin installs a component, a system and a capability
type gravityPlugin struct {
	installs   int
	uninstalls int
	failWith   error
	sub        *bus.Subscription
}

func (p *gravityPlugin) Name() string    { return "gravity" }
func (p *gravityPlugin) Version() string { return "1.2.0" }

func (p *gravityPlugin) Install(ctx *Context) error {
	p.installs++
	if err := ctx.Extend("gravity.strength", 9.81); err != nil {
		return err
	}
	if p.failWith != nil {
		return p.failWith
	}

	if _, err := engine.RegisterComponent[Gravity](ctx.World, "gravity"); err != nil {
		return err
	}
	p.sub = ctx.Bus.Subscribe("gravity.invert", func(bus.Message) {})
	return ctx.World.CreateSystem(engine.SystemConfig{
		Name: "gravity",
		Act:  func(*engine.Tick, engine.Entity) {},
	})
}

func (p *gravityPlugin) Uninstall() error {
	p.uninstalls++
	if p.sub != nil {
		p.sub.Cancel()
	}
	return nil
}

func newTestHost() (*Host, *engine.World, *bus.Bus) {
	w := engine.NewWorld(engine.Config{})
	b := bus.New()
	return NewHost(w, b, nil), w, b
}

func TestInstall(t *testing.T) {
	h, w, b := newTestHost()
	p := &gravityPlugin{}

	require.NoError(t, h.Install(p))
	require.Equal(t, 1, p.installs)
	require.True(t, h.Installed("gravity"))
	require.Equal(t, []string{"gravity"}, h.Plugins())

	// The plugin's registrations landed in the world and bus
	_, ok := w.ComponentID("gravity")
	require.True(t, ok)
	require.Contains(t, w.SystemNames(), "gravity")
	require.Equal(t, 1, b.SubscriberCount("gravity.invert"))

	// Its capability is visible
	strength, ok := h.Capability("gravity.strength")
	require.True(t, ok)
	require.Equal(t, 9.81, strength)
}

func TestInstallDuplicate(t *testing.T) {
	h, _, _ := newTestHost()

	require.NoError(t, h.Install(&gravityPlugin{}))
	err := h.Install(&gravityPlugin{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already installed")
}

func TestInstallFailureLeavesNoTrace(t *testing.T) {
	h, _, _ := newTestHost()
	boom := errors.New("boom")
	p := &gravityPlugin{failWith: boom}

	err := h.Install(p)
	require.ErrorIs(t, err, boom)
	require.False(t, h.Installed("gravity"))
	require.Empty(t, h.Plugins())

	// Capabilities extended before the failure are withdrawn
	_, ok := h.Capability("gravity.strength")
	require.False(t, ok)

	// The name is free again
	require.NoError(t, h.Install(&gravityPlugin{}))
}

func TestUninstall(t *testing.T) {
	h, _, b := newTestHost()
	p := &gravityPlugin{}
	require.NoError(t, h.Install(p))

	require.NoError(t, h.Uninstall("gravity"))
	require.Equal(t, 1, p.uninstalls)
	require.False(t, h.Installed("gravity"))

	_, ok := h.Capability("gravity.strength")
	require.False(t, ok)
	require.Equal(t, 0, b.SubscriberCount("gravity.invert"))

	require.Error(t, h.Uninstall("gravity"))
}

func TestCapabilityConflict(t *testing.T) {
	h, _, _ := newTestHost()
	require.NoError(t, h.Install(&gravityPlugin{}))

	// A second plugin claiming the same capability name fails install
	clash := &capabilityClash{}
	err := h.Install(clash)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already registered")

	// The original owner keeps the capability
	strength, ok := h.Capability("gravity.strength")
	require.True(t, ok)
	require.Equal(t, 9.81, strength)
}

type capabilityClash struct{}

func (*capabilityClash) Name() string    { return "clash" }
func (*capabilityClash) Version() string { return "0.0.1" }
func (*capabilityClash) Uninstall() error {
	return nil
}
func (*capabilityClash) Install(ctx *Context) error {
	return ctx.Extend("gravity.strength", 1.62)
}

func TestPluginSystemRuns(t *testing.T) {
	h, w, _ := newTestHost()

	runs := 0
	counter := &funcPlugin{
		name: "counter",
		install: func(ctx *Context) error {
			ctx.World.CreateEntity("probe")
			return ctx.World.CreateSystem(engine.SystemConfig{
				Name: "counter",
				Act:  func(*engine.Tick, engine.Entity) { runs++ },
			})
		},
	}
	require.NoError(t, h.Install(counter))

	w.Update(16 * time.Millisecond)
	require.Equal(t, 1, runs)
}

// funcPlugin adapts closures for small test plugins
type funcPlugin struct {
	name      string
	install   func(*Context) error
	uninstall func() error
}

func (p *funcPlugin) Name() string    { return p.name }
func (p *funcPlugin) Version() string { return "0.0.0" }
func (p *funcPlugin) Install(ctx *Context) error {
	if p.install == nil {
		return nil
	}
	return p.install(ctx)
}
func (p *funcPlugin) Uninstall() error {
	if p.uninstall == nil {
		return nil
	}
	return p.uninstall()
}
