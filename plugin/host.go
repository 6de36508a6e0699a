package plugin

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lixenwraith/manifold/bus"
	"github.com/lixenwraith/manifold/engine"
)

// capEntry tracks a published capability and the plugin that owns it
type capEntry struct {
	owner string
	value any
}

// Host owns installed plugins and their published capabilities.
// Install and Uninstall run plugin callbacks without host locks held,
// mirroring the engine's callback discipline.
type Host struct {
	mu      sync.RWMutex
	world   *engine.World
	bus     *bus.Bus
	log     *zap.Logger
	plugins map[string]Plugin
	caps    map[string]capEntry
}

// NewHost creates a host bound to a world and bus. A nil logger falls
// back to the no-op logger.
func NewHost(world *engine.World, b *bus.Bus, logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		world:   world,
		bus:     b,
		log:     logger,
		plugins: make(map[string]Plugin),
		caps:    make(map[string]capEntry),
	}
}

// Install runs the plugin's Install with a fresh context. Plugin names
// are unique per host; a failed Install leaves no trace.
func (h *Host) Install(p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("install plugin: empty name")
	}

	h.mu.Lock()
	if _, exists := h.plugins[name]; exists {
		h.mu.Unlock()
		return fmt.Errorf("install plugin %q: already installed", name)
	}
	// Reserve the name while Install runs unlocked
	h.plugins[name] = nil
	h.mu.Unlock()

	ctx := &Context{
		World:  h.world,
		Bus:    h.bus,
		Logger: h.log.Named(name),
		host:   h,
		owner:  name,
	}
	if err := p.Install(ctx); err != nil {
		h.mu.Lock()
		delete(h.plugins, name)
		h.withdrawCaps(name)
		h.mu.Unlock()
		return fmt.Errorf("install plugin %q: %w", name, err)
	}

	h.mu.Lock()
	h.plugins[name] = p
	h.mu.Unlock()

	h.log.Info("plugin installed",
		zap.String("plugin", name), zap.String("version", p.Version()))
	return nil
}

// Uninstall runs the plugin's Uninstall and withdraws its capabilities.
// The plugin is removed from the host even when Uninstall returns an
// error; the error is reported to the caller.
func (h *Host) Uninstall(name string) error {
	h.mu.Lock()
	p, ok := h.plugins[name]
	if !ok || p == nil {
		h.mu.Unlock()
		return fmt.Errorf("uninstall plugin %q: not installed", name)
	}
	delete(h.plugins, name)
	h.withdrawCaps(name)
	h.mu.Unlock()

	if err := p.Uninstall(); err != nil {
		return fmt.Errorf("uninstall plugin %q: %w", name, err)
	}
	h.log.Info("plugin uninstalled", zap.String("plugin", name))
	return nil
}

// withdrawCaps removes every capability owned by a plugin. Caller
// holds h.mu.
func (h *Host) withdrawCaps(owner string) {
	for name, entry := range h.caps {
		if entry.owner == owner {
			delete(h.caps, name)
		}
	}
}

// extend registers a capability under an owner
func (h *Host) extend(owner, name string, capability any) error {
	if name == "" {
		return fmt.Errorf("extend: empty capability name")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if entry, exists := h.caps[name]; exists {
		return fmt.Errorf("extend %q: already registered by plugin %q", name, entry.owner)
	}
	h.caps[name] = capEntry{owner: owner, value: capability}
	return nil
}

// Capability looks up a named capability published by any installed
// plugin
func (h *Host) Capability(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.caps[name]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// Installed reports whether a plugin is installed
func (h *Host) Installed(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.plugins[name]
	return ok && p != nil
}

// Plugins returns the installed plugin names in sorted order
func (h *Host) Plugins() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.plugins))
	for name, p := range h.plugins {
		if p != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
