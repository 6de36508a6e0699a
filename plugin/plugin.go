// Package plugin hosts runtime extensions. A plugin receives a narrow
// capability surface at install time and wires itself into the world
// through it: component registration, systems, queries, bus
// subscriptions and named capabilities other code can look up.
package plugin

import (
	"go.uber.org/zap"

	"github.com/lixenwraith/manifold/bus"
	"github.com/lixenwraith/manifold/engine"
)

// Plugin is the lifecycle interface for runtime extensions
//
// Lifecycle:
//  1. Construction (plugin author)
//  2. Install(ctx) - register components, systems, subscriptions
//  3. [runtime operation]
//  4. Uninstall() - reverse installed state, release resources
type Plugin interface {
	// Name returns the unique identifier for this plugin
	Name() string

	// Version returns a display version string
	Version() string

	// Install wires the plugin into the world through the context.
	// Returning an error aborts installation; capabilities the plugin
	// extended before failing are withdrawn by the host.
	Install(ctx *Context) error

	// Uninstall reverses the plugin's installed state by convention:
	// disable or drain its systems, cancel subscriptions, release
	// resources. Must be idempotent.
	Uninstall() error
}

// Context is the capability surface handed to Install. It carries the
// world and bus references the plugin operates through, a logger named
// after the plugin, and the capability registry.
type Context struct {
	World  *engine.World
	Bus    *bus.Bus
	Logger *zap.Logger

	host  *Host
	owner string
}

// Extend publishes a named capability owned by this plugin. Capability
// names are host-global; a taken name is an error. The host withdraws
// the capability when the plugin uninstalls.
func (c *Context) Extend(name string, capability any) error {
	return c.host.extend(c.owner, name, capability)
}
