// Package luascript embeds a gopher-lua VM as a plugin. Scripts drive
// the world through a small `engine` binding table and can react to
// ticks by defining a global on_tick(dt) function.
package luascript

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/lixenwraith/manifold/engine"
	"github.com/lixenwraith/manifold/plugin"
)

// apiVersion is exposed to scripts as the API_VERSION global
const apiVersion = 1

const (
	pluginName = "luascript"
	driverTag  = "luascript.driver"
)

// Options configure the scripting plugin
type Options struct {
	// ScriptDir is loaded at install time; every .lua file in it runs
	// once, in name order. A missing directory is not an error.
	ScriptDir string

	// Source is inline script text executed at install, after the
	// script directory
	Source string
}

// Script is the plugin owning one Lua VM. The VM is single-goroutine:
// all access happens on the world's tick loop.
type Script struct {
	opts   Options
	vm     *lua.LState
	log    *zap.Logger
	ctx    *plugin.Context
	driver engine.Entity
}

// New creates the scripting plugin
func New(opts Options) *Script {
	return &Script{opts: opts}
}

func (s *Script) Name() string    { return pluginName }
func (s *Script) Version() string { return "1.0.0" }

// Install creates the VM, binds the engine table, runs the configured
// scripts and registers the per-tick driver system
func (s *Script) Install(ctx *plugin.Context) error {
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})
	vm.SetGlobal("API_VERSION", lua.LNumber(apiVersion))

	s.vm = vm
	s.ctx = ctx
	s.log = ctx.Logger
	s.bind(vm)

	if s.opts.ScriptDir != "" {
		if err := s.loadDir(s.opts.ScriptDir); err != nil {
			s.closeVM()
			return err
		}
	}
	if s.opts.Source != "" {
		if err := vm.DoString(s.opts.Source); err != nil {
			s.closeVM()
			return fmt.Errorf("run inline script: %w", err)
		}
	}

	if err := ctx.Extend("luascript.run", s.DoString); err != nil {
		s.closeVM()
		return err
	}

	// The driver entity gives the tick system exactly one match, so
	// on_tick runs once per update
	s.driver = ctx.World.CreateEntity(pluginName)
	if err := ctx.World.AddTag(s.driver, driverTag); err != nil {
		s.closeVM()
		return err
	}
	err := ctx.World.CreateSystem(engine.SystemConfig{
		Name:  pluginName,
		Query: engine.QuerySpec{WithTags: []string{driverTag}},
		Act: func(t *engine.Tick, _ engine.Entity) {
			s.onTick(t.Seconds())
		},
	})
	if err != nil {
		ctx.World.DestroyEntity(s.driver)
		s.closeVM()
		return err
	}
	return nil
}

// Uninstall disables the driver system, destroys the driver entity and
// closes the VM. Safe to call twice.
func (s *Script) Uninstall() error {
	if s.vm == nil {
		return nil
	}
	if s.ctx != nil {
		s.ctx.World.DisableSystem(pluginName)
		if !s.driver.IsNil() {
			s.ctx.World.DestroyEntity(s.driver)
			s.driver = engine.NilEntity
		}
	}
	s.closeVM()
	return nil
}

// DoString runs inline Lua source in the plugin's VM
func (s *Script) DoString(src string) error {
	if s.vm == nil {
		return fmt.Errorf("luascript: not installed")
	}
	return s.vm.DoString(src)
}

// DoFile runs one script file in the plugin's VM
func (s *Script) DoFile(path string) error {
	if s.vm == nil {
		return fmt.Errorf("luascript: not installed")
	}
	return s.vm.DoFile(path)
}

func (s *Script) closeVM() {
	if s.vm != nil {
		s.vm.Close()
		s.vm = nil
	}
}

// loadDir runs every .lua file in a directory, in name order
func (s *Script) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read script dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := s.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		s.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// onTick calls the script's global on_tick(dt) when defined. Script
// errors are logged, never propagated into the tick.
func (s *Script) onTick(dt float64) {
	if s.vm == nil {
		return
	}
	fn := s.vm.GetGlobal("on_tick")
	if fn == lua.LNil {
		return
	}
	err := s.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt))
	if err != nil {
		s.log.Error("lua on_tick error", zap.Error(err))
	}
}
