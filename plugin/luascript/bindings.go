package luascript

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/lixenwraith/manifold/engine"
)

// bind installs the `engine` table into the VM. Entity handles cross
// the boundary as {id, version} tables; component values cross as
// plain tables through a JSON round trip.
func (s *Script) bind(vm *lua.LState) {
	mod := vm.NewTable()
	mod.RawSetString("spawn", vm.NewFunction(s.luaSpawn))
	mod.RawSetString("destroy", vm.NewFunction(s.luaDestroy))
	mod.RawSetString("queue_free", vm.NewFunction(s.luaQueueFree))
	mod.RawSetString("is_alive", vm.NewFunction(s.luaIsAlive))
	mod.RawSetString("tag", vm.NewFunction(s.luaTag))
	mod.RawSetString("untag", vm.NewFunction(s.luaUntag))
	mod.RawSetString("entity_count", vm.NewFunction(s.luaEntityCount))
	mod.RawSetString("singleton", vm.NewFunction(s.luaSingleton))
	mod.RawSetString("set_singleton", vm.NewFunction(s.luaSetSingleton))
	mod.RawSetString("publish", vm.NewFunction(s.luaPublish))
	mod.RawSetString("log", vm.NewFunction(s.luaLog))
	vm.SetGlobal("engine", mod)
}

// pushEntity converts a handle into a Lua table
func pushEntity(vm *lua.LState, e engine.Entity) *lua.LTable {
	t := vm.NewTable()
	t.RawSetString("id", lua.LNumber(e.ID))
	t.RawSetString("version", lua.LNumber(e.Version))
	return t
}

// checkEntity reads a handle table from the given argument position
func checkEntity(L *lua.LState, pos int) engine.Entity {
	t := L.CheckTable(pos)
	return engine.Entity{
		ID:      uint32(lua.LVAsNumber(t.RawGetString("id"))),
		Version: uint32(lua.LVAsNumber(t.RawGetString("version"))),
	}
}

// engine.spawn(name?) -> entity
func (s *Script) luaSpawn(L *lua.LState) int {
	name := L.OptString(1, "")
	e := s.ctx.World.CreateEntity(name)
	L.Push(pushEntity(L, e))
	return 1
}

// engine.destroy(entity) -> ok
func (s *Script) luaDestroy(L *lua.LState) int {
	e := checkEntity(L, 1)
	L.Push(lua.LBool(s.ctx.World.DestroyEntity(e) == nil))
	return 1
}

// engine.queue_free(entity) -> ok
func (s *Script) luaQueueFree(L *lua.LState) int {
	e := checkEntity(L, 1)
	L.Push(lua.LBool(s.ctx.World.QueueFree(e) == nil))
	return 1
}

// engine.is_alive(entity) -> bool
func (s *Script) luaIsAlive(L *lua.LState) int {
	e := checkEntity(L, 1)
	L.Push(lua.LBool(s.ctx.World.IsAlive(e)))
	return 1
}

// engine.tag(entity, tag) -> ok
func (s *Script) luaTag(L *lua.LState) int {
	e := checkEntity(L, 1)
	tag := L.CheckString(2)
	L.Push(lua.LBool(s.ctx.World.AddTag(e, tag) == nil))
	return 1
}

// engine.untag(entity, tag) -> ok
func (s *Script) luaUntag(L *lua.LState) int {
	e := checkEntity(L, 1)
	tag := L.CheckString(2)
	L.Push(lua.LBool(s.ctx.World.RemoveTag(e, tag) == nil))
	return 1
}

// engine.entity_count() -> n
func (s *Script) luaEntityCount(L *lua.LState) int {
	L.Push(lua.LNumber(s.ctx.World.EntityCount()))
	return 1
}

// engine.singleton(name) -> table|nil
func (s *Script) luaSingleton(L *lua.LState) int {
	name := L.CheckString(1)
	w := s.ctx.World

	id, ok := w.ComponentID(name)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	v, err := w.SingletonByID(id)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	raw, err := json.Marshal(v)
	if err != nil {
		L.Push(lua.LNil)
		return 1
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(goToLua(L, decoded))
	return 1
}

// engine.set_singleton(name, value?) -> ok. Omitting the value selects
// the type's default construction; the registered validator applies.
func (s *Script) luaSetSingleton(L *lua.LState) int {
	name := L.CheckString(1)
	w := s.ctx.World

	id, ok := w.ComponentID(name)
	if !ok {
		L.Push(lua.LBool(false))
		return 1
	}
	if L.Get(2) == lua.LNil {
		L.Push(lua.LBool(w.SetSingletonByID(id, nil) == nil))
		return 1
	}
	raw, err := json.Marshal(luaToGo(L.Get(2)))
	if err != nil {
		L.Push(lua.LBool(false))
		return 1
	}
	v, err := w.DecodeComponent(id, func(dst any) error {
		return json.Unmarshal(raw, dst)
	})
	if err != nil {
		L.Push(lua.LBool(false))
		return 1
	}
	L.Push(lua.LBool(w.SetSingletonByID(id, v) == nil))
	return 1
}

// luaToGo converts a Lua value into the JSON-friendly shape. Tables
// with an array part become slices, the rest become string-keyed maps.
func luaToGo(lv lua.LValue) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if n := v.MaxN(); n > 0 {
			arr := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				arr = append(arr, luaToGo(v.RawGetInt(i)))
			}
			return arr
		}
		m := make(map[string]any)
		v.ForEach(func(k, val lua.LValue) {
			m[k.String()] = luaToGo(val)
		})
		return m
	default:
		return nil
	}
}

// goToLua is the inverse conversion for values decoded out of JSON
func goToLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case bool:
		return lua.LBool(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []any:
		t := L.NewTable()
		for i, item := range v {
			t.RawSetInt(i+1, goToLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range v {
			t.RawSetString(k, goToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

// engine.publish(topic, payload?) -> delivered
func (s *Script) luaPublish(L *lua.LState) int {
	topic := L.CheckString(1)
	payload := L.OptString(2, "")
	n := s.ctx.Bus.Publish(topic, payload, pluginName)
	L.Push(lua.LNumber(n))
	return 1
}

// engine.log(message)
func (s *Script) luaLog(L *lua.LState) int {
	s.log.Info("script", zap.String("message", L.CheckString(1)))
	return 0
}
