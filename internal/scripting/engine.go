package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/simworld/server/internal/physics"
	"github.com/simworld/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const stepFunc = "physics_step"

// Engine wraps one gopher-lua VM that implements the physics step in script.
// Only the stepping goroutine may call it.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a VM and loads every script under scriptsDir/physics.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if err := e.loadDir(filepath.Join(scriptsDir, "physics")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load physics scripts: %w", err)
	}
	if e.vm.GetGlobal(stepFunc) == lua.LNil {
		vm.Close()
		return nil, fmt.Errorf("lua function %s not defined under %s", stepFunc, scriptsDir)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Type() string { return "lua" }

// Step calls physics_step(ctx) where ctx carries dt, gravity, wind and the
// body list. The script returns a list of bodies in the same order, or nil to
// leave the snapshot unchanged. Only pose and velocities are read back.
func (e *Engine) Step(bodies []world.BodyState, dt float64, v physics.Values) ([]world.BodyState, error) {
	fn := e.vm.GetGlobal(stepFunc)
	if fn == lua.LNil {
		return bodies, fmt.Errorf("lua function %s not found", stepFunc)
	}

	ctx := e.vm.NewTable()
	ctx.RawSetString("dt", lua.LNumber(dt))
	ctx.RawSetString("gravity", e.vec(v.Gravity))
	ctx.RawSetString("wind", e.vec(v.WindLinearVelocity))
	list := e.vm.CreateTable(len(bodies), 0)
	for i := range bodies {
		b := &bodies[i]
		t := e.vm.NewTable()
		t.RawSetString("model", lua.LString(b.Model))
		t.RawSetString("link", lua.LString(b.Link))
		t.RawSetString("mass", lua.LNumber(b.Mass))
		t.RawSetString("static", lua.LBool(b.Static))
		t.RawSetString("pos", e.vec(b.Pose.Position))
		t.RawSetString("rot", e.vec(b.Pose.Rotation))
		t.RawSetString("vel", e.vec(b.LinearVel))
		t.RawSetString("ang", e.vec(b.AngularVel))
		list.Append(t)
	}
	ctx.RawSetString("bodies", list)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, ctx); err != nil {
		return bodies, fmt.Errorf("lua %s: %w", stepFunc, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	if ret == lua.LNil {
		return bodies, nil
	}
	rt, ok := ret.(*lua.LTable)
	if !ok {
		return bodies, fmt.Errorf("lua %s returned %s, want table", stepFunc, ret.Type())
	}
	if rt.Len() != len(bodies) {
		return bodies, fmt.Errorf("lua %s returned %d bodies, want %d", stepFunc, rt.Len(), len(bodies))
	}

	out := make([]world.BodyState, len(bodies))
	copy(out, bodies)
	for i := range out {
		bt, ok := rt.RawGetInt(i + 1).(*lua.LTable)
		if !ok {
			return bodies, fmt.Errorf("lua %s: body %d is not a table", stepFunc, i+1)
		}
		out[i].Pose.Position = lVec(bt, "pos", out[i].Pose.Position)
		out[i].Pose.Rotation = lVec(bt, "rot", out[i].Pose.Rotation)
		out[i].LinearVel = lVec(bt, "vel", out[i].LinearVel)
		out[i].AngularVel = lVec(bt, "ang", out[i].AngularVel)
	}
	return out, nil
}

func (e *Engine) vec(v [3]float64) *lua.LTable {
	t := e.vm.CreateTable(3, 0)
	for _, c := range v {
		t.Append(lua.LNumber(c))
	}
	return t
}

// lVec reads a 3-element array field, keeping def for missing components.
func lVec(t *lua.LTable, key string, def [3]float64) [3]float64 {
	vt, ok := t.RawGetString(key).(*lua.LTable)
	if !ok {
		return def
	}
	out := def
	for i := 0; i < 3; i++ {
		if n, ok := vt.RawGetInt(i + 1).(lua.LNumber); ok {
			out[i] = float64(n)
		}
	}
	return out
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
