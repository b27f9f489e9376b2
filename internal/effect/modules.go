package effect

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huestream/internal/stream"
)

// StreamModule exposes queueing of light updates to Lua.
// Every update is encoded in the stream's color space, so only the matching
// function (rgb or xyb) may be called.
type StreamModule struct {
	target Enqueuer
	cs     stream.ColorSpace
}

// NewStreamModule creates a stream module feeding target
func NewStreamModule(target Enqueuer, cs stream.ColorSpace) *StreamModule {
	return &StreamModule{target: target, cs: cs}
}

// Loader is the module loader for Lua
func (m *StreamModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "rgb", L.NewFunction(m.rgb))
	L.SetField(mod, "xyb", L.NewFunction(m.xyb))
	L.SetField(mod, "MAX", lua.LNumber(65535))
	L.SetField(mod, "color_space", lua.LString(m.cs.String()))

	L.Push(mod)
	return 1
}

// stream.rgb(id, r, g, b) with raw 16-bit channels
func (m *StreamModule) rgb(L *lua.LState) int {
	m.enqueue(L, stream.RGB)
	return 0
}

// stream.xyb(id, x, y, bri) with channels in [0, 1]
func (m *StreamModule) xyb(L *lua.LState) int {
	m.enqueue(L, stream.XYB)
	return 0
}

func (m *StreamModule) enqueue(L *lua.LState, cs stream.ColorSpace) {
	if cs != m.cs {
		L.RaiseError("stream.%s called but the stream color space is %s", cs, m.cs)
		return
	}
	u := stream.LightUpdate{
		LightID: L.CheckInt(1),
		Channels: [3]float64{
			float64(L.CheckNumber(2)),
			float64(L.CheckNumber(3)),
			float64(L.CheckNumber(4)),
		},
	}
	// Reject what the encoder would reject, at the line that produced it.
	if _, err := stream.EncodeFrame([]stream.LightUpdate{u}, cs); err != nil {
		L.RaiseError("%s", err.Error())
		return
	}
	m.target.Enqueue(u)
}

// LogModule provides logging functions to Lua
type LogModule struct{}

// NewLogModule creates a new log module
func NewLogModule() *LogModule {
	return &LogModule{}
}

// Loader is the module loader for Lua
func (m *LogModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "debug", L.NewFunction(m.logAt(zerolog.DebugLevel)))
	L.SetField(mod, "info", L.NewFunction(m.logAt(zerolog.InfoLevel)))
	L.SetField(mod, "warn", L.NewFunction(m.logAt(zerolog.WarnLevel)))
	L.SetField(mod, "error", L.NewFunction(m.logAt(zerolog.ErrorLevel)))

	L.Push(mod)
	return 1
}

func (m *LogModule) logAt(level zerolog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)

		event := log.WithLevel(level).Str("source", "effect")
		if tbl, ok := L.Get(2).(*lua.LTable); ok {
			tbl.ForEach(func(key, value lua.LValue) {
				event = event.Interface(lua.LVAsString(key), luaToGo(value))
			})
		}
		event.Msg(msg)

		return 0
	}
}

// luaToGo converts a Lua value to a Go value for structured log fields
func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		obj := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			obj[lua.LVAsString(k)] = luaToGo(v)
		})
		return obj
	case *lua.LNilType:
		return nil
	default:
		return v.String()
	}
}
