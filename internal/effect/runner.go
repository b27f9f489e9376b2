// Package effect runs Lua scripts that generate light updates once per stream tick.
//
// A script defines a global function frame(t), t being the seconds elapsed since the
// stream started, and queues updates through the preloaded "stream" module:
//
//	local stream = require("stream")
//
//	function frame(t)
//	  local v = math.floor((math.sin(t) + 1) / 2 * 65535)
//	  stream.rgb(1, v, 0, 65535 - v)
//	end
package effect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/huestream/internal/stream"
)

// ErrNoFrameFunc is returned when a script does not define frame(t).
var ErrNoFrameFunc = errors.New("effect script does not define frame(t)")

// Enqueuer receives updates produced by the script. *stream.Queue implements it.
type Enqueuer interface {
	Enqueue(u stream.LightUpdate)
}

// Runner owns one Lua VM. Tick may be called from any goroutine, one call at a time
// runs on the VM.
type Runner struct {
	mu      sync.Mutex
	L       *lua.LState
	frameFn *lua.LFunction
	ticks   uint64
}

// Load executes the script at path. cs is the color space frames are encoded in.
func Load(path string, target Enqueuer, cs stream.ColorSpace) (*Runner, error) {
	log.Info().Str("path", path).Str("color_space", cs.String()).Msg("Loading effect script")
	return load(target, cs, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString executes script source, mainly for tests and inline effects.
func LoadString(src string, target Enqueuer, cs stream.ColorSpace) (*Runner, error) {
	return load(target, cs, func(L *lua.LState) error { return L.DoString(src) })
}

func load(target Enqueuer, cs stream.ColorSpace, exec func(*lua.LState) error) (*Runner, error) {
	L := lua.NewState()

	L.PreloadModule("log", NewLogModule().Loader)
	L.PreloadModule("stream", NewStreamModule(target, cs).Loader)

	if err := exec(L); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to execute effect script: %w", err)
	}

	fn, ok := L.GetGlobal("frame").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, ErrNoFrameFunc
	}

	return &Runner{L: L, frameFn: fn}, nil
}

// Tick calls frame(t) with t = elapsed seconds. It has the stream.TickFunc signature.
func (r *Runner) Tick(ctx context.Context, elapsed time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.L.SetContext(ctx)
	err := r.L.CallByParam(lua.P{
		Fn:      r.frameFn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(elapsed.Seconds()))
	if err != nil {
		return fmt.Errorf("effect frame(%.3f): %w", elapsed.Seconds(), err)
	}
	r.ticks++
	return nil
}

// Ticks returns how many frames the script produced successfully.
func (r *Runner) Ticks() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticks
}

// Close releases the Lua VM.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}
