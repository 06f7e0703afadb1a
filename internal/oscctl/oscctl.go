// Package oscctl implements the inbound OSC control surface of
// spec.md §6 ("OSC incoming (optional mapping)"): a small closed
// address set that can tweak trigger thresholds, load a preset, and
// mute/tap the BPM tracker at runtime. It is built on
// github.com/hypebeast/go-osc's server/dispatcher, the same library
// schollz-221e uses for its own inbound OSC control surface
// (main.go's osc.NewStandardDispatcher + osc.Server), unlike the
// outgoing path (internal/oscproto), which needs a bit-exact codec the
// dependency doesn't expose.
package oscctl

import (
	"github.com/hypebeast/go-osc/osc"
)

// Handlers is the set of callbacks oscctl invokes for each of the four
// closed addresses in spec.md §6. Any field left nil silently ignores
// that address, the same way an unrecognized address is ignored.
type Handlers struct {
	// SetThreshold is called for
	// /sound2osc/in/trigger/<name>/threshold f.
	SetThreshold func(triggerID string, threshold float32)
	// LoadPreset is called for /sound2osc/in/preset/load s.
	LoadPreset func(path string)
	// SetBPMMute is called for /sound2osc/in/bpm/mute i (nonzero = mute).
	SetBPMMute func(mute bool)
	// TapBPM is called for /sound2osc/in/bpm/tap (no args).
	TapBPM func()
}

// Listener owns a UDP osc.Server and dispatches the closed address set
// of spec.md §6 to Handlers, ignoring everything else. Like
// schollz-221e's own inbound server (main.go), it has no graceful
// shutdown hook: ListenAndServe runs for the life of the process, and
// the caller is expected to run it in its own goroutine.
type Listener struct {
	server     *osc.Server
	dispatcher *osc.StandardDispatcher
	handlers   Handlers
}

// New builds a Listener bound to addr ("host:port") with the given
// handlers. Call ListenAndServe to start serving; it blocks, so callers
// typically run it in its own goroutine.
func New(addr string, handlers Handlers) *Listener {
	d := osc.NewStandardDispatcher()
	l := &Listener{
		server:     &osc.Server{Addr: addr, Dispatcher: d},
		dispatcher: d,
		handlers:   handlers,
	}
	l.registerRoutes()
	return l
}

func (l *Listener) registerRoutes() {
	// go-osc's StandardDispatcher matches OSC address patterns, so a
	// single "*" wildcard segment covers every trigger name.
	l.dispatcher.AddMsgHandler("/sound2osc/in/trigger/*/threshold", func(msg *osc.Message) {
		if l.handlers.SetThreshold == nil || len(msg.Arguments) != 1 {
			return
		}
		v, ok := msg.Arguments[0].(float32)
		if !ok {
			return
		}
		l.handlers.SetThreshold(triggerNameFromAddress(msg.Address), v)
	})
	l.dispatcher.AddMsgHandler("/sound2osc/in/preset/load", func(msg *osc.Message) {
		if l.handlers.LoadPreset == nil || len(msg.Arguments) != 1 {
			return
		}
		if path, ok := msg.Arguments[0].(string); ok {
			l.handlers.LoadPreset(path)
		}
	})
	l.dispatcher.AddMsgHandler("/sound2osc/in/bpm/mute", func(msg *osc.Message) {
		if l.handlers.SetBPMMute == nil || len(msg.Arguments) != 1 {
			return
		}
		if v, ok := msg.Arguments[0].(int32); ok {
			l.handlers.SetBPMMute(v != 0)
		}
	})
	l.dispatcher.AddMsgHandler("/sound2osc/in/bpm/tap", func(msg *osc.Message) {
		if l.handlers.TapBPM != nil {
			l.handlers.TapBPM()
		}
	})
}

// triggerNameFromAddress pulls <name> out of
// /sound2osc/in/trigger/<name>/threshold.
func triggerNameFromAddress(address string) string {
	const prefix = "/sound2osc/in/trigger/"
	const suffix = "/threshold"
	if len(address) <= len(prefix)+len(suffix) {
		return ""
	}
	return address[len(prefix) : len(address)-len(suffix)]
}

// ListenAndServe starts the OSC server and blocks until it errors.
func (l *Listener) ListenAndServe() error {
	return l.server.ListenAndServe()
}
