// Package emitter turns the trigger/tempo packages' abstract
// "Send(template, value)" calls into encoded OSC packets and decides,
// once per tick, whether to send them as a bundle or bare messages,
// per spec.md §4.8. It implements both trigger.Emitter and
// tempo.Emitter so Engine can hand the same instance to every
// component that produces outgoing OSC.
package emitter

import (
	"fmt"
	"math"
	"time"

	"github.com/sound2osc/engine/internal/diagnostics"
	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/oscproto"
	"github.com/sound2osc/engine/internal/transport"
)

// Mode selects OSC 1.0 vs 1.1 wire behavior, per spec.md §4.8.
type Mode int

const (
	// OSC10 bundles more than one pending message per tick.
	OSC10 Mode = iota
	// OSC11 always sends one packet per message, never bundled, per
	// spec.md §4.8 ("OSC 1.1 mode"). The emitter does not frame packets
	// itself: they are SLIP-framed only when the Sender is a TCPSender,
	// and go out unframed over a UDPSender.
	OSC11
)

// OscEmitter accumulates one tick's worth of outgoing messages and
// flushes them to a transport.Sender at FlushTick, per spec.md §4.9's
// "Engine drives everything by owned references" shape (design note
// §9): nothing here is event-driven, Engine calls Send synchronously
// from inside each trigger/tempo callback and then calls FlushTick.
type OscEmitter struct {
	sender transport.Sender
	mode   Mode
	diag   diagnostics.Sink

	pending []oscproto.Message
}

// New builds an OscEmitter writing through sender in mode.
func New(sender transport.Sender, mode Mode, diag diagnostics.Sink) *OscEmitter {
	if diag == nil {
		diag = diagnostics.NopSink{}
	}
	return &OscEmitter{sender: sender, mode: mode, diag: diag}
}

// Send implements trigger.Emitter and tempo.Emitter: it formats value
// according to tmpl.ArgType and queues the resulting message for the
// next FlushTick.
func (e *OscEmitter) Send(tmpl domain.OscTemplate, value float32) {
	if tmpl.Address == "" {
		return
	}
	e.pending = append(e.pending, oscproto.Message{
		Address: tmpl.Address,
		Args:    []oscproto.Arg{argFor(tmpl.ArgType, value)},
	})
}

func argFor(argType string, value float32) oscproto.Arg {
	switch argType {
	case "i":
		return oscproto.Int32Arg(int32(math.Round(float64(value))))
	case "s":
		return oscproto.StringArg(fmt.Sprintf("%v", value))
	default:
		return oscproto.Float32Arg(value)
	}
}

// FlushTick encodes and sends everything queued since the last
// FlushTick, per spec.md §4.8's "sends each tick's OSC output as one
// bundle when more than one message is pending in the same tick;
// otherwise a bare packet" rule (OSC10), or one packet per message with
// no bundling (OSC11).
func (e *OscEmitter) FlushTick() {
	if len(e.pending) == 0 {
		return
	}
	defer func() { e.pending = e.pending[:0] }()

	if e.mode == OSC11 {
		for _, msg := range e.pending {
			e.sendMessage(msg)
		}
		return
	}

	if len(e.pending) == 1 {
		e.sendMessage(e.pending[0])
		return
	}

	bundle := oscproto.Bundle{Time: time.Now(), Messages: e.pending}
	packet, err := bundle.Marshal()
	if err != nil {
		e.diag.Emit(diagnostics.Event{Level: diagnostics.Error, Code: diagnostics.CodeProtocolDecode, Message: "encode bundle: " + err.Error()})
		return
	}
	e.sender.Send(packet)
}

func (e *OscEmitter) sendMessage(msg oscproto.Message) {
	packet, err := msg.Marshal()
	if err != nil {
		e.diag.Emit(diagnostics.Event{Level: diagnostics.Error, Code: diagnostics.CodeProtocolDecode, Message: "encode message: " + err.Error()})
		return
	}
	e.sender.Send(packet)
}

// Pending reports how many messages are queued for the next
// FlushTick, mainly useful for tests.
func (e *OscEmitter) Pending() int {
	return len(e.pending)
}
