package emitter

import (
	"testing"

	"github.com/sound2osc/engine/internal/domain"
	"github.com/sound2osc/engine/internal/oscproto"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	packets [][]byte
}

func (r *recordingSender) Send(packet []byte) {
	r.packets = append(r.packets, packet)
}
func (r *recordingSender) Close() {}

func TestSingleMessagePerTickIsSentBare(t *testing.T) {
	s := &recordingSender{}
	e := New(s, OSC10, nil)

	e.Send(domain.OscTemplate{Address: "/bass/on", ArgType: "f"}, 0.5)
	e.FlushTick()

	require.Len(t, s.packets, 1)
	require.False(t, oscproto.IsBundle(s.packets[0]))

	decoded, err := oscproto.Unmarshal(s.packets[0])
	require.NoError(t, err)
	require.Equal(t, "/bass/on", decoded.Address)
}

func TestMultipleMessagesPerTickAreBundled(t *testing.T) {
	s := &recordingSender{}
	e := New(s, OSC10, nil)

	e.Send(domain.OscTemplate{Address: "/a", ArgType: "f"}, 1)
	e.Send(domain.OscTemplate{Address: "/b", ArgType: "i"}, 2)
	e.FlushTick()

	require.Len(t, s.packets, 1)
	require.True(t, oscproto.IsBundle(s.packets[0]))

	bundle, err := oscproto.UnmarshalBundle(s.packets[0])
	require.NoError(t, err)
	require.Len(t, bundle.Messages, 2)
}

func TestOSC11ModeNeverBundles(t *testing.T) {
	s := &recordingSender{}
	e := New(s, OSC11, nil)

	e.Send(domain.OscTemplate{Address: "/a", ArgType: "f"}, 1)
	e.Send(domain.OscTemplate{Address: "/b", ArgType: "f"}, 2)
	e.FlushTick()

	require.Len(t, s.packets, 2)
	for _, p := range s.packets {
		require.False(t, oscproto.IsBundle(p))
	}
}

func TestFlushWithNothingPendingSendsNothing(t *testing.T) {
	s := &recordingSender{}
	e := New(s, OSC10, nil)
	e.FlushTick()
	require.Empty(t, s.packets)
}

func TestArgTypeFormatsValue(t *testing.T) {
	s := &recordingSender{}
	e := New(s, OSC10, nil)

	e.Send(domain.OscTemplate{Address: "/i", ArgType: "i"}, 3.7)
	e.FlushTick()
	decoded, _ := oscproto.Unmarshal(s.packets[0])
	require.Equal(t, int32(4), decoded.Args[0].Int)
}
