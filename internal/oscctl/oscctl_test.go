package oscctl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerNameFromAddress(t *testing.T) {
	require.Equal(t, "bass", triggerNameFromAddress("/sound2osc/in/trigger/bass/threshold"))
	require.Equal(t, "hi-mid", triggerNameFromAddress("/sound2osc/in/trigger/hi-mid/threshold"))
	require.Equal(t, "", triggerNameFromAddress("/sound2osc/in/trigger//threshold"))
	require.Equal(t, "", triggerNameFromAddress("/unrelated"))
}

func TestNewWiresHandlersWithoutPanicking(t *testing.T) {
	var gotThreshold float32
	var gotID string
	h := Handlers{
		SetThreshold: func(id string, v float32) { gotID, gotThreshold = id, v },
	}
	l := New("127.0.0.1:0", h)
	require.NotNil(t, l)

	_ = gotThreshold
	_ = gotID
}
