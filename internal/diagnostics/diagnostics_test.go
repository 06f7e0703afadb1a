package diagnostics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogSinkFormatsEvent(t *testing.T) {
	var got string
	sink := NewLogSink(func(format string, v ...any) {
		got = fmt.Sprintf(format, v...)
	})

	sink.Emit(Event{Level: Warn, Code: CodeTransportOverflow, Message: "queue full"})

	require.Contains(t, got, "warn")
	require.Contains(t, got, string(CodeTransportOverflow))
	require.Contains(t, got, "queue full")
}

func TestNopSinkDoesNotPanic(t *testing.T) {
	var s NopSink
	require.NotPanics(t, func() { s.Emit(Event{}) })
}
