// ABOUTME: Tests for record interpretation into the StreamEvent union
// ABOUTME: Covers every discriminant, the content/message synonym, and malformed input

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret_SessionVariants(t *testing.T) {
	for _, discriminant := range []string{"session", "session_info"} {
		t.Run(discriminant, func(t *testing.T) {
			ev, err := Interpret([]byte(`{"type":"` + discriminant + `","sessionId":"s-1"}`))
			require.NoError(t, err)
			require.IsType(t, SessionEstablished{}, ev)
			assert.Equal(t, "s-1", ev.(SessionEstablished).SessionID)
		})
	}
}

func TestInterpret_ContentAndMessageSynonyms(t *testing.T) {
	for _, discriminant := range []string{"content", "message"} {
		t.Run(discriminant, func(t *testing.T) {
			ev, err := Interpret([]byte(`{"type":"` + discriminant + `","content":"Hel"}`))
			require.NoError(t, err)
			require.IsType(t, ContentDelta{}, ev)
			assert.Equal(t, "Hel", ev.(ContentDelta).Text)
		})
	}
}

func TestInterpret_Metrics(t *testing.T) {
	ev, err := Interpret([]byte(`{"type":"metrics","metrics":{"usage":{"promptTokens":12},"traceId":"t-9"}}`))
	require.NoError(t, err)

	m, ok := ev.(Metrics)
	require.True(t, ok)
	assert.Equal(t, "t-9", m.TraceID)
	assert.Equal(t, float64(12), m.Usage["promptTokens"])
}

func TestInterpret_MetricsWithoutPayload(t *testing.T) {
	ev, err := Interpret([]byte(`{"type":"metrics"}`))
	require.NoError(t, err)

	m, ok := ev.(Metrics)
	require.True(t, ok)
	assert.Empty(t, m.TraceID)
	assert.Nil(t, m.Usage)
}

func TestInterpret_End(t *testing.T) {
	ev, err := Interpret([]byte(`{"type":"end"}`))
	require.NoError(t, err)
	assert.IsType(t, End{}, ev)
}

func TestInterpret_Error(t *testing.T) {
	ev, err := Interpret([]byte(`{"type":"error","error":"model unavailable"}`))
	require.NoError(t, err)

	e, ok := ev.(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "model unavailable", e.Message)
}

func TestInterpret_UnknownTypeSkipped(t *testing.T) {
	ev, err := Interpret([]byte(`{"type":"tool_call","name":"search"}`))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestInterpret_BlankLineSkipped(t *testing.T) {
	ev, err := Interpret([]byte("   "))
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestInterpret_MalformedRecord(t *testing.T) {
	ev, err := Interpret([]byte(`{"type":"content",`))
	require.Error(t, err)
	assert.Nil(t, ev)
}

func TestEncodeModelConfig(t *testing.T) {
	t.Run("includes model id and params", func(t *testing.T) {
		encoded, err := EncodeModelConfig("qwen-max", map[string]any{"temperature": 0.7})
		require.NoError(t, err)
		assert.JSONEq(t, `{"modelId":"qwen-max","temperature":0.7}`, encoded)
	})

	t.Run("params cannot shadow model id", func(t *testing.T) {
		encoded, err := EncodeModelConfig("qwen-max", map[string]any{"modelId": "other"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"modelId":"qwen-max"}`, encoded)
	})
}

func TestEncodeVariables(t *testing.T) {
	encoded, err := EncodeVariables(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", encoded)

	encoded, err = EncodeVariables(map[string]any{"city": "Hangzhou"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Hangzhou"}`, encoded)
}
