// ABOUTME: Tests for defensive payload decoding
// ABOUTME: Plain objects, double-encoded strings, and garbage that must degrade

package inbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impulsalab/crm-core/internal/store"
)

func msgWith(partType store.PartType, payload string) *store.Message {
	return &store.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Role:           store.RoleAssistant,
		PartType:       partType,
		Payload:        payload,
	}
}

func TestDecodePart_Text(t *testing.T) {
	part := DecodePart(msgWith(store.PartText, "hola, ¿sigue disponible?"))
	assert.Equal(t, store.PartText, part.Type)
	assert.Equal(t, "hola, ¿sigue disponible?", part.Text)
	assert.False(t, part.IsDegraded())
}

func TestDecodePart_FunctionCall(t *testing.T) {
	part := DecodePart(msgWith(store.PartFunctionCall, `{"name":"agendar_visita","args":{"fecha":"2026-09-01"}}`))
	require.False(t, part.IsDegraded())
	require.NotNil(t, part.Call)
	assert.Equal(t, "agendar_visita", part.Call.Name)
	assert.Equal(t, "2026-09-01", part.Call.Args["fecha"])
}

func TestDecodePart_FunctionCallDoubleEncoded(t *testing.T) {
	// Some channels deliver the object as a JSON string
	part := DecodePart(msgWith(store.PartFunctionCall, `"{\"name\":\"agendar_visita\",\"args\":{}}"`))
	require.False(t, part.IsDegraded())
	require.NotNil(t, part.Call)
	assert.Equal(t, "agendar_visita", part.Call.Name)
}

func TestDecodePart_FunctionResponse(t *testing.T) {
	part := DecodePart(msgWith(store.PartFunctionResponse, `{"name":"agendar_visita","result":{"ok":true}}`))
	require.False(t, part.IsDegraded())
	require.NotNil(t, part.Response)
	assert.Equal(t, "agendar_visita", part.Response.Name)
}

func TestDecodePart_MalformedDegradesNotDrops(t *testing.T) {
	cases := []struct {
		name     string
		partType store.PartType
		payload  string
	}{
		{"invalid json", store.PartFunctionCall, `{"name": nope}`},
		{"wrong shape", store.PartFunctionCall, `[1,2,3]`},
		{"missing name", store.PartFunctionResponse, `{"result":42}`},
		{"unknown part type", store.PartType("AUDIO"), `whatever`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			part := DecodePart(msgWith(tc.partType, tc.payload))
			require.True(t, part.IsDegraded())
			// Raw value is preserved verbatim
			assert.Equal(t, tc.payload, part.Degraded.Raw)
			assert.NotEmpty(t, part.Degraded.Err)
		})
	}
}
