// ABOUTME: Defensive decoding of polymorphic message payloads
// ABOUTME: Payloads arrive as text, JSON objects, or JSON-encoded strings; failures degrade, never drop

package inbox

import (
	"encoding/json"
	"fmt"

	"github.com/impulsalab/crm-core/internal/store"
)

// FunctionCall is a structured assistant tool invocation.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse is the structured result of a tool invocation.
type FunctionResponse struct {
	Name   string `json:"name"`
	Result any    `json:"result"`
}

// DegradedPayload marks a payload that could not be decoded. The raw value
// is preserved so the transcript is never silently incomplete.
type DegradedPayload struct {
	Raw string
	Err string
}

// Part is the decoded payload of one message: exactly one of Text, Call,
// Response or Degraded is meaningful, according to Type. A Part with
// Degraded set renders as a parse-error marker.
type Part struct {
	Type     store.PartType
	Text     string
	Call     *FunctionCall
	Response *FunctionResponse
	Degraded *DegradedPayload
}

// IsDegraded reports whether the payload failed to decode.
func (p Part) IsDegraded() bool {
	return p.Degraded != nil
}

// DecodePart decodes a message's raw payload according to its part type.
//
// Structured payloads (FUNCTION_CALL / FUNCTION_RESPONSE) may arrive either
// as a JSON object or as a JSON-encoded string containing an object,
// depending on which channel produced them. Both encodings are attempted;
// any failure yields a Degraded part wrapping the raw value.
func DecodePart(msg *store.Message) Part {
	switch msg.PartType {
	case store.PartText:
		return Part{Type: store.PartText, Text: msg.Payload}

	case store.PartFunctionCall:
		var call FunctionCall
		if err := decodeStructured(msg.Payload, &call); err != nil {
			return degraded(msg, err)
		}
		if call.Name == "" {
			return degraded(msg, fmt.Errorf("function call without name"))
		}
		return Part{Type: store.PartFunctionCall, Call: &call}

	case store.PartFunctionResponse:
		var resp FunctionResponse
		if err := decodeStructured(msg.Payload, &resp); err != nil {
			return degraded(msg, err)
		}
		if resp.Name == "" {
			return degraded(msg, fmt.Errorf("function response without name"))
		}
		return Part{Type: store.PartFunctionResponse, Response: &resp}

	default:
		return degraded(msg, fmt.Errorf("unknown part type %q", msg.PartType))
	}
}

// decodeStructured unmarshals raw into out, unwrapping one level of
// JSON-string encoding if present.
func decodeStructured(raw string, out any) error {
	// Double-encoded: the payload is a JSON string holding the object
	var inner string
	if err := json.Unmarshal([]byte(raw), &inner); err == nil {
		raw = inner
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	return nil
}

func degraded(msg *store.Message, err error) Part {
	return Part{
		Type: msg.PartType,
		Degraded: &DegradedPayload{
			Raw: msg.Payload,
			Err: err.Error(),
		},
	}
}
