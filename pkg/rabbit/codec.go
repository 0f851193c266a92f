package rabbit

import (
	"encoding/json"
	"fmt"

	"github.com/observatorio-agua/notifications/pkg/models"
)

// encodeErrorPayload is published in place of an envelope that could not be
// serialized, so a codec bug degrades to one diagnosable malformed message
// instead of crashing the publisher.
var encodeErrorPayload = []byte(`{"error":"serialization failed"}`)

// Encode renders an envelope as a UTF-8 JSON payload. It is total: an
// unrepresentable value (for this schema, only a NaN or infinite measurement)
// yields the fixed error-marker payload rather than an error.
func Encode(env models.Envelope) []byte {
	body, err := json.Marshal(env)
	if err != nil {
		return encodeErrorPayload
	}
	return body
}

// Decode is the inverse of Encode. It fails closed: malformed JSON or a
// structurally valid payload missing required fields both return a zero
// envelope and an error, so the receive loop can log and skip rather than
// crash or hand a partial record to the handler.
func Decode(body []byte) (models.Envelope, error) {
	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return models.Envelope{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := env.Validate(); err != nil {
		return models.Envelope{}, fmt.Errorf("decode payload: %w", err)
	}
	return env, nil
}
