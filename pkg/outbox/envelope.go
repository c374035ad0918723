package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bluehorizon/skydesk/pkg/enums"
)

// PayloadEnvelope is the stable payload structure stored in outbox.payload.
type PayloadEnvelope struct {
	Version    int                `json:"version"`
	Kind       enums.MutationKind `json:"kind"`
	OccurredAt time.Time          `json:"occurredAt"`
	Data       json.RawMessage    `json:"data"`
}

// Encode wraps data in an envelope ready for Enqueue.
func Encode(kind enums.MutationKind, version int, data any, occurredAt time.Time) (json.RawMessage, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown mutation kind %q", kind)
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	envelope := PayloadEnvelope{
		Version:    version,
		Kind:       kind,
		OccurredAt: occurredAt.UTC(),
		Data:       body,
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return out, nil
}
