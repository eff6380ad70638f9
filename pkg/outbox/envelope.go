package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarhq/bazaar-backend/pkg/enums"
)

// EnvelopeVersion is stamped on events that do not pick their own.
const EnvelopeVersion = 1

// ActorRef is whoever caused the event. Nil for system-initiated changes.
type ActorRef struct {
	ID   uuid.UUID       `json:"id"`
	Role enums.ActorRole `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// unchanged as the Pub/Sub message body. Data holds the event-type payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a body written by Service.Emit. An envelope without
// an event id or data is rejected.
func DecodeEnvelope(body []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == "" {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: missing eventId")
	}
	if len(env.Data) == 0 {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope %s: missing data", env.EventID)
	}
	return env, nil
}
