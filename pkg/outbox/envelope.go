package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who caused the event. Cron-emitted events carry none.
type ActorRef struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events
// and published as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
