package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// StreamUsage holds every consumption-attempt record published by the engine.
const StreamUsage = "USAGEGATE_USAGE"

// Subject constants.
const (
	SubjectUsageRecorded = "usagegate.usage.recorded"
)

// UsageRecorded is published for every consumption attempt, allowed or
// denied. It is telemetry: the consuming side persists it to the usage_log
// table for reporting, and a lost event never affects the decision it
// describes.
type UsageRecorded struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Component string          `json:"component"` // ratelimit | quota | credits | account
	Action    string          `json:"action"`
	Amount    int64           `json:"amount"`
	Outcome   string          `json:"outcome"` // allowed | denied
	Reference string          `json:"reference,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
