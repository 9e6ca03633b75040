package usagelog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usagegate/usagegate/internal/events"
)

func TestUsageRecordedRoundTrip(t *testing.T) {
	userID := uuid.New()
	event := events.UsageRecorded{
		ID:        uuid.New(),
		UserID:    userID,
		Component: ComponentCredits,
		Action:    "consume",
		Amount:    3,
		Outcome:   OutcomeAllowed,
		Reference: "doc-gen-42",
		Detail:    json.RawMessage(`{"buckets_used":[{"bucket_id":"b1","credits_used":3}]}`),
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.UsageRecorded
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, userID, decoded.UserID)
	assert.Equal(t, ComponentCredits, decoded.Component)
	assert.Equal(t, int64(3), decoded.Amount)
	assert.Equal(t, "doc-gen-42", decoded.Reference)
}

func TestEntryFromEvent(t *testing.T) {
	now := time.Now().UTC()
	event := events.UsageRecorded{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Component: ComponentQuota,
		Action:    "consume_quota",
		Amount:    1,
		Outcome:   OutcomeDenied,
		Reference: "api-call",
		Detail:    json.RawMessage(`{"resource_type":"api_calls"}`),
		Timestamp: now,
	}

	entry := EntryFromEvent(event)

	assert.Equal(t, event.ID, entry.ID)
	assert.Equal(t, event.UserID, entry.UserID)
	assert.Equal(t, ComponentQuota, entry.Component)
	assert.Equal(t, "consume_quota", entry.Action)
	assert.Equal(t, int64(1), entry.Amount)
	assert.Equal(t, OutcomeDenied, entry.Outcome)
	assert.Equal(t, now, entry.CreatedAt)

	var detail map[string]string
	require.NoError(t, json.Unmarshal(entry.Detail, &detail))
	assert.Equal(t, "api_calls", detail["resource_type"])
}
