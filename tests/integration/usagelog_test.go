//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageLog_RecordsDecisions(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()

	grantCredits(t, env, token, userID, "purchase", 1, 3, time.Now().Add(24*time.Hour))

	resp := DoRequest(t, env, "POST", "/api/v1/credits/consume", map[string]any{
		"user_id":        userID.String(),
		"credits_needed": 2,
		"reference":      "audit-check",
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "POST", "/api/v1/credits/consume", map[string]any{
		"user_id":        userID.String(),
		"credits_needed": 5,
	}, token)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/usage/log?user_id="+userID.String()+"&component=credits", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)

	// grant + allowed consume + denied consume
	assert.Equal(t, float64(3), result["total_count"])
	entries := result["data"].([]any)
	require.Len(t, entries, 3)

	outcomes := map[string]int{}
	for _, e := range entries {
		outcomes[e.(map[string]any)["outcome"].(string)]++
	}
	assert.Equal(t, 2, outcomes["allowed"])
	assert.Equal(t, 1, outcomes["denied"])
}

func TestUsageLog_FilterByOutcome(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()

	// One denied quota consumption
	resp := DoRequest(t, env, "POST", "/api/v1/quota/consume", map[string]any{
		"user_id":       userID.String(),
		"resource_type": "documents",
		"amount":        100,
	}, token)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/usage/log?user_id="+userID.String()+"&outcome=denied", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, float64(1), result["total_count"])
	entry := result["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "quota", entry["component"])
	assert.Equal(t, float64(100), entry["amount"])
}
