//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func consumeQuota(t *testing.T, env *TestEnv, token string, userID uuid.UUID, resource string, amount int64) *http.Response {
	t.Helper()
	return DoRequest(t, env, "POST", "/api/v1/quota/consume", map[string]any{
		"user_id":       userID.String(),
		"resource_type": resource,
		"amount":        amount,
	}, token)
}

func TestQuota_LazyMaterialization(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()

	// First access materializes the record with free-tier defaults
	resp := DoRequest(t, env, "GET", "/api/v1/quota/"+userID.String()+"/documents", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, true, result["allowed"])
	assert.Equal(t, float64(0), result["used"])
	assert.Equal(t, float64(5), result["limit"])
	assert.Equal(t, float64(5), result["remaining"])
}

func TestQuota_ConsumeUntilExceeded(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()

	// Free tier allows 5 documents
	for i := 0; i < 5; i++ {
		resp := consumeQuota(t, env, token, userID, "documents", 1)
		require.Equal(t, http.StatusOK, resp.StatusCode, "consumption %d should be allowed", i+1)
		resp.Body.Close()
	}

	resp := consumeQuota(t, env, token, userID, "documents", 1)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, false, result["allowed"])
	assert.Equal(t, "quota_exceeded", result["reason"])
	assert.Equal(t, float64(5), result["used"])
	assert.Equal(t, float64(0), result["remaining"])
}

func TestQuota_DenialDoesNotMutate(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()

	// A request bigger than the whole allowance is denied outright
	resp := consumeQuota(t, env, token, userID, "documents", 6)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, float64(0), result["used"])

	// The full allowance is still spendable afterwards
	resp = consumeQuota(t, env, token, userID, "documents", 5)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestQuota_DailyWindowReset(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()
	ctx := context.Background()

	// Seed an exhausted api_calls window whose reset time has already passed
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO quota_records (user_id, resource_type, "limit", used, reset_at, updated_at)
		VALUES ($1, 'api_calls', 20, 20, NOW() - INTERVAL '1 day', NOW())`,
		userID)
	require.NoError(t, err)

	// The next check rolls the window instead of denying
	resp := DoRequest(t, env, "GET", "/api/v1/quota/"+userID.String()+"/api_calls", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, true, result["allowed"])
	assert.Equal(t, float64(0), result["used"])
	assert.Equal(t, float64(20), result["limit"])
	assert.Equal(t, float64(20), result["remaining"])

	// The reset persisted: usage zeroed and the window advanced
	var used int64
	var resetAt time.Time
	err = env.Pool.QueryRow(ctx,
		`SELECT used, reset_at FROM quota_records WHERE user_id = $1 AND resource_type = 'api_calls'`,
		userID,
	).Scan(&used, &resetAt)
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)
	assert.True(t, resetAt.After(time.Now()), "reset_at should advance past now, got %v", resetAt)
}

func TestQuota_PlanUpgradeRaisesLimit(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		resp := consumeQuota(t, env, token, userID, "documents", 1)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	resp := DoRequest(t, env, "PUT", "/api/v1/plans/"+userID.String(), map[string]any{"tier": "starter"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Documents reset on plan change; starter allows 50
	resp = consumeQuota(t, env, token, userID, "documents", 1)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, float64(50), result["limit"])
	assert.Equal(t, float64(1), result["used"])
}

func TestQuota_UnknownResource(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()

	resp := DoRequest(t, env, "GET", "/api/v1/quota/"+userID.String()+"/gpu_hours", nil, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = consumeQuota(t, env, token, userID, "gpu_hours", 1)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
