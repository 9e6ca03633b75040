//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manageAccount(t *testing.T, env *TestEnv, token, action string, userID, subscriptionID uuid.UUID, amountCents int64, source string) *http.Response {
	t.Helper()
	return DoRequest(t, env, "POST", "/api/v1/accounts/credits", map[string]any{
		"action":          action,
		"user_id":         userID.String(),
		"subscription_id": subscriptionID.String(),
		"amount_cents":    amountCents,
		"credit_source":   source,
	}, token)
}

func TestAccount_AddAndUseCredits(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()
	subID := uuid.New()

	resp := manageAccount(t, env, token, "add_credits", userID, subID, 5000, "stripe_invoice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, true, result["success"])
	acc := result["account"].(map[string]any)
	assert.Equal(t, float64(5000), acc["balance_cents"])
	assert.Equal(t, float64(5000), acc["lifetime_added_cents"])

	resp = manageAccount(t, env, token, "use_credits", userID, subID, 1200, "api_overage")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = ParseResponse(t, resp)
	acc = result["account"].(map[string]any)
	assert.Equal(t, float64(3800), acc["balance_cents"])
	assert.Equal(t, float64(1200), acc["lifetime_used_cents"])
}

func TestAccount_InsufficientBalance(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()
	subID := uuid.New()

	resp := manageAccount(t, env, token, "add_credits", userID, subID, 100, "promo")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = manageAccount(t, env, token, "use_credits", userID, subID, 500, "api_overage")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, false, result["success"])
	assert.Equal(t, "insufficient_balance", result["reason"])

	// Balance untouched by the failed debit
	acc := result["account"].(map[string]any)
	assert.Equal(t, float64(100), acc["balance_cents"])
}

func TestAccount_GetUnknownReturnsZeroBalance(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)
	userID := uuid.New()
	subID := uuid.New()

	resp := DoRequest(t, env, "GET", "/api/v1/accounts/"+userID.String()+"/"+subID.String(), nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, float64(0), result["balance_cents"])
}

func TestAccount_InvalidAction(t *testing.T) {
	env := SetupTestEnv(t)
	token := ServiceToken(t, env)

	resp := manageAccount(t, env, token, "transfer_credits", uuid.New(), uuid.New(), 100, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
