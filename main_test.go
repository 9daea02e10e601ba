package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"partshop/internal/config"
	"partshop/internal/database"
	"partshop/internal/policy"
	"partshop/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		AppPort: ":0",
		DB: config.DB{
			Driver:      "sqlite",
			DSN:         database.MemoryDSN(t.Name()),
			LogLevel:    "silent",
			AutoMigrate: true,
		},
		JWTSecret:           "test_jwt_secret",
		PolicyMode:          "strict",
		VerificationCodeTTL: 15 * time.Minute,
		SeedDemo:            true,
	}
}

func TestSetup_SeedsAndServes(t *testing.T) {
	app, cleanup, err := setup(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/rest/v1/parts", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	keys := services.NewAuthService(nil, nil, nil, "test_jwt_secret", time.Minute, nil)
	anonKey, err := keys.IssueRoleKey(policy.RoleAnon, 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/rest/v1/parts?order=part_number", nil)
	req.Header.Set("apikey", anonKey)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var parts []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parts))
	assert.Len(t, parts, len(demoParts()))
}

func TestSetup_SeedIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	_, cleanup, err := setup(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	// a second setup against the same database finds every part present
	app, cleanup2, err := setup(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup2()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var health map[string]string
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health["status"])

	keys := services.NewAuthService(nil, nil, nil, "test_jwt_secret", time.Minute, nil)
	anonKey, err := keys.IssueRoleKey(policy.RoleAnon, 0)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/rest/v1/parts?select=part_number", nil)
	req.Header.Set("apikey", anonKey)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	var parts []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parts))
	assert.Len(t, parts, len(demoParts()))
}

func TestSetup_RejectsUnknownPolicy(t *testing.T) {
	cfg := testConfig(t)
	cfg.PolicyMode = "lenient"
	_, _, err := setup(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestDemoParts(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range demoParts() {
		assert.False(t, seen[p.PartNumber], "duplicate %s", p.PartNumber)
		seen[p.PartNumber] = true
		assert.NotNil(t, p.Price)
		assert.GreaterOrEqual(t, p.Quantity, 0)
		assert.NotEmpty(t, p.NameRU)
	}
}
