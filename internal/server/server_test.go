package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healcoins.app/ledger/internal/auth"
	"healcoins.app/ledger/internal/common"
	"healcoins.app/ledger/internal/config"
	"healcoins.app/ledger/internal/events"
	"healcoins.app/ledger/internal/features/actions"
	"healcoins.app/ledger/internal/features/admin"
	"healcoins.app/ledger/internal/features/audit"
	"healcoins.app/ledger/internal/features/emission"
	"healcoins.app/ledger/internal/features/insights"
	"healcoins.app/ledger/internal/features/ledger"
	"healcoins.app/ledger/internal/features/moderation"
	"healcoins.app/ledger/internal/features/proofs"
	"healcoins.app/ledger/internal/notify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testAPI struct {
	router  *gin.Engine
	tokens  *auth.TokenManager
	limiter *RateLimiter
}

func newTestAPI(t *testing.T, rateLimit int) *testAPI {
	t.Helper()
	cfg := &config.Config{
		DailyCoinCap:          20,
		RedeemLimit:           500,
		CoinsPerKgCO2:         2,
		CoinsPerEcoMindPoint:  1,
		CoinsPerKindnessPoint: 1,
		CarbonCooldown:        5 * time.Minute,
		AnimalCooldown:        30 * time.Minute,
		AdminIDs:              []string{"admin-1"},
		AdminTokenTTL:         time.Hour,
		ProofURLTTL:           15 * time.Minute,
	}
	loc := common.LoadLocation("Asia/Kolkata")
	ids := ledger.UUIDGenerator{}
	store := ledger.NewMemoryStore()
	l := ledger.New(store, ids, ledger.Options{DailyCap: cfg.DailyCoinCap, RedeemLimit: cfg.RedeemLimit, Location: loc})

	recorder := audit.NewRecorder(audit.NewMemoryRepository(), events.LogPublisher{}, ids)
	resolver := emission.NewResolver(emission.DefaultTables(), nil, nil, time.Hour)
	tokens := auth.NewTokenManager("0123456789abcdef0123", "healcoins")

	h := &Handler{
		Actions:    actions.NewService(l, resolver, recorder, notify.Noop{}, cfg),
		Moderation: moderation.NewService(l, store, recorder, notify.Noop{}),
		Insights:   insights.NewService(store, recorder, loc, nil, nil),
		Proofs:     proofs.NewService(store, nil, ids, cfg.ProofURLTTL),
		Admin:      admin.NewService(admin.NewMemoryRepository(nil), tokens, cfg),
		Wallets:    store,
		Profiles:   store,
	}
	limiter := NewRateLimiter(rateLimit, time.Minute)
	t.Cleanup(limiter.Close)

	return &testAPI{router: NewRouter(h, tokens, limiter, 5*time.Second), tokens: tokens, limiter: limiter}
}

func (a *testAPI) token(t *testing.T, userID string, isAdmin bool) string {
	t.Helper()
	tok, _, err := a.tokens.Issue(userID, isAdmin, time.Hour)
	require.NoError(t, err)
	return tok
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var res response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	return rec.Code, res
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t, 10)
	code, res := api.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, 10)

	code, res := api.do(t, http.MethodPost, "/v1/actions/carbon", "", map[string]any{"userId": "u1"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, res.Success)
	assert.Equal(t, "unauthenticated", res.Error.Code)

	code, _ = api.do(t, http.MethodPost, "/v1/actions/carbon", "garbage", map[string]any{"userId": "u1"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCarbonFlow(t *testing.T) {
	api := newTestAPI(t, 10)
	u1 := api.token(t, "u1", false)

	code, res := api.do(t, http.MethodPost, "/v1/actions/carbon", u1, map[string]any{
		"userId": "u1", "actionType": "transport", "value": 40,
	})
	require.Equal(t, http.StatusOK, code)
	var carbon struct {
		CoinsAwarded int64         `json:"coinsAwarded"`
		FactorSource string        `json:"factorSource"`
		Wallet       ledger.Wallet `json:"wallet"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &carbon))
	assert.Equal(t, int64(15), carbon.CoinsAwarded)
	assert.Equal(t, "mock", carbon.FactorSource)
	assert.Equal(t, int64(15), carbon.Wallet.HealCoins)

	code, res = api.do(t, http.MethodPost, "/v1/actions/carbon", u1, map[string]any{
		"userId": "u1", "actionType": "transport", "value": 40,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already-exists", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/v1/actions/mood", u1, map[string]any{"userId": "u1", "mood": 9})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "resource-exhausted", res.Error.Code)

	code, res = api.do(t, http.MethodGet, "/v1/wallets/u1", u1, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), `"healCoins":15`)
}

func TestValidationAndIdentity(t *testing.T) {
	api := newTestAPI(t, 10)
	u1 := api.token(t, "u1", false)

	code, res := api.do(t, http.MethodPost, "/v1/actions/carbon", u1, map[string]any{
		"userId": "u2", "actionType": "transport", "value": 4,
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "permission-denied", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/v1/actions/mood", u1, map[string]any{"userId": "u1", "mood": 11})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid-argument", res.Error.Code)

	code, _ = api.do(t, http.MethodPost, "/v1/actions/mood", u1, "{not json")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodGet, "/v1/wallets/u2", u1, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestModerationFlow(t *testing.T) {
	api := newTestAPI(t, 10)
	u1 := api.token(t, "u1", false)
	adm := api.token(t, "admin-1", true)

	code, res := api.do(t, http.MethodPost, "/v1/actions/animal", u1, map[string]any{
		"userId": "u1", "actions": []string{"rescue"},
	})
	require.Equal(t, http.StatusOK, code)
	var animal struct {
		CoinsAwarded int64  `json:"coinsAwarded"`
		Status       string `json:"status"`
		ModerationID string `json:"moderationId"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &animal))
	assert.Zero(t, animal.CoinsAwarded)
	assert.Equal(t, "pending", animal.Status)

	code, _ = api.do(t, http.MethodGet, "/v1/wallets/u1", u1, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(t, http.MethodPost, "/v1/admin/moderation/"+animal.ModerationID+"/approve", u1, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, res = api.do(t, http.MethodGet, "/v1/admin/moderation?status=pending", adm, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), animal.ModerationID)
	assert.Contains(t, string(res.Data), `"total":1`)

	code, res = api.do(t, http.MethodGet, "/v1/admin/moderation?limit=abc", adm, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid-argument", res.Error.Code)

	for i := 0; i < 2; i++ {
		code, res = api.do(t, http.MethodPost, "/v1/admin/moderation/"+animal.ModerationID+"/approve", adm, nil)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)
	}

	code, res = api.do(t, http.MethodGet, "/v1/wallets/u1", adm, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), `"healCoins":15`)

	code, res = api.do(t, http.MethodGet, "/v1/admin/moderation/"+animal.ModerationID+"/audit", adm, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), "moderation.approved")

	code, res = api.do(t, http.MethodPost, "/v1/admin/moderation/"+animal.ModerationID+"/reject", adm, nil)
	assert.Equal(t, http.StatusNotImplemented, code)
	assert.Equal(t, "unimplemented", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/v1/admin/moderation/missing/approve", adm, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not-found", res.Error.Code)
}

func TestProofUploadDisabled(t *testing.T) {
	api := newTestAPI(t, 10)
	u1 := api.token(t, "u1", false)

	code, res := api.do(t, http.MethodPost, "/v1/actions/animal/proof-upload-url", u1, map[string]any{
		"userId": "u1", "logId": "x", "filename": "a.png", "contentType": "image/bmp",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid-argument", res.Error.Code)

	code, _ = api.do(t, http.MethodPost, "/v1/actions/animal/proof-upload-url", u1, map[string]any{
		"userId": "u1", "logId": "x", "filename": "a.png", "contentType": "image/png",
	})
	assert.Equal(t, http.StatusNotImplemented, code)
}

func TestInsightsAndSchoolAggregate(t *testing.T) {
	api := newTestAPI(t, 10)
	u1 := api.token(t, "u1", false)
	adm := api.token(t, "admin-1", true)

	code, _ := api.do(t, http.MethodPut, "/v1/profiles/u1", u1, map[string]any{
		"schoolId": "s1", "classId": "10", "section": "A",
	})
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodPut, "/v1/profiles/u1", u1, map[string]any{"schoolId": "s1"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(t, http.MethodPost, "/v1/actions/mood", u1, map[string]any{"userId": "u1", "mood": 8})
	require.Equal(t, http.StatusOK, code)

	code, res := api.do(t, http.MethodPost, "/v1/insights/weekly", u1, map[string]any{"userId": "u1"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), `"tone":"boost"`)

	code, _ = api.do(t, http.MethodPost, "/v1/insights/weekly", u1, map[string]any{"userId": "u2"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(t, http.MethodPost, "/v1/insights/weekly", adm, map[string]any{"userId": "u1"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodGet, "/v1/admin/schools/s1/mood-by-section", u1, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, res = api.do(t, http.MethodGet, "/v1/admin/schools/s1/mood-by-section", adm, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(res.Data), `"10-A"`)

	code, _ = api.do(t, http.MethodGet, "/v1/admin/schools/s1/mood-by-section?weekStart=yesterday", adm, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, 2)
	u1 := api.token(t, "u1", false)

	for i := 0; i < 2; i++ {
		code, _ := api.do(t, http.MethodPost, "/v1/actions/mood", u1, map[string]any{"userId": "u1", "mood": 0})
		assert.Equal(t, http.StatusBadRequest, code)
	}
	code, res := api.do(t, http.MethodPost, "/v1/actions/mood", u1, map[string]any{"userId": "u1", "mood": 5})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too many requests", res.Error.Message)
}

func TestAdminLoginRejectsUnknownUser(t *testing.T) {
	api := newTestAPI(t, 10)

	code, res := api.do(t, http.MethodPost, "/v1/auth/admin", "", map[string]any{"userId": "u1", "password": "x"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "permission-denied", res.Error.Code)
}
