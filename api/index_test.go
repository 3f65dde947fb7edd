package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mom-support-backend/pkg/auth"
	"mom-support-backend/pkg/config"
	"mom-support-backend/pkg/database"
	"mom-support-backend/pkg/entitlement"
	"mom-support-backend/pkg/models"
	"mom-support-backend/pkg/utils"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

type testApp struct {
	t   *testing.T
	app *app
	db  database.DatabaseInterface
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := database.NewLocalDatabase(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{
		Environment: "test",
		Port:        "3000",
		JWTSecret:   "integration-secret",
		UseLocalDB:  true,
	}
	a := newApp(cfg, db, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(a.entitlements.Flush)
	return &testApp{t: t, app: a, db: db}
}

func (ta *testApp) do(method, path, token string, body interface{}) (int, envelope) {
	ta.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ta.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.app.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(ta.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func (ta *testApp) seedPlan(code models.PlanCode, trialDays int) models.SubscriptionPlan {
	ta.t.Helper()
	var plan models.SubscriptionPlan
	require.NoError(ta.t, ta.db.Insert(context.Background(), "subscription_plans", database.Record{
		"plan_code":     code,
		"name":          string(code),
		"price_monthly": 4.99,
		"trial_days":    trialDays,
		"is_active":     true,
		"features":      models.NewPlanFeatures(entitlement.FeaturesForPlan(code)...),
	}, &plan))
	return plan
}

func TestHealthAndUnknownRoute(t *testing.T) {
	ta := newTestApp(t)

	code, env := ta.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, code)
	var health map[string]interface{}
	decodeData(t, env, &health)
	assert.Equal(t, "local", health["database"])
	assert.Equal(t, "healthy", health["db_status"])

	code, env = ta.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ta := newTestApp(t)
	code, _ := ta.do(http.MethodGet, "/api/streaks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAnonymousJourney(t *testing.T) {
	ta := newTestApp(t)

	code, env := ta.do(http.MethodPost, "/api/auth/anonymous", "", nil)
	require.Equal(t, http.StatusCreated, code)
	var session models.UserLoginResponse
	decodeData(t, env, &session)
	require.NotEmpty(t, session.AccessToken)
	assert.True(t, session.User.IsAnonymous)
	token := session.AccessToken

	// 连续两天打卡
	code, _ = ta.do(http.MethodPost, "/api/streaks/mood_tracking", token, map[string]string{"activity_date": "2024-01-01"})
	require.Equal(t, http.StatusOK, code)
	code, env = ta.do(http.MethodPost, "/api/streaks/mood_tracking", token, map[string]string{"activity_date": "2024-01-02"})
	require.Equal(t, http.StatusOK, code)
	var rec models.StreakRecord
	decodeData(t, env, &rec)
	assert.Equal(t, 2, rec.CurrentStreak)
	assert.Equal(t, session.User.ID, rec.UserID)

	code, env = ta.do(http.MethodGet, "/api/streaks", token, nil)
	require.Equal(t, http.StatusOK, code)
	var streaks []models.StreakRecord
	decodeData(t, env, &streaks)
	assert.Len(t, streaks, 1)

	code, env = ta.do(http.MethodGet, "/api/features/full_guidance", token, nil)
	require.Equal(t, http.StatusOK, code)
	var decision entitlement.Decision
	decodeData(t, env, &decision)
	assert.False(t, decision.Granted)

	code, _ = ta.do(http.MethodPost, "/api/subscription/activate", token, map[string]string{"plan_id": "any"})
	assert.Equal(t, http.StatusForbidden, code)

	// 注册后原地升级，保留打卡记录
	code, env = ta.do(http.MethodPost, "/api/auth/register", token, map[string]string{
		"email":    "mom@example.com",
		"password": "naptime2024",
	})
	require.Equal(t, http.StatusCreated, code)
	var registered models.UserLoginResponse
	decodeData(t, env, &registered)
	assert.Equal(t, session.User.ID, registered.User.ID)
	assert.False(t, registered.User.IsAnonymous)
	assert.Empty(t, registered.User.Password)

	code, env = ta.do(http.MethodGet, "/api/streaks", registered.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &streaks)
	assert.Len(t, streaks, 1)
}

func TestSubscriptionLifecycle(t *testing.T) {
	ta := newTestApp(t)
	family := ta.seedPlan(models.PlanFamily, 0)
	ta.seedPlan(models.PlanFree, 0)

	code, env := ta.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "dad@example.com",
		"password": "naptime2024",
	})
	require.Equal(t, http.StatusCreated, code)
	var session models.UserLoginResponse
	decodeData(t, env, &session)
	token := session.AccessToken

	code, env = ta.do(http.MethodGet, "/api/subscription/plans", "", nil)
	require.Equal(t, http.StatusOK, code)
	var plans []models.SubscriptionPlan
	decodeData(t, env, &plans)
	assert.Len(t, plans, 2)

	code, env = ta.do(http.MethodGet, "/api/subscription", token, nil)
	require.Equal(t, http.StatusOK, code)
	var current struct {
		Subscription *models.UserSubscription `json:"subscription"`
		PlanCode     models.PlanCode          `json:"plan_code"`
	}
	decodeData(t, env, &current)
	assert.Nil(t, current.Subscription)
	assert.Equal(t, models.PlanFree, current.PlanCode)

	code, env = ta.do(http.MethodPost, "/api/subscription/activate", token, map[string]string{"plan_id": family.ID})
	require.Equal(t, http.StatusCreated, code)
	var sub models.UserSubscription
	decodeData(t, env, &sub)
	assert.Equal(t, models.StatusActive, sub.Status)

	code, env = ta.do(http.MethodGet, "/api/features/multiple_profiles", token, nil)
	require.Equal(t, http.StatusOK, code)
	var decision entitlement.Decision
	decodeData(t, env, &decision)
	assert.True(t, decision.Granted)

	code, env = ta.do(http.MethodPost, "/api/subscription/cancel", token, nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &sub)
	assert.False(t, sub.AutoRenew)

	code, env = ta.do(http.MethodPost, "/api/subscription/reactivate", token, nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &sub)
	assert.True(t, sub.AutoRenew)

	code, _ = ta.do(http.MethodPost, "/api/subscription/activate", token, map[string]string{"plan_id": "missing"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestActivityValidation(t *testing.T) {
	ta := newTestApp(t)
	_, env := ta.do(http.MethodPost, "/api/auth/anonymous", "", nil)
	var session models.UserLoginResponse
	decodeData(t, env, &session)

	code, env := ta.do(http.MethodPost, "/api/moods", session.AccessToken, map[string]string{"type": "ecstatic"})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "type")

	code, _ = ta.do(http.MethodPost, "/api/moods", session.AccessToken, map[string]string{"type": "good", "date": "2024-05-01"})
	assert.Equal(t, http.StatusCreated, code)

	code, env = ta.do(http.MethodGet, "/api/wellness?start=2024-05-01&end=2024-05-07", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	var summary models.WellnessSummary
	decodeData(t, env, &summary)
	assert.Equal(t, 1, summary.TotalMoodEntries)
	assert.Equal(t, 1, summary.MoodCounts.Positive)

	code, _ = ta.do(http.MethodGet, "/api/wellness?start=2024-05-07&end=2024-05-01", session.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMeWithoutUserRow(t *testing.T) {
	ta := newTestApp(t)
	token, _, _, err := utils.NewJWTService("integration-secret").GenerateTokenPair(auth.Identity{UserID: "anon-ghost", Anonymous: true})
	require.NoError(t, err)

	code, env := ta.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var user map[string]interface{}
	decodeData(t, env, &user)
	assert.Equal(t, "anon-ghost", user["id"])
	assert.Equal(t, true, user["is_anonymous"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "email")
}

func TestGatedContentRoutes(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.db.Insert(context.Background(), "guidance_resources", database.Record{
		"title": "Sleep regressions", "content": "deep dive", "is_premium": true, "published": true,
	}, nil))

	code, env := ta.do(http.MethodPost, "/api/auth/anonymous", "", nil)
	require.Equal(t, http.StatusCreated, code)
	var session models.UserLoginResponse
	decodeData(t, env, &session)
	token := session.AccessToken

	code, env = ta.do(http.MethodGet, "/api/guidance", token, nil)
	require.Equal(t, http.StatusOK, code)
	var library models.GuidanceLibrary
	decodeData(t, env, &library)
	assert.False(t, library.FullAccess)
	require.Len(t, library.Resources, 1)
	assert.True(t, library.Resources[0].Locked)
	assert.Empty(t, library.Resources[0].Content)

	code, env = ta.do(http.MethodGet, "/api/guidance/"+library.Resources[0].ID, token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UPGRADE_REQUIRED", env.Error.Code)

	code, env = ta.do(http.MethodGet, "/api/insights", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UPGRADE_REQUIRED", env.Error.Code)

	code, _ = ta.do(http.MethodGet, "/api/guidance?category=sleep", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ta.do(http.MethodGet, "/api/guidance/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ta.do(http.MethodGet, "/api/guidance/00000000-0000-0000-0000-000000000000", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSituationAndCatalogRoutes(t *testing.T) {
	ta := newTestApp(t)
	code, env := ta.do(http.MethodPost, "/api/auth/anonymous", "", nil)
	require.Equal(t, http.StatusCreated, code)
	var session models.UserLoginResponse
	decodeData(t, env, &session)
	token := session.AccessToken

	code, _ = ta.do(http.MethodPost, "/api/situations", token, map[string]string{"title": "Car seat battle", "situation_date": "2024-05-02"})
	require.Equal(t, http.StatusCreated, code)

	code, env = ta.do(http.MethodGet, "/api/situations?start=2024-05-01&end=2024-05-31", token, nil)
	require.Equal(t, http.StatusOK, code)
	var situations []models.Situation
	decodeData(t, env, &situations)
	require.Len(t, situations, 1)
	assert.Equal(t, "Car seat battle", situations[0].Title)

	code, env = ta.do(http.MethodGet, "/api/situations/categories", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))

	code, env = ta.do(http.MethodPost, "/api/self-care/activities", token, map[string]interface{}{
		"name": "Tea break", "category": "rest", "duration_minutes": 10, "color_code": "#AABBCC",
	})
	require.Equal(t, http.StatusCreated, code)
	var created models.CustomActivity
	decodeData(t, env, &created)
	assert.Equal(t, "#AABBCC", created.ColorCode)

	code, env = ta.do(http.MethodGet, "/api/self-care/activities", token, nil)
	require.Equal(t, http.StatusOK, code)
	var catalog models.SelfCareCatalog
	decodeData(t, env, &catalog)
	require.Len(t, catalog.Custom, 1)
	assert.Equal(t, "Tea break", catalog.Custom[0].Name)

	code, _ = ta.do(http.MethodPost, "/api/self-care/activities", token, map[string]interface{}{
		"name": "Tea break", "category": "rest", "duration_minutes": 0,
	})
	assert.Equal(t, http.StatusBadRequest, code)
}
