package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, name)
	}
}

func passthrough(next http.Handler) http.Handler { return next }

func testHandlers() HandlerSet {
	return HandlerSet{
		Register:         named("register"),
		Login:            named("login"),
		Refresh:          named("refresh"),
		Logout:           named("logout"),
		GetProfile:       named("get-profile"),
		UpdateProfile:    named("update-profile"),
		SetEntitlement:   named("set-entitlement"),
		GetQuota:         named("quota"),
		CompleteAI:       named("ai"),
		GetChatHistory:   named("chat-history"),
		ResetChatHistory: named("reset-chat"),
		ListAnalyses:     named("analyses"),
		ListAuditLogs:    named("audit"),

		GetDay:             named("day"),
		AddMeal:            named("add-meal"),
		DeleteMeal:         named("delete-meal"),
		AddWorkoutEntry:    named("add-workout-entry"),
		DeleteWorkoutEntry: named("delete-workout-entry"),
		ListWorkouts:       named("workouts"),
		CreateWorkout:      named("create-workout"),
		SampleWorkout:      named("sample-workout"),
		SetWorkoutDone:     named("workout-done"),
		DeleteWorkout:      named("delete-workout"),

		AuthMiddleware: passthrough,
		AdminMiddleware: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				HandleError(w, ErrAdminRequired)
			})
		},
	}
}

func TestRouter_Routes(t *testing.T) {
	router := NewRouter(Dependencies{}, RouterConfig{}, testHandlers())

	tests := []struct {
		method, path, want string
	}{
		{http.MethodPost, "/api/v1/auth/register", "register"},
		{http.MethodPost, "/api/v1/auth/logout", "logout"},
		{http.MethodGet, "/api/v1/profile", "get-profile"},
		{http.MethodPut, "/api/v1/profile", "update-profile"},
		{http.MethodGet, "/api/v1/quota", "quota"},
		{http.MethodPost, "/api/v1/ai", "ai"},
		{http.MethodGet, "/api/v1/chat/history", "chat-history"},
		{http.MethodDelete, "/api/v1/chat/history", "reset-chat"},
		{http.MethodGet, "/api/v1/analyses", "analyses"},
		{http.MethodGet, "/api/v1/audit", "audit"},
		{http.MethodGet, "/api/v1/tracker/day", "day"},
		{http.MethodPost, "/api/v1/tracker/meals", "add-meal"},
		{http.MethodDelete, "/api/v1/tracker/meals/42", "delete-meal"},
		{http.MethodPost, "/api/v1/tracker/workout-entries", "add-workout-entry"},
		{http.MethodDelete, "/api/v1/tracker/workout-entries/42", "delete-workout-entry"},
		{http.MethodGet, "/api/v1/workouts", "workouts"},
		{http.MethodPost, "/api/v1/workouts", "create-workout"},
		{http.MethodPost, "/api/v1/workouts/sample", "sample-workout"},
		{http.MethodPut, "/api/v1/workouts/42/completed", "workout-done"},
		{http.MethodDelete, "/api/v1/workouts/42", "delete-workout"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var body Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.want, body.Data)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_AdminRoutesAreGuarded(t *testing.T) {
	router := NewRouter(Dependencies{}, RouterConfig{}, testHandlers())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/abc/entitlement", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_AuthRateLimiterOnlyOnAuthRoutes(t *testing.T) {
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	router := NewRouter(Dependencies{}, RouterConfig{AuthRateLimiter: blocked}, testHandlers())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quota", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func readiness(t *testing.T, deps Dependencies) (int, map[string]string) {
	t.Helper()
	router := NewRouter(deps, RouterConfig{}, testHandlers())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body.Data
}

func TestRouter_Readiness(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	code, health := readiness(t, Dependencies{Redis: rdb})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", health["redis"])
	assert.Equal(t, "not configured", health["database"])
	assert.Equal(t, "not configured", health["nats"])

	mr.Close()
	code, health = readiness(t, Dependencies{Redis: rdb})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", health["redis"])
	assert.Equal(t, "degraded", health["status"])
}

func TestRouter_Liveness(t *testing.T) {
	router := NewRouter(Dependencies{}, RouterConfig{}, testHandlers())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
