package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/config"
	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

type harness struct {
	t      *testing.T
	router *gin.Engine
	clock  *clock.Fixed
	db     *gorm.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	config.Set(config.AppConfig{
		JWTSecret:      "router-secret",
		GinMode:        "test",
		GinPath:        filepath.Join(t.TempDir(), "gin.log"),
		AdminUsernames: []string{"root"},
	})

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig("silent"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))

	clk := clock.NewFixed(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	c := services.NewContainer(services.Deps{
		DB:      db,
		Clock:   clk,
		Config:  config.Get(),
		Metrics: services.NewMetrics(nil),
	})
	t.Cleanup(func() {
		c.Close()
		_ = sqlDB.Close()
	})
	return &harness{t: t, router: SetupRouter(c), clock: clk, db: db}
}

func (h *harness) do(method, path string, userID uint, username string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		tok, err := utils.GenerateToken(userID, username, time.Hour)
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestDailyBonusClaimEndpoint(t *testing.T) {
	h := newHarness(t)

	w, body := h.do(http.MethodPost, "/api/v1/daily-bonus/claim", 5, "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"success":    true,
		"message":    "Daily bonus awarded!",
		"xp_awarded": float64(20),
		"total_xp":   float64(20),
		"level":      float64(1),
		"current_xp": float64(20),
	}, body)

	w, body = h.do(http.MethodPost, "/api/v1/daily-bonus/claim", 5, "ada", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, map[string]interface{}{
		"success":    false,
		"message":    "You have already claimed your bonus today. Come back tomorrow!",
		"xp_awarded": float64(0),
	}, body)

	h.clock.Advance(24 * time.Hour)
	w, body = h.do(http.MethodPost, "/api/v1/daily-bonus/claim", 5, "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(40), body["total_xp"])

	w, _ = h.do(http.MethodPost, "/api/v1/daily-bonus/claim", 0, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthenticatedRequestsAdvanceStreak(t *testing.T) {
	h := newHarness(t)

	_, _ = h.do(http.MethodGet, "/api/v1/daily-bonus/status", 9, "bea", nil)
	h.clock.Advance(24 * time.Hour)
	_, _ = h.do(http.MethodGet, "/api/v1/daily-bonus/status", 9, "bea", nil)

	w, body := h.do(http.MethodGet, "/api/v1/progression/me", 9, "bea", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["current_streak"])
	assert.Equal(t, float64(2), data["streak_days"])
	assert.Equal(t, float64(0), data["total_xp"])
	assert.Equal(t, "Plastic", data["rank"])

	w, body = h.do(http.MethodGet, "/api/v1/streak/heatmap", 9, "bea", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"2025-03-01", "2025-03-02"}, body["data"].(map[string]interface{})["dates"])
}

func TestAdminEndpoints(t *testing.T) {
	h := newHarness(t)

	w, _ := h.do(http.MethodPost, "/api/v1/admin/users", 2, "ada", map[string]string{"username": "eve"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body := h.do(http.MethodPost, "/api/v1/admin/users", 1, "root", map[string]string{"username": "eve", "email": "eve@example.com"})
	require.Equal(t, http.StatusCreated, w.Code)
	eveID := uint(body["data"].(map[string]interface{})["id"].(float64))

	w, _ = h.do(http.MethodPost, "/api/v1/admin/users", 1, "root", map[string]string{"username": "eve"})
	assert.Equal(t, http.StatusConflict, w.Code)

	challenge := map[string]interface{}{"user_id": eveID, "xp_reward": 150}
	w, body = h.do(http.MethodPost, "/api/v1/admin/xp/challenges/two-sum", 1, "root", challenge)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["data"].(map[string]interface{})["granted"])

	w, body = h.do(http.MethodPost, "/api/v1/admin/xp/challenges/two-sum", 1, "root", challenge)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["data"].(map[string]interface{})["granted"])

	w, body = h.do(http.MethodPut, "/api/v1/admin/xp/assignments/sub-9", 1, "root", map[string]interface{}{"user_id": eveID, "xp": 60})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(210), body["data"].(map[string]interface{})["total_xp"])

	w, body = h.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/xp/assignments/sub-9?user_id=%d", eveID), 1, "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(150), body["data"].(map[string]interface{})["total_xp"])

	w, body = h.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/progression/%d/recompute", eveID), 1, "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["data"].(map[string]interface{})["level"])

	w, _ = h.do(http.MethodPost, "/api/v1/admin/streaks/999/reset", 1, "root", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = h.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/streaks/%d/reset", eveID), 1, "root", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["data"].(map[string]interface{})["current_streak"])

	w, _ = h.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", eveID), 1, "root", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var rows int64
	require.NoError(t, h.db.Table("xp_events").Where("user_id = ?", eveID).Count(&rows).Error)
	assert.Zero(t, rows)

	var adminStreak int
	require.NoError(t, h.db.Table("streaks").Where("user_id = ?", 1).Select("current_streak").Scan(&adminStreak).Error)
	assert.Equal(t, 1, adminStreak, "admin requests advance the caller's streak")
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	w, body := h.do(http.MethodGet, "/health", 0, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))
	assert.Equal(t, float64(0), body["code"])

	w, _ = h.do(http.MethodGet, "/metrics", 0, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = h.do(http.MethodGet, "/api/v1/nope", 0, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(utils.CodeNotFound), body["code"])
}
