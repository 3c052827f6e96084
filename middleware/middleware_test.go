package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/learnquest/config"
	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupConfig() {
	config.Set(config.AppConfig{JWTSecret: "middleware-secret", AdminUsernames: []string{"root"}})
}

func bearer(t *testing.T, id uint, name string) string {
	t.Helper()
	tok, err := utils.GenerateToken(id, name, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	setupConfig()
	r := gin.New()
	r.GET("/x", AuthRequired(), func(c *gin.Context) {
		id, ok := UserID(c)
		require.True(t, ok)
		c.String(http.StatusOK, "%d:%s", id, c.GetString(ContextUsernameKey))
	})

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "Bearer not-a-jwt").Code)

	w := do(r, bearer(t, 12, "ada"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12:ada", w.Body.String())
}

func TestAdminRequired(t *testing.T) {
	setupConfig()
	r := gin.New()
	r.GET("/x", AuthRequired(), AdminRequired(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusForbidden, do(r, bearer(t, 1, "ada")).Code)
	assert.Equal(t, http.StatusNoContent, do(r, bearer(t, 2, "ROOT")).Code)
}

type fakeRecorder struct {
	calls []uint
	err   error
}

func (f *fakeRecorder) RecordLogin(_ context.Context, userID uint) (services.StreakResult, error) {
	f.calls = append(f.calls, userID)
	return services.StreakResult{Transition: services.TransitionSameDay}, f.err
}

func TestStreakTracker(t *testing.T) {
	setupConfig()
	rec := &fakeRecorder{}
	r := gin.New()
	r.GET("/x", AuthRequired(), StreakTracker(rec), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, do(r, bearer(t, 7, "ada")).Code)
	assert.Equal(t, []uint{7}, rec.calls)

	rec.err = errors.New("db down")
	assert.Equal(t, http.StatusInternalServerError, do(r, bearer(t, 7, "ada")).Code)
}

func TestRateLimitPerUser(t *testing.T) {
	setupConfig()
	r := gin.New()
	r.GET("/x", AuthRequired(), RateLimitMiddleware(2), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	ada := bearer(t, 1, "ada")
	assert.Equal(t, http.StatusNoContent, do(r, ada).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, ada).Code)
	assert.Equal(t, http.StatusNoContent, do(r, bearer(t, 2, "bob")).Code, "buckets are per user")
}
