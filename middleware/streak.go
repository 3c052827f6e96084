package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

// LoginRecorder advances a user's streak on an authenticated request.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID uint) (services.StreakResult, error)
}

// StreakTracker runs the streak transition before the handler. A storage
// failure fails the request.
func StreakTracker(streaks LoginRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}
		if _, err := streaks.RecordLogin(c.Request.Context(), userID); err != nil {
			utils.Logger.Error("record login failed",
				zap.Uint("user_id", userID),
				zap.String("request_id", c.GetString(utils.ContextRequestIDKey)),
				zap.Error(err))
			utils.Error(c, http.StatusInternalServerError, 50010, "failed to update streak")
			c.Abort()
			return
		}
		c.Next()
	}
}
