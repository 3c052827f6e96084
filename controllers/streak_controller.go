package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

// StreakController exposes the caller's streak and the streak boards.
type StreakController struct {
	streaks *services.StreakService
}

func NewStreakController(streaks *services.StreakService) *StreakController {
	return &StreakController{streaks: streaks}
}

// Show returns the caller's streak record.
func (s *StreakController) Show(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	rec, err := s.streaks.Get(ctx.Request.Context(), userID)
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load streak")
		return
	}
	utils.Success(ctx, gin.H{
		"current_streak":  rec.CurrentStreak,
		"longest_streak":  rec.LongestStreak,
		"last_login_date": rec.LastLoginDate,
		"last_login_at":   rec.LastLoginAt,
	})
}

// Heatmap returns the caller's login days.
func (s *StreakController) Heatmap(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	dates, err := s.streaks.Heatmap(ctx.Request.Context(), userID)
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to load heatmap")
		return
	}
	utils.Success(ctx, gin.H{"dates": dates})
}

// Leaderboard returns learners ordered by name and by longest streak.
func (s *StreakController) Leaderboard(ctx *gin.Context) {
	board, err := s.streaks.Leaderboard(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load streak leaderboard")
		return
	}
	utils.Success(ctx, board)
}
