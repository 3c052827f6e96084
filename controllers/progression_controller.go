package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

// ProgressionController serves XP, level and rank data.
type ProgressionController struct {
	progression *services.ProgressionService
	streaks     *services.StreakService
}

func NewProgressionController(progression *services.ProgressionService, streaks *services.StreakService) *ProgressionController {
	return &ProgressionController{progression: progression, streaks: streaks}
}

// Me returns the dashboard numbers of the caller.
func (p *ProgressionController) Me(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	reqCtx := ctx.Request.Context()
	profile, err := p.progression.Profile(reqCtx, userID)
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load profile")
		return
	}
	streak, err := p.streaks.Get(reqCtx, userID)
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to load streak")
		return
	}
	utils.Success(ctx, gin.H{
		"total_xp":          profile.TotalXP,
		"level":             profile.Level,
		"current_xp":        profile.CurrentLevelXP,
		"xp_for_next_level": profile.XPForNextLevel,
		"rank":              profile.RankTitle,
		"streak_days":       profile.StreakDays,
		"current_streak":    streak.CurrentStreak,
		"longest_streak":    streak.LongestStreak,
	})
}

// Events lists the caller's recent XP ledger entries.
func (p *ProgressionController) Events(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	events, err := p.progression.Events(ctx.Request.Context(), userID, queryLimit(ctx, 20, 100))
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50052, "failed to load xp history")
		return
	}
	utils.Success(ctx, gin.H{"items": events})
}

// Leaderboard returns the top learners by XP.
func (p *ProgressionController) Leaderboard(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	board, err := p.progression.Leaderboard(ctx.Request.Context(), userID)
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50053, "failed to load leaderboard")
		return
	}
	utils.Success(ctx, gin.H{"items": board})
}
