package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/models"
	"github.com/cppla/learnquest/utils"
)

// StatsController provides progression statistics for the back office.
type StatsController struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, clk clock.Clock) *StatsController {
	return &StatsController{db: db, clock: clk}
}

// GetStats returns aggregate counts for today and overall.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount int64
	var activeToday int64
	var claimsToday int64
	var totalXP int64

	db := s.db.WithContext(ctx.Request.Context())
	today := clock.Today(s.clock)

	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}

	if err := db.Model(&models.Streak{}).Where("last_login_date = ?", today).Count(&activeToday).Error; err != nil {
		activeToday = 0
	}

	if err := db.Model(&models.DailyBonusClaim{}).Where("bonus_date = ?", today).Count(&claimsToday).Error; err != nil {
		claimsToday = 0
	}

	if err := db.Model(&models.XPEvent{}).
		Select("COALESCE(SUM(amount),0)").
		Scan(&totalXP).Error; err != nil {
		totalXP = 0
	}

	utils.Success(ctx, gin.H{
		"date":               today,
		"user_count":         userCount,
		"active_today_count": activeToday,
		"bonus_claims_today": claimsToday,
		"total_xp_granted":   totalXP,
	})
}
