package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cppla/learnquest/controllers"
	"github.com/cppla/learnquest/middleware"
	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(c *services.Container) *gin.Engine {
	cfg := c.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(utils.RequestID())
	// Access log goes to its own rolling file; fall back to the app logger.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		gl = utils.Logger
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	bonusController := controllers.NewDailyBonusController(c.Bonus)
	streakController := controllers.NewStreakController(c.Streaks)
	progressionController := controllers.NewProgressionController(c.Progression, c.Streaks)
	notificationController := controllers.NewNotificationController(c.Notifications)
	adminController := controllers.NewAdminController(c)
	statsController := controllers.NewStatsController(c.DB, c.Clock)
	configController := controllers.NewConfigController()

	api := r.Group("/api/v1")
	api.GET("/config/progression", configController.GetProgression)

	// Every authenticated request advances the caller's login streak.
	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.StreakTracker(c.Streaks))

	protected.POST("/daily-bonus/claim", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), bonusController.Claim)
	protected.GET("/daily-bonus/status", bonusController.Status)

	protected.GET("/streak", streakController.Show)
	protected.GET("/streak/heatmap", streakController.Heatmap)
	protected.GET("/streak/leaderboard", streakController.Leaderboard)

	protected.GET("/progression/me", progressionController.Me)
	protected.GET("/progression/me/events", progressionController.Events)
	protected.GET("/leaderboard", progressionController.Leaderboard)

	protected.GET("/notifications", notificationController.List)
	protected.POST("/notifications/read-all", notificationController.MarkAllRead)
	protected.POST("/notifications/:id/read", notificationController.MarkRead)
	protected.DELETE("/notifications/:id", notificationController.Delete)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.StreakTracker(c.Streaks), middleware.AdminRequired())
	admin.GET("/stats", statsController.GetStats)
	admin.POST("/users", adminController.CreateUser)
	admin.DELETE("/users/:id", adminController.DeleteUser)
	admin.PUT("/xp/assignments/:submissionId", adminController.SetAssignmentGrade)
	admin.DELETE("/xp/assignments/:submissionId", adminController.RemoveAssignmentGrade)
	admin.POST("/xp/challenges/:challengeId", adminController.CompleteChallenge)
	admin.POST("/progression/:userId/recompute", adminController.Recompute)
	admin.POST("/streaks/:userId/reset", adminController.ResetStreak)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "route not found")
	})

	return r
}
