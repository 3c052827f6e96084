package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

// AdminController carries the back-office hooks: user provisioning, XP
// sources and streak maintenance.
type AdminController struct {
	users       *services.UserService
	progression *services.ProgressionService
	streaks     *services.StreakService
}

func NewAdminController(c *services.Container) *AdminController {
	return &AdminController{users: c.Users, progression: c.Progression, streaks: c.Streaks}
}

// CreateUser provisions an account; the model hooks seed its streak and profile.
func (a *AdminController) CreateUser(ctx *gin.Context) {
	var req services.NewUser
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "invalid user payload")
		return
	}
	u, err := a.users.Create(ctx.Request.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			utils.Error(ctx, http.StatusConflict, 40970, err.Error())
			return
		}
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to create user")
		return
	}
	ctx.JSON(http.StatusCreated, utils.JSONResponse{Code: utils.CodeOK, Message: "created", Data: u})
}

// DeleteUser removes an account and cascades its progression rows.
func (a *AdminController) DeleteUser(ctx *gin.Context) {
	userID, ok := parseIDParam(ctx, "id")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40071, "invalid user id")
		return
	}
	if a.handleErr(ctx, a.users.Delete(ctx.Request.Context(), userID), 50071) {
		return
	}
	utils.Success(ctx, gin.H{"deleted": userID})
}

type gradeRequest struct {
	UserID uint `json:"user_id" binding:"required"`
	XP     *int `json:"xp" binding:"required"`
}

// SetAssignmentGrade records or replaces the XP of a graded submission.
func (a *AdminController) SetAssignmentGrade(ctx *gin.Context) {
	var req gradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40072, "invalid grade payload")
		return
	}
	p, err := a.progression.SetAssignmentGrade(ctx.Request.Context(), req.UserID, strings.TrimSpace(ctx.Param("submissionId")), *req.XP)
	if a.handleErr(ctx, err, 50072) {
		return
	}
	utils.Success(ctx, p)
}

type userRef struct {
	UserID uint `json:"user_id" form:"user_id" binding:"required"`
}

// RemoveAssignmentGrade drops a submission's XP.
func (a *AdminController) RemoveAssignmentGrade(ctx *gin.Context) {
	var req userRef
	if err := ctx.ShouldBindQuery(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40073, "user_id is required")
		return
	}
	p, err := a.progression.RemoveAssignmentGrade(ctx.Request.Context(), req.UserID, strings.TrimSpace(ctx.Param("submissionId")))
	if a.handleErr(ctx, err, 50073) {
		return
	}
	utils.Success(ctx, p)
}

type challengeRequest struct {
	UserID   uint `json:"user_id" binding:"required"`
	XPReward int  `json:"xp_reward" binding:"required"`
}

// CompleteChallenge grants a challenge reward once per user.
func (a *AdminController) CompleteChallenge(ctx *gin.Context) {
	var req challengeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40074, "invalid challenge payload")
		return
	}
	res, err := a.progression.CompleteChallenge(ctx.Request.Context(), req.UserID, strings.TrimSpace(ctx.Param("challengeId")), req.XPReward)
	if a.handleErr(ctx, err, 50074) {
		return
	}
	utils.Success(ctx, gin.H{"granted": res.Granted, "profile": res.Profile})
}

// Recompute rebuilds a profile from the XP ledger.
func (a *AdminController) Recompute(ctx *gin.Context) {
	userID, ok := parseIDParam(ctx, "userId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40075, "invalid user id")
		return
	}
	p, err := a.progression.Recompute(ctx.Request.Context(), userID)
	if a.handleErr(ctx, err, 50075) {
		return
	}
	utils.Success(ctx, p)
}

// ResetStreak zeroes a user's current streak.
func (a *AdminController) ResetStreak(ctx *gin.Context) {
	userID, ok := parseIDParam(ctx, "userId")
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40076, "invalid user id")
		return
	}
	rec, err := a.streaks.AdminReset(ctx.Request.Context(), userID)
	if a.handleErr(ctx, err, 50076) {
		return
	}
	utils.Success(ctx, rec)
}

func (a *AdminController) handleErr(ctx *gin.Context, err error, code int) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrUserNotFound):
		utils.Error(ctx, http.StatusNotFound, 40470, "user not found")
	case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrInvalidSource):
		utils.Error(ctx, http.StatusBadRequest, 40077, err.Error())
	default:
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, code, "internal server error")
	}
	return true
}
