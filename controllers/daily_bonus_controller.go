package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

const (
	bonusGrantedMessage = "Daily bonus awarded!"
	bonusClaimedMessage = "You have already claimed your bonus today. Come back tomorrow!"
)

// DailyBonusController handles the daily login bonus endpoints.
type DailyBonusController struct {
	bonus *services.BonusService
}

// NewDailyBonusController creates a new controller instance.
func NewDailyBonusController(bonus *services.BonusService) *DailyBonusController {
	return &DailyBonusController{bonus: bonus}
}

// claimResponse keeps the field set the dashboard client reads.
type claimResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	XPAwarded int    `json:"xp_awarded"`
	TotalXP   *int   `json:"total_xp,omitempty"`
	Level     *int   `json:"level,omitempty"`
	CurrentXP *int   `json:"current_xp,omitempty"`
}

// Claim grants today's bonus. 200 on grant, 400 when already claimed.
func (d *DailyBonusController) Claim(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	res, err := d.bonus.Claim(ctx.Request.Context(), userID)
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to claim daily bonus")
		return
	}

	if !res.Granted() {
		ctx.JSON(http.StatusBadRequest, claimResponse{
			Success:   false,
			Message:   bonusClaimedMessage,
			XPAwarded: 0,
		})
		return
	}

	p := res.Profile
	ctx.JSON(http.StatusOK, claimResponse{
		Success:   true,
		Message:   bonusGrantedMessage,
		XPAwarded: res.XPAwarded,
		TotalXP:   &p.TotalXP,
		Level:     &p.Level,
		CurrentXP: &p.CurrentLevelXP,
	})
}

// Status reports whether today's bonus is still available.
func (d *DailyBonusController) Status(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	st, err := d.bonus.Status(ctx.Request.Context(), userID)
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to load bonus status")
		return
	}
	utils.Success(ctx, st)
}
