package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

// NotificationController lets a user read and dismiss notifications.
type NotificationController struct {
	notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{notifications: notifications}
}

func (n *NotificationController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	items, err := n.notifications.List(ctx.Request.Context(), userID, queryLimit(ctx, 50, 100))
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to load notifications")
		return
	}
	utils.Success(ctx, gin.H{"items": items})
}

func (n *NotificationController) MarkRead(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	err := n.notifications.MarkRead(ctx.Request.Context(), userID, strings.TrimSpace(ctx.Param("id")))
	if n.handleErr(ctx, err, 50061) {
		return
	}
	utils.Success(ctx, gin.H{"success": true})
}

func (n *NotificationController) MarkAllRead(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	count, err := n.notifications.MarkAllRead(ctx.Request.Context(), userID)
	if n.handleErr(ctx, err, 50062) {
		return
	}
	utils.Success(ctx, gin.H{"success": true, "updated": count})
}

func (n *NotificationController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	err := n.notifications.Delete(ctx.Request.Context(), userID, strings.TrimSpace(ctx.Param("id")))
	if n.handleErr(ctx, err, 50063) {
		return
	}
	utils.Success(ctx, gin.H{"success": true})
}

func (n *NotificationController) handleErr(ctx *gin.Context, err error, code int) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrNotificationNotFound):
		utils.Error(ctx, http.StatusNotFound, 40460, "notification not found")
	default:
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, code, "failed to update notification")
	}
	return true
}
