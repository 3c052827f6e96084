package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/learnquest/middleware"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	return middleware.UserID(ctx)
}

// parseIDParam reads a positive numeric path parameter.
func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(ctx.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func queryLimit(ctx *gin.Context, def, maxVal int) int {
	v := strings.TrimSpace(ctx.Query("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxVal {
		return def
	}
	return n
}
