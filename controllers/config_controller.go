package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/learnquest/config"
	"github.com/cppla/learnquest/services"
	"github.com/cppla/learnquest/utils"
)

// ConfigController serves the public progression rules to clients.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

var rankLevels = []int{1, 5, 10, 12, 15, 20}

// GetProgression returns the bonus size, level width and rank ladder.
func (c *ConfigController) GetProgression(ctx *gin.Context) {
	cfg := config.Get()
	ranks := make([]gin.H, 0, len(rankLevels))
	for _, lvl := range rankLevels {
		ranks = append(ranks, gin.H{
			"min_level": lvl,
			"title":     services.RankTitle(lvl),
			"badge":     services.LevelBadge(lvl),
		})
	}
	utils.Success(ctx, gin.H{
		"timezone":       cfg.Timezone,
		"daily_bonus_xp": cfg.DailyBonusXP,
		"xp_per_level":   cfg.XPPerLevel,
		"ranks":          ranks,
	})
}
