package services

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/config"
	"github.com/cppla/learnquest/utils"
)

// Deps are the shared collaborators of every service.
type Deps struct {
	DB      *gorm.DB
	Clock   clock.Clock
	Config  config.AppConfig
	Logger  *zap.Logger
	Metrics *Metrics
	Cache   *utils.Cache
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Container owns the services of one process.
type Container struct {
	Deps
	Users         *UserService
	Streaks       *StreakService
	Progression   *ProgressionService
	Bonus         *BonusService
	Notifications *NotificationService
}

// NewContainer builds every service over d.
func NewContainer(d Deps) *Container {
	notifications := NewNotificationService(d)
	progression := NewProgressionService(d)
	return &Container{
		Deps:          d,
		Users:         NewUserService(d),
		Streaks:       NewStreakService(d, notifications),
		Progression:   progression,
		Bonus:         NewBonusService(d, progression),
		Notifications: notifications,
	}
}

// Start launches the background workers.
func (c *Container) Start(ctx context.Context) {
	c.Notifications.Start(ctx)
	c.Notifications.StartPruner(ctx, 0)
}

// Close flushes pending notifications.
func (c *Container) Close() {
	c.Notifications.Close()
}
