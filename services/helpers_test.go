package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/config"
	"github.com/cppla/learnquest/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), config.GormConfig("silent"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func testConfig() config.AppConfig {
	return config.AppConfig{
		Timezone:                  "UTC",
		DailyBonusXP:              20,
		XPPerLevel:                100,
		LeaderboardSize:           10,
		LeaderboardCacheSeconds:   60,
		NotificationRetentionDays: 30,
		AdminUsernames:            []string{"admin"},
	}
}

func testDeps(t *testing.T, start time.Time) (Deps, *clock.Fixed) {
	t.Helper()
	clk := clock.NewFixed(start)
	return Deps{
		DB:      newTestDB(t),
		Clock:   clk,
		Config:  testConfig(),
		Metrics: NewMetrics(nil),
	}, clk
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func createUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username}
	require.NoError(t, db.Create(&u).Error)
	return u
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []StreakIncreased
}

func (r *recordingNotifier) NotifyStreakIncreased(userID uint, streak int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, StreakIncreased{UserID: userID, Streak: streak})
}

func (r *recordingNotifier) all() []StreakIncreased {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StreakIncreased(nil), r.events...)
}
