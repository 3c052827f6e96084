package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/models"
)

// Transition names the branch Advance took.
type Transition string

const (
	TransitionFirstLogin  Transition = "first_login"
	TransitionSameDay     Transition = "same_day"
	TransitionConsecutive Transition = "consecutive"
	TransitionReset       Transition = "reset"
)

// StreakIncreased is raised when a consecutive-day login grows the streak.
type StreakIncreased struct {
	UserID uint
	Streak int
}

// Advance applies one login on day today to rec. exists is false when the
// user has no streak row yet. A seeded row that never saw a login counts
// as a first login too. It never touches storage.
func Advance(rec models.Streak, exists bool, today clock.Date, now time.Time) (models.Streak, Transition, *StreakIncreased) {
	next := rec
	at := now
	next.LastLoginAt = &at

	if !exists || (rec.LastLoginDate.IsZero() && len(rec.Dates()) == 0) {
		next.CurrentStreak = 1
		next.LongestStreak = maxInt(rec.LongestStreak, 1)
		next.LastLoginDate = today
		next.LoginDates = rec.WithLoginDate(today)
		return next, TransitionFirstLogin, nil
	}

	last := rec.LastLoginDate
	// A stored date ahead of today only happens after a timezone change; treat it as today.
	if !last.IsZero() && !last.Before(today) {
		return next, TransitionSameDay, nil
	}

	next.LastLoginDate = today
	next.LoginDates = rec.WithLoginDate(today)
	if !last.IsZero() && last.AddDays(1) == today {
		next.CurrentStreak = rec.CurrentStreak + 1
		next.LongestStreak = maxInt(rec.LongestStreak, next.CurrentStreak)
		return next, TransitionConsecutive, &StreakIncreased{UserID: rec.UserID, Streak: next.CurrentStreak}
	}

	next.CurrentStreak = 1
	next.LongestStreak = maxInt(rec.LongestStreak, next.CurrentStreak)
	return next, TransitionReset, nil
}

// StreakResult is what a login did to the caller's streak.
type StreakResult struct {
	Streak     models.Streak
	Transition Transition
}

// StreakService owns the per-user streak rows.
type StreakService struct {
	db       *gorm.DB
	clock    clock.Clock
	notifier Notifier
	metrics  *Metrics
	log      *zap.Logger
	admins   []string
}

// NewStreakService wires the store. notifier may be nil.
func NewStreakService(d Deps, notifier Notifier) *StreakService {
	return &StreakService{
		db:       d.DB,
		clock:    d.Clock,
		notifier: notifier,
		metrics:  d.Metrics,
		log:      d.logger().Named("streak"),
		admins:   d.Config.AdminUsernames,
	}
}

const maxStreakAttempts = 3

// RecordLogin advances the user's streak for today. Concurrent calls on the
// same day increment at most once: every day-changing write is conditioned
// on the last_login_date that was read.
func (s *StreakService) RecordLogin(ctx context.Context, userID uint) (StreakResult, error) {
	now := s.clock.Now()
	today := clock.DateOf(now)
	db := s.db.WithContext(ctx)

	for attempt := 0; attempt < maxStreakAttempts; attempt++ {
		var rec models.Streak
		exists := true
		if err := db.Where("user_id = ?", userID).Take(&rec).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return StreakResult{}, fmt.Errorf("load streak: %w", err)
			}
			exists = false
			rec = models.Streak{UserID: userID}
		}

		next, kind, event := Advance(rec, exists, today, now)
		applied, err := s.write(db, rec, next, exists, kind, now)
		if err != nil {
			return StreakResult{}, err
		}
		if !applied {
			continue
		}

		s.metrics.transition(kind)
		if kind != TransitionSameDay {
			s.mirror(ctx, userID, next.CurrentStreak, today)
		}
		if event != nil && s.notifier != nil {
			s.notifier.NotifyStreakIncreased(event.UserID, event.Streak)
		}
		return StreakResult{Streak: next, Transition: kind}, nil
	}
	return StreakResult{}, ErrStreakContention
}

// write persists next. It reports false when another request changed the
// row first and the read must be repeated.
func (s *StreakService) write(db *gorm.DB, prev, next models.Streak, exists bool, kind Transition, now time.Time) (bool, error) {
	if !exists {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&next)
		if res.Error != nil {
			return false, fmt.Errorf("create streak: %w", res.Error)
		}
		return res.RowsAffected == 1, nil
	}

	q := db.Model(&models.Streak{}).Where("user_id = ?", prev.UserID)
	if kind == TransitionSameDay {
		// Last write wins on the timestamp.
		if err := q.Updates(map[string]interface{}{"last_login_at": now, "updated_at": now}).Error; err != nil {
			return false, fmt.Errorf("touch streak: %w", err)
		}
		return true, nil
	}

	if prev.LastLoginDate.IsZero() {
		q = q.Where("last_login_date IS NULL")
	} else {
		q = q.Where("last_login_date = ?", prev.LastLoginDate)
	}
	res := q.Updates(map[string]interface{}{
		"current_streak":  next.CurrentStreak,
		"longest_streak":  next.LongestStreak,
		"last_login_date": next.LastLoginDate,
		"last_login_at":   now,
		"login_dates":     next.LoginDates,
		"updated_at":      now,
	})
	if res.Error != nil {
		return false, fmt.Errorf("advance streak: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// mirror copies the streak onto the progression profile. Failure is logged
// only; the streak row stays the source of truth.
func (s *StreakService) mirror(ctx context.Context, userID uint, current int, today clock.Date) {
	db := s.db.WithContext(ctx)
	err := ensureProfile(db, userID)
	if err == nil {
		err = db.Model(&models.Profile{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"streak_days":        current,
			"last_activity_date": today,
		}).Error
	}
	if err != nil {
		s.log.Warn("mirror streak to profile failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// AdminReset zeroes the current streak and clears the login dates. The
// longest streak and the heatmap are kept.
func (s *StreakService) AdminReset(ctx context.Context, userID uint) (models.Streak, error) {
	db := s.db.WithContext(ctx)
	if err := requireUser(db, userID); err != nil {
		return models.Streak{}, err
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := ensureStreak(tx, userID); err != nil {
			return err
		}
		if err := tx.Model(&models.Streak{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"current_streak":  0,
			"last_login_date": nil,
			"last_login_at":   nil,
			"updated_at":      s.clock.Now(),
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Profile{}).Where("user_id = ?", userID).Update("streak_days", 0).Error
	})
	if err != nil {
		return models.Streak{}, fmt.Errorf("reset streak: %w", err)
	}
	s.log.Info("streak reset by admin", zap.Uint("user_id", userID))
	return s.Get(ctx, userID)
}

// Get returns the user's streak, creating the zeroed row when missing.
func (s *StreakService) Get(ctx context.Context, userID uint) (models.Streak, error) {
	db := s.db.WithContext(ctx)
	if err := ensureStreak(db, userID); err != nil {
		return models.Streak{}, fmt.Errorf("ensure streak: %w", err)
	}
	var rec models.Streak
	if err := db.Where("user_id = ?", userID).Take(&rec).Error; err != nil {
		return models.Streak{}, fmt.Errorf("load streak: %w", err)
	}
	return rec, nil
}

// Heatmap returns the distinct login days, oldest first.
func (s *StreakService) Heatmap(ctx context.Context, userID uint) ([]string, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.Dates(), nil
}

// StreakLeaderboardEntry is one learner on the streak boards.
type StreakLeaderboardEntry struct {
	ID            uint       `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	CurrentStreak int        `json:"currentStreak"`
	LongestStreak int        `json:"longestStreak"`
	LastLoginDate clock.Date `json:"lastLoginDate"`
	ProfilePhoto  string     `json:"profilePhoto"`
}

// StreakLeaderboard holds the two orderings shown on the dashboard.
type StreakLeaderboard struct {
	CurrentStreak []StreakLeaderboardEntry `json:"currentStreak"`
	LongestStreak []StreakLeaderboardEntry `json:"longestStreak"`
}

type streakBoardRow struct {
	ID            uint
	Username      string
	DisplayName   string
	Email         string
	AvatarURL     string
	CurrentStreak int
	LongestStreak int
	LastLoginDate clock.Date
}

// Leaderboard lists every non-admin learner that has a streak row.
func (s *StreakService) Leaderboard(ctx context.Context) (StreakLeaderboard, error) {
	q := s.db.WithContext(ctx).
		Table("streaks").
		Select("users.id, users.username, users.display_name, users.email, users.avatar_url, streaks.current_streak, streaks.longest_streak, streaks.last_login_date").
		Joins("JOIN users ON users.id = streaks.user_id")
	if len(s.admins) > 0 {
		q = q.Where("users.username NOT IN ?", s.admins)
	}
	var rows []streakBoardRow
	if err := q.Scan(&rows).Error; err != nil {
		return StreakLeaderboard{}, fmt.Errorf("load streak leaderboard: %w", err)
	}

	entries := make([]StreakLeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		u := models.User{Username: r.Username, DisplayName: r.DisplayName}
		entries = append(entries, StreakLeaderboardEntry{
			ID:            r.ID,
			Name:          u.Name(),
			Email:         r.Email,
			CurrentStreak: r.CurrentStreak,
			LongestStreak: r.LongestStreak,
			LastLoginDate: r.LastLoginDate,
			ProfilePhoto:  profilePhoto(r.AvatarURL, u.Name()),
		})
	}

	byName := append([]StreakLeaderboardEntry(nil), entries...)
	sort.SliceStable(byName, func(i, j int) bool {
		return strings.ToLower(byName[i].Name) < strings.ToLower(byName[j].Name)
	})
	byLongest := append([]StreakLeaderboardEntry(nil), entries...)
	sort.SliceStable(byLongest, func(i, j int) bool {
		if byLongest[i].LongestStreak != byLongest[j].LongestStreak {
			return byLongest[i].LongestStreak > byLongest[j].LongestStreak
		}
		return strings.ToLower(byLongest[i].Name) < strings.ToLower(byLongest[j].Name)
	})
	return StreakLeaderboard{CurrentStreak: byName, LongestStreak: byLongest}, nil
}

func profilePhoto(avatar, name string) string {
	if avatar != "" {
		return avatar
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

func ensureStreak(db *gorm.DB, userID uint) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&models.Streak{UserID: userID}).Error
}

func requireUser(db *gorm.DB, userID uint) error {
	var n int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
