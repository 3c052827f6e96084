package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/models"
	"github.com/cppla/learnquest/utils"
)

// Level is the leveling state derived from a total XP amount.
type Level struct {
	Level          int    `json:"level"`
	CurrentXP      int    `json:"current_xp"`
	XPForNextLevel int    `json:"xp_for_next_level"`
	Rank           string `json:"rank"`
}

// Derive is the single XP rule: every level is perLevel XP wide.
func Derive(totalXP, perLevel int) Level {
	if perLevel <= 0 {
		perLevel = models.DefaultXPForNextLevel
	}
	if totalXP < 0 {
		totalXP = 0
	}
	lvl := totalXP/perLevel + 1
	return Level{
		Level:          lvl,
		CurrentXP:      totalXP % perLevel,
		XPForNextLevel: perLevel,
		Rank:           RankTitle(lvl),
	}
}

// RankTitle maps a level onto its rank.
func RankTitle(level int) string {
	switch {
	case level >= 20:
		return "Diamond"
	case level >= 15:
		return "Platinum"
	case level >= 12:
		return "Gold"
	case level >= 10:
		return "Silver"
	case level >= 5:
		return "Bronze"
	default:
		return models.DefaultRankTitle
	}
}

// LevelBadge is the leaderboard icon for a level.
func LevelBadge(level int) string {
	switch {
	case level >= 15:
		return "⭐"
	case level >= 12:
		return "🔥"
	case level >= 10:
		return "🚀"
	case level >= 5:
		return "💪"
	default:
		return "⚡"
	}
}

// ApplyXP returns p with delta added to its total and every derived field
// recomputed. The total never drops below zero.
func ApplyXP(p models.Profile, delta, perLevel int) models.Profile {
	total := p.TotalXP + delta
	if total < 0 {
		total = 0
	}
	return withTotal(p, total, perLevel)
}

func withTotal(p models.Profile, total, perLevel int) models.Profile {
	lv := Derive(total, perLevel)
	p.TotalXP = total
	p.Level = lv.Level
	p.CurrentLevelXP = lv.CurrentXP
	p.XPForNextLevel = lv.XPForNextLevel
	p.RankTitle = lv.Rank
	return p
}

// XPGrant is one ledger entry to append. EventKey is unique per user and
// makes the grant idempotent.
type XPGrant struct {
	UserID    uint
	Source    string
	SourceRef string
	EventKey  string
	Amount    int
	Note      string
}

func (g XPGrant) validate() error {
	if g.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(g.Source) == "" || strings.TrimSpace(g.EventKey) == "" {
		return ErrInvalidSource
	}
	return nil
}

// GrantResult reports whether the grant was new and the resulting profile.
type GrantResult struct {
	Granted bool
	Profile models.Profile
}

// ProgressionService folds the XP ledger into user profiles.
type ProgressionService struct {
	db        *gorm.DB
	clock     clock.Clock
	cache     *utils.Cache
	metrics   *Metrics
	log       *zap.Logger
	perLevel  int
	boardSize int
	boardTTL  time.Duration
}

func NewProgressionService(d Deps) *ProgressionService {
	return &ProgressionService{
		db:        d.DB,
		clock:     d.Clock,
		cache:     d.Cache,
		metrics:   d.Metrics,
		log:       d.logger().Named("progression"),
		perLevel:  d.Config.XPPerLevel,
		boardSize: d.Config.LeaderboardSize,
		boardTTL:  time.Duration(d.Config.LeaderboardCacheSeconds) * time.Second,
	}
}

// PerLevel is the configured level width.
func (s *ProgressionService) PerLevel() int {
	if s.perLevel <= 0 {
		return models.DefaultXPForNextLevel
	}
	return s.perLevel
}

// Grant appends g to the ledger and refreshes the profile. Replaying the
// same EventKey is a no-op that returns Granted=false.
func (s *ProgressionService) Grant(ctx context.Context, g XPGrant) (GrantResult, error) {
	if err := g.validate(); err != nil {
		return GrantResult{}, err
	}
	var res GrantResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.grantTx(tx, g)
		return err
	})
	if err != nil {
		return GrantResult{}, fmt.Errorf("grant xp: %w", err)
	}
	if res.Granted {
		s.granted(ctx, g)
	}
	return res, nil
}

// grantTx runs inside the caller's transaction.
func (s *ProgressionService) grantTx(tx *gorm.DB, g XPGrant) (GrantResult, error) {
	if _, err := lockProfile(tx, g.UserID); err != nil {
		return GrantResult{}, err
	}
	event := models.XPEvent{
		UserID:    g.UserID,
		EventKey:  g.EventKey,
		Source:    g.Source,
		SourceRef: g.SourceRef,
		Amount:    g.Amount,
		Note:      utils.SanitizeText(g.Note),
		CreatedAt: s.clock.Now(),
		UpdatedAt: s.clock.Now(),
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_key"}},
		DoNothing: true,
	}).Create(&event)
	if res.Error != nil {
		return GrantResult{}, fmt.Errorf("append xp event: %w", res.Error)
	}
	p, err := s.recomputeTx(tx, g.UserID)
	if err != nil {
		return GrantResult{}, err
	}
	return GrantResult{Granted: res.RowsAffected == 1, Profile: p}, nil
}

// granted runs the after-commit side effects of a new ledger entry.
func (s *ProgressionService) granted(ctx context.Context, g XPGrant) {
	s.metrics.xp(g.Source, g.Amount)
	s.cache.InvalidateByPrefix(ctx, leaderboardCachePrefix)
	s.log.Info("xp granted",
		zap.Uint("user_id", g.UserID),
		zap.String("source", g.Source),
		zap.String("event_key", g.EventKey),
		zap.Int("amount", g.Amount))
}

// recomputeTx folds the ledger and writes the derived fields.
func (s *ProgressionService) recomputeTx(tx *gorm.DB, userID uint) (models.Profile, error) {
	p, err := lockProfile(tx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	var total int64
	if err := tx.Model(&models.XPEvent{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error; err != nil {
		return models.Profile{}, fmt.Errorf("sum xp ledger: %w", err)
	}
	next := withTotal(p, int(total), s.PerLevel())
	next.LastActivityDate = clock.Today(s.clock)
	if err := tx.Model(&models.Profile{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"total_xp":           next.TotalXP,
		"level":              next.Level,
		"current_level_xp":   next.CurrentLevelXP,
		"xp_for_next_level":  next.XPForNextLevel,
		"rank_title":         next.RankTitle,
		"last_activity_date": next.LastActivityDate,
		"updated_at":         s.clock.Now(),
	}).Error; err != nil {
		return models.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return next, nil
}

// SetAssignmentGrade records the XP of a graded submission. A regrade
// replaces the previous amount.
func (s *ProgressionService) SetAssignmentGrade(ctx context.Context, userID uint, submissionID string, xp int) (models.Profile, error) {
	if xp < 0 {
		return models.Profile{}, ErrInvalidAmount
	}
	if strings.TrimSpace(submissionID) == "" {
		return models.Profile{}, ErrInvalidSource
	}
	db := s.db.WithContext(ctx)
	if err := requireUser(db, userID); err != nil {
		return models.Profile{}, err
	}
	key := models.XPSourceAssignment + ":" + submissionID
	var (
		p     models.Profile
		delta int
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}
		var prev models.XPEvent
		err := tx.Where("user_id = ? AND event_key = ?", userID, key).Take(&prev).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		delta = xp - prev.Amount

		event := models.XPEvent{
			UserID:    userID,
			EventKey:  key,
			Source:    models.XPSourceAssignment,
			SourceRef: submissionID,
			Amount:    xp,
			CreatedAt: s.clock.Now(),
			UpdatedAt: s.clock.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "event_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).Create(&event).Error; err != nil {
			return fmt.Errorf("upsert assignment xp: %w", err)
		}
		p, err = s.recomputeTx(tx, userID)
		return err
	})
	if err != nil {
		return models.Profile{}, fmt.Errorf("set assignment grade: %w", err)
	}
	s.metrics.xp(models.XPSourceAssignment, delta)
	s.cache.InvalidateByPrefix(ctx, leaderboardCachePrefix)
	return p, nil
}

// RemoveAssignmentGrade drops a submission's XP from the ledger.
func (s *ProgressionService) RemoveAssignmentGrade(ctx context.Context, userID uint, submissionID string) (models.Profile, error) {
	db := s.db.WithContext(ctx)
	if err := requireUser(db, userID); err != nil {
		return models.Profile{}, err
	}
	key := models.XPSourceAssignment + ":" + submissionID
	var p models.Profile
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := lockProfile(tx, userID); err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND event_key = ?", userID, key).Delete(&models.XPEvent{}).Error; err != nil {
			return err
		}
		var err error
		p, err = s.recomputeTx(tx, userID)
		return err
	})
	if err != nil {
		return models.Profile{}, fmt.Errorf("remove assignment grade: %w", err)
	}
	s.cache.InvalidateByPrefix(ctx, leaderboardCachePrefix)
	return p, nil
}

// CompleteChallenge grants a challenge reward once per user and challenge.
func (s *ProgressionService) CompleteChallenge(ctx context.Context, userID uint, challengeID string, reward int) (GrantResult, error) {
	if err := requireUser(s.db.WithContext(ctx), userID); err != nil {
		return GrantResult{}, err
	}
	return s.Grant(ctx, XPGrant{
		UserID:    userID,
		Source:    models.XPSourceChallenge,
		SourceRef: challengeID,
		EventKey:  models.XPSourceChallenge + ":" + challengeID,
		Amount:    reward,
		Note:      "Challenge completed",
	})
}

// Profile loads the user's profile, creating the default one when missing.
func (s *ProgressionService) Profile(ctx context.Context, userID uint) (models.Profile, error) {
	db := s.db.WithContext(ctx)
	if err := ensureProfile(db, userID); err != nil {
		return models.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	var p models.Profile
	if err := db.Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return models.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// Recompute rebuilds the profile from the ledger.
func (s *ProgressionService) Recompute(ctx context.Context, userID uint) (models.Profile, error) {
	db := s.db.WithContext(ctx)
	if err := requireUser(db, userID); err != nil {
		return models.Profile{}, err
	}
	var p models.Profile
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = s.recomputeTx(tx, userID)
		return err
	})
	if err != nil {
		return models.Profile{}, fmt.Errorf("recompute profile: %w", err)
	}
	s.cache.InvalidateByPrefix(ctx, leaderboardCachePrefix)
	return p, nil
}

// Events lists the user's ledger, newest first.
func (s *ProgressionService) Events(ctx context.Context, userID uint, limit int) ([]models.XPEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var events []models.XPEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list xp events: %w", err)
	}
	return events, nil
}

const leaderboardCachePrefix = "leaderboard:"

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
	Badge  string `json:"badge"`
	IsUser bool   `json:"is_user"`
}

type xpBoardRow struct {
	ID          uint
	Username    string
	DisplayName string
	TotalXP     int
}

// Leaderboard returns the top learners by total XP. viewerID marks the
// caller's own row.
func (s *ProgressionService) Leaderboard(ctx context.Context, viewerID uint) ([]LeaderboardEntry, error) {
	size := s.boardSize
	if size <= 0 {
		size = 10
	}
	key := fmt.Sprintf("%sxp:%d", leaderboardCachePrefix, size)

	var entries []LeaderboardEntry
	if !s.cache.GetJSON(ctx, key, &entries) {
		var rows []xpBoardRow
		if err := s.db.WithContext(ctx).
			Table("users").
			Select("users.id, users.username, users.display_name, COALESCE(user_profiles.total_xp, 0) AS total_xp").
			Joins("LEFT JOIN user_profiles ON user_profiles.user_id = users.id").
			Order("total_xp DESC, users.id ASC").
			Limit(size).
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("load leaderboard: %w", err)
		}
		entries = make([]LeaderboardEntry, 0, len(rows))
		for i, r := range rows {
			lv := Derive(r.TotalXP, s.PerLevel())
			entries = append(entries, LeaderboardEntry{
				Rank:   i + 1,
				UserID: r.ID,
				Name:   models.User{Username: r.Username, DisplayName: r.DisplayName}.Name(),
				XP:     r.TotalXP,
				Level:  lv.Level,
				Badge:  LevelBadge(lv.Level),
			})
		}
		s.cache.SetJSON(ctx, key, entries, s.boardTTL)
	}
	for i := range entries {
		entries[i].IsUser = entries[i].UserID == viewerID
	}
	return entries, nil
}

// ensureProfile creates the default profile if the user has none.
func ensureProfile(db *gorm.DB, userID uint) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(models.NewProfile(userID)).Error
}

// lockProfile makes sure the profile exists and row-locks it for the rest
// of tx. All XP writers of a user serialize here.
func lockProfile(tx *gorm.DB, userID uint) (models.Profile, error) {
	if err := ensureProfile(tx, userID); err != nil {
		return models.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	var p models.Profile
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).Take(&p).Error; err != nil {
		return models.Profile{}, fmt.Errorf("lock profile: %w", err)
	}
	return p, nil
}
