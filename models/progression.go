package models

import (
	"time"

	"github.com/cppla/learnquest/clock"
)

// Profile is the per-user leveling state. Every numeric field except
// StreakDays is derived from the XP ledger.
type Profile struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	UserID           uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	TotalXP          int        `gorm:"column:total_xp;not null;default:0;index" json:"total_xp"`
	Level            int        `gorm:"not null;default:1" json:"level"`
	CurrentLevelXP   int        `gorm:"column:current_level_xp;not null;default:0" json:"current_level_xp"`
	XPForNextLevel   int        `gorm:"column:xp_for_next_level;not null;default:100" json:"xp_for_next_level"`
	StreakDays       int        `gorm:"not null;default:0" json:"streak_days"`
	RankTitle        string     `gorm:"size:32;not null;default:'Plastic'" json:"rank_title"`
	LastActivityDate clock.Date `json:"last_activity_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Profile) TableName() string { return "user_profiles" }

// DefaultXPForNextLevel is the level width of a fresh profile.
const DefaultXPForNextLevel = 100

// DefaultRankTitle is the rank of a level 1 profile.
const DefaultRankTitle = "Plastic"

// NewProfile returns the default profile of a user with no XP.
func NewProfile(userID uint) *Profile {
	return &Profile{
		UserID:         userID,
		Level:          1,
		XPForNextLevel: DefaultXPForNextLevel,
		RankTitle:      DefaultRankTitle,
	}
}

// XP sources recorded on the ledger.
const (
	XPSourceDailyBonus = "daily_bonus"
	XPSourceAssignment = "assignment"
	XPSourceChallenge  = "challenge"
	XPSourceAdmin      = "admin"
)

// XPEvent is one append-only entry of the XP ledger. EventKey makes each
// grant idempotent per user; assignment grades are the only rows whose
// Amount is rewritten (on regrade).
type XPEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_xp_user_key,priority:1;index" json:"user_id"`
	EventKey  string    `gorm:"size:128;not null;uniqueIndex:idx_xp_user_key,priority:2" json:"event_key"`
	Source    string    `gorm:"size:32;not null;index" json:"source"`
	SourceRef string    `gorm:"size:64" json:"source_ref"`
	Amount    int       `gorm:"not null" json:"amount"`
	Note      string    `gorm:"size:255" json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (XPEvent) TableName() string { return "xp_events" }

// DailyBonusClaim is the once-per-day bonus record. The composite unique
// index is the race guard for concurrent claims.
type DailyBonusClaim struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;uniqueIndex:idx_bonus_user_date,priority:1;index" json:"user_id"`
	BonusDate clock.Date `gorm:"not null;uniqueIndex:idx_bonus_user_date,priority:2;index" json:"bonus_date"`
	XPAwarded int        `gorm:"not null;default:20" json:"xp_awarded"`
	ClaimedAt time.Time  `gorm:"not null" json:"claimed_at"`
}

func (DailyBonusClaim) TableName() string { return "daily_login_bonuses" }
