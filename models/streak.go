package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/cppla/learnquest/clock"
)

// MaxLoginDates bounds the heatmap history kept on a streak row.
const MaxLoginDates = 366

// Streak stores the consecutive-day login streak of one user.
type Streak struct {
	ID            uint           `gorm:"primaryKey" json:"-"`
	UserID        uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak int            `gorm:"not null;default:0;index" json:"current_streak"`
	LongestStreak int            `gorm:"not null;default:0;index" json:"longest_streak"`
	LastLoginDate clock.Date     `json:"last_login_date"`
	LastLoginAt   *time.Time     `json:"last_login_at"`
	LoginDates    datatypes.JSON `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Dates decodes the heatmap history. Malformed history reads as empty.
func (s Streak) Dates() []string {
	if len(s.LoginDates) == 0 {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal(s.LoginDates, &out); err != nil {
		return []string{}
	}
	return out
}

// WithLoginDate returns the heatmap history with day appended once,
// trimmed to the newest MaxLoginDates entries.
func (s Streak) WithLoginDate(day clock.Date) datatypes.JSON {
	dates := s.Dates()
	key := day.String()
	if n := len(dates); n > 0 && dates[n-1] == key {
		return s.LoginDates
	}
	dates = append(dates, key)
	if len(dates) > MaxLoginDates {
		dates = dates[len(dates)-MaxLoginDates:]
	}
	b, _ := json.Marshal(dates)
	return datatypes.JSON(b)
}
