package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cppla/learnquest/clock"
)

func TestWithLoginDateAppendsOnce(t *testing.T) {
	var s Streak
	d := clock.MustParseDate("2025-01-31")

	s.LoginDates = s.WithLoginDate(d)
	s.LoginDates = s.WithLoginDate(d)
	s.LoginDates = s.WithLoginDate(d.AddDays(1))

	assert.Equal(t, []string{"2025-01-31", "2025-02-01"}, s.Dates())
}

func TestWithLoginDateKeepsNewestEntries(t *testing.T) {
	var s Streak
	start := clock.MustParseDate("2024-01-01")
	for i := 0; i < MaxLoginDates+10; i++ {
		s.LoginDates = s.WithLoginDate(start.AddDays(i))
	}
	dates := s.Dates()
	assert.Len(t, dates, MaxLoginDates)
	assert.Equal(t, start.AddDays(10).String(), dates[0])
	assert.Equal(t, start.AddDays(MaxLoginDates+9).String(), dates[len(dates)-1])
}

func TestDatesToleratesBadJSON(t *testing.T) {
	s := Streak{LoginDates: []byte(`{"not":"a list"}`)}
	assert.Equal(t, []string{}, s.Dates())
}

func TestNewProfileDefaults(t *testing.T) {
	p := NewProfile(3)
	assert.Equal(t, uint(3), p.UserID)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, DefaultXPForNextLevel, p.XPForNextLevel)
	assert.Equal(t, DefaultRankTitle, p.RankTitle)
	assert.Equal(t, "user_profiles", p.TableName())
}
