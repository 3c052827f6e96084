package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/learnquest/clock"
	"github.com/cppla/learnquest/models"
)

func TestAdvance(t *testing.T) {
	today := clock.MustParseDate("2025-03-10")
	now := day("2025-03-10 08:30")
	earlier := day("2025-03-10 07:00")

	t.Run("no record starts at one", func(t *testing.T) {
		next, kind, ev := Advance(models.Streak{UserID: 7}, false, today, now)
		assert.Equal(t, TransitionFirstLogin, kind)
		assert.Nil(t, ev)
		assert.Equal(t, 1, next.CurrentStreak)
		assert.Equal(t, 1, next.LongestStreak)
		assert.Equal(t, today, next.LastLoginDate)
		assert.Equal(t, now, *next.LastLoginAt)
		assert.Equal(t, []string{"2025-03-10"}, next.Dates())
	})

	t.Run("same day only refreshes the timestamp", func(t *testing.T) {
		rec := models.Streak{UserID: 7, CurrentStreak: 4, LongestStreak: 9, LastLoginDate: today, LastLoginAt: &earlier}
		next, kind, ev := Advance(rec, true, today, now)
		assert.Equal(t, TransitionSameDay, kind)
		assert.Nil(t, ev)
		assert.Equal(t, 4, next.CurrentStreak)
		assert.Equal(t, 9, next.LongestStreak)
		assert.Equal(t, today, next.LastLoginDate)
		assert.Equal(t, now, *next.LastLoginAt)
		assert.Equal(t, earlier, *rec.LastLoginAt, "input must not be mutated")
	})

	t.Run("consecutive day increments and emits", func(t *testing.T) {
		rec := models.Streak{UserID: 7, CurrentStreak: 5, LongestStreak: 5, LastLoginDate: today.AddDays(-1)}
		next, kind, ev := Advance(rec, true, today, now)
		assert.Equal(t, TransitionConsecutive, kind)
		require.NotNil(t, ev)
		assert.Equal(t, StreakIncreased{UserID: 7, Streak: 6}, *ev)
		assert.Equal(t, 6, next.CurrentStreak)
		assert.Equal(t, 6, next.LongestStreak)
		assert.Equal(t, today, next.LastLoginDate)
	})

	t.Run("consecutive day below longest keeps longest", func(t *testing.T) {
		rec := models.Streak{UserID: 7, CurrentStreak: 2, LongestStreak: 10, LastLoginDate: today.AddDays(-1)}
		next, _, ev := Advance(rec, true, today, now)
		require.NotNil(t, ev)
		assert.Equal(t, 3, next.CurrentStreak)
		assert.Equal(t, 10, next.LongestStreak)
	})

	t.Run("gap resets to one and keeps longest", func(t *testing.T) {
		rec := models.Streak{UserID: 7, CurrentStreak: 3, LongestStreak: 12, LastLoginDate: today.AddDays(-3)}
		next, kind, ev := Advance(rec, true, today, now)
		assert.Equal(t, TransitionReset, kind)
		assert.Nil(t, ev)
		assert.Equal(t, 1, next.CurrentStreak)
		assert.Equal(t, 12, next.LongestStreak)
		assert.Equal(t, today, next.LastLoginDate)
	})

	t.Run("seeded record without a date is a first login", func(t *testing.T) {
		next, kind, ev := Advance(models.Streak{UserID: 7}, true, today, now)
		assert.Equal(t, TransitionFirstLogin, kind)
		assert.Nil(t, ev)
		assert.Equal(t, 1, next.CurrentStreak)
		assert.Equal(t, 1, next.LongestStreak)
		assert.Equal(t, []string{"2025-03-10"}, next.Dates())
	})

	t.Run("reset record with history resets to one", func(t *testing.T) {
		rec := models.Streak{UserID: 7, LongestStreak: 4}
		rec.LoginDates = rec.WithLoginDate(today.AddDays(-5))
		next, kind, ev := Advance(rec, true, today, now)
		assert.Equal(t, TransitionReset, kind)
		assert.Nil(t, ev)
		assert.Equal(t, 1, next.CurrentStreak)
		assert.Equal(t, 4, next.LongestStreak)
	})

	t.Run("stored date after today is treated as today", func(t *testing.T) {
		rec := models.Streak{UserID: 7, CurrentStreak: 2, LongestStreak: 2, LastLoginDate: today.AddDays(1)}
		next, kind, _ := Advance(rec, true, today, now)
		assert.Equal(t, TransitionSameDay, kind)
		assert.Equal(t, 2, next.CurrentStreak)
	})
}

func TestAdvanceLongestIsMonotonic(t *testing.T) {
	gaps := []int{1, 1, 1, 0, 1, 3, 1, 1, 1, 1, 1, 0, 0, 2, 1, 7, 1, 1, 1, 1, 1, 1, 1}
	rec := models.Streak{UserID: 1}
	exists := false
	today := clock.MustParseDate("2025-01-01")
	prevLongest := 0
	for i, g := range gaps {
		today = today.AddDays(g)
		rec, _, _ = Advance(rec, exists, today, today.Midnight(time.UTC))
		exists = true
		assert.GreaterOrEqual(t, rec.LongestStreak, prevLongest, "step %d", i)
		assert.GreaterOrEqual(t, rec.LongestStreak, rec.CurrentStreak, "step %d", i)
		prevLongest = rec.LongestStreak
	}
	assert.Equal(t, 8, rec.CurrentStreak)
	assert.Equal(t, 8, rec.LongestStreak)
}

func TestRecordLoginAcrossDays(t *testing.T) {
	d, clk := testDeps(t, day("2025-03-01 09:00"))
	notifier := &recordingNotifier{}
	svc := NewStreakService(d, notifier)
	ctx := context.Background()
	const uid = uint(42)

	res, err := svc.RecordLogin(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, TransitionFirstLogin, res.Transition)
	assert.Equal(t, 1, res.Streak.CurrentStreak)

	clk.Advance(3 * time.Hour)
	res, err = svc.RecordLogin(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, TransitionSameDay, res.Transition)
	assert.Equal(t, 1, res.Streak.CurrentStreak)

	for i := 0; i < 5; i++ {
		clk.Advance(24 * time.Hour)
		res, err = svc.RecordLogin(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, TransitionConsecutive, res.Transition)
	}
	assert.Equal(t, 6, res.Streak.CurrentStreak)

	events := notifier.all()
	require.Len(t, events, 5)
	assert.Equal(t, StreakIncreased{UserID: uid, Streak: 6}, events[4])

	stored, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.CurrentStreak)
	assert.Equal(t, 6, stored.LongestStreak)
	assert.Equal(t, clock.MustParseDate("2025-03-06"), stored.LastLoginDate)
	require.NotNil(t, stored.LastLoginAt)

	var profile models.Profile
	require.NoError(t, d.DB.Where("user_id = ?", uid).Take(&profile).Error)
	assert.Equal(t, 6, profile.StreakDays)

	clk.Advance(4 * 24 * time.Hour)
	res, err = svc.RecordLogin(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, TransitionReset, res.Transition)
	assert.Equal(t, 1, res.Streak.CurrentStreak)
	assert.Equal(t, 6, res.Streak.LongestStreak)

	var rows int64
	require.NoError(t, d.DB.Model(&models.Streak{}).Where("user_id = ?", uid).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestRecordLoginConcurrentSameDayIncrementsOnce(t *testing.T) {
	d, clk := testDeps(t, day("2025-03-01 09:00"))
	notifier := &recordingNotifier{}
	svc := NewStreakService(d, notifier)
	ctx := context.Background()

	_, err := svc.RecordLogin(ctx, 5)
	require.NoError(t, err)
	clk.Advance(24 * time.Hour)

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordLogin(ctx, 5)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStreak)
	assert.Len(t, notifier.all(), 1)
}

func TestRecordLoginSeededByUserHook(t *testing.T) {
	d, _ := testDeps(t, day("2025-03-01 09:00"))
	svc := NewStreakService(d, nil)
	u := createUser(t, d.DB, "ada")

	seeded, err := svc.Get(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, seeded.CurrentStreak)
	assert.True(t, seeded.LastLoginDate.IsZero())

	res, err := svc.RecordLogin(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionFirstLogin, res.Transition)
	assert.Equal(t, 1, res.Streak.CurrentStreak)
	assert.Equal(t, 1, res.Streak.LongestStreak)
	assert.Equal(t, 1.0, testutil.ToFloat64(d.Metrics.streakTransitions.WithLabelValues(string(TransitionFirstLogin))))
	assert.Zero(t, testutil.ToFloat64(d.Metrics.streakTransitions.WithLabelValues(string(TransitionReset))))
}

func TestAdminResetKeepsLongest(t *testing.T) {
	d, clk := testDeps(t, day("2025-03-01 09:00"))
	svc := NewStreakService(d, nil)
	ctx := context.Background()
	u := createUser(t, d.DB, "grace")

	for i := 0; i < 3; i++ {
		_, err := svc.RecordLogin(ctx, u.ID)
		require.NoError(t, err)
		clk.Advance(24 * time.Hour)
	}

	reset, err := svc.AdminReset(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reset.CurrentStreak)
	assert.Equal(t, 3, reset.LongestStreak)
	assert.True(t, reset.LastLoginDate.IsZero())
	assert.Nil(t, reset.LastLoginAt)
	assert.Len(t, reset.Dates(), 3, "heatmap survives a reset")

	res, err := svc.RecordLogin(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, TransitionReset, res.Transition)
	assert.Equal(t, 1, res.Streak.CurrentStreak)
	assert.Equal(t, 3, res.Streak.LongestStreak)

	_, err = svc.AdminReset(ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestHeatmapRecordsDistinctDays(t *testing.T) {
	d, clk := testDeps(t, day("2025-03-01 09:00"))
	svc := NewStreakService(d, nil)
	ctx := context.Background()

	for _, step := range []time.Duration{0, time.Hour, 24 * time.Hour, 72 * time.Hour} {
		clk.Advance(step)
		_, err := svc.RecordLogin(ctx, 3)
		require.NoError(t, err)
	}

	dates, err := svc.Heatmap(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-05"}, dates)
}

func TestStreakLeaderboard(t *testing.T) {
	d, _ := testDeps(t, day("2025-03-01 09:00"))
	svc := NewStreakService(d, nil)

	zed := createUser(t, d.DB, "zed")
	amy := createUser(t, d.DB, "amy")
	admin := createUser(t, d.DB, "admin")
	set := func(id uint, current, longest int) {
		require.NoError(t, d.DB.Model(&models.Streak{}).Where("user_id = ?", id).
			Updates(map[string]interface{}{"current_streak": current, "longest_streak": longest}).Error)
	}
	set(zed.ID, 2, 9)
	set(amy.ID, 4, 4)
	set(admin.ID, 50, 50)

	board, err := svc.Leaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, board.CurrentStreak, 2)
	require.Len(t, board.LongestStreak, 2)
	assert.Equal(t, "amy", board.CurrentStreak[0].Name)
	assert.Equal(t, "zed", board.CurrentStreak[1].Name)
	assert.Equal(t, "zed", board.LongestStreak[0].Name)
	assert.Equal(t, 9, board.LongestStreak[0].LongestStreak)
	assert.Contains(t, board.CurrentStreak[0].ProfilePhoto, "ui-avatars.com")
}
