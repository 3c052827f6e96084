package clock

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayFollowsClockLocation(t *testing.T) {
	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	// 2025-03-01 17:30 UTC is already 2025-03-02 in Manila.
	instant := time.Date(2025, 3, 1, 17, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-01", Today(NewFixed(instant)).String())
	assert.Equal(t, "2025-03-02", Today(NewFixed(instant.In(manila))).String())
}

func TestNewSystemRejectsUnknownZone(t *testing.T) {
	_, err := NewSystem("Mars/Olympus")
	assert.Error(t, err)

	sys, err := NewSystem("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, sys.Now().Location())
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-02-28")

	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2023-12-31", MustParseDate("2024-01-01").AddDays(-1).String())
	assert.Equal(t, 2, d.DaysUntil(MustParseDate("2024-03-01")))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
}

func TestDateScan(t *testing.T) {
	var d Date

	require.NoError(t, d.Scan("2025-07-04"))
	assert.Equal(t, "2025-07-04", d.String())

	require.NoError(t, d.Scan([]byte("2025-07-05 00:00:00")))
	assert.Equal(t, "2025-07-05", d.String())

	require.NoError(t, d.Scan(time.Date(2025, 7, 6, 0, 0, 0, 0, time.Local)))
	assert.Equal(t, "2025-07-06", d.String())

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestDateValueAndJSON(t *testing.T) {
	v, err := Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = MustParseDate("2025-01-09").Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-01-09", v)

	type payload struct {
		Last Date `json:"last"`
	}
	b, err := json.Marshal(payload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"last":null}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"last":"2025-01-09"}`), &p))
	assert.Equal(t, MustParseDate("2025-01-09"), p.Last)
}

func TestFixedAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	c.Advance(2 * time.Hour)
	assert.Equal(t, "2025-01-02", Today(c).String())
}
