package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Store, *time.Time) {
	t.Helper()
	store := storage.NewStore(storage.NewMemoryAdapter())
	t.Cleanup(func() { store.Close() })

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	m := NewManager(store, 30)
	m.Clock = func() time.Time { return now }
	m.Load()
	return m, store, &now
}

func TestRecordActivity_SameDayIdempotent(t *testing.T) {
	m, _, _ := newTestManager(t)

	first := m.RecordActivity()
	second := m.RecordActivity()

	assert.Equal(t, 1, first)
	assert.Equal(t, first, second, "same-day repeat must return the identical streak")
	assert.Len(t, m.Snapshot().State.History, 1, "no duplicate history entry for the same day")
}

func TestRecordActivity_GapResets(t *testing.T) {
	m, _, now := newTestManager(t)

	// Day N, N+1, N+3 -> 1, 2, 1
	assert.Equal(t, 1, m.RecordActivity())
	*now = now.AddDate(0, 0, 1)
	assert.Equal(t, 2, m.RecordActivity())
	*now = now.AddDate(0, 0, 2)
	assert.Equal(t, 1, m.RecordActivity())

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.State.Longest, "longest streak survives the reset")
}

func TestRecordActivity_LongestTracksMax(t *testing.T) {
	m, _, now := newTestManager(t)

	for i := 0; i < 5; i++ {
		m.RecordActivity()
		*now = now.AddDate(0, 0, 1)
	}
	snap := m.Snapshot()
	assert.Equal(t, 5, snap.State.Current)
	assert.Equal(t, 5, snap.State.Longest)
}

func TestHistory_CappedAt30Chronological(t *testing.T) {
	m, _, now := newTestManager(t)

	for i := 0; i < 45; i++ {
		m.RecordActivity()
		*now = now.AddDate(0, 0, 1)
	}

	history := m.Snapshot().State.History
	require.Len(t, history, 30, "history never exceeds its cap")

	// Chronological order, newest last; the oldest 15 dropped silently.
	for i := 1; i < len(history); i++ {
		assert.Less(t, history[i-1].Date, history[i].Date)
	}
}

func TestLoad_ResetsBrokenStreak(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	store := storage.NewStore(adapter)
	defer store.Close()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	staleDate := now.AddDate(0, 0, -3).Format(dayFormat)
	persisted := State{
		Current:          7,
		Longest:          9,
		LastActivityDate: staleDate,
		History:          []DayEntry{{Date: staleDate, Completed: true}},
	}
	encoded, err := storage.EncodeRecord(persisted)
	require.NoError(t, err)
	require.NoError(t, adapter.Set(state.KeyStreak, encoded))

	m := NewManager(store, 30)
	m.Clock = func() time.Time { return now }
	m.Load()

	snap := m.Snapshot()
	assert.Equal(t, 0, snap.State.Current, "broken chain resets to 0 at load")
	assert.Equal(t, 9, snap.State.Longest, "longest untouched")
	assert.Len(t, snap.State.History, 1, "history untouched")

	// The reset is persisted immediately, not just in memory.
	value, ok, err := adapter.Get(state.KeyStreak)
	require.NoError(t, err)
	require.True(t, ok)
	var reloaded State
	require.NoError(t, storage.DecodeRecord(value, &reloaded))
	assert.Equal(t, 0, reloaded.Current)
}

func TestLoad_KeepsStreakFromYesterday(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	store := storage.NewStore(adapter)
	defer store.Close()

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	yesterday := now.AddDate(0, 0, -1).Format(dayFormat)
	encoded, err := storage.EncodeRecord(State{Current: 4, Longest: 4, LastActivityDate: yesterday})
	require.NoError(t, err)
	require.NoError(t, adapter.Set(state.KeyStreak, encoded))

	m := NewManager(store, 30)
	m.Clock = func() time.Time { return now }
	m.Load()

	assert.Equal(t, 4, m.Snapshot().State.Current)

	// Recording today extends it.
	assert.Equal(t, 5, m.RecordActivity())
}

func TestStreakStatus(t *testing.T) {
	m, _, now := newTestManager(t)

	status := m.StreakStatus()
	assert.False(t, status.Active, "no activity yet")

	m.RecordActivity()
	status = m.StreakStatus()
	require.True(t, status.Active)
	// Clock is 15:00 local; 9 hours to midnight.
	assert.Equal(t, 9, status.HoursRemaining)

	// 15:30 -> 8.5h remaining, reported as ceiling 9.
	*now = now.Add(30 * time.Minute)
	status = m.StreakStatus()
	assert.Equal(t, 9, status.HoursRemaining)

	// Active through the whole next day.
	*now = now.AddDate(0, 0, 1)
	status = m.StreakStatus()
	assert.True(t, status.Active)

	// Two days later: inactive.
	*now = now.AddDate(0, 0, 1)
	status = m.StreakStatus()
	assert.False(t, status.Active)
	assert.Equal(t, 0, status.HoursRemaining)
}
