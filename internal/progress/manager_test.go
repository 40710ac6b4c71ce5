package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	store := storage.NewStore(storage.NewMemoryAdapter())
	t.Cleanup(func() { store.Close() })
	m := NewManager(store)
	m.Load()
	return m, store
}

func TestLevelForXP_PureAndMonotonic(t *testing.T) {
	prevLevel := 0
	for xp := 0; xp <= 15000; xp += 50 {
		level, name, _ := LevelForXP(xp)
		require.GreaterOrEqual(t, level, prevLevel, "level decreased at xp=%d", xp)
		require.NotEmpty(t, name)
		prevLevel = level
	}

	// Order of additions does not matter, only the sum.
	a, _ := addSequence(t, []int{10, 400, 90, 2000})
	b, _ := addSequence(t, []int{2000, 90, 400, 10})
	assert.Equal(t, a, b)
}

func addSequence(t *testing.T, amounts []int) (int, int) {
	m, _ := newTestManager(t)
	for _, amount := range amounts {
		_, _, err := m.AddXP(amount)
		require.NoError(t, err)
	}
	snap := m.Snapshot()
	return snap.State.Level, snap.State.TotalXP
}

func TestAddXP_ZeroNeverLevelsUp(t *testing.T) {
	m, _ := newTestManager(t)

	leveledUp, _, err := m.AddXP(0)
	require.NoError(t, err)
	assert.False(t, leveledUp)

	// Even sitting exactly on a boundary.
	_, _, err = m.AddXP(100)
	require.NoError(t, err)
	leveledUp, _, err = m.AddXP(0)
	require.NoError(t, err)
	assert.False(t, leveledUp)
}

func TestAddXP_ReportsLevelUp(t *testing.T) {
	m, _ := newTestManager(t)

	leveledUp, level, err := m.AddXP(50)
	require.NoError(t, err)
	assert.False(t, leveledUp)
	assert.Equal(t, 1, level)

	leveledUp, level, err = m.AddXP(100)
	require.NoError(t, err)
	assert.True(t, leveledUp)
	assert.Equal(t, 2, level)
}

func TestAddXP_NegativeRejected(t *testing.T) {
	m, _ := newTestManager(t)

	_, _, err := m.AddXP(-10)
	var verr *state.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Equal(t, 0, m.Snapshot().State.TotalXP)
}

func TestAddBadge_Idempotent(t *testing.T) {
	m, _ := newTestManager(t)

	original := Badge{ID: "first-interview", Name: "First Interview", Icon: "star", Color: "gold", EarnedAt: time.Now()}
	m.AddBadge(original)
	m.AddBadge(Badge{ID: "first-interview", Name: "CHANGED", Icon: "x", Color: "red", EarnedAt: time.Now().Add(time.Hour)})

	badges := m.Snapshot().State.Badges
	require.Len(t, badges, 1)
	assert.Equal(t, "First Interview", badges[0].Name, "original badge must be unmodified")
}

func TestAddAchievement_Overwrites(t *testing.T) {
	m, _ := newTestManager(t)

	p1 := 40.0
	p2 := 80.0
	m.AddAchievement(Achievement{ID: "streak-7", Name: "Week Streak", Progress: &p1})
	m.AddAchievement(Achievement{ID: "streak-7", Name: "Week Streak", Progress: &p2})

	achievements := m.Snapshot().State.Achievements
	require.Len(t, achievements, 1)
	require.NotNil(t, achievements[0].Progress)
	assert.Equal(t, 80.0, *achievements[0].Progress, "latest progress wins")
}

func TestRecordInterviewScore_RunningAverage(t *testing.T) {
	m, _ := newTestManager(t)

	m.RecordInterviewScore(80)
	assert.Equal(t, 80.0, m.Snapshot().State.AverageScore, "first score is the mean")
	assert.Equal(t, 1, m.Snapshot().State.InterviewsCompleted)

	m.RecordInterviewScore(90)
	assert.Equal(t, 85.0, m.Snapshot().State.AverageScore)

	m.RecordInterviewScore(70)
	// (85*2 + 70) / 3 = 80.0
	assert.Equal(t, 80.0, m.Snapshot().State.AverageScore)
	assert.Equal(t, 3, m.Snapshot().State.InterviewsCompleted)
}

func TestRecordInterviewScore_RoundsToOneDecimal(t *testing.T) {
	m, _ := newTestManager(t)

	m.RecordInterviewScore(80)
	m.RecordInterviewScore(85)
	m.RecordInterviewScore(92)
	// (80+85+92)/3 = 85.666... -> 85.7
	assert.Equal(t, 85.7, m.Snapshot().State.AverageScore)
}

func TestLoad_RecomputesLevelFromXP(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	store := storage.NewStore(adapter)
	defer store.Close()

	// Persist a record whose stored level disagrees with its XP.
	tampered := State{TotalXP: 600, Level: 1, LevelName: "Rookie"}
	encoded, err := storage.EncodeRecord(tampered)
	require.NoError(t, err)
	require.NoError(t, adapter.Set(state.KeyProgress, encoded))

	m := NewManager(store)
	m.Load()

	snap := m.Snapshot()
	wantLevel, wantName, _ := LevelForXP(600)
	assert.Equal(t, wantLevel, snap.State.Level)
	assert.Equal(t, wantName, snap.State.LevelName)
}

func TestLoad_ReadFailureSurfacesError(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	adapter.ReadErr = errors.New("io failure")
	store := storage.NewStore(adapter)
	defer store.Close()

	m := NewManager(store)
	m.Load()

	snap := m.Snapshot()
	assert.True(t, snap.Loaded, "load must complete even on failure")
	assert.Contains(t, snap.Err, "io failure")
}

func TestSubscribe_ReceivesSnapshotPerMutation(t *testing.T) {
	m, _ := newTestManager(t)

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	m.AddXP(25)
	snap := <-ch
	assert.Equal(t, 25, snap.State.TotalXP)

	m.IncrementModules()
	snap = <-ch
	assert.Equal(t, 1, snap.State.ModulesCompleted)
}

func TestPersistence_Roundtrip(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	store := storage.NewStore(adapter)
	defer store.Close()

	m := NewManager(store)
	m.Load()
	m.AddXP(300)
	m.RecordInterviewScore(75)
	store.Flush()

	reloaded := NewManager(store)
	reloaded.Load()
	snap := reloaded.Snapshot()
	assert.Equal(t, 300, snap.State.TotalXP)
	assert.Equal(t, 75.0, snap.State.AverageScore)
	assert.Equal(t, 1, snap.State.InterviewsCompleted)
}
