package progress

import (
	"math"
	"sync"
	"time"

	"prepcoach/internal/logging"
	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

// Achievement is keyed by ID. Re-adding an existing ID overwrites the
// stored entry in place (update semantics).
type Achievement struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	EarnedAt    *time.Time `json:"earnedAt,omitempty"`
	Progress    *float64   `json:"progress,omitempty"` // 0-100
}

// Badge is keyed by ID. Re-adding an existing ID is a no-op
// (idempotent-insert semantics - deliberately different from Achievement).
type Badge struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Icon     string    `json:"icon"`
	Color    string    `json:"color"`
	EarnedAt time.Time `json:"earnedAt"`
}

// State is the progression record. Level, LevelName, and XPToNext are
// derived from TotalXP and recomputed on every mutation and load.
type State struct {
	TotalXP             int           `json:"totalXp"`
	Level               int           `json:"level"`
	LevelName           string        `json:"levelName"`
	XPToNext            int           `json:"xpToNextLevel"`
	InterviewsCompleted int           `json:"interviewsCompleted"`
	ModulesCompleted    int           `json:"modulesCompleted"`
	AverageScore        float64       `json:"averageScore"`
	Achievements        []Achievement `json:"achievements"`
	Badges              []Badge       `json:"badges"`
}

// Snapshot is the published view of the manager: the state plus load
// status and the visible error field for failed loads.
type Snapshot struct {
	State  State
	Loaded bool
	Err    string
}

// Manager owns the progression record. All mutations persist through the
// async store optimistically and publish a snapshot to subscribers.
type Manager struct {
	mu       sync.Mutex
	store    *storage.Store
	notifier *state.Notifier[Snapshot]
	st       State
	loaded   bool
	loadErr  string
}

// NewManager creates a progression manager over the given store.
func NewManager(store *storage.Store) *Manager {
	return &Manager{
		store:    store,
		notifier: state.NewNotifier[Snapshot](),
		st:       defaultState(),
	}
}

func defaultState() State {
	level, name, toNext := LevelForXP(0)
	return State{
		Level:     level,
		LevelName: name,
		XPToNext:  toNext,
	}
}

// Load reads the persisted progression record. A read failure surfaces
// on the snapshot's Err field; the manager still reports loaded so the
// app never blocks on a broken store.
func (m *Manager) Load() {
	timer := logging.StartTimer(logging.CategoryProgress, "Load")
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadErr = ""
	value, ok, err := m.store.Get(state.KeyProgress)
	if err != nil {
		readErr := &state.StorageReadError{Key: state.KeyProgress, Err: err}
		logging.Get(logging.CategoryProgress).Error("Load failed: %v", readErr)
		m.loadErr = readErr.Error()
	} else if ok {
		var st State
		if err := storage.DecodeRecord(value, &st); err != nil {
			logging.Get(logging.CategoryProgress).Error("Corrupt progress record: %v", err)
			m.loadErr = (&state.StorageReadError{Key: state.KeyProgress, Err: err}).Error()
		} else {
			// Level is a pure function of XP; never trust the stored one.
			st.Level, st.LevelName, st.XPToNext = LevelForXP(st.TotalXP)
			m.st = st
		}
	}

	m.loaded = true
	logging.ProgressDebug("Loaded: xp=%d level=%d interviews=%d", m.st.TotalXP, m.st.Level, m.st.InterviewsCompleted)
	m.publishLocked()
}

// AddXP adds to cumulative XP and recomputes the level. Returns whether
// the level increased and the resulting level number. Negative amounts
// are rejected with a ValidationError.
func (m *Manager) AddXP(amount int) (leveledUp bool, newLevel int, err error) {
	if amount < 0 {
		return false, 0, &state.ValidationError{Field: "amount", Reason: "XP amount must not be negative"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	oldLevel := m.st.Level
	m.st.TotalXP += amount
	m.st.Level, m.st.LevelName, m.st.XPToNext = LevelForXP(m.st.TotalXP)

	leveledUp = m.st.Level > oldLevel
	logging.Audit().XPAdded(amount, m.st.TotalXP, m.st.Level, leveledUp)
	if leveledUp {
		logging.Progress("Level up: %d -> %d (%s)", oldLevel, m.st.Level, m.st.LevelName)
	}

	m.persistLocked()
	m.publishLocked()
	return leveledUp, m.st.Level, nil
}

// IncrementInterviews bumps the completed-interview counter.
func (m *Manager) IncrementInterviews() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.InterviewsCompleted++
	m.persistLocked()
	m.publishLocked()
}

// IncrementModules bumps the completed-module counter.
func (m *Manager) IncrementModules() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.ModulesCompleted++
	m.persistLocked()
	m.publishLocked()
}

// UpdateAverageScore folds newScore into the running mean using the
// CURRENT interview counter as the old count, rounded to one decimal.
//
// Contract: call this BEFORE IncrementInterviews for the same interview,
// or the mean is computed against the wrong denominator. Prefer
// RecordInterviewScore, which enforces the ordering.
func (m *Manager) UpdateAverageScore(newScore float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateAverageLocked(newScore)
	m.persistLocked()
	m.publishLocked()
}

// RecordInterviewScore folds score into the running average and then
// increments the interview counter, in the only order that keeps the
// mean correct. This is the entry point the engine uses when an
// interview finishes.
func (m *Manager) RecordInterviewScore(score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updateAverageLocked(score)
	m.st.InterviewsCompleted++

	logging.ProgressDebug("Recorded interview score %.1f (count=%d avg=%.1f)",
		score, m.st.InterviewsCompleted, m.st.AverageScore)

	m.persistLocked()
	m.publishLocked()
}

func (m *Manager) updateAverageLocked(newScore float64) {
	oldCount := m.st.InterviewsCompleted
	if oldCount == 0 {
		m.st.AverageScore = roundTenth(newScore)
		return
	}
	mean := (m.st.AverageScore*float64(oldCount) + newScore) / float64(oldCount+1)
	m.st.AverageScore = roundTenth(mean)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// AddAchievement upserts by ID: an existing achievement is replaced in
// place, otherwise the new one is appended.
func (m *Manager) AddAchievement(a Achievement) {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := false
	for i := range m.st.Achievements {
		if m.st.Achievements[i].ID == a.ID {
			m.st.Achievements[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		m.st.Achievements = append(m.st.Achievements, a)
	}

	logging.Audit().Log(logging.AuditEvent{
		EventType: logging.AuditAchievementUpsert,
		Category:  string(logging.CategoryProgress),
		Target:    a.ID,
		Success:   true,
		Message:   "Achievement upserted: " + a.ID,
	})

	m.persistLocked()
	m.publishLocked()
}

// AddBadge inserts a badge if its ID is absent; an existing badge is
// left untouched and the call is a no-op.
func (m *Manager) AddBadge(b Badge) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.st.Badges {
		if existing.ID == b.ID {
			logging.ProgressDebug("Badge %s already earned, skipping", b.ID)
			return
		}
	}
	m.st.Badges = append(m.st.Badges, b)
	logging.Audit().BadgeEarned(b.ID)

	m.persistLocked()
	m.publishLocked()
}

// Reset restores defaults in memory. The engine removes the persisted
// key as part of the sign-out clear.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = defaultState()
	m.loadErr = ""
	m.publishLocked()
}

// Snapshot returns the current published view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every mutation.
func (m *Manager) Subscribe() <-chan Snapshot {
	return m.notifier.Subscribe()
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch <-chan Snapshot) {
	m.notifier.Unsubscribe(ch)
}

func (m *Manager) snapshotLocked() Snapshot {
	st := m.st
	st.Achievements = append([]Achievement(nil), m.st.Achievements...)
	st.Badges = append([]Badge(nil), m.st.Badges...)
	return Snapshot{State: st, Loaded: m.loaded, Err: m.loadErr}
}

func (m *Manager) persistLocked() {
	encoded, err := storage.EncodeRecord(m.st)
	if err != nil {
		logging.Get(logging.CategoryProgress).Error("Failed to encode progress record: %v", err)
		return
	}
	m.store.Set(state.KeyProgress, encoded)
}

func (m *Manager) publishLocked() {
	m.notifier.Publish(m.snapshotLocked())
}
