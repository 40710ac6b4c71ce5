// Package streak implements the daily-activity streak manager: a
// consecutive-day counter, the longest streak on record, and a capped
// day-by-day history.
//
// Calendar days are computed from the local wall clock as date-only
// strings. Activity near midnight across a timezone change lands on
// whichever local date the clock reports; there is no UTC normalization.
package streak

import (
	"sync"
	"time"

	"prepcoach/internal/logging"
	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

const dayFormat = "2006-01-02"

// DayEntry records one calendar day of the streak history.
type DayEntry struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// State is the persisted streak record. History is chronological and
// capped at the configured number of most recent entries.
type State struct {
	Current          int        `json:"currentStreak"`
	Longest          int        `json:"longestStreak"`
	LastActivityDate string     `json:"lastActivityDate"`
	History          []DayEntry `json:"history"`
}

// Snapshot is the published view of the manager.
type Snapshot struct {
	State  State
	Loaded bool
	Err    string
}

// Status reports whether the streak is alive and, if so, how many hours
// remain until the next local midnight deadline.
type Status struct {
	Active         bool
	HoursRemaining int
}

// Manager owns the streak record.
type Manager struct {
	mu         sync.Mutex
	store      *storage.Store
	notifier   *state.Notifier[Snapshot]
	st         State
	loaded     bool
	loadErr    string
	historyCap int

	// Clock is the time source for calendar-day math. Replaceable in
	// tests to cross midnight deterministically.
	Clock func() time.Time
}

// NewManager creates a streak manager over the given store.
// historyCap bounds the day history; values below 1 fall back to 30.
func NewManager(store *storage.Store, historyCap int) *Manager {
	if historyCap < 1 {
		historyCap = 30
	}
	return &Manager{
		store:      store,
		notifier:   state.NewNotifier[Snapshot](),
		historyCap: historyCap,
		Clock:      time.Now,
	}
}

// Load reads the persisted streak record. If the last activity is
// neither today nor yesterday the current streak is reset to 0 and the
// reset is persisted before Load returns; longest streak and history
// are untouched.
func (m *Manager) Load() {
	timer := logging.StartTimer(logging.CategoryStreak, "Load")
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadErr = ""
	value, ok, err := m.store.Get(state.KeyStreak)
	if err != nil {
		readErr := &state.StorageReadError{Key: state.KeyStreak, Err: err}
		logging.Get(logging.CategoryStreak).Error("Load failed: %v", readErr)
		m.loadErr = readErr.Error()
	} else if ok {
		var st State
		if err := storage.DecodeRecord(value, &st); err != nil {
			logging.Get(logging.CategoryStreak).Error("Corrupt streak record: %v", err)
			m.loadErr = (&state.StorageReadError{Key: state.KeyStreak, Err: err}).Error()
		} else {
			m.st = st
		}
	}

	// Broken chain detected at load: zero the current streak now.
	if m.st.Current != 0 && !m.isTodayLocked(m.st.LastActivityDate) && !m.isYesterdayLocked(m.st.LastActivityDate) {
		logging.Streak("Streak broken (last activity %s), resetting to 0", m.st.LastActivityDate)
		m.st.Current = 0
		logging.Audit().StreakChange(0, m.st.Longest, true)
		if err := m.persistSyncLocked(); err != nil {
			logging.Get(logging.CategoryStreak).Error("Failed to persist streak reset: %v", err)
		}
	}

	m.loaded = true
	logging.StreakDebug("Loaded: current=%d longest=%d last=%s", m.st.Current, m.st.Longest, m.st.LastActivityDate)
	m.publishLocked()
}

// RecordActivity marks today as active and returns the resulting current
// streak. Same-day repeats are a no-op; a one-day gap increments; any
// larger gap resets to 1.
func (m *Manager) RecordActivity() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.Clock().Format(dayFormat)
	if m.st.LastActivityDate == today {
		logging.StreakDebug("Activity already recorded for %s", today)
		return m.st.Current
	}

	reset := false
	if m.isYesterdayLocked(m.st.LastActivityDate) {
		m.st.Current++
	} else {
		m.st.Current = 1
		reset = m.st.LastActivityDate != ""
	}
	if m.st.Current > m.st.Longest {
		m.st.Longest = m.st.Current
	}
	m.st.LastActivityDate = today

	m.st.History = append(m.st.History, DayEntry{Date: today, Completed: true})
	if len(m.st.History) > m.historyCap {
		m.st.History = m.st.History[len(m.st.History)-m.historyCap:]
	}

	logging.Audit().StreakChange(m.st.Current, m.st.Longest, reset)
	logging.Streak("Activity recorded: current=%d longest=%d", m.st.Current, m.st.Longest)

	m.persistLocked()
	m.publishLocked()
	return m.st.Current
}

// StreakStatus reports whether the streak is active (last activity today
// or yesterday) and the hours remaining until the next local midnight,
// rounded up.
func (m *Manager) StreakStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := m.isTodayLocked(m.st.LastActivityDate) || m.isYesterdayLocked(m.st.LastActivityDate)
	if !active {
		return Status{}
	}

	now := m.Clock()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	remainingMs := midnight.Sub(now).Milliseconds()
	const hourMs = int64(time.Hour / time.Millisecond)
	hours := int((remainingMs + hourMs - 1) / hourMs)

	return Status{Active: true, HoursRemaining: hours}
}

// Reset restores defaults in memory. The engine removes the persisted
// key as part of a full clear.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = State{}
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

func (m *Manager) isTodayLocked(date string) bool {
	return date != "" && date == m.Clock().Format(dayFormat)
}

func (m *Manager) isYesterdayLocked(date string) bool {
	return date != "" && date == m.Clock().AddDate(0, 0, -1).Format(dayFormat)
}

func (m *Manager) snapshotLocked() Snapshot {
	st := m.st
	st.History = append([]DayEntry(nil), m.st.History...)
	return Snapshot{State: st, Loaded: m.loaded, Err: m.loadErr}
}

func (m *Manager) persistLocked() {
	encoded, err := storage.EncodeRecord(m.st)
	if err != nil {
		logging.Get(logging.CategoryStreak).Error("Failed to encode streak record: %v", err)
		return
	}
	m.store.Set(state.KeyStreak, encoded)
}

func (m *Manager) publishLocked() {
	m.notifier.Publish(m.snapshotLocked())
}

func (m *Manager) persistSyncLocked() error {
	encoded, err := storage.EncodeRecord(m.st)
	if err != nil {
		return err
	}
	return m.store.SetSync(state.KeyStreak, encoded)
}
