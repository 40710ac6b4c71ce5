package interview

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"prepcoach/internal/logging"
	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

// Snapshot is the published view: the current session (deep copy, nil
// when idle), the newest-first history, and the active flag.
type Snapshot struct {
	Current *Session
	History []HistoryEntry
	Active  bool
	Loaded  bool
	Err     string
}

// Manager owns the single active interview session and the history of
// finished ones. At most one session exists at a time; starting a new
// interview replaces whatever is in the slot.
type Manager struct {
	mu       sync.Mutex
	store    *storage.Store
	notifier *state.Notifier[Snapshot]
	current  *Session
	history  []HistoryEntry
	active   bool
	loaded   bool
	loadErr  string

	historyCap int
	staleAfter time.Duration

	// Clock is replaceable in tests.
	Clock func() time.Time
}

// NewManager creates an interview manager. historyCap bounds the kept
// history (oldest dropped); staleAfter is the age past which an
// unfinished session found at load is auto-cancelled.
func NewManager(store *storage.Store, historyCap int, staleAfter time.Duration) *Manager {
	if historyCap <= 0 {
		historyCap = 50
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Hour
	}
	return &Manager{
		store:      store,
		notifier:   state.NewNotifier[Snapshot](),
		historyCap: historyCap,
		staleAfter: staleAfter,
		Clock:      time.Now,
	}
}

// Load restores the persisted session, history, and active flag. An
// unfinished session older than staleAfter is cancelled into history
// here; staleness is only ever checked at load, never mid-run.
func (m *Manager) Load() {
	timer := logging.StartTimer(logging.CategoryInterview, "Load")
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadErr = ""
	m.current = m.loadSessionLocked()
	m.history = m.loadHistoryLocked()
	m.active = m.loadActiveLocked()

	// The sweep rewrites the persisted history. Skip it when any record
	// failed to read, or a transient failure on the history key would
	// get its stored list replaced by the rebuilt one-entry version.
	if m.current != nil && m.loadErr == "" {
		if m.current.Status.Terminal() {
			// A terminal session should never survive in the slot;
			// sweep it into history where it belongs.
			m.finishLocked(m.current.Status == StatusCancelled)
		} else if age := m.Clock().Sub(m.current.StartedAt); age > m.staleAfter {
			logging.Audit().StaleSession(m.current.ID, age)
			logging.Interview("Auto-cancelling stale session %s (age %s)", m.current.ID, age.Round(time.Minute))
			m.current.Status = StatusCancelled
			m.finishLocked(true)
		}
	}

	m.loaded = true
	logging.InterviewDebug("Loaded: current=%v history=%d active=%v",
		m.current != nil, len(m.history), m.active)
	m.publishLocked()
}

func (m *Manager) loadSessionLocked() *Session {
	value, ok, err := m.store.Get(state.KeyCurrentInterview)
	if err != nil {
		m.recordLoadErrLocked(state.KeyCurrentInterview, err)
		return nil
	}
	if !ok {
		return nil
	}
	var s Session
	if err := storage.DecodeRecord(value, &s); err != nil {
		m.recordLoadErrLocked(state.KeyCurrentInterview, err)
		return nil
	}
	if !s.Status.Valid() {
		logging.Get(logging.CategoryInterview).Warn("Discarding session %s with unknown status %q", s.ID, s.Status)
		return nil
	}
	return &s
}

func (m *Manager) loadHistoryLocked() []HistoryEntry {
	value, ok, err := m.store.Get(state.KeyInterviewHistory)
	if err != nil {
		m.recordLoadErrLocked(state.KeyInterviewHistory, err)
		return nil
	}
	if !ok {
		return nil
	}
	var history []HistoryEntry
	if err := storage.DecodeRecord(value, &history); err != nil {
		m.recordLoadErrLocked(state.KeyInterviewHistory, err)
		return nil
	}
	if len(history) > m.historyCap {
		history = history[:m.historyCap]
	}
	return history
}

func (m *Manager) loadActiveLocked() bool {
	value, ok, err := m.store.Get(state.KeyInterviewActive)
	if err != nil {
		m.recordLoadErrLocked(state.KeyInterviewActive, err)
		return false
	}
	if !ok {
		return false
	}
	var active bool
	if err := storage.DecodeRecord(value, &active); err != nil {
		return false
	}
	return active
}

func (m *Manager) recordLoadErrLocked(key string, err error) {
	readErr := &state.StorageReadError{Key: key, Err: err}
	logging.Get(logging.CategoryInterview).Error("Load failed: %v", readErr)
	if m.loadErr == "" {
		m.loadErr = readErr.Error()
	}
}

// StartInterview creates a fresh session in setup and makes it current,
// replacing any previous session without recording it. The active flag
// is cleared; it only turns on once the session reaches in_progress.
func (m *Manager) StartInterview(cfg Config) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && !m.current.Status.Terminal() {
		logging.Get(logging.CategoryInterview).Warn("Starting new session over unfinished %s", m.current.ID)
	}

	s := &Session{
		ID:        ulid.Make().String(),
		Config:    cfg,
		Status:    StatusSetup,
		StartedAt: m.Clock(),
	}
	m.current = s
	m.active = false

	logging.AuditWithSession(s.ID).Log(logging.AuditEvent{
		EventType: logging.AuditInterviewStart,
		Category:  string(logging.CategoryInterview),
		Success:   true,
		Message:   "Interview started: " + cfg.Type + "/" + cfg.Difficulty,
	})

	m.persistSessionLocked()
	m.persistActiveLocked()
	m.publishLocked()
	return s.clone()
}

// SetQuestions attaches the question list and moves setup -> ready.
func (m *Manager) SetQuestions(questions []Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return &state.StateConsistencyError{Op: "SetQuestions", Reason: "no active session"}
	}
	if !m.current.Status.CanTransition(StatusReady) {
		return &state.StateConsistencyError{
			Op:     "SetQuestions",
			Reason: "cannot set questions in status " + string(m.current.Status),
		}
	}

	m.current.Questions = append([]Question(nil), questions...)
	m.current.CurrentIndex = 0
	m.transitionLocked(StatusReady, false)

	m.persistSessionLocked()
	m.publishLocked()
	return nil
}

// SetStatus applies a guarded lifecycle transition. Illegal moves,
// including any exit from a terminal state, fail with a
// StateConsistencyError and leave the session untouched.
func (m *Manager) SetStatus(to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return &state.StateConsistencyError{Op: "SetStatus", Reason: "no active session"}
	}
	if !to.Valid() {
		return &state.ValidationError{Field: "status", Reason: "unknown status " + string(to)}
	}
	if !m.current.Status.CanTransition(to) {
		return &state.StateConsistencyError{
			Op:     "SetStatus",
			Reason: "illegal transition " + string(m.current.Status) + " -> " + string(to),
		}
	}

	m.transitionLocked(to, false)
	m.persistSessionLocked()
	m.persistActiveLocked()
	m.publishLocked()
	return nil
}

// transitionLocked mutates status and keeps the active flag in step:
// on while the session is in_progress or processing, off otherwise.
func (m *Manager) transitionLocked(to Status, forced bool) {
	from := m.current.Status
	m.current.Status = to
	m.active = to == StatusInProgress || to == StatusProcessing
	logging.Audit().InterviewTransition(m.current.ID, string(from), string(to), forced)
}

// NextQuestion advances the cursor, clamped to the last question.
func (m *Manager) NextQuestion() (int, error) {
	return m.moveCursor(+1)
}

// PreviousQuestion moves the cursor back, clamped to zero.
func (m *Manager) PreviousQuestion() (int, error) {
	return m.moveCursor(-1)
}

func (m *Manager) moveCursor(delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0, &state.StateConsistencyError{Op: "moveCursor", Reason: "no active session"}
	}
	m.current.CurrentIndex = clampIndex(m.current.CurrentIndex+delta, len(m.current.Questions))
	m.persistSessionLocked()
	m.publishLocked()
	return m.current.CurrentIndex, nil
}

// GoToQuestion jumps the cursor to index, clamped into range. Out of
// range input is not an error; the cursor lands on the nearest edge.
func (m *Manager) GoToQuestion(index int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0, &state.StateConsistencyError{Op: "GoToQuestion", Reason: "no active session"}
	}
	m.current.CurrentIndex = clampIndex(index, len(m.current.Questions))
	m.persistSessionLocked()
	m.publishLocked()
	return m.current.CurrentIndex, nil
}

func clampIndex(i, n int) int {
	if n == 0 {
		return 0
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// SubmitAnswer records the answer for the CURRENT question, replacing
// any earlier answer to the same question. The answer's QuestionID is
// stamped from the cursor; callers never supply it.
func (m *Manager) SubmitAnswer(a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return &state.StateConsistencyError{Op: "SubmitAnswer", Reason: "no active session"}
	}
	if len(m.current.Questions) == 0 {
		return &state.StateConsistencyError{Op: "SubmitAnswer", Reason: "session has no questions"}
	}

	a.QuestionID = m.current.Questions[m.current.CurrentIndex].ID
	if a.StartedAt.IsZero() {
		a.StartedAt = m.Clock()
	}

	replaced := false
	for i := range m.current.Answers {
		if m.current.Answers[i].QuestionID == a.QuestionID {
			m.current.Answers[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		m.current.Answers = append(m.current.Answers, a)
	}

	logging.InterviewDebug("Answer recorded for %s (replaced=%v, total=%d)",
		a.QuestionID, replaced, len(m.current.Answers))
	m.persistSessionLocked()
	m.publishLocked()
	return nil
}

// UpdateAnswer patches an existing answer by question ID. Unlike
// SubmitAnswer it never creates one; a missing answer is an error.
func (m *Manager) UpdateAnswer(questionID string, patch AnswerPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return &state.StateConsistencyError{Op: "UpdateAnswer", Reason: "no active session"}
	}
	for i := range m.current.Answers {
		if m.current.Answers[i].QuestionID != questionID {
			continue
		}
		a := &m.current.Answers[i]
		if patch.RecordingRef != nil {
			a.RecordingRef = *patch.RecordingRef
		}
		if patch.Transcript != nil {
			a.Transcript = *patch.Transcript
		}
		if patch.DurationMs != nil {
			a.DurationMs = *patch.DurationMs
		}
		if patch.CompletedAt != nil {
			completed := *patch.CompletedAt
			a.CompletedAt = &completed
		}
		m.persistSessionLocked()
		m.publishLocked()
		return nil
	}
	return &state.StateConsistencyError{Op: "UpdateAnswer", Reason: "no answer for question " + questionID}
}

// CompleteWithFeedback attaches scoring results and forces the session
// to completed. This is the one escape from the transition table: it is
// legal from in_progress or processing, where normal completion would
// need the intermediate step.
func (m *Manager) CompleteWithFeedback(fb Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return &state.StateConsistencyError{Op: "CompleteWithFeedback", Reason: "no active session"}
	}
	st := m.current.Status
	if st != StatusInProgress && st != StatusProcessing {
		return &state.StateConsistencyError{
			Op:     "CompleteWithFeedback",
			Reason: "cannot complete from status " + string(st),
		}
	}

	now := m.Clock()
	m.current.Feedback = &fb
	m.current.CompletedAt = &now
	m.transitionLocked(StatusCompleted, st != StatusProcessing)

	m.persistSessionLocked()
	m.persistActiveLocked()
	m.publishLocked()
	return nil
}

// EndInterview finishes the current session: it lands on completed (or
// cancelled), is summarized into the front of the history, and the slot
// and active flag are cleared. Returns the recorded entry.
func (m *Manager) EndInterview(cancelled bool) (HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return HistoryEntry{}, &state.StateConsistencyError{Op: "EndInterview", Reason: "no active session"}
	}
	entry := m.finishLocked(cancelled)
	m.publishLocked()
	return entry, nil
}

// CancelInterview is EndInterview with the cancelled outcome.
func (m *Manager) CancelInterview() (HistoryEntry, error) {
	return m.EndInterview(true)
}

// finishLocked moves the current session into history and clears the
// slot. A session not already terminal is forced to its final status.
func (m *Manager) finishLocked(cancelled bool) HistoryEntry {
	s := m.current
	now := m.Clock()

	if !s.Status.Terminal() {
		final := StatusCompleted
		if cancelled {
			final = StatusCancelled
		}
		m.transitionLocked(final, !s.Status.CanTransition(final))
	}
	if s.CompletedAt == nil {
		s.CompletedAt = &now
	}

	score := 0.0
	if s.Feedback != nil {
		score = s.Feedback.OverallScore
	}
	entry := HistoryEntry{
		ID:                s.ID,
		Config:            s.Config,
		Status:            s.Status,
		Score:             score,
		StartedAt:         s.StartedAt,
		EndedAt:           *s.CompletedAt,
		QuestionsAnswered: len(s.Answers),
		Feedback:          s.Feedback,
	}

	m.history = append([]HistoryEntry{entry}, m.history...)
	if len(m.history) > m.historyCap {
		m.history = m.history[:m.historyCap]
	}

	m.current = nil
	m.active = false
	logging.Audit().InterviewEnd(entry.ID, entry.Status == StatusCancelled, entry.Score, entry.QuestionsAnswered)
	logging.Interview("Session %s ended: %s score=%.1f answered=%d",
		entry.ID, entry.Status, entry.Score, entry.QuestionsAnswered)

	m.persistSessionLocked()
	m.persistHistoryLocked()
	m.persistActiveLocked()
	return entry
}

// Reset drops all interview state in memory. The engine removes the
// persisted keys as part of the sign-out clear.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.history = nil
	m.active = false
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
	return Snapshot{
		Current: m.current.clone(),
		History: append([]HistoryEntry(nil), m.history...),
		Active:  m.active,
		Loaded:  m.loaded,
		Err:     m.loadErr,
	}
}

func (m *Manager) persistSessionLocked() {
	if m.current == nil {
		m.store.Remove(state.KeyCurrentInterview)
		return
	}
	encoded, err := storage.EncodeRecord(m.current)
	if err != nil {
		logging.Get(logging.CategoryInterview).Error("Failed to encode session record: %v", err)
		return
	}
	m.store.Set(state.KeyCurrentInterview, encoded)
}

func (m *Manager) persistHistoryLocked() {
	encoded, err := storage.EncodeRecord(m.history)
	if err != nil {
		logging.Get(logging.CategoryInterview).Error("Failed to encode history record: %v", err)
		return
	}
	m.store.Set(state.KeyInterviewHistory, encoded)
}

func (m *Manager) persistActiveLocked() {
	encoded, err := storage.EncodeRecord(m.active)
	if err != nil {
		return
	}
	m.store.Set(state.KeyInterviewActive, encoded)
}

func (m *Manager) publishLocked() {
	m.notifier.Publish(m.snapshotLocked())
}
