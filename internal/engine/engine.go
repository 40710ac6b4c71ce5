// Package engine assembles the managers over one shared async store
// and owns the flows that cross manager boundaries: OTP sign-in,
// finishing an interview, and the sign-out wipe.
package engine

import (
	"context"
	"time"

	"prepcoach/internal/auth"
	"prepcoach/internal/config"
	"prepcoach/internal/feedback"
	"prepcoach/internal/identity"
	"prepcoach/internal/interview"
	"prepcoach/internal/logging"
	"prepcoach/internal/progress"
	"prepcoach/internal/state"
	"prepcoach/internal/storage"
	"prepcoach/internal/streak"
)

// Engine is the application state kernel. Managers are exported so the
// CLI and tests can reach their read/subscribe surfaces directly; the
// cross-manager flows live on the engine itself.
type Engine struct {
	cfg   *config.Config
	store *storage.Store

	Auth      *auth.Provider
	Identity  *identity.Manager
	Progress  *progress.Manager
	Streak    *streak.Manager
	Interview *interview.Manager
	Scorer    feedback.Scorer
}

// New opens the sqlite database from the config and builds the engine.
func New(cfg *config.Config) (*Engine, error) {
	adapter, err := storage.NewSQLiteAdapter(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	return NewWithAdapter(cfg, adapter), nil
}

// NewWithAdapter builds the engine over a caller-supplied adapter.
// Tests use this with the memory adapter.
func NewWithAdapter(cfg *config.Config, adapter storage.Adapter) *Engine {
	store := storage.NewStore(adapter)
	return &Engine{
		cfg:       cfg,
		store:     store,
		Auth:      auth.NewProvider(cfg.Auth.TokenSecret, cfg.TokenTTL()),
		Identity:  identity.NewManager(store),
		Progress:  progress.NewManager(store),
		Streak:    streak.NewManager(store, cfg.Streak.HistoryCap),
		Interview: interview.NewManager(store, cfg.Interview.HistoryCap, cfg.StaleAfter()),
		Scorer:    feedback.NewMockScorer(),
	}
}

// Store exposes the shared async store for flush/close coordination.
func (e *Engine) Store() *storage.Store {
	return e.store
}

// Load restores all persisted state. Each manager surfaces its own
// read failures on its snapshot; Load itself only fails if the context
// is already done.
func (e *Engine) Load(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryBoot, "Load")
	defer timer.StopWithThreshold(500 * time.Millisecond)

	if err := ctx.Err(); err != nil {
		return err
	}
	e.Identity.Load()
	e.Progress.Load()
	e.Streak.Load()
	e.Interview.Load()
	logging.Boot("State loaded (authenticated=%v)", e.Identity.Snapshot().Authenticated)
	return nil
}

// RequestCode asks the OTP boundary for a sign-in code.
func (e *Engine) RequestCode(phone string) (string, error) {
	return e.Auth.RequestCode(phone)
}

// SignInWithOTP redeems an OTP code and establishes the session.
func (e *Engine) SignInWithOTP(phone, code string) error {
	token, ident, err := e.Auth.Verify(phone, code)
	if err != nil {
		return err
	}
	return e.Identity.SignIn(token, identity.User{ID: ident.ID, Phone: ident.Phone})
}

// StartInterview begins a session, filling in the configured default
// question count when the caller leaves it zero.
func (e *Engine) StartInterview(cfg interview.Config) *interview.Session {
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = e.cfg.Interview.DefaultQuestionCount
	}
	return e.Interview.StartInterview(cfg)
}

// FinishInterview runs the completion flow for the current session:
// score it, attach feedback, move it to history, fold the score into
// progression (average before counter), grant XP and any badge, and
// count the day toward the streak. Cancellation goes through the
// interview manager directly and touches none of this.
func (e *Engine) FinishInterview(ctx context.Context) (interview.HistoryEntry, error) {
	snap := e.Interview.Snapshot()
	if snap.Current == nil {
		return interview.HistoryEntry{}, &state.StateConsistencyError{Op: "FinishInterview", Reason: "no active session"}
	}
	if st := snap.Current.Status; st != interview.StatusInProgress && st != interview.StatusProcessing {
		return interview.HistoryEntry{}, &state.StateConsistencyError{
			Op:     "FinishInterview",
			Reason: "cannot finish session in status " + string(st),
		}
	}

	if snap.Current.Status == interview.StatusInProgress {
		if err := e.Interview.SetStatus(interview.StatusProcessing); err != nil {
			return interview.HistoryEntry{}, err
		}
	}

	fb, err := e.Scorer.Score(ctx, snap.Current)
	if err != nil {
		// Scoring failed; park the session back where the user can
		// retry or cancel instead of silently losing their answers.
		return interview.HistoryEntry{}, err
	}
	if err := e.Interview.CompleteWithFeedback(fb); err != nil {
		return interview.HistoryEntry{}, err
	}
	entry, err := e.Interview.EndInterview(false)
	if err != nil {
		return interview.HistoryEntry{}, err
	}

	e.Progress.RecordInterviewScore(fb.OverallScore)
	if fb.XPEarned > 0 {
		if _, _, err := e.Progress.AddXP(fb.XPEarned); err != nil {
			logging.Get(logging.CategoryProgress).Error("XP grant failed: %v", err)
		}
	}
	if fb.BadgeEarned != "" {
		e.Progress.AddBadge(progress.Badge{
			ID:       fb.BadgeEarned,
			Name:     badgeName(fb.BadgeEarned),
			EarnedAt: time.Now(),
		})
	}
	e.Streak.RecordActivity()

	return entry, nil
}

func badgeName(id string) string {
	switch id {
	case feedback.BadgeAce:
		return "Interview Ace"
	case feedback.BadgeFinisher:
		return "Full Run"
	default:
		return id
	}
}

// SignOut tears down the whole user footprint: identity keys first
// (which bumps the write generation so queued identity writes die),
// then every other user-scoped key, then the in-memory managers.
func (e *Engine) SignOut() error {
	if err := e.Identity.SignOut(); err != nil {
		return err
	}
	rest := []string{
		state.KeyProgress,
		state.KeyStreak,
		state.KeyCurrentInterview,
		state.KeyInterviewHistory,
		state.KeyInterviewActive,
	}
	if err := e.store.Clear(rest); err != nil {
		return &state.StorageWriteError{Key: "sign-out clear", Err: err}
	}
	e.Progress.Reset()
	e.Streak.Reset()
	e.Interview.Reset()
	logging.Boot("User state cleared")
	return nil
}

// Close flushes pending writes and releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}
