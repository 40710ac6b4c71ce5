package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcoach/internal/config"
	"prepcoach/internal/interview"
	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryAdapter) {
	t.Helper()
	adapter := storage.NewMemoryAdapter()
	e := NewWithAdapter(config.DefaultConfig(), adapter)
	t.Cleanup(func() { e.Close() })
	require.NoError(t, e.Load(context.Background()))
	return e, adapter
}

func signIn(t *testing.T, e *Engine) {
	t.Helper()
	code, err := e.RequestCode("+15550001111")
	require.NoError(t, err)
	require.NoError(t, e.SignInWithOTP("+15550001111", code))
}

func runInterview(t *testing.T, e *Engine) {
	t.Helper()
	e.StartInterview(interview.Config{Type: "behavioral", Difficulty: "medium"})
	require.NoError(t, e.Interview.SetQuestions([]interview.Question{
		{ID: "q1", Text: "Tell me about a challenge."},
		{ID: "q2", Text: "Describe a success."},
	}))
	require.NoError(t, e.Interview.SetStatus(interview.StatusInProgress))
	require.NoError(t, e.Interview.SubmitAnswer(interview.Answer{
		Transcript: strings.Repeat("a solid structured answer. ", 10),
		DurationMs: 90_000,
	}))
	_, err := e.Interview.GoToQuestion(1)
	require.NoError(t, err)
	require.NoError(t, e.Interview.SubmitAnswer(interview.Answer{
		Transcript: strings.Repeat("another detailed answer. ", 10),
		DurationMs: 120_000,
	}))
}

func TestSignInWithOTP_EstablishesSession(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e)

	snap := e.Identity.Snapshot()
	require.True(t, snap.Authenticated)
	assert.Equal(t, "+15550001111", snap.User.Phone)

	// The token round-trips through the auth boundary.
	ident, err := e.Auth.ParseToken(snap.Token)
	require.NoError(t, err)
	assert.Equal(t, snap.User.ID, ident.ID)
}

func TestSignInWithOTP_BadCode(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.RequestCode("+15550001111")
	require.NoError(t, err)

	require.Error(t, e.SignInWithOTP("+15550001111", "999999"))
	assert.False(t, e.Identity.Snapshot().Authenticated)
}

func TestStartInterview_DefaultQuestionCount(t *testing.T) {
	e, _ := newTestEngine(t)

	s := e.StartInterview(interview.Config{Type: "technical"})
	assert.Equal(t, config.DefaultConfig().Interview.DefaultQuestionCount, s.Config.QuestionCount)

	s = e.StartInterview(interview.Config{Type: "technical", QuestionCount: 3})
	assert.Equal(t, 3, s.Config.QuestionCount)
}

func TestFinishInterview_FullFlow(t *testing.T) {
	e, _ := newTestEngine(t)
	signIn(t, e)
	runInterview(t, e)

	entry, err := e.FinishInterview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, interview.StatusCompleted, entry.Status)
	assert.Equal(t, 2, entry.QuestionsAnswered)
	require.NotNil(t, entry.Feedback)
	assert.Greater(t, entry.Score, 0.0)

	iv := e.Interview.Snapshot()
	assert.Nil(t, iv.Current, "session slot cleared")
	require.Len(t, iv.History, 1)

	pg := e.Progress.Snapshot()
	assert.Equal(t, 1, pg.State.InterviewsCompleted)
	assert.Equal(t, entry.Score, pg.State.AverageScore)
	assert.Equal(t, entry.Feedback.XPEarned, pg.State.TotalXP)
	if entry.Feedback.BadgeEarned != "" {
		require.Len(t, pg.State.Badges, 1)
		assert.Equal(t, entry.Feedback.BadgeEarned, pg.State.Badges[0].ID)
	}

	sk := e.Streak.Snapshot()
	assert.Equal(t, 1, sk.State.Current, "finishing counts toward the streak")
}

func TestFinishInterview_AverageFoldsBeforeCounter(t *testing.T) {
	e, _ := newTestEngine(t)

	for i := 0; i < 3; i++ {
		runInterview(t, e)
		_, err := e.FinishInterview(context.Background())
		require.NoError(t, err)
	}

	pg := e.Progress.Snapshot()
	assert.Equal(t, 3, pg.State.InterviewsCompleted)
	// Identical sessions score identically, so the mean equals any one score.
	assert.Equal(t, pg.State.AverageScore, e.Interview.Snapshot().History[0].Score)
}

func TestFinishInterview_RequiresRunningSession(t *testing.T) {
	e, _ := newTestEngine(t)

	var cerr *state.StateConsistencyError
	_, err := e.FinishInterview(context.Background())
	require.ErrorAs(t, err, &cerr)

	e.StartInterview(interview.Config{Type: "behavioral"})
	_, err = e.FinishInterview(context.Background())
	require.ErrorAs(t, err, &cerr, "setup session cannot be finished")
}

func TestCancelledInterview_NoProgressOrStreak(t *testing.T) {
	e, _ := newTestEngine(t)
	runInterview(t, e)

	_, err := e.Interview.CancelInterview()
	require.NoError(t, err)

	assert.Equal(t, 0, e.Progress.Snapshot().State.InterviewsCompleted)
	assert.Equal(t, 0, e.Streak.Snapshot().State.Current)
}

func TestSignOut_WipesEverything(t *testing.T) {
	e, adapter := newTestEngine(t)
	signIn(t, e)
	runInterview(t, e)
	_, err := e.FinishInterview(context.Background())
	require.NoError(t, err)

	require.NoError(t, e.SignOut())

	assert.False(t, e.Identity.Snapshot().Authenticated)
	assert.Equal(t, 0, e.Progress.Snapshot().State.TotalXP)
	assert.Equal(t, 0, e.Streak.Snapshot().State.Current)
	assert.Empty(t, e.Interview.Snapshot().History)

	e.Store().Flush()
	for _, key := range state.AllKeys() {
		if _, ok, _ := adapter.Get(key); ok {
			t.Errorf("key %s survived sign-out", key)
		}
	}
}

func TestLoad_RestoresAcrossRestart(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	cfg := config.DefaultConfig()

	e := NewWithAdapter(cfg, adapter)
	require.NoError(t, e.Load(context.Background()))
	signIn(t, e)
	runInterview(t, e)
	_, err := e.FinishInterview(context.Background())
	require.NoError(t, err)
	userID := e.Identity.Snapshot().User.ID
	require.NoError(t, e.Close())

	e2 := NewWithAdapter(cfg, adapter)
	t.Cleanup(func() { e2.Close() })
	require.NoError(t, e2.Load(context.Background()))

	assert.True(t, e2.Identity.Snapshot().Authenticated)
	assert.Equal(t, userID, e2.Identity.Snapshot().User.ID)
	assert.Equal(t, 1, e2.Progress.Snapshot().State.InterviewsCompleted)
	assert.Equal(t, 1, e2.Streak.Snapshot().State.Current)
	assert.Len(t, e2.Interview.Snapshot().History, 1)
}

func TestLoad_CancelledContext(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	e := NewWithAdapter(config.DefaultConfig(), adapter)
	t.Cleanup(func() { e.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.Load(ctx), context.Canceled)
}
