// Package feedback is the AI-scoring boundary. The real product sends
// transcripts to a model; here a deterministic stub derives plausible
// scores from what the user actually did, so the downstream flow
// (progression XP, badges, history) exercises real numbers.
package feedback

import (
	"context"
	"fmt"
	"math"
	"time"

	"prepcoach/internal/interview"
	"prepcoach/internal/logging"
	"prepcoach/internal/state"
)

// Scorer turns a finished session into feedback. Implementations must
// be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, s *interview.Session) (interview.Feedback, error)
}

// Badge IDs the scorer can award. The progression manager's idempotent
// insert makes repeat awards harmless.
const (
	BadgeAce      = "badge_ace"      // overall score of 90 or better
	BadgeFinisher = "badge_finisher" // every question answered
)

// MockScorer scores sessions from answer counts, transcript lengths,
// and recording durations. Same session in, same feedback out.
type MockScorer struct{}

// NewMockScorer returns the stub scorer.
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

// Score derives feedback for the session. A session with no answers
// still scores, just poorly.
func (sc *MockScorer) Score(ctx context.Context, s *interview.Session) (interview.Feedback, error) {
	if err := ctx.Err(); err != nil {
		return interview.Feedback{}, err
	}
	if s == nil {
		return interview.Feedback{}, &state.ValidationError{Field: "session", Reason: "nil session"}
	}

	timer := logging.StartTimer(logging.CategoryFeedback, "Score")
	defer timer.Stop()

	answered := len(s.Answers)
	total := len(s.Questions)
	if total == 0 {
		total = 1
	}
	completion := float64(answered) / float64(total)

	var lenSum, durSum float64
	perQuestion := make([]interview.QuestionFeedback, 0, answered)
	for _, a := range s.Answers {
		lenSum += float64(len(a.Transcript))
		durSum += float64(a.DurationMs)
		perQuestion = append(perQuestion, interview.QuestionFeedback{
			QuestionID: a.QuestionID,
			Score:      questionScore(a),
			Comment:    questionComment(a),
		})
	}
	avgLen := 0.0
	avgDur := time.Duration(0)
	if answered > 0 {
		avgLen = lenSum / float64(answered)
		avgDur = time.Duration(durSum/float64(answered)) * time.Millisecond
	}

	content := clampScore(40 + math.Min(avgLen, 300)/5)
	communication := clampScore(45 + completion*25 + math.Min(avgLen, 200)/10)
	confidence := confidenceScore(avgDur, answered)
	structure := clampScore(20 + completion*70)
	overall := round1((content + communication + confidence + structure) / 4)
	if answered == 0 {
		overall = 0
	}

	fb := interview.Feedback{
		OverallScore:  overall,
		Communication: round1(communication),
		Content:       round1(content),
		Confidence:    round1(confidence),
		Structure:     round1(structure),
		Summary:       summarize(overall, answered, total),
		Strengths:     strengths(overall, completion),
		Improvements:  improvements(overall, completion, avgDur),
		PerQuestion:   perQuestion,
		XPEarned:      xpFor(overall, answered),
	}
	if overall >= 90 {
		fb.BadgeEarned = BadgeAce
	} else if answered == total && answered > 0 {
		fb.BadgeEarned = BadgeFinisher
	}

	logging.FeedbackDebug("Scored session %s: overall=%.1f answered=%d/%d xp=%d",
		s.ID, overall, answered, total, fb.XPEarned)
	return fb, nil
}

func questionScore(a interview.Answer) float64 {
	score := 50 + math.Min(float64(len(a.Transcript)), 200)/4
	if d := time.Duration(a.DurationMs) * time.Millisecond; d >= 30*time.Second && d <= 3*time.Minute {
		score += 10
	}
	return round1(clampScore(score))
}

func questionComment(a interview.Answer) string {
	switch {
	case len(a.Transcript) < 80:
		return "Answer is brief; expand with a concrete example."
	case len(a.Transcript) > 800:
		return "Answer runs long; tighten to the core story."
	default:
		return "Well-sized answer with room for more specifics."
	}
}

// confidenceScore rewards answers in the one to three minute band and
// degrades toward the edges.
func confidenceScore(avgDur time.Duration, answered int) float64 {
	if answered == 0 {
		return 0
	}
	switch {
	case avgDur < 15*time.Second:
		return 45
	case avgDur < time.Minute:
		return 70
	case avgDur <= 3*time.Minute:
		return 85
	case avgDur <= 6*time.Minute:
		return 65
	default:
		return 50
	}
}

func xpFor(overall float64, answered int) int {
	xp := 50 + answered*25
	if overall >= 80 {
		xp += 50
	}
	return xp
}

func summarize(overall float64, answered, total int) string {
	switch {
	case answered == 0:
		return "No answers were recorded for this session."
	case overall >= 90:
		return fmt.Sprintf("Outstanding run: %d of %d questions answered with strong depth.", answered, total)
	case overall >= 70:
		return fmt.Sprintf("Solid performance across %d of %d questions.", answered, total)
	default:
		return fmt.Sprintf("Rough session: %d of %d questions answered. Keep practicing.", answered, total)
	}
}

func strengths(overall, completion float64) []string {
	var out []string
	if completion >= 1 {
		out = append(out, "Answered every question in the set")
	}
	if overall >= 80 {
		out = append(out, "Consistently detailed, well-developed answers")
	}
	return out
}

func improvements(overall, completion float64, avgDur time.Duration) []string {
	var out []string
	if completion < 1 {
		out = append(out, "Work through the full question set before ending")
	}
	if overall < 70 {
		out = append(out, "Add concrete examples and measurable outcomes")
	}
	if avgDur > 0 && avgDur < 30*time.Second {
		out = append(out, "Spend more time per answer; aim for one to three minutes")
	}
	return out
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
