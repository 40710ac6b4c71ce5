// Package interview implements the interview-session lifecycle manager:
// the single active session state machine, its question/answer flow,
// and the capped history of finished sessions.
package interview

import (
	"time"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusSetup      Status = "setup"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// transitions is the legal state machine:
// setup -> ready -> in_progress -> processing -> completed.
// Cancellation is legal from every non-terminal state; terminal states
// have no exits. The feedback shortcut (in_progress -> completed) is a
// separately-named forced transition on the manager, not a table entry.
var transitions = map[Status][]Status{
	StatusSetup:      {StatusReady, StatusCancelled},
	StatusReady:      {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether the status is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether s -> to is a legal transition.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Config describes one interview attempt.
type Config struct {
	Type          string `json:"type"`       // e.g. behavioral, technical, system_design
	Target        string `json:"target"`     // role or company the user is practicing for
	Difficulty    string `json:"difficulty"` // easy, medium, hard
	QuestionCount int    `json:"questionCount"`
}

// Question is one prompt in the session's ordered question list.
type Question struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
}

// Answer is keyed by QuestionID within a session; re-submitting for the
// same question replaces the stored answer.
type Answer struct {
	QuestionID   string     `json:"questionId"`
	RecordingRef string     `json:"recordingRef,omitempty"`
	Transcript   string     `json:"transcript,omitempty"`
	DurationMs   int64      `json:"durationMs"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// AnswerPatch carries partial answer updates; nil fields are unchanged.
type AnswerPatch struct {
	RecordingRef *string
	Transcript   *string
	DurationMs   *int64
	CompletedAt  *time.Time
}

// QuestionFeedback scores a single answered question.
type QuestionFeedback struct {
	QuestionID string  `json:"questionId"`
	Score      float64 `json:"score"`
	Comment    string  `json:"comment,omitempty"`
}

// Feedback is the scoring result attached when a session completes.
type Feedback struct {
	OverallScore  float64            `json:"overallScore"`
	Communication float64            `json:"communication"`
	Content       float64            `json:"content"`
	Confidence    float64            `json:"confidence"`
	Structure     float64            `json:"structure"`
	Summary       string             `json:"summary"`
	Strengths     []string           `json:"strengths,omitempty"`
	Improvements  []string           `json:"improvements,omitempty"`
	PerQuestion   []QuestionFeedback `json:"perQuestion,omitempty"`
	XPEarned      int                `json:"xpEarned"`
	BadgeEarned   string             `json:"badgeEarned,omitempty"`
}

// Session is the single active interview attempt.
type Session struct {
	ID           string     `json:"id"`
	Config       Config     `json:"config"`
	Status       Status     `json:"status"`
	Questions    []Question `json:"questions,omitempty"`
	CurrentIndex int        `json:"currentIndex"`
	Answers      []Answer   `json:"answers,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Feedback     *Feedback  `json:"feedback,omitempty"`
}

// clone returns a deep copy safe to hand to subscribers.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Questions = append([]Question(nil), s.Questions...)
	c.Answers = append([]Answer(nil), s.Answers...)
	if s.Feedback != nil {
		fb := *s.Feedback
		fb.Strengths = append([]string(nil), s.Feedback.Strengths...)
		fb.Improvements = append([]string(nil), s.Feedback.Improvements...)
		fb.PerQuestion = append([]QuestionFeedback(nil), s.Feedback.PerQuestion...)
		c.Feedback = &fb
	}
	return &c
}

// HistoryEntry is the compact snapshot of a finished or cancelled
// session kept in the newest-first history list.
type HistoryEntry struct {
	ID                string    `json:"id"`
	Config            Config    `json:"config"`
	Status            Status    `json:"status"`
	Score             float64   `json:"score"`
	StartedAt         time.Time `json:"startedAt"`
	EndedAt           time.Time `json:"endedAt"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	Feedback          *Feedback `json:"feedback,omitempty"`
}
