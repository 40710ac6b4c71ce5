// Package main implements interview lifecycle CLI commands for
// prepcoach: start, answer, navigate, finish, cancel, and history.
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prepcoach/internal/engine"
	"prepcoach/internal/interview"
)

// interviewCmd groups the session lifecycle commands
var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run practice interview sessions",
	Long: `Start, answer, and finish practice interviews.

Subcommands:
  start    - Begin a new session
  show     - Show the current question
  answer   - Answer the current question
  next     - Move to the next question
  prev     - Move to the previous question
  goto     - Jump to a question by number
  finish   - Finish and get scored feedback
  cancel   - Abandon the current session
  history  - List past sessions`,
	RunE: runInterviewShow,
}

var interviewStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Begin a new practice session",
	RunE:  runInterviewStart,
}

var interviewShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current question and session progress",
	RunE:  runInterviewShow,
}

var interviewAnswerCmd = &cobra.Command{
	Use:   "answer <text>",
	Short: "Answer the current question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInterviewAnswer,
}

var interviewNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Move to the next question",
	RunE:  runInterviewMove(+1),
}

var interviewPrevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Move to the previous question",
	RunE:  runInterviewMove(-1),
}

var interviewGotoCmd = &cobra.Command{
	Use:   "goto <number>",
	Short: "Jump to a question by its number",
	Args:  cobra.ExactArgs(1),
	RunE:  runInterviewGoto,
}

var interviewFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Finish the session and get scored feedback",
	RunE:  runInterviewFinish,
}

var interviewCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Abandon the current session",
	RunE:  runInterviewCancel,
}

var interviewHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past sessions, newest first",
	RunE:  runInterviewHistory,
}

func init() {
	interviewStartCmd.Flags().String("type", "behavioral", "Interview type (behavioral, technical, system_design)")
	interviewStartCmd.Flags().String("target", "", "Role or company you are practicing for")
	interviewStartCmd.Flags().String("difficulty", "medium", "Difficulty (easy, medium, hard)")
	interviewStartCmd.Flags().Int("count", 0, "Number of questions (0 = configured default)")
	interviewAnswerCmd.Flags().Duration("duration", 0, "How long you spent on the answer")

	interviewCmd.AddCommand(interviewStartCmd)
	interviewCmd.AddCommand(interviewShowCmd)
	interviewCmd.AddCommand(interviewAnswerCmd)
	interviewCmd.AddCommand(interviewNextCmd)
	interviewCmd.AddCommand(interviewPrevCmd)
	interviewCmd.AddCommand(interviewGotoCmd)
	interviewCmd.AddCommand(interviewFinishCmd)
	interviewCmd.AddCommand(interviewCancelCmd)
	interviewCmd.AddCommand(interviewHistoryCmd)
}

func runInterviewStart(cmd *cobra.Command, args []string) error {
	iType, _ := cmd.Flags().GetString("type")
	target, _ := cmd.Flags().GetString("target")
	difficulty, _ := cmd.Flags().GetString("difficulty")
	count, _ := cmd.Flags().GetInt("count")

	return withEngine(cmd, func(e *engine.Engine) error {
		s := e.StartInterview(interview.Config{
			Type:          iType,
			Target:        target,
			Difficulty:    difficulty,
			QuestionCount: count,
		})
		if err := e.Interview.SetQuestions(interview.DefaultQuestions(s.Config)); err != nil {
			return err
		}
		if err := e.Interview.SetStatus(interview.StatusInProgress); err != nil {
			return err
		}

		snap := e.Interview.Snapshot()
		fmt.Printf("Session %s started (%s, %s, %d questions)\n",
			s.ID, s.Config.Type, s.Config.Difficulty, len(snap.Current.Questions))
		printQuestion(snap.Current)
		return nil
	})
}

func runInterviewShow(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		snap := e.Interview.Snapshot()
		if snap.Current == nil {
			fmt.Println("No session in progress. Use: prepcoach interview start")
			return nil
		}
		s := snap.Current
		fmt.Printf("Session %s [%s] %d/%d answered\n",
			s.ID, s.Status, len(s.Answers), len(s.Questions))
		printQuestion(s)
		return nil
	})
}

func runInterviewAnswer(cmd *cobra.Command, args []string) error {
	duration, _ := cmd.Flags().GetDuration("duration")
	text := strings.Join(args, " ")

	return withEngine(cmd, func(e *engine.Engine) error {
		err := e.Interview.SubmitAnswer(interview.Answer{
			Transcript: text,
			DurationMs: duration.Milliseconds(),
			StartedAt:  time.Now().Add(-duration),
		})
		if err != nil {
			return err
		}

		snap := e.Interview.Snapshot()
		fmt.Printf("Answer recorded (%d/%d).\n", len(snap.Current.Answers), len(snap.Current.Questions))
		if len(snap.Current.Answers) < len(snap.Current.Questions) {
			fmt.Println("Use 'prepcoach interview next' to continue.")
		} else {
			fmt.Println("All questions answered. Use 'prepcoach interview finish' to get feedback.")
		}
		return nil
	})
}

func runInterviewMove(delta int) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(e *engine.Engine) error {
			var err error
			if delta > 0 {
				_, err = e.Interview.NextQuestion()
			} else {
				_, err = e.Interview.PreviousQuestion()
			}
			if err != nil {
				return err
			}
			printQuestion(e.Interview.Snapshot().Current)
			return nil
		})
	}
}

func runInterviewGoto(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid question number %q", args[0])
	}
	return withEngine(cmd, func(e *engine.Engine) error {
		if _, err := e.Interview.GoToQuestion(n - 1); err != nil {
			return err
		}
		printQuestion(e.Interview.Snapshot().Current)
		return nil
	})
}

func runInterviewFinish(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		entry, err := e.FinishInterview(cmd.Context())
		if err != nil {
			return err
		}
		printFeedback(entry)

		pg := e.Progress.Snapshot()
		sk := e.Streak.Snapshot()
		fmt.Printf("\nXP: %d (level %d, %s)   Streak: %d day(s)\n",
			pg.State.TotalXP, pg.State.Level, pg.State.LevelName, sk.State.Current)
		return nil
	})
}

func runInterviewCancel(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		entry, err := e.Interview.CancelInterview()
		if err != nil {
			return err
		}
		fmt.Printf("Session %s cancelled (%d answered).\n", entry.ID, entry.QuestionsAnswered)
		return nil
	})
}

func runInterviewHistory(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		history := e.Interview.Snapshot().History
		if len(history) == 0 {
			fmt.Println("No past sessions.")
			return nil
		}
		fmt.Println("Past Sessions")
		fmt.Println(strings.Repeat("-", 60))
		for i, h := range history {
			fmt.Printf("  %2d. %s  %-10s  %-11s  score %5.1f  %d answered\n",
				i+1, h.EndedAt.Format("2006-01-02"), h.Config.Type, h.Status, h.Score, h.QuestionsAnswered)
		}
		fmt.Println(strings.Repeat("-", 60))
		fmt.Printf("Total: %d sessions\n", len(history))
		return nil
	})
}

func printQuestion(s *interview.Session) {
	if s == nil || len(s.Questions) == 0 {
		return
	}
	q := s.Questions[s.CurrentIndex]
	answered := ""
	for _, a := range s.Answers {
		if a.QuestionID == q.ID {
			answered = " (answered)"
			break
		}
	}
	fmt.Printf("\nQuestion %d of %d%s:\n  %s\n", s.CurrentIndex+1, len(s.Questions), answered, q.Text)
}

func printFeedback(entry interview.HistoryEntry) {
	fb := entry.Feedback
	if fb == nil {
		fmt.Printf("Session %s finished.\n", entry.ID)
		return
	}
	fmt.Printf("Session %s finished. Overall score: %.1f\n", entry.ID, fb.OverallScore)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("  Communication: %5.1f   Content:   %5.1f\n", fb.Communication, fb.Content)
	fmt.Printf("  Confidence:    %5.1f   Structure: %5.1f\n", fb.Confidence, fb.Structure)
	fmt.Printf("\n%s\n", fb.Summary)
	for _, s := range fb.Strengths {
		fmt.Printf("  + %s\n", s)
	}
	for _, s := range fb.Improvements {
		fmt.Printf("  - %s\n", s)
	}
	if fb.BadgeEarned != "" {
		fmt.Printf("\nBadge earned: %s\n", fb.BadgeEarned)
	}
	fmt.Printf("XP earned: %d\n", fb.XPEarned)
}
