// Package main implements the progression, streak, and status display
// commands for prepcoach.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"prepcoach/internal/config"
	"prepcoach/internal/engine"
	"prepcoach/internal/interview"
)

// progressCmd shows XP, level, counters, achievements, and badges
var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show XP, level, and earned badges",
	RunE:  runProgress,
}

// streakCmd shows the daily practice streak
var streakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show your daily practice streak",
	RunE:  runStreak,
}

// statusCmd summarizes everything on one screen
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a one-screen summary of all state",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Bool("follow", false, "Keep running and print state changes as they happen")
}

func runProgress(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		snap := e.Progress.Snapshot()
		if snap.Err != "" {
			fmt.Printf("Warning: %s\n", snap.Err)
		}
		st := snap.State
		fmt.Printf("Level %d - %s\n", st.Level, st.LevelName)
		if st.XPToNext > 0 {
			fmt.Printf("XP: %d (%d to next level)\n", st.TotalXP, st.XPToNext)
		} else {
			fmt.Printf("XP: %d (max level)\n", st.TotalXP)
		}
		fmt.Printf("Interviews: %d   Modules: %d   Average score: %.1f\n",
			st.InterviewsCompleted, st.ModulesCompleted, st.AverageScore)

		if len(st.Badges) > 0 {
			fmt.Println("\nBadges:")
			for _, b := range st.Badges {
				fmt.Printf("  %s (%s)\n", b.Name, b.EarnedAt.Format("2006-01-02"))
			}
		}
		if len(st.Achievements) > 0 {
			fmt.Println("\nAchievements:")
			for _, a := range st.Achievements {
				line := "  " + a.Name
				if a.Progress != nil {
					line += fmt.Sprintf(" (%.0f%%)", *a.Progress)
				}
				fmt.Println(line)
			}
		}
		return nil
	})
}

func runStreak(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(e *engine.Engine) error {
		snap := e.Streak.Snapshot()
		status := e.Streak.StreakStatus()

		fmt.Printf("Current streak: %d day(s)   Longest: %d\n", snap.State.Current, snap.State.Longest)
		if status.Active {
			fmt.Printf("Streak is alive. %d hour(s) left to keep it going tomorrow.\n", status.HoursRemaining)
		} else if snap.State.Current == 0 && snap.State.Longest > 0 {
			fmt.Println("Streak broken. Finish an interview today to start a new one.")
		}

		if len(snap.State.History) > 0 {
			fmt.Println("\nRecent activity:")
			for _, day := range snap.State.History {
				marker := " "
				if day.Completed {
					marker = "x"
				}
				fmt.Printf("  [%s] %s\n", marker, day.Date)
			}
		}
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	follow, _ := cmd.Flags().GetBool("follow")

	return withEngine(cmd, func(e *engine.Engine) error {
		printSummary(e)
		if !follow {
			return nil
		}
		return followState(cmd.Context(), e)
	})
}

func printSummary(e *engine.Engine) {
	id := e.Identity.Snapshot()
	pg := e.Progress.Snapshot()
	sk := e.Streak.Snapshot()
	iv := e.Interview.Snapshot()

	fmt.Println("prepcoach status")
	fmt.Println(strings.Repeat("-", 50))
	if id.Authenticated {
		who := id.User.ID
		if id.User.Name != "" {
			who = id.User.Name
		}
		fmt.Printf("  Signed in:  %s\n", who)
	} else {
		fmt.Println("  Signed in:  no")
	}
	fmt.Printf("  Level:      %d (%s), %d XP\n", pg.State.Level, pg.State.LevelName, pg.State.TotalXP)
	fmt.Printf("  Streak:     %d day(s)\n", sk.State.Current)
	if iv.Current != nil {
		fmt.Printf("  Session:    %s [%s] %d/%d answered\n",
			iv.Current.ID, iv.Current.Status, len(iv.Current.Answers), len(iv.Current.Questions))
	} else {
		fmt.Printf("  Session:    none (%d in history)\n", len(iv.History))
	}
	fmt.Println(strings.Repeat("-", 50))
}

// followState blocks, printing a line for every published snapshot and
// hot-reloading config until interrupted.
func followState(ctx context.Context, e *engine.Engine) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcher, err := config.NewWatcher(workspaceDir(), func(cfg *config.Config) {
		fmt.Println("[config] reloaded")
	})
	if err == nil {
		if err := watcher.Start(ctx); err == nil {
			defer watcher.Stop()
		}
	}

	idCh := e.Identity.Subscribe()
	defer e.Identity.Unsubscribe(idCh)
	pgCh := e.Progress.Subscribe()
	defer e.Progress.Unsubscribe(pgCh)
	skCh := e.Streak.Subscribe()
	defer e.Streak.Unsubscribe(skCh)
	ivCh := e.Interview.Subscribe()
	defer e.Interview.Unsubscribe(ivCh)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Println("Watching for changes. Ctrl-C to stop.")
	for {
		select {
		case snap := <-idCh:
			fmt.Printf("[identity] authenticated=%v onboarded=%v\n", snap.Authenticated, snap.OnboardingDone)
		case snap := <-pgCh:
			fmt.Printf("[progress] xp=%d level=%d avg=%.1f\n", snap.State.TotalXP, snap.State.Level, snap.State.AverageScore)
		case snap := <-skCh:
			fmt.Printf("[streak] current=%d longest=%d\n", snap.State.Current, snap.State.Longest)
		case snap := <-ivCh:
			describeInterview(snap)
		case <-sigCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func describeInterview(snap interview.Snapshot) {
	if snap.Current == nil {
		fmt.Printf("[interview] idle, history=%d\n", len(snap.History))
		return
	}
	fmt.Printf("[interview] %s status=%s answered=%d\n",
		snap.Current.ID, snap.Current.Status, len(snap.Current.Answers))
}
