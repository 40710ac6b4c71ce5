// Package main implements the prepcoach CLI: a local interview-practice
// coach with phone/OTP sign-in, gamified progression, daily streaks,
// and a full interview session lifecycle, all persisted to sqlite
// under the workspace's .prepcoach directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"prepcoach/internal/config"
	"prepcoach/internal/engine"
	"prepcoach/internal/logging"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "prepcoach",
	Short: "prepcoach - Local Interview Practice Coach",
	Long: `prepcoach keeps all of your interview-practice state on your own
machine: who you are, your XP and level, your daily streak, and every
practice session you run.

Sign in with a phone number (codes are printed locally, nothing is
sent anywhere), start an interview, answer questions, and finish to
get scored feedback that feeds your progression.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(workspaceDir()); err != nil {
			logger.Warn("category logging unavailable", zap.Error(err))
		}
		if err := logging.InitAudit(); err != nil {
			logger.Warn("audit logging unavailable", zap.Error(err))
		}
		logging.BootDebug("Workspace: %s", workspaceDir())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(interviewCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(statusCmd)
}

// workspaceDir resolves the --workspace flag, defaulting to cwd.
func workspaceDir() string {
	if workspace != "" {
		return workspace
	}
	ws, err := os.Getwd()
	if err != nil {
		return "."
	}
	return ws
}

// withEngine loads config, boots the engine against the workspace
// database, runs fn, and flushes everything down on the way out.
func withEngine(cmd *cobra.Command, fn func(e *engine.Engine) error) error {
	ws := workspaceDir()
	cfg, err := config.Load(config.Path(ws))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		cfg.Storage.DatabasePath = filepath.Join(ws, cfg.Storage.DatabasePath)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	e, err := engine.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && logger != nil {
			logger.Warn("close failed", zap.Error(cerr))
		}
	}()

	if err := e.Load(cmd.Context()); err != nil {
		return err
	}
	return fn(e)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
