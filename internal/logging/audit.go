// Package logging provides audit logging of state-engine events.
// Audit logs are JSON-line structured events covering every state
// transition the managers perform, for postmortem debugging of the
// optimistic-write persistence model.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	// Identity events
	AuditSignIn             AuditEventType = "sign_in"
	AuditSignOut            AuditEventType = "sign_out"
	AuditOnboardingComplete AuditEventType = "onboarding_complete"
	AuditProfileUpdate      AuditEventType = "profile_update"

	// Progression events
	AuditXPAdded            AuditEventType = "xp_added"
	AuditLevelUp            AuditEventType = "level_up"
	AuditAchievementUpsert  AuditEventType = "achievement_upsert"
	AuditBadgeEarned        AuditEventType = "badge_earned"

	// Streak events
	AuditStreakIncrement AuditEventType = "streak_increment"
	AuditStreakReset     AuditEventType = "streak_reset"

	// Interview lifecycle events
	AuditInterviewStart      AuditEventType = "interview_start"
	AuditInterviewTransition AuditEventType = "interview_transition"
	AuditInterviewEnd        AuditEventType = "interview_end"
	AuditInterviewStale      AuditEventType = "interview_stale"

	// Store events
	AuditStoreWrite     AuditEventType = "store_write"
	AuditStoreClear     AuditEventType = "store_clear"
	AuditStoreWriteDrop AuditEventType = "store_write_drop"
	AuditStoreError     AuditEventType = "store_error"
)

// AuditEvent represents a structured audit log entry.
type AuditEvent struct {
	Timestamp int64                  `json:"ts"` // Unix milliseconds
	EventType AuditEventType         `json:"event"`
	Category  string                 `json:"cat"`
	UserID    string                 `json:"user,omitempty"`
	SessionID string                 `json:"session,omitempty"`
	Target    string                 `json:"target,omitempty"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger handles structured audit logging
type AuditLogger struct {
	userID    string
	sessionID string
	category  Category
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithUser creates an audit logger scoped to a user
func AuditWithUser(userID string) *AuditLogger {
	return &AuditLogger{userID: userID}
}

// AuditWithSession creates an audit logger scoped to an interview session
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	// Fill in defaults
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.UserID == "" && a.userID != "" {
		event.UserID = a.userID
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// SignIn logs a sign-in event
func (a *AuditLogger) SignIn(userID string) {
	a.Log(AuditEvent{
		EventType: AuditSignIn,
		Category:  string(CategoryAuth),
		UserID:    userID,
		Success:   true,
		Message:   fmt.Sprintf("User signed in: %s", userID),
	})
}

// SignOut logs a sign-out event
func (a *AuditLogger) SignOut(userID string) {
	a.Log(AuditEvent{
		EventType: AuditSignOut,
		Category:  string(CategoryAuth),
		UserID:    userID,
		Success:   true,
		Message:   fmt.Sprintf("User signed out: %s", userID),
	})
}

// XPAdded logs an XP award and optional level-up
func (a *AuditLogger) XPAdded(amount, totalXP, level int, leveledUp bool) {
	eventType := AuditXPAdded
	if leveledUp {
		eventType = AuditLevelUp
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  string(CategoryProgress),
		Success:   true,
		Fields:    map[string]interface{}{"amount": amount, "total_xp": totalXP, "level": level},
		Message:   fmt.Sprintf("XP +%d (total=%d level=%d leveled_up=%v)", amount, totalXP, level, leveledUp),
	})
}

// BadgeEarned logs a badge insert
func (a *AuditLogger) BadgeEarned(badgeID string) {
	a.Log(AuditEvent{
		EventType: AuditBadgeEarned,
		Category:  string(CategoryProgress),
		Target:    badgeID,
		Success:   true,
		Message:   fmt.Sprintf("Badge earned: %s", badgeID),
	})
}

// StreakChange logs a streak increment or reset
func (a *AuditLogger) StreakChange(current, longest int, reset bool) {
	eventType := AuditStreakIncrement
	if reset {
		eventType = AuditStreakReset
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  string(CategoryStreak),
		Success:   true,
		Fields:    map[string]interface{}{"current": current, "longest": longest},
		Message:   fmt.Sprintf("Streak %s: current=%d longest=%d", eventType, current, longest),
	})
}

// InterviewTransition logs an interview status transition
func (a *AuditLogger) InterviewTransition(sessionID, from, to string, forced bool) {
	a.Log(AuditEvent{
		EventType: AuditInterviewTransition,
		Category:  string(CategoryInterview),
		SessionID: sessionID,
		Success:   true,
		Fields:    map[string]interface{}{"from": from, "to": to, "forced": forced},
		Message:   fmt.Sprintf("Interview %s: %s -> %s (forced=%v)", sessionID, from, to, forced),
	})
}

// InterviewEnd logs a terminal interview transition
func (a *AuditLogger) InterviewEnd(sessionID string, cancelled bool, score float64, answered int) {
	a.Log(AuditEvent{
		EventType: AuditInterviewEnd,
		Category:  string(CategoryInterview),
		SessionID: sessionID,
		Success:   true,
		Fields:    map[string]interface{}{"cancelled": cancelled, "score": score, "answered": answered},
		Message:   fmt.Sprintf("Interview ended: %s (cancelled=%v score=%.1f answered=%d)", sessionID, cancelled, score, answered),
	})
}

// StaleSession logs an auto-cancelled stale session
func (a *AuditLogger) StaleSession(sessionID string, age time.Duration) {
	a.Log(AuditEvent{
		EventType: AuditInterviewStale,
		Category:  string(CategoryInterview),
		SessionID: sessionID,
		Success:   true,
		Fields:    map[string]interface{}{"age_ms": age.Milliseconds()},
		Message:   fmt.Sprintf("Stale interview auto-cancelled: %s (age=%v)", sessionID, age),
	})
}

// StoreDroppedWrite logs a write discarded by the generation guard
func (a *AuditLogger) StoreDroppedWrite(key string, writeGen, currentGen uint64) {
	a.Log(AuditEvent{
		EventType: AuditStoreWriteDrop,
		Category:  string(CategoryStore),
		Target:    key,
		Success:   true,
		Fields:    map[string]interface{}{"write_gen": writeGen, "current_gen": currentGen},
		Message:   fmt.Sprintf("Dropped stale write: %s (gen %d < %d)", key, writeGen, currentGen),
	})
}

// StoreFailure logs a persistence error
func (a *AuditLogger) StoreFailure(op, key string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: AuditStoreError,
		Category:  string(CategoryStore),
		Target:    key,
		Success:   false,
		Error:     errMsg,
		Message:   fmt.Sprintf("Store %s failed: %s: %s", op, key, errMsg),
	})
}
