// Package identity implements the identity/session manager: the auth
// token, the user profile, and the onboarding flag.
package identity

import (
	"strings"
	"sync"
	"time"

	"prepcoach/internal/logging"
	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

// User is the profile record. ID is immutable after sign-in.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	Premium   bool      `json:"isPremium"`
	CreatedAt time.Time `json:"createdAt"`
}

// Patch carries partial profile updates. Nil fields are left unchanged;
// the ID cannot be patched.
type Patch struct {
	Name     *string
	Phone    *string
	Email    *string
	PhotoURL *string
	Premium  *bool
}

// Snapshot is the published view of the manager.
type Snapshot struct {
	Authenticated  bool
	Token          string
	User           *User
	OnboardingDone bool
	Loaded         bool
	Err            string
}

// Manager owns the identity record group.
type Manager struct {
	mu        sync.Mutex
	store     *storage.Store
	notifier  *state.Notifier[Snapshot]
	token     string
	user      *User
	onboarded bool
	loaded    bool
	loadErr   string
}

// NewManager creates an identity manager over the given store.
func NewManager(store *storage.Store) *Manager {
	return &Manager{
		store:    store,
		notifier: state.NewNotifier[Snapshot](),
	}
}

// Load reads the token, profile, and onboarding flag. The manager is
// authenticated only when both token and profile are present. Read
// failures surface on the snapshot's Err field; Load always completes
// so the app reaches a loaded state.
func (m *Manager) Load() {
	timer := logging.StartTimer(logging.CategoryAuth, "Load")
	defer timer.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.loadErr = ""
	m.token = ""
	m.user = nil
	m.onboarded = false

	if value, ok, err := m.store.Get(state.KeyAuthToken); err != nil {
		m.recordLoadErrLocked(state.KeyAuthToken, err)
	} else if ok {
		m.token = value
	}

	if value, ok, err := m.store.Get(state.KeyUserProfile); err != nil {
		m.recordLoadErrLocked(state.KeyUserProfile, err)
	} else if ok {
		var u User
		if err := storage.DecodeRecord(value, &u); err != nil {
			m.recordLoadErrLocked(state.KeyUserProfile, err)
		} else {
			m.user = &u
		}
	}

	if value, ok, err := m.store.Get(state.KeyOnboardingDone); err != nil {
		m.recordLoadErrLocked(state.KeyOnboardingDone, err)
	} else if ok {
		var done bool
		if err := storage.DecodeRecord(value, &done); err == nil {
			m.onboarded = done
		}
	}

	m.loaded = true
	logging.AuthDebug("Loaded: authenticated=%v onboarded=%v", m.authenticatedLocked(), m.onboarded)
	m.publishLocked()
}

func (m *Manager) recordLoadErrLocked(key string, err error) {
	readErr := &state.StorageReadError{Key: key, Err: err}
	logging.Get(logging.CategoryAuth).Error("Load failed: %v", readErr)
	if m.loadErr == "" {
		m.loadErr = readErr.Error()
	}
}

// SignIn stores the token and profile and marks the session
// authenticated. CreatedAt is stamped if the caller left it zero.
// Onboarding status is untouched.
func (m *Manager) SignIn(token string, user User) error {
	if token == "" {
		return &state.ValidationError{Field: "token", Reason: "token must not be empty"}
	}
	if user.ID == "" {
		return &state.ValidationError{Field: "user.id", Reason: "user id must not be empty"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	m.token = token
	m.user = &user

	encoded, err := storage.EncodeRecord(user)
	if err != nil {
		return err
	}
	m.store.Set(state.KeyAuthToken, token)
	m.store.Set(state.KeyUserProfile, encoded)

	logging.Auth("User signed in: %s", user.ID)
	logging.Audit().SignIn(user.ID)

	m.publishLocked()
	return nil
}

// SignOut removes the three identity keys and resets to anonymous
// defaults. The removal bumps the store's write generation, so any
// still-queued identity write from before the sign-out is discarded.
func (m *Manager) SignOut() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}

	err := m.store.Clear(state.IdentityKeys())

	m.token = ""
	m.user = nil
	m.onboarded = false

	logging.Auth("User signed out: %s", userID)
	logging.Audit().SignOut(userID)

	m.publishLocked()
	if err != nil {
		return &state.StorageWriteError{Key: strings.Join(state.IdentityKeys(), ","), Err: err}
	}
	return nil
}

// CompleteOnboarding persists the onboarding flag. Idempotent.
func (m *Manager) CompleteOnboarding() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.onboarded {
		return nil
	}
	m.onboarded = true

	encoded, err := storage.EncodeRecord(true)
	if err != nil {
		return err
	}
	m.store.Set(state.KeyOnboardingDone, encoded)

	logging.Audit().Log(logging.AuditEvent{
		EventType: logging.AuditOnboardingComplete,
		Category:  string(logging.CategoryAuth),
		Success:   true,
		Message:   "Onboarding completed",
	})

	m.publishLocked()
	return nil
}

// UpdateUser merges patch fields into the existing profile and persists
// it. Requires a signed-in profile: updating with none present is a
// StateConsistencyError rather than a merge against an empty record.
func (m *Manager) UpdateUser(patch Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.user == nil {
		return &state.StateConsistencyError{Op: "UpdateUser", Reason: "no user profile loaded"}
	}

	if patch.Name != nil {
		m.user.Name = *patch.Name
	}
	if patch.Phone != nil {
		m.user.Phone = *patch.Phone
	}
	if patch.Email != nil {
		m.user.Email = *patch.Email
	}
	if patch.PhotoURL != nil {
		m.user.PhotoURL = *patch.PhotoURL
	}
	if patch.Premium != nil {
		m.user.Premium = *patch.Premium
	}

	encoded, err := storage.EncodeRecord(*m.user)
	if err != nil {
		return err
	}
	m.store.Set(state.KeyUserProfile, encoded)

	logging.AuditWithUser(m.user.ID).Log(logging.AuditEvent{
		EventType: logging.AuditProfileUpdate,
		Category:  string(logging.CategoryAuth),
		Success:   true,
		Message:   "Profile updated",
	})

	m.publishLocked()
	return nil
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

func (m *Manager) authenticatedLocked() bool {
	return m.token != "" && m.user != nil
}

func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{
		Authenticated:  m.authenticatedLocked(),
		Token:          m.token,
		OnboardingDone: m.onboarded,
		Loaded:         m.loaded,
		Err:            m.loadErr,
	}
	if m.user != nil {
		u := *m.user
		snap.User = &u
	}
	return snap
}

func (m *Manager) publishLocked() {
	m.notifier.Publish(m.snapshotLocked())
}
