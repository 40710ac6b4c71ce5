package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcoach/internal/state"
	"prepcoach/internal/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemoryAdapter, *storage.Store) {
	t.Helper()
	adapter := storage.NewMemoryAdapter()
	store := storage.NewStore(adapter)
	t.Cleanup(func() { store.Close() })
	m := NewManager(store)
	m.Load()
	return m, adapter, store
}

func testUser() User {
	return User{ID: "u-1", Name: "Dana", Phone: "+15550001111"}
}

func TestLoad_AnonymousDefaults(t *testing.T) {
	m, _, _ := newTestManager(t)

	snap := m.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.False(t, snap.OnboardingDone)
}

func TestSignIn_StampsCreatedAtAndPersists(t *testing.T) {
	m, adapter, store := newTestManager(t)

	require.NoError(t, m.SignIn("tok-abc", testUser()))

	snap := m.Snapshot()
	require.True(t, snap.Authenticated)
	require.NotNil(t, snap.User)
	assert.False(t, snap.User.CreatedAt.IsZero(), "CreatedAt stamped on first sign-in")
	assert.False(t, snap.OnboardingDone, "sign-in does not touch onboarding")

	store.Flush()
	if _, ok, _ := adapter.Get(state.KeyAuthToken); !ok {
		t.Error("token not persisted")
	}
	if _, ok, _ := adapter.Get(state.KeyUserProfile); !ok {
		t.Error("profile not persisted")
	}
}

func TestSignIn_PreservesExistingCreatedAt(t *testing.T) {
	m, _, _ := newTestManager(t)

	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	u := testUser()
	u.CreatedAt = created
	require.NoError(t, m.SignIn("tok", u))

	assert.Equal(t, created, m.Snapshot().User.CreatedAt)
}

func TestSignIn_Validation(t *testing.T) {
	m, _, _ := newTestManager(t)

	var verr *state.ValidationError
	require.ErrorAs(t, m.SignIn("", testUser()), &verr)
	require.ErrorAs(t, m.SignIn("tok", User{}), &verr)
}

func TestSignOut_ClearsKeysAndResets(t *testing.T) {
	m, adapter, store := newTestManager(t)

	require.NoError(t, m.SignIn("tok", testUser()))
	require.NoError(t, m.CompleteOnboarding())
	store.Flush()

	require.NoError(t, m.SignOut())
	store.Flush()

	snap := m.Snapshot()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
	assert.False(t, snap.OnboardingDone)

	for _, key := range state.IdentityKeys() {
		if _, ok, _ := adapter.Get(key); ok {
			t.Errorf("key %s survived sign-out", key)
		}
	}
}

func TestSignOut_DiscardsInFlightIdentityWrites(t *testing.T) {
	m, adapter, store := newTestManager(t)

	// The sign-in writes are queued but not necessarily flushed when the
	// user signs out; they must not resurrect the cleared keys.
	require.NoError(t, m.SignIn("tok", testUser()))
	require.NoError(t, m.SignOut())
	store.Flush()

	for _, key := range state.IdentityKeys() {
		if _, ok, _ := adapter.Get(key); ok {
			t.Errorf("late write resurrected %s after sign-out", key)
		}
	}
}

func TestSignOut_WriteFailureNamesAllIdentityKeys(t *testing.T) {
	m, adapter, _ := newTestManager(t)
	require.NoError(t, m.SignIn("tok", testUser()))

	adapter.WriteErr = assert.AnError
	err := m.SignOut()

	var werr *state.StorageWriteError
	require.ErrorAs(t, err, &werr)
	for _, key := range state.IdentityKeys() {
		assert.Contains(t, werr.Key, key, "error labels the whole multi-key clear")
	}
}

func TestCompleteOnboarding_Idempotent(t *testing.T) {
	m, adapter, store := newTestManager(t)

	require.NoError(t, m.CompleteOnboarding())
	require.NoError(t, m.CompleteOnboarding())
	store.Flush()

	assert.True(t, m.Snapshot().OnboardingDone)

	value, ok, err := adapter.Get(state.KeyOnboardingDone)
	require.NoError(t, err)
	require.True(t, ok)
	var done bool
	require.NoError(t, storage.DecodeRecord(value, &done))
	assert.True(t, done)
}

func TestUpdateUser_MergesPartial(t *testing.T) {
	m, _, _ := newTestManager(t)
	require.NoError(t, m.SignIn("tok", testUser()))

	name := "Dana Q."
	email := "dana@example.com"
	require.NoError(t, m.UpdateUser(Patch{Name: &name, Email: &email}))

	snap := m.Snapshot()
	assert.Equal(t, "Dana Q.", snap.User.Name)
	assert.Equal(t, "dana@example.com", snap.User.Email)
	assert.Equal(t, "+15550001111", snap.User.Phone, "unpatched field unchanged")
	assert.Equal(t, "u-1", snap.User.ID, "id immutable")
}

func TestUpdateUser_WithoutProfileFails(t *testing.T) {
	m, _, _ := newTestManager(t)

	name := "Nobody"
	err := m.UpdateUser(Patch{Name: &name})
	var cerr *state.StateConsistencyError
	require.ErrorAs(t, err, &cerr)
}

func TestLoad_RestoresSession(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	store := storage.NewStore(adapter)
	defer store.Close()

	m := NewManager(store)
	m.Load()
	require.NoError(t, m.SignIn("tok", testUser()))
	store.Flush()

	restored := NewManager(store)
	restored.Load()
	snap := restored.Snapshot()
	require.True(t, snap.Authenticated)
	assert.Equal(t, "u-1", snap.User.ID)
}

func TestLoad_TokenWithoutProfileIsNotAuthenticated(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	store := storage.NewStore(adapter)
	defer store.Close()
	require.NoError(t, adapter.Set(state.KeyAuthToken, "orphan-token"))

	m := NewManager(store)
	m.Load()

	snap := m.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Authenticated, "both token and profile are required")
}

func TestLoad_ReadFailureSurfacesError(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	adapter.ReadErr = errors.New("backend down")
	store := storage.NewStore(adapter)
	defer store.Close()

	m := NewManager(store)
	m.Load()

	snap := m.Snapshot()
	assert.True(t, snap.Loaded, "load completes even when reads fail")
	assert.Contains(t, snap.Err, "backend down")
	assert.False(t, snap.Authenticated)
}
