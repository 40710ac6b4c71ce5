package state

// Persisted key namespace. One key per entity group; every manager owns
// its keys exclusively.
const (
	KeyAuthToken        = "prepcoach:auth:token"
	KeyUserProfile      = "prepcoach:auth:user"
	KeyOnboardingDone   = "prepcoach:auth:onboarding"
	KeyProgress         = "prepcoach:progress"
	KeyStreak           = "prepcoach:streak"
	KeyCurrentInterview = "prepcoach:interview:current"
	KeyInterviewHistory = "prepcoach:interview:history"
	KeyInterviewActive  = "prepcoach:interview:active"
)

// IdentityKeys lists the keys removed on sign-out.
func IdentityKeys() []string {
	return []string{KeyAuthToken, KeyUserProfile, KeyOnboardingDone}
}

// AllKeys lists every key the engine owns, for a full reset.
func AllKeys() []string {
	return []string{
		KeyAuthToken, KeyUserProfile, KeyOnboardingDone,
		KeyProgress, KeyStreak,
		KeyCurrentInterview, KeyInterviewHistory, KeyInterviewActive,
	}
}
