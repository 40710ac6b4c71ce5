package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prepcoach/internal/state"
)

func newTestProvider() *Provider {
	return NewProvider("test-secret", time.Hour)
}

func TestRequestCode_SixDigits(t *testing.T) {
	p := newTestProvider()

	code, err := p.RequestCode("+15550001111")
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestRequestCode_EmptyPhone(t *testing.T) {
	p := newTestProvider()

	var verr *state.ValidationError
	_, err := p.RequestCode("   ")
	require.ErrorAs(t, err, &verr)
}

func TestVerify_RoundTrip(t *testing.T) {
	p := newTestProvider()
	phone := "+15550001111"

	code, err := p.RequestCode(phone)
	require.NoError(t, err)

	token, user, err := p.Verify(phone, code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, phone, user.Phone)

	parsed, err := p.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user, parsed)
}

func TestVerify_WrongCode(t *testing.T) {
	p := newTestProvider()
	_, err := p.RequestCode("+15550001111")
	require.NoError(t, err)

	var verr *state.ValidationError
	_, _, err = p.Verify("+15550001111", "000000")
	require.ErrorAs(t, err, &verr)
}

func TestVerify_CodeConsumedOnUse(t *testing.T) {
	p := newTestProvider()
	code, _ := p.RequestCode("+15550001111")

	_, _, err := p.Verify("+15550001111", code)
	require.NoError(t, err)

	_, _, err = p.Verify("+15550001111", code)
	require.Error(t, err, "code cannot be redeemed twice")
}

func TestVerify_ExpiredCode(t *testing.T) {
	p := newTestProvider()
	code, _ := p.RequestCode("+15550001111")

	p.Clock = func() time.Time { return time.Now().Add(10 * time.Minute) }
	var verr *state.ValidationError
	_, _, err := p.Verify("+15550001111", code)
	require.ErrorAs(t, err, &verr)
}

func TestVerify_StableUserIDAcrossSignIns(t *testing.T) {
	p := newTestProvider()
	phone := "+15550001111"

	code, _ := p.RequestCode(phone)
	_, first, err := p.Verify(phone, code)
	require.NoError(t, err)

	code, _ = p.RequestCode(phone)
	_, second, err := p.Verify(phone, code)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same phone resolves to same user")
}

func TestParseToken_RejectsTampered(t *testing.T) {
	p := newTestProvider()
	code, _ := p.RequestCode("+15550001111")
	token, _, err := p.Verify("+15550001111", code)
	require.NoError(t, err)

	other := NewProvider("different-secret", time.Hour)
	_, err = other.ParseToken(token)
	require.Error(t, err)

	_, err = p.ParseToken(token + "x")
	require.Error(t, err)
}

func TestParseToken_RejectsExpired(t *testing.T) {
	p := newTestProvider()
	// Backdate issuance so the one hour validity is already spent;
	// jwt validates expiry against the wall clock.
	p.Clock = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	code, _ := p.RequestCode("+15550001111")
	token, _, err := p.Verify("+15550001111", code)
	require.NoError(t, err)

	_, err = p.ParseToken(token)
	require.Error(t, err)
}
