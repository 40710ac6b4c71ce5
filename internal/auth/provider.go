// Package auth is the phone/OTP boundary. It is a stand-in provider:
// codes are issued locally and never leave the process, but the token
// handed back by Verify is a real signed JWT so the rest of the app
// treats authentication exactly as it would with a live backend.
package auth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"prepcoach/internal/logging"
	"prepcoach/internal/state"
)

// codeTTL bounds how long an issued OTP code stays redeemable.
const codeTTL = 5 * time.Minute

// UserIdentity is the identity a successful verification resolves to.
type UserIdentity struct {
	ID    string
	Phone string
}

type issuedCode struct {
	code    string
	expires time.Time
}

// Claims is the JWT payload minted on verification.
type Claims struct {
	Phone string `json:"phone"`
	jwt.RegisteredClaims
}

// Provider issues OTP codes and exchanges them for signed tokens.
// The same phone number always resolves to the same user ID for the
// lifetime of the provider, so repeat sign-ins look like returning
// users rather than fresh accounts.
type Provider struct {
	mu     sync.Mutex
	secret []byte
	ttl    time.Duration
	codes  map[string]issuedCode
	users  map[string]string // phone -> user id

	// Clock is replaceable in tests.
	Clock func() time.Time
}

// NewProvider creates a provider signing tokens with secret, valid for
// ttl after issue.
func NewProvider(secret string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Provider{
		secret: []byte(secret),
		ttl:    ttl,
		codes:  map[string]issuedCode{},
		users:  map[string]string{},
		Clock:  time.Now,
	}
}

// RequestCode issues a fresh OTP for the phone number, replacing any
// outstanding one. The code is returned to the caller directly since
// there is no SMS leg here.
func (p *Provider) RequestCode(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", &state.ValidationError{Field: "phone", Reason: "phone number must not be empty"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	code := newCode()
	p.codes[phone] = issuedCode{code: code, expires: p.Clock().Add(codeTTL)}
	logging.AuthDebug("OTP issued for %s", maskPhone(phone))
	return code, nil
}

// newCode derives a six digit code from random UUID bytes.
func newCode() string {
	id := uuid.New()
	n := uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
	return fmt.Sprintf("%06d", n%1000000)
}

// Verify redeems an OTP. On success it returns a signed token and the
// resolved identity; the code is consumed either way once it matches.
func (p *Provider) Verify(phone, code string) (string, UserIdentity, error) {
	phone = strings.TrimSpace(phone)

	p.mu.Lock()
	defer p.mu.Unlock()

	issued, ok := p.codes[phone]
	if !ok || issued.code != code {
		logging.Get(logging.CategoryAuth).Warn("OTP rejected for %s", maskPhone(phone))
		return "", UserIdentity{}, &state.ValidationError{Field: "code", Reason: "invalid verification code"}
	}
	if p.Clock().After(issued.expires) {
		delete(p.codes, phone)
		return "", UserIdentity{}, &state.ValidationError{Field: "code", Reason: "verification code expired"}
	}
	delete(p.codes, phone)

	userID, ok := p.users[phone]
	if !ok {
		userID = uuid.NewString()
		p.users[phone] = userID
	}
	user := UserIdentity{ID: userID, Phone: phone}

	token, err := p.mintLocked(user)
	if err != nil {
		return "", UserIdentity{}, err
	}
	logging.Auth("Verified %s as user %s", maskPhone(phone), userID)
	return token, user, nil
}

func (p *Provider) mintLocked(user UserIdentity) (string, error) {
	now := p.Clock()
	claims := Claims{
		Phone: user.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a token's signature and expiry and recovers the
// identity it was minted for.
func (p *Provider) ParseToken(tokenString string) (UserIdentity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return UserIdentity{}, fmt.Errorf("parsing token: %w", err)
	}
	return UserIdentity{ID: claims.Subject, Phone: claims.Phone}, nil
}

// maskPhone keeps only the trailing digits out of the logs.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
