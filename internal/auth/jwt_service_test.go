package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "irisapi/internal/errors"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, clock *fakeClock) *JWTService {
	t.Helper()
	svc, err := NewJWTService(TokenConfig{
		Secret:     "test-secret",
		Algorithm:  "HS256",
		Issuer:     "iris-test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, WithClock(clock.Now))
	require.NoError(t, err)
	return svc
}

func TestJWTService_RoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)

	pair, err := svc.IssuePair(42, "user@example.com", "setosa")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, pair.TokenType)
	assert.Equal(t, int64(1800), pair.ExpiresIn)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	identity, err := svc.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: 42, Email: "user@example.com", AccessLevel: "setosa"}, identity)

	identity, err = svc.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), identity.UserID)
}

func TestJWTService_Expiry(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: issuedAt}
	svc := newTestService(t, clock)

	pair, err := svc.IssuePair(1, "x@example.com", "X")
	require.NoError(t, err)

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{name: "five minutes later", at: issuedAt.Add(5 * time.Minute)},
		{name: "one second before expiry", at: issuedAt.Add(30*time.Minute - time.Second)},
		{name: "exactly at expiry", at: issuedAt.Add(30 * time.Minute), wantErr: true},
		{name: "thirty one minutes later", at: issuedAt.Add(31 * time.Minute), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.now = tt.at
			_, err := svc.VerifyAccessToken(pair.AccessToken)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	clock.now = issuedAt.Add(31 * time.Minute)
	_, err = svc.VerifyRefreshToken(pair.RefreshToken)
	assert.NoError(t, err, "refresh token outlives the access token")
}

func TestJWTService_KindMismatch(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := newTestService(t, clock)

	pair, err := svc.IssuePair(7, "a@example.com", "virginica")
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
	_, err = svc.VerifyRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestJWTService_RejectsBadTokens(t *testing.T) {
	now := time.Now()
	clock := &fakeClock{now: now}
	svc := newTestService(t, clock)

	pair, err := svc.IssuePair(7, "a@example.com", "virginica")
	require.NoError(t, err)

	other, err := NewJWTService(TokenConfig{Secret: "other-secret"}, WithClock(clock.Now))
	require.NoError(t, err)
	foreign, err := other.IssuePair(7, "a@example.com", "virginica")
	require.NoError(t, err)

	sign := func(claims *Claims, method jwt.SigningMethod) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return token
	}
	validClaims := func() *Claims {
		return &Claims{
			Email:       "a@example.com",
			AccessLevel: "all",
			TokenType:   AccessToken,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "7",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	parts := strings.Split(pair.AccessToken, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "not.a.jwt"},
		{name: "tampered payload", token: tampered},
		{name: "wrong secret", token: foreign.AccessToken},
		{name: "wrong algorithm", token: sign(validClaims(), jwt.SigningMethodHS512)},
		{name: "missing subject", token: sign(func() *Claims { c := validClaims(); c.Subject = ""; return c }(), jwt.SigningMethodHS256)},
		{name: "missing email", token: sign(func() *Claims { c := validClaims(); c.Email = ""; return c }(), jwt.SigningMethodHS256)},
		{name: "missing access level", token: sign(func() *Claims { c := validClaims(); c.AccessLevel = ""; return c }(), jwt.SigningMethodHS256)},
		{name: "missing expiry", token: sign(func() *Claims { c := validClaims(); c.ExpiresAt = nil; return c }(), jwt.SigningMethodHS256)},
		{name: "missing type", token: sign(func() *Claims { c := validClaims(); c.TokenType = ""; return c }(), jwt.SigningMethodHS256)},
		{name: "non numeric subject", token: sign(func() *Claims { c := validClaims(); c.Subject = "seven"; return c }(), jwt.SigningMethodHS256)},
		{name: "not yet valid", token: sign(func() *Claims { c := validClaims(); c.NotBefore = jwt.NewNumericDate(now.Add(time.Minute)); return c }(), jwt.SigningMethodHS256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := svc.VerifyAccessToken(tt.token)
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
			assert.Equal(t, apperrors.ErrInvalidToken.Error(), err.Error())
		})
	}

	_, err = svc.VerifyAccessToken(sign(validClaims(), jwt.SigningMethodHS256))
	assert.NoError(t, err, "hand-built valid token is accepted")
}

func TestNewJWTService(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TokenConfig
		wantErr bool
	}{
		{name: "defaults", cfg: TokenConfig{Secret: "s"}},
		{name: "hs512", cfg: TokenConfig{Secret: "s", Algorithm: "HS512"}},
		{name: "missing secret", cfg: TokenConfig{}, wantErr: true},
		{name: "asymmetric algorithm", cfg: TokenConfig{Secret: "s", Algorithm: "RS256"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewJWTService(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, AccessTokenExpiry, svc.AccessTTL())
		})
	}
}
