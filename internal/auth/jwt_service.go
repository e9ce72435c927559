package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	apperrors "irisapi/internal/errors"
	"irisapi/internal/logging"
	"irisapi/internal/metrics"
)

const (
	// AccessTokenExpiry is the default lifetime of access tokens.
	AccessTokenExpiry = 30 * time.Minute
	// RefreshTokenExpiry is the default lifetime of refresh tokens.
	RefreshTokenExpiry = 7 * 24 * time.Hour
	// TokenTypeBearer is reported in every issued pair.
	TokenTypeBearer = "bearer"
)

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Claims represents JWT claims.
type Claims struct {
	Email       string    `json:"email,omitempty"`
	AccessLevel string    `json:"access_level,omitempty"`
	TokenType   TokenKind `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Identity is the verified subject of a token.
type Identity struct {
	UserID      uint   `json:"user_id"`
	Email       string `json:"email"`
	AccessLevel string `json:"access_level"`
}

// TokenConfig configures a JWTService.
type TokenConfig struct {
	Secret     string
	Algorithm  string // HS256, HS384 or HS512
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWTService handles JWT token generation and validation. It holds no mutable
// state and is safe for concurrent use.
type JWTService struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option customizes a JWTService.
type Option func(*JWTService)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

// NewJWTService creates a new JWT service.
func NewJWTService(cfg TokenConfig, opts ...Option) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	var method *jwt.SigningMethodHMAC
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = AccessTokenExpiry
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = RefreshTokenExpiry
	}

	s := &JWTService{
		secret:     []byte(cfg.Secret),
		method:     method,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the access token lifetime.
func (s *JWTService) AccessTTL() time.Duration {
	return s.accessTTL
}

// IssuePair issues an access and a refresh token carrying the same identity.
func (s *JWTService) IssuePair(userID uint, email, accessLevel string) (*TokenPair, error) {
	now := s.now()

	accessToken, err := s.generate(userID, email, accessLevel, AccessToken, now.Add(s.accessTTL), now)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.generate(userID, email, accessLevel, RefreshToken, now.Add(s.refreshTTL), now)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

func (s *JWTService) generate(userID uint, email, accessLevel string, kind TokenKind, expiresAt, now time.Time) (string, error) {
	claims := &Claims{
		Email:       email,
		AccessLevel: accessLevel,
		TokenType:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
}

// VerifyAccessToken verifies an access token.
func (s *JWTService) VerifyAccessToken(token string) (*Identity, error) {
	return s.Verify(token, AccessToken)
}

// VerifyRefreshToken verifies a refresh token.
func (s *JWTService) VerifyRefreshToken(token string) (*Identity, error) {
	return s.Verify(token, RefreshToken)
}

// Verify validates token as a token of the expected kind. Every failure is
// reported as ErrInvalidToken; the specific reason is only logged.
func (s *JWTService) Verify(token string, kind TokenKind) (*Identity, error) {
	identity, reason := s.verify(token, kind)
	if reason != nil {
		logging.Debug().Str("kind", string(kind)).Err(reason).Msg("token rejected")
		metrics.TokenVerifications.WithLabelValues(string(kind), "invalid").Inc()
		return nil, apperrors.ErrInvalidToken
	}
	metrics.TokenVerifications.WithLabelValues(string(kind), "valid").Inc()
	return identity, nil
}

func (s *JWTService) verify(tokenString string, kind TokenKind) (*Identity, error) {
	// Time-based claims are checked below against s.now, strictly and without leeway.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	now := s.now()
	if !claims.VerifyExpiresAt(now, true) {
		return nil, errors.New("token expired or missing exp")
	}
	if !claims.VerifyNotBefore(now, false) {
		return nil, errors.New("token used before nbf")
	}
	if claims.TokenType != kind {
		return nil, fmt.Errorf("token type %q, expected %q", claims.TokenType, kind)
	}
	if claims.Subject == "" || claims.Email == "" || claims.AccessLevel == "" {
		return nil, errors.New("token is missing identity claims")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	return &Identity{
		UserID:      uint(userID),
		Email:       claims.Email,
		AccessLevel: claims.AccessLevel,
	}, nil
}
