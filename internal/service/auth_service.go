package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"irisapi/internal/auth"
	apperrors "irisapi/internal/errors"
	"irisapi/internal/logging"
	"irisapi/internal/metrics"
	"irisapi/internal/model"
	"irisapi/internal/repository"
)

// DefaultAccessLevel is granted when registration does not ask for one.
const DefaultAccessLevel = "setosa"

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email       string
	Password    string
	FullName    string
	AccessLevel string
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, *model.User, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Me(ctx context.Context, userID uint) (*model.User, error)
}

type authService struct {
	users      repository.UserRepository
	hasher     *auth.PasswordHasher
	jwtService *auth.JWTService
	categories map[string]string
	defaultLvl string
}

// NewAuthService creates a new authentication service. categories is the set
// of access levels a user may register with.
func NewAuthService(users repository.UserRepository, hasher *auth.PasswordHasher, jwtService *auth.JWTService, categories []string) AuthService {
	known := make(map[string]string, len(categories))
	for _, c := range categories {
		known[strings.ToLower(c)] = c
	}
	defaultLvl := DefaultAccessLevel
	if _, ok := known[defaultLvl]; !ok && len(categories) > 0 {
		defaultLvl = categories[0]
	}
	return &authService{
		users:      users,
		hasher:     hasher,
		jwtService: jwtService,
		categories: known,
		defaultLvl: defaultLvl,
	}
}

// Register creates an active user with a hashed password. The wildcard access
// level cannot be self-assigned.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	level := strings.TrimSpace(in.AccessLevel)
	switch {
	case level == "":
		level = s.defaultLvl
	case strings.EqualFold(level, model.AccessAll):
		return nil, apperrors.New(apperrors.KindValidation, "access level \"all\" cannot be requested at registration")
	default:
		canonical, ok := s.categories[strings.ToLower(level)]
		if !ok {
			return nil, apperrors.Newf(apperrors.KindValidation, "unknown access level %q", level)
		}
		level = canonical
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        repository.NormalizeEmail(in.Email),
		PasswordHash: hash,
		FullName:     in.FullName,
		AccessLevel:  level,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Wrap(apperrors.KindConflict, errors.New("user with this email already exists"))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logging.Info().Uint("user_id", user.ID).Str("access_level", level).Msg("user registered")
	return user, nil
}

// Authenticate succeeds iff the user exists, the password verifies and the
// account is active.
func (s *authService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.AuthAttempts.WithLabelValues("not_found").Inc()
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		metrics.AuthAttempts.WithLabelValues("wrong_password").Inc()
		return nil, apperrors.ErrWrongPassword
	}

	if !user.Active {
		metrics.AuthAttempts.WithLabelValues("inactive").Inc()
		return nil, apperrors.ErrInactive
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return user, nil
}

// Login authenticates and issues a token pair.
func (s *authService) Login(ctx context.Context, email, password string) (*auth.TokenPair, *model.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.jwtService.IssuePair(user.ID, user.Email, user.AccessLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("issue tokens: %w", err)
	}

	logging.Info().Uint("user_id", user.ID).Msg("user logged in")
	return pair, user, nil
}

// Refresh verifies a refresh token and issues a new pair from the stored
// user, so access level changes and deactivation take effect.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	identity, err := s.jwtService.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrInvalidToken
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.Active {
		return nil, apperrors.ErrInactive
	}

	pair, err := s.jwtService.IssuePair(user.ID, user.Email, user.AccessLevel)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}

// Me returns the stored user behind an access token.
func (s *authService) Me(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.KindDataNotFound, "user %d not found", userID)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}
