package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/letter-service/internal/auth"
	"github.com/spec-kit/letter-service/internal/domain"
	"github.com/spec-kit/letter-service/internal/events"
	"github.com/spec-kit/letter-service/internal/repository"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

// LoginResult carries the issued session token.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates login, logout and account bootstrap.
type AuthService struct {
	users      repository.UserRepository
	sessions   auth.SessionStore
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	clock      Clock
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Sessions   auth.SessionStore
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	BcryptCost int
	Clock      Clock
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.Sessions,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     nopLogger(deps.Logger),
		bcryptCost: deps.BcryptCost,
		clock:      orNow(deps.Clock),
	}
}

// Login verifies credentials and opens a revocable session. Unknown users and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "this field is required"
	}
	if password == "" {
		fields["password"] = "this field is required"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			auth.BurnCompare(password)
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	now := s.clock()
	session := domain.Session{ID: uuid.NewString(), UserID: user.ID, IssuedAt: now}
	token, exp, err := s.tokens.GenerateToken(user.ID, session.ID, now)
	if err != nil {
		return nil, err
	}
	session.ExpiresAt = exp
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventSessionStarted, user.ID, user.Actor(), nil))
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// Logout revokes the caller's session.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := s.sessions.Revoke(ctx, principal.SessionID); err != nil {
		return apperrors.NewInternalError(err)
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.New(events.EventSessionEnded, principal.Actor.UserID, principal.Actor, nil))
	return nil
}

// CreateSuperuser bootstraps a global-scope account. It is only reachable from the CLI.
func (s *AuthService) CreateSuperuser(ctx context.Context, username, password string) (*domain.User, error) {
	user := &domain.User{}
	fields := applyUserInput(user, UserInput{Username: username})
	if msg := passwordProblem(password, auth.MinSuperuserPasswordLength); msg != "" {
		fields["password"] = msg
	}
	if len(fields) > 0 {
		return nil, apperrors.NewFieldErrors(fields)
	}
	user.IsSuperuser = true
	user.IsStaff = true

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapRepoError(err, "user")
	}
	return user, nil
}
