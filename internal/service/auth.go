// Package service provides the business logic for accounts and projects,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/atinyakov/CipherStudio/internal/auth"
	"github.com/atinyakov/CipherStudio/internal/common"
	"github.com/atinyakov/CipherStudio/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Messages returned to API callers.
const (
	MsgRegistered        = "Account created successfully! Welcome to CipherStudio."
	MsgLoggedIn          = "Login successful"
	MsgEmailTaken        = "An account with this email already exists. Please try logging in instead."
	MsgInvalidCreds      = "Invalid credentials"
	MsgInvalidEmail      = "Please enter a valid email address"
	MsgEmailRequired     = "Email is required"
	MsgPasswordRequired  = "Password is required"
	MsgPasswordTooShort  = "Password must be at least 6 characters long"
	MsgPasswordTooLong   = "Password must be at most 72 bytes long"
	MsgUserNotFound      = "User not found"
	MsgRegistrationError = "Registration failed. Please try again."
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// EmailExists reports whether the email is already registered.
	EmailExists(ctx context.Context, email string) (bool, error)
	// CreateUser stores a new user. A taken email yields common.ErrAlreadyExists.
	CreateUser(ctx context.Context, u *models.User) error
	// GetUserByEmail returns common.ErrNotFound for an unknown email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID returns common.ErrNotFound for an unknown id.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// TokenIssuer signs bearer tokens for a user id.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

// AuthService registers users and logs them in.
type AuthService struct {
	repo   AuthRepository
	tokens TokenIssuer
	cost   int
	log    *zap.Logger

	// dummy is compared against for unknown emails; it has the same cost as
	// stored hashes.
	dummy []byte
	check func(hash []byte, password string) bool
}

// NewAuthService constructs an AuthService. cost is the bcrypt cost.
func NewAuthService(repo AuthRepository, tokens TokenIssuer, cost int, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	dummy, err := auth.DummyHash(cost)
	if err != nil {
		log.Error("failed to build dummy password hash", zap.Int("cost", cost), zap.Error(err))
	}
	return &AuthService{
		repo:   repo,
		tokens: tokens,
		cost:   cost,
		log:    log,
		dummy:  dummy,
		check:  auth.CheckPassword,
	}
}

// Register validates the credentials, stores a new user and returns a token.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.AuthResult, error) {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.NewError(common.ErrAlreadyExists, MsgEmailTaken)
	}

	hash, err := auth.HashPassword(password, s.cost)
	if err != nil {
		s.log.Error("hash password", zap.Error(err))
		return nil, errors.New(MsgRegistrationError)
	}

	u := &models.User{ID: uuid.NewString(), Email: email, PasswordHash: hash}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.NewError(common.ErrAlreadyExists, MsgEmailTaken)
		}
		return nil, err
	}

	token, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", u.ID))
	return &models.AuthResult{
		Message: MsgRegistered,
		Token:   token,
		User:    models.PublicUser{ID: u.ID, Email: u.Email},
	}, nil
}

// Login checks the credentials and returns a token. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	invalid := common.NewError(common.ErrUnauthorized, MsgInvalidCreds)

	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, common.ErrNotFound) {
		s.check(s.dummy, password)
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !s.check(u.PasswordHash, password) {
		return nil, invalid
	}

	token, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResult{
		Message: MsgLoggedIn,
		Token:   token,
		User:    models.PublicUser{ID: u.ID, Email: u.Email},
	}, nil
}

// Profile returns the account of a signed-in user.
func (s *AuthService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewError(common.ErrNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &models.Profile{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	var msgs []string
	switch {
	case email == "":
		msgs = append(msgs, MsgEmailRequired)
	case !emailPattern.MatchString(email):
		msgs = append(msgs, MsgInvalidEmail)
	}
	switch {
	case password == "":
		msgs = append(msgs, MsgPasswordRequired)
	case len([]rune(password)) < minPasswordLength:
		msgs = append(msgs, MsgPasswordTooShort)
	case len(password) > auth.MaxPasswordBytes:
		msgs = append(msgs, MsgPasswordTooLong)
	}
	if len(msgs) > 0 {
		return common.NewError(common.ErrValidation, strings.Join(msgs, ". "))
	}
	return nil
}
