// Package auth implements account signup and JWT-based authentication.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

var (
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

const duplicateEmailMessage = "user with this email already exists."

// SignupInput is the payload accepted by Signup.
type SignupInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
}

// TokenPair is returned on login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Service authenticates users against the users table.
type Service struct {
	users      *repository.UsersRepository
	tokens     *Tokens
	bcryptCost int
	logger     *logger.Logger
}

// Options tunes the service. Zero values select defaults.
type Options struct {
	BcryptCost int
	Logger     *logger.Logger
}

// NewService wires the authentication provider.
func NewService(users *repository.UsersRepository, tokens *Tokens, opts Options) *Service {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{users: users, tokens: tokens, bcryptCost: cost, logger: log.With("component", "auth")}
}

// Tokens exposes the token issuer.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Signup registers an active account. Invalid input and a taken email are
// reported as validate.Errors.
func (s *Service) Signup(ctx context.Context, in SignupInput) (domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Password = strings.TrimSpace(in.Password)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validate.Struct(in); err != nil {
		return domain.User{}, err
	}

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, validate.Field("email", duplicateEmailMessage)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, repository.UserCreateParams{
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    &in.FirstName,
		LastName:     &in.LastName,
		IsActive:     true,
	})
	if errors.Is(err, repository.ErrConflict) {
		return domain.User{}, validate.Field("email", duplicateEmailMessage)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

// ObtainPair checks credentials and issues an access/refresh pair. Missing
// fields are validate.Errors. Wrong credentials or an inactive account return
// ErrInvalidCredentials.
func (s *Service) ObtainPair(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)
	missing := validate.Errors{}
	if email == "" {
		missing.Add("email", "This field is required.")
	}
	if password == "" {
		missing.Add("password", "This field is required.")
	}
	if err := missing.Err(); err != nil {
		return TokenPair{}, err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.TouchLastSeen(ctx, u.ID); err != nil {
		s.logger.Warn("touch last_seen failed", "user_id", u.ID, "error", err)
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *Service) Refresh(ctx context.Context, refresh string) (string, error) {
	if strings.TrimSpace(refresh) == "" {
		return "", validate.Field("refresh", "This field is required.")
	}
	claims, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return "", err
	}
	u, err := s.activeUser(ctx, claims)
	if err != nil {
		return "", err
	}
	return s.tokens.Access(u.UUID)
}

// Verify reports whether token is any currently valid token.
func (s *Service) Verify(token string) error {
	if strings.TrimSpace(token) == "" {
		return validate.Field("token", "This field is required.")
	}
	_, err := s.tokens.ParseAny(token)
	return err
}

// Authenticate resolves an access token to its active user.
func (s *Service) Authenticate(ctx context.Context, access string) (domain.User, error) {
	claims, err := s.tokens.ParseAccess(access)
	if err != nil {
		return domain.User{}, err
	}
	return s.activeUser(ctx, claims)
}

func (s *Service) activeUser(ctx context.Context, claims Claims) (domain.User, error) {
	u, err := s.users.GetByUUID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, ErrTokenInvalid
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return domain.User{}, ErrInactiveUser
	}
	return u, nil
}

func (s *Service) issuePair(u domain.User) (TokenPair, error) {
	access, err := s.tokens.Access(u.UUID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.Refresh(u.UUID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// HashPassword hashes a plaintext password with the service cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
