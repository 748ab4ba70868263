package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cashflow/internal/auth"
	"cashflow/internal/core"
	"cashflow/internal/notify"
	"cashflow/internal/storage"
	"cashflow/internal/verification"
)

// AuthService handles registration, login and verification-code delivery.
type AuthService struct {
	storage  *storage.SQLiteRepository
	jwt      *auth.JWTManager
	codes    *verification.Store
	registry *notify.Registry
}

func NewAuthService(storage *storage.SQLiteRepository, jwt *auth.JWTManager, codes *verification.Store, registry *notify.Registry) *AuthService {
	return &AuthService{
		storage:  storage,
		jwt:      jwt,
		codes:    codes,
		registry: registry,
	}
}

// RegisterRequest carries the fields accepted at registration.
type RegisterRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
	Gender   core.Gender `json:"gender"`
	Age      *int        `json:"age"`
	Code     string      `json:"code"`
}

// LoginResult is returned on successful login or registration.
type LoginResult struct {
	Token string     `json:"token"`
	User  *core.User `json:"user"`
}

// Register creates a new account. The verification code previously sent to
// the email or phone must match and is consumed on success.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, invalid(core.ErrEmptyName)
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, invalid(err)
	}
	target := strings.TrimSpace(req.Email)
	if target == "" {
		target = strings.TrimSpace(req.Phone)
	}
	if target == "" {
		return nil, invalid(errors.New("email or phone required"))
	}
	if !s.codes.Verify(target, req.Code) {
		return nil, invalid(errors.New("invalid or expired verification code"))
	}

	exists, err := s.storage.UsernameExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, conflict("username already taken")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &core.User{
		Username:     username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Gender:       req.Gender,
		Age:          req.Age,
		CreatedAt:    time.Now(),
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username)
	return &LoginResult{Token: token, User: user}, nil
}

// Login authenticates by username, email or phone plus password.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, invalid(errors.New("identifier and password required"))
	}

	user, err := s.storage.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: bad credentials", ErrUnauthorized)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("%w: bad credentials", ErrUnauthorized)
	}

	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &LoginResult{Token: token, User: user}, nil
}

// SendCode generates a one-time verification code for target and dispatches
// it through the provider registry selected by method.
func (s *AuthService) SendCode(ctx context.Context, target, method string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return invalid(errors.New("target required"))
	}

	code, err := s.codes.Generate(target)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	if err := s.registry.Send(ctx, method, target, code); err != nil {
		if errors.Is(err, notify.ErrUnsupportedMethod) {
			return invalid(err)
		}
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}
