package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/storage"
)

// UserService exposes profile reads and partial updates.
type UserService struct {
	storage *storage.SQLiteRepository
}

func NewUserService(storage *storage.SQLiteRepository) *UserService {
	return &UserService{storage: storage}
}

// ProfileUpdate carries the optional profile fields; nil means "leave as is".
type ProfileUpdate struct {
	Username *string      `json:"username"`
	Email    *string      `json:"email"`
	Phone    *string      `json:"phone"`
	Gender   *core.Gender `json:"gender"`
	Age      *int         `json:"age"`
}

// Profile returns the user's own profile.
func (s *UserService) Profile(ctx context.Context, userID int64) (*core.User, error) {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of upd to the user's profile.
// A username change re-checks uniqueness.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*core.User, error) {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		if username == "" {
			return nil, invalid(core.ErrEmptyName)
		}
		if username != user.Username {
			exists, err := s.storage.UsernameExists(ctx, username)
			if err != nil {
				return nil, fmt.Errorf("check username: %w", err)
			}
			if exists {
				return nil, conflict("username already taken")
			}
			user.Username = username
		}
	}
	if upd.Email != nil {
		user.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.Phone != nil {
		user.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.Gender != nil {
		user.Gender = *upd.Gender
	}
	if upd.Age != nil {
		user.Age = upd.Age
	}

	if err := s.storage.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}
