package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/password"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/google/uuid"
)

// User service errors
var (
	ErrUserAlreadyExists   = errors.New("username already exists")
	ErrOldPasswordWrong    = errors.New("old password is incorrect")
	ErrCannotDeleteSelf    = errors.New("cannot delete your own account")
	ErrCannotChangeOwnRole = errors.New("cannot change your own role")
)

// UserService handles user management business logic
type UserService struct {
	userRepo repositories.UserRepository
	events   pubsub.Publisher
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, events pubsub.Publisher) *UserService {
	return &UserService{userRepo: userRepo, events: events, now: time.Now}
}

// CreateUserInput is an admin creating an account
type CreateUserInput struct {
	Username string          `json:"username"`
	FullName string          `json:"full_name"`
	Password string          `json:"password"`
	Role     string          `json:"role"`
	Profile  *domain.Profile `json:"profile"`
}

// UpdateUserInput is an admin editing an account; nil fields are left alone
type UpdateUserInput struct {
	FullName *string         `json:"full_name"`
	Role     *string         `json:"role"`
	IsActive *bool           `json:"is_active"`
	Password *string         `json:"password"`
	Profile  *domain.Profile `json:"profile"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ListUsersOutput represents list users output
type ListUsersOutput struct {
	Users []*UserResponse `json:"users"`
	Total int64           `json:"total"`
}

// Create registers a user. Only admins manage accounts.
func (s *UserService) Create(ctx context.Context, actor domain.Actor, input *CreateUserInput) (*UserResponse, error) {
	if err := actor.Require(domain.ActionManageUsers, ""); err != nil {
		return nil, err
	}

	user, err := BuildUser(input)
	if err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserAlreadyExists
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	log.Printf("✅ User created: %s (%s) by %s", user.Username, user.Role, actor.ID)
	s.publish(user.ID, pubsub.KindCreated)
	return NewUserResponse(user), nil
}

// BuildUser validates input and hashes the password. Shared with the operator CLI.
func BuildUser(input *CreateUserInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if len(username) < 3 || len(username) > 50 {
		return nil, fmt.Errorf("%w: username must be 3-50 characters", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(input.FullName) == "" {
		return nil, fmt.Errorf("%w: full name is required", domain.ErrInvalidInput)
	}
	role, err := domain.ParseRole(input.Role)
	if err != nil {
		return nil, err
	}
	if err := password.Validate(input.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	hashed, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	return &domain.User{
		ID:       uuid.NewString(),
		Username: username,
		FullName: strings.TrimSpace(input.FullName),
		Password: hashed,
		Role:     role,
		IsActive: true,
		Profile:  input.Profile,
	}, nil
}

// List lists users with pagination
func (s *UserService) List(ctx context.Context, actor domain.Actor, offset, limit int) (*ListUsersOutput, error) {
	if err := actor.Require(domain.ActionManageUsers, ""); err != nil {
		return nil, err
	}

	users, total, err := s.userRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	out := &ListUsersOutput{Users: make([]*UserResponse, 0, len(users)), Total: total}
	for _, u := range users {
		out.Users = append(out.Users, NewUserResponse(u))
	}
	return out, nil
}

// Get returns one user; members may only read themselves
func (s *UserService) Get(ctx context.Context, actor domain.Actor, id string) (*UserResponse, error) {
	if actor.ID != id {
		if err := actor.Require(domain.ActionManageUsers, ""); err != nil {
			return nil, err
		}
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewUserResponse(user), nil
}

// Update edits a user by admin
func (s *UserService) Update(ctx context.Context, actor domain.Actor, id string, input *UpdateUserInput) (*UserResponse, error) {
	if err := actor.Require(domain.ActionManageUsers, ""); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Role != nil {
		role, err := domain.ParseRole(*input.Role)
		if err != nil {
			return nil, err
		}
		if id == actor.ID && role != user.Role {
			return nil, ErrCannotChangeOwnRole
		}
		user.Role = role
	}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: full name is required", domain.ErrInvalidInput)
		}
		user.FullName = name
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.Profile != nil {
		user.Profile = input.Profile
	}
	if input.Password != nil {
		if err := password.Validate(*input.Password); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		hashed, err := password.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.publish(user.ID, pubsub.KindUpdated)
	return NewUserResponse(user), nil
}

// Delete removes a user. Admins cannot remove themselves.
func (s *UserService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := actor.Require(domain.ActionManageUsers, ""); err != nil {
		return err
	}
	if id == actor.ID {
		return ErrCannotDeleteSelf
	}
	if err := s.userRepo.Delete(ctx, id); err != nil {
		return err
	}

	log.Printf("✅ User deleted: %s by %s", id, actor.ID)
	s.publish(id, pubsub.KindDeleted)
	return nil
}

// ChangePassword changes the caller's own password
func (s *UserService) ChangePassword(ctx context.Context, userID string, input *ChangePasswordInput) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !password.Verify(input.OldPassword, user.Password) {
		return ErrOldPasswordWrong
	}
	if err := password.Validate(input.NewPassword); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	hashed, err := password.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	return s.userRepo.Update(ctx, user)
}

func (s *UserService) publish(id, kind string) {
	s.events.Publish(pubsub.Event{Path: pubsub.UserPath(id), Kind: kind, At: s.now()})
}
