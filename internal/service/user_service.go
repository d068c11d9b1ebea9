package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/crypto"
	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/event"
	"github.com/retailcore/user-management/internal/repository"
	"github.com/retailcore/user-management/internal/token"
)

// UserService handles registration, login, and the order-driven tier
// lifecycle of the identity aggregate.
type UserService struct {
	users     repository.UserRepository
	publisher event.Publisher
	tokens    *token.Generator
	logger    *zap.Logger
}

func NewUserService(users repository.UserRepository, publisher event.Publisher, tokens *token.Generator, logger *zap.Logger) *UserService {
	return &UserService{users: users, publisher: publisher, tokens: tokens, logger: logger}
}

// CreateUserCommand registers a new user. AdminUser provisions an Admin
// account; tier promotion never does.
type CreateUserCommand struct {
	EmailAddress string `json:"email_address" binding:"required"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Password     string `json:"password" binding:"required"`
	AdminUser    bool   `json:"admin_user"`
}

// CreateUser hashes the password, persists the user, and publishes
// UserCreated. A publish failure surfaces as an internal error but the
// persisted user is not rolled back.
func (s *UserService) CreateUser(ctx context.Context, cmd CreateUserCommand) (domain.UserDTO, error) {
	hash, err := crypto.HashPassword(cmd.Password)
	if err != nil {
		return domain.UserDTO{}, domain.NewInternal("hash password", err)
	}

	var user domain.User
	if cmd.AdminUser {
		user = domain.NewAdminUser(cmd.EmailAddress, cmd.FirstName, cmd.LastName, hash)
	} else {
		user = domain.NewUser(cmd.EmailAddress, cmd.FirstName, cmd.LastName, hash)
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return domain.UserDTO{}, domain.NewInternal("persist user", err)
	}

	if err := s.publisher.PublishUserCreated(ctx, user.CreatedEvent()); err != nil {
		s.logger.Error("publish user created failed",
			zap.String("user_id", user.UserID),
			zap.Error(err),
		)
		return domain.UserDTO{}, domain.NewInternal("failure publishing event", err)
	}

	return user.DTO(), nil
}

// GetUserDetails loads a user by email address.
func (s *UserService) GetUserDetails(ctx context.Context, emailAddress string) (domain.UserDTO, error) {
	user, err := s.users.GetUser(ctx, crypto.HashIdentifier(emailAddress))
	if err != nil {
		return domain.UserDTO{}, err
	}
	return user.DTO(), nil
}

// LoginCommand authenticates a user with email and password.
type LoginCommand struct {
	EmailAddress string `json:"email_address" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

// LoginResponse carries the signed session token.
type LoginResponse struct {
	Token string `json:"token"`
}

// Login verifies the password and issues a session token. Returns
// domain.ErrNotFound for unknown users and domain.ErrInvalidPassword for a
// wrong password; the transport collapses both into one generic message.
func (s *UserService) Login(ctx context.Context, cmd LoginCommand) (LoginResponse, error) {
	user, err := s.users.GetUser(ctx, crypto.HashIdentifier(cmd.EmailAddress))
	if err != nil {
		return LoginResponse{}, err
	}

	if !crypto.VerifyPassword(cmd.Password, user.PasswordHash) {
		s.logger.Warn("login rejected", zap.String("user_id", user.UserID))
		return LoginResponse{}, domain.ErrInvalidPassword
	}

	signed, err := s.tokens.Generate(user)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{Token: signed}, nil
}

// OrderCompleted applies an order event to the aggregate: increments the
// order count and may promote the tier. Replayed events double-count; there
// is no idempotency key on the order number.
func (s *UserService) OrderCompleted(ctx context.Context, userID, orderNumber string) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.NewInternal("load user for order", err)
	}

	user.OrderPlaced()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return domain.NewInternal("persist user after order", err)
	}

	s.logger.Info("order recorded",
		zap.String("user_id", userID),
		zap.String("order_number", orderNumber),
		zap.Int("order_count", user.OrderCount),
		zap.String("tier", string(user.Tier)),
	)
	return nil
}
