package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"memo-service/internal/domain"
	"memo-service/internal/repository"
)

// UserService is the credential store: account creation and password checks.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	logger *logrus.Logger
	cost   int

	dummyOnce sync.Once
	dummyHash []byte
}

func NewUserService(users repository.UserRepository, logger *logrus.Logger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:  users,
		logger: logger,
		cost:   bcrypt.DefaultCost,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateCredentials(username, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return sanitizeUser(user), nil
}

func validateCredentials(username, email, password string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", domain.ErrValidation)
	case utf8.RuneCountInString(username) > domain.MaxUsernameLength:
		return fmt.Errorf("%w: username must be at most %d characters", domain.ErrValidation, domain.MaxUsernameLength)
	case email == "":
		return fmt.Errorf("%w: email is required", domain.ErrValidation)
	case utf8.RuneCountInString(email) > domain.MaxEmailLength:
		return fmt.Errorf("%w: email must be at most %d characters", domain.ErrValidation, domain.MaxEmailLength)
	case !strings.Contains(email, "@"):
		return fmt.Errorf("%w: email is invalid", domain.ErrValidation)
	case password == "":
		return fmt.Errorf("%w: password is required", domain.ErrValidation)
	case len(password) > domain.MaxPasswordBytes:
		return fmt.Errorf("%w: password must be at most %d bytes", domain.ErrValidation, domain.MaxPasswordBytes)
	}
	return nil
}

// Authenticate never tells the caller whether the username exists; the reason
// for a failure only reaches the log.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || len(password) > domain.MaxPasswordBytes {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// spend the same bcrypt time as a real comparison
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			s.logger.WithFields(logrus.Fields{"username": username, "reason": "unknown_user"}).Info("login failed")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithFields(logrus.Fields{"username": username, "reason": "bad_password"}).Info("login failed")
		return nil, domain.ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("memo-service-dummy-password"), s.cost)
		if err != nil {
			s.logger.WithError(err).Warn("generate dummy hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
