// Package service provides the business logic for accounts and reports,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/balalab/portal/internal/models"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

var (
	// ErrEmailTaken is returned when registering an already-used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on login with a bad email or password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines the persistence operations required by AuthService.
type UserRepository interface {
	// EmailExists returns true if a user with the given email exists.
	EmailExists(ctx context.Context, email string) (bool, error)
	// CreateUser inserts a new user record.
	CreateUser(ctx context.Context, user *models.User) error
	// GetByEmail fetches a user by email, sql.ErrNoRows when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByID fetches a user by ID, sql.ErrNoRows when absent.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// ListByRole returns all users with the given role.
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// AuthService implements registration, login, and account lookup.
type AuthService struct {
	// repo performs the data-layer operations.
	repo UserRepository
}

// NewAuthService constructs an AuthService using the provided repository.
func NewAuthService(repo UserRepository) *AuthService {
	return &AuthService{repo: repo}
}

// Register creates a new account with a bcrypt-hashed password.
// Unknown roles are coerced to RoleUser. Returns ErrEmailTaken when the
// email is already registered.
func (s *AuthService) Register(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.ParseRole(string(role)),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		// a concurrent registration can slip past the exists check and
		// land on the users.email unique constraint instead
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// Login verifies the credentials and returns the account.
// Unknown email and wrong password both map to ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID resolves an account by its identifier, used to rebuild identity
// from a bearer token. Returns ErrUserNotFound for a stale token.
func (s *AuthService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListPatients returns every account with the user role, the population an
// admin can assign reports to.
func (s *AuthService) ListPatients(ctx context.Context) ([]models.User, error) {
	return s.repo.ListByRole(ctx, models.RoleUser)
}
