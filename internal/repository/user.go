// Package repository provides Postgres persistence for users and reports.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/balalab/portal/internal/models"
)

// PostgresUserRepository implements user persistence against PostgreSQL.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a PostgresUserRepository with the given
// database connection. db must be a valid *sql.DB connected to PostgreSQL.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// EmailExists checks whether a user with the given email is registered.
func (s *PostgresUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	return exists, err
}

// CreateUser inserts a new user row.
func (s *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.DB.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Email, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return nil
}

// GetByEmail fetches one user by email. Returns sql.ErrNoRows when absent.
func (s *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID fetches one user by ID. Returns sql.ErrNoRows when absent.
func (s *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, role, created_at FROM users WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByRole returns all users carrying the given role.
func (s *PostgresUserRepository) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, email, password_hash, role, created_at FROM users WHERE role = $1 ORDER BY created_at
	`, role)
	if err != nil {
		return nil, fmt.Errorf("ListByRole: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return users, nil
}
