package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amberops/workspace/internal/domain"
)

const userColumns = `
	id, tenant_id, login, first_name, last_name, email, role, is_active,
	password_hash, last_login_at, version, created_at, updated_at`

// PostgresUserRepository implements domain.UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository
func NewPostgresUserRepository(db *sqlx.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user at version 1
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.Version = 1
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (
			:id, :tenant_id, :login, :first_name, :last_name, :email, :role, :is_active,
			:password_hash, :last_login_at, :version, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "users_tenant_login_key" {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateLogin, user.Login)
			}
			return fmt.Errorf("%w: user %s already exists", domain.ErrInvalidInput, user.ID)
		}
		r.logger.Error("failed to create user",
			slog.String("tenant_id", user.TenantID),
			slog.String("login", user.Login),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
		}
		r.logger.Error("failed to get user by id",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// GetByLogin retrieves a user by its login within a tenant. Inactive users are returned.
func (r *PostgresUserRepository) GetByLogin(ctx context.Context, tenantID, login string) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND login = $2`

	if err := r.db.GetContext(ctx, &user, query, tenantID, login); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: login %s", domain.ErrNotFound, login)
		}
		return nil, fmt.Errorf("failed to get user by login: %w", err)
	}

	return &user, nil
}

// Update writes mutable fields when the stored version still equals user.Version
func (r *PostgresUserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users SET
			first_name = :first_name,
			last_name = :last_name,
			email = :email,
			role = :role,
			is_active = :is_active,
			password_hash = :password_hash,
			version = version + 1,
			updated_at = NOW()
		WHERE id = :id AND version = :version`

	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, user.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: user %s", domain.ErrVersionConflict, user.ID)
	}

	user.Version++
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordLogin sets last_login_at without touching the version
func (r *PostgresUserRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return nil
}

// ListByTenant lists all users for a tenant, active or not
func (r *PostgresUserRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.User, error) {
	var users []domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 ORDER BY login ASC`

	if err := r.db.SelectContext(ctx, &users, query, tenantID); err != nil {
		r.logger.Error("failed to list users by tenant",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]*domain.User, len(users))
	for i := range users {
		result[i] = &users[i]
	}
	return result, nil
}
