package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amberops/workspace/internal/domain"
)

// PostgresCredentialRepository stores the super administrator credential
// in the single-row platform_credentials table.
type PostgresCredentialRepository struct {
	db *sqlx.DB
}

func NewPostgresCredentialRepository(db *sqlx.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{db: db}
}

func (r *PostgresCredentialRepository) GetSuperAdmin(ctx context.Context) (*domain.Credential, error) {
	var c domain.Credential
	query := `SELECT user_id, password_hash, version, updated_at FROM platform_credentials WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &c, query, domain.SuperAdminUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: super admin credential", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &c, nil
}

// CreateSuperAdmin seeds the credential; a concurrent seed loses with ErrVersionConflict
func (r *PostgresCredentialRepository) CreateSuperAdmin(ctx context.Context, cred *domain.Credential) error {
	cred.UserID = domain.SuperAdminUserID
	cred.Version = 1
	cred.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO platform_credentials (user_id, password_hash, version, updated_at)
		VALUES (:user_id, :password_hash, :version, :updated_at)
		ON CONFLICT (user_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, cred)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%w: super admin credential already exists", domain.ErrVersionConflict)
	}
	return nil
}

// ReplaceSuperAdmin swaps the password hash when cred.Version is current
func (r *PostgresCredentialRepository) ReplaceSuperAdmin(ctx context.Context, cred *domain.Credential) error {
	query := `
		UPDATE platform_credentials
		SET password_hash = :password_hash, version = version + 1, updated_at = NOW()
		WHERE user_id = :user_id AND version = :version`
	cred.UserID = domain.SuperAdminUserID
	result, err := r.db.NamedExecContext(ctx, query, cred)
	if err != nil {
		return fmt.Errorf("failed to replace credential: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: super admin credential", domain.ErrVersionConflict)
	}
	cred.Version++
	cred.UpdatedAt = time.Now().UTC()
	return nil
}
