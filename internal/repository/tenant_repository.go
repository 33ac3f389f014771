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

const tenantColumns = `id, display_name, login_prefix, is_active, version, created_at, updated_at`

// PostgresTenantRepository implements domain.TenantRepository using PostgreSQL
type PostgresTenantRepository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresTenantRepository creates a new tenant repository
func NewPostgresTenantRepository(db *sqlx.DB, logger *slog.Logger) *PostgresTenantRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTenantRepository{db: db, logger: logger}
}

// Create creates a new tenant. The partial unique index rejects a prefix
// already held by an active tenant.
func (r *PostgresTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	now := time.Now().UTC()
	tenant.Version = 1
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES (:id, :display_name, :login_prefix, :is_active, :version, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, tenant); err != nil {
		return r.mapWriteError(err, tenant)
	}
	return nil
}

// GetByID retrieves a tenant by ID
func (r *PostgresTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: tenant %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// GetActiveByPrefix resolves a login prefix to its active tenant
func (r *PostgresTenantRepository) GetActiveByPrefix(ctx context.Context, prefix string) (*domain.Tenant, error) {
	var t domain.Tenant
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE login_prefix = $1 AND is_active`
	if err := r.db.GetContext(ctx, &t, query, prefix); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: prefix %s", domain.ErrNotFound, prefix)
		}
		return nil, fmt.Errorf("failed to get tenant by prefix: %w", err)
	}
	return &t, nil
}

// Update writes display name, prefix and active flag under a version check
func (r *PostgresTenantRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		UPDATE tenants SET
			display_name = :display_name,
			login_prefix = :login_prefix,
			is_active = :is_active,
			version = version + 1,
			updated_at = NOW()
		WHERE id = :id AND version = :version`

	result, err := r.db.NamedExecContext(ctx, query, tenant)
	if err != nil {
		return r.mapWriteError(err, tenant)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := r.GetByID(ctx, tenant.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: tenant %s", domain.ErrVersionConflict, tenant.ID)
	}
	tenant.Version++
	tenant.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns every tenant ordered by display name
func (r *PostgresTenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	var tenants []domain.Tenant
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY display_name ASC`
	if err := r.db.SelectContext(ctx, &tenants, query); err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	out := make([]*domain.Tenant, len(tenants))
	for i := range tenants {
		out[i] = &tenants[i]
	}
	return out, nil
}

func (r *PostgresTenantRepository) mapWriteError(err error, tenant *domain.Tenant) error {
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == "tenants_active_prefix_key" {
			return fmt.Errorf("%w: %s", domain.ErrDuplicatePrefix, tenant.LoginPrefix)
		}
		return fmt.Errorf("%w: tenant %s already exists", domain.ErrInvalidInput, tenant.ID)
	}
	r.logger.Error("failed to write tenant",
		slog.String("tenant_id", tenant.ID),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("failed to write tenant: %w", err)
}
