// Package app assembles the workspace service from configuration: stores,
// security components, services, HTTP routes and background workers.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/featureflags"
	"github.com/amberops/workspace/internal/handler"
	"github.com/amberops/workspace/internal/infrastructure/redis"
	"github.com/amberops/workspace/internal/repository"
	"github.com/amberops/workspace/internal/repository/memory"
	"github.com/amberops/workspace/internal/security"
	"github.com/amberops/workspace/internal/security/audit"
	"github.com/amberops/workspace/internal/security/auth"
	"github.com/amberops/workspace/internal/security/ratelimit"
	"github.com/amberops/workspace/internal/service"
	"github.com/amberops/workspace/internal/worker"
	"github.com/amberops/workspace/pkg/config"
	"github.com/amberops/workspace/pkg/database"
)

// DemoTenants are the country workspaces seeded when the seed flag is on
var DemoTenants = []service.TenantInput{
	{ID: "poland", DisplayName: "Poland", LoginPrefix: "pl"},
	{ID: "georgia", DisplayName: "Georgia", LoginPrefix: "ge"},
	{ID: "colombia", DisplayName: "Colombia", LoginPrefix: "co"},
	{ID: "latvia", DisplayName: "Latvia", LoginPrefix: "lv"},
	{ID: "lithuania", DisplayName: "Lithuania", LoginPrefix: "lt"},
}

// App is a fully wired workspace service
type App struct {
	Handler  http.Handler
	Auth     *service.AuthService
	Sessions *service.SessionService
	Users    *service.UserService
	Tenants  *service.TenantService

	cleanup  *worker.CleanupWorker
	limiters []*ratelimit.Limiter
	closers  []func() error
	logger   *slog.Logger
}

type stores struct {
	users    domain.UserRepository
	tenants  domain.TenantRepository
	creds    domain.CredentialRepository
	sessions interface {
		domain.SessionRepository
		worker.SessionSweeper
	}
	checks map[string]handler.Checker
}

// New builds the service. Postgres is used when DatabaseURL is set and
// Redis when RedisURL is set; otherwise the in-memory stores back them.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{logger: log}

	// 1. Stores
	st, err := a.openStores(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// 2. Security components
	authz := security.NewAuthorizationService(log)
	dataAccess := security.NewDataAccessService(log)
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	policy := auth.PasswordPolicy{MinLength: cfg.MinPasswordLength}
	auditLogger := audit.NewLogger(log)

	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomHex(32)
		log.Warn("JWT_SECRET not set; using an ephemeral signing key")
	}
	tokens := auth.NewTokenManager(secret, cfg.JWTIssuer)

	// 3. Services
	a.Users = service.NewUserService(st.users, st.sessions, authz, hasher, policy, auditLogger, log)
	a.Tenants = service.NewTenantService(st.tenants, st.users, st.sessions, a.Users, authz, auditLogger, cfg.TenantCacheTTL, log)
	a.Sessions = service.NewSessionService(st.sessions, a.Tenants, authz, auditLogger, cfg.SessionTTL, cfg.SuperAdminDefaultTenant, log)

	bootstrap := cfg.SuperAdminBootstrapPassword
	if bootstrap == "" && !cfg.IsProduction() {
		bootstrap = randomHex(12)
	}
	a.Auth = service.NewAuthService(service.AuthConfig{
		ReservedLogin:     cfg.SuperAdminLogin,
		BootstrapPassword: bootstrap,
		Policy:            policy,
	}, a.Tenants, st.users, st.creds, hasher, authz, auditLogger, log)

	// 4. Bootstrap data
	if err := a.bootstrap(ctx, cfg, bootstrap); err != nil {
		a.Close()
		return nil, err
	}

	// 5. HTTP surface
	apiLimiter := ratelimit.NewLimiter(cfg.APIRateLimit, cfg.APIRateWindow)
	loginLimiter := ratelimit.NewLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	a.limiters = append(a.limiters, apiLimiter, loginLimiter)

	a.Handler = handler.NewRouter(handler.RouterConfig{
		Auth:           handler.NewAuthHandler(a.Auth, a.Sessions, tokens, cfg.SessionTTL, log),
		Session:        handler.NewSessionHandler(a.Sessions, log),
		Authz:          handler.NewAuthzHandler(authz, dataAccess, log),
		Users:          handler.NewUserHandler(a.Users, log),
		Tenants:        handler.NewTenantHandler(a.Tenants, log),
		Health:         handler.NewHealthHandler(st.checks, log),
		Tokens:         tokens,
		Sessions:       a.Sessions,
		Audit:          auditLogger,
		APILimiter:     apiLimiter,
		LoginLimiter:   loginLimiter,
		LoginRateLimit: cfg.LoginRateLimit,
		LoginWindow:    cfg.LoginRateWindow,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	})

	// 6. Workers
	a.cleanup = worker.NewCleanupWorker(st.sessions, log, cfg.SessionCleanupPeriod)
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{checks: map[string]handler.Checker{"postgres": nil, "redis": nil}}

	if cfg.DatabaseURL != "" {
		pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			return nil, err
		}
		db := pool.GetDB()
		st.users = repository.NewPostgresUserRepository(db, a.logger)
		st.tenants = repository.NewPostgresTenantRepository(db, a.logger)
		st.creds = repository.NewPostgresCredentialRepository(db)
		st.checks["postgres"] = pool.Health
	} else {
		a.logger.Warn("DATABASE_URL not set; users and tenants are kept in memory")
		st.users = memory.NewUserRepository()
		st.tenants = memory.NewTenantRepository()
		st.creds = memory.NewCredentialRepository()
	}

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		st.sessions = repository.NewRedisSessionRepository(client, a.logger)
		st.checks["redis"] = client.Ping
	} else {
		st.sessions = memory.NewSessionRepository()
	}
	return st, nil
}

func (a *App) bootstrap(ctx context.Context, cfg *config.Config, password string) error {
	seeded, err := a.Auth.EnsureSuperAdmin(ctx)
	if err != nil {
		return fmt.Errorf("seed super administrator: %w", err)
	}
	if seeded && cfg.SuperAdminBootstrapPassword == "" {
		a.logger.Warn("generated super administrator bootstrap password",
			slog.String("login", cfg.SuperAdminLogin),
			slog.String("password", password),
		)
	}

	if featureflags.Enabled(featureflags.SeedDemoTenants) {
		if err := SeedTenants(ctx, a.Tenants, DemoTenants); err != nil {
			return err
		}
	}
	return nil
}

// SeedTenants ensures every tenant in list exists
func SeedTenants(ctx context.Context, tenants *service.TenantService, list []service.TenantInput) error {
	for _, in := range list {
		if _, err := tenants.EnsureTenant(ctx, in); err != nil {
			if errors.Is(err, domain.ErrDuplicatePrefix) {
				continue
			}
			return fmt.Errorf("seed tenant %s: %w", in.ID, err)
		}
	}
	return nil
}

// Run starts the background workers; they stop when ctx is cancelled
func (a *App) Run(ctx context.Context) {
	go a.cleanup.Start(ctx)
}

// Close stops the rate limiters and closes the store connections
func (a *App) Close() error {
	for _, l := range a.limiters {
		l.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}
