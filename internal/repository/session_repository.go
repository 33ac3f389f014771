package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amberops/workspace/internal/domain"
	"github.com/amberops/workspace/internal/infrastructure/redis"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

func sessionKey(id string) string { return sessionKeyPrefix + id }
func userSessionsKey(uid string) string { return userSessionKeyPrefix + uid }

// RedisSessionRepository implements domain.SessionRepository using Redis.
// Each session is a JSON value expiring with the session; a per-user set
// indexes live session IDs so they can be revoked together.
type RedisSessionRepository struct {
	redis  *redis.Client
	logger *slog.Logger
}

// NewRedisSessionRepository creates a new session repository
func NewRedisSessionRepository(redisClient *redis.Client, logger *slog.Logger) *RedisSessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSessionRepository{
		redis:  redisClient,
		logger: logger,
	}
}

// Save stores a session with a TTL matching its expiry
func (r *RedisSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	if err := r.redis.Set(ctx, sessionKey(session.ID), string(data), ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if err := r.redis.SAdd(ctx, userSessionsKey(session.PrincipalUserID), ttl, session.ID); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}

	r.logger.Debug("session saved", slog.String("session_id", session.ID))
	return nil
}

// Get retrieves a session; expired or missing sessions return ErrSessionNotFound
func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.redis.Get(ctx, sessionKey(id))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

// Delete removes a session and its index entry
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	if err := r.redis.Delete(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := r.redis.SRem(ctx, userSessionsKey(session.PrincipalUserID), id); err != nil {
		r.logger.Warn("failed to unindex session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// DeleteByUser revokes every session of a user and returns how many were indexed
func (r *RedisSessionRepository) DeleteByUser(ctx context.Context, userID string) (int, error) {
	ids, err := r.redis.SMembers(ctx, userSessionsKey(userID))
	if err != nil {
		return 0, fmt.Errorf("failed to list user sessions: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}
	keys = append(keys, userSessionsKey(userID))
	if err := r.redis.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return len(ids), nil
}

// PurgeExpired drops index entries whose session key already expired in
// Redis and returns how many were removed. Session values expire on their own.
func (r *RedisSessionRepository) PurgeExpired(ctx context.Context) (int, error) {
	indexKeys, err := r.redis.Scan(ctx, userSessionKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to scan session indexes: %w", err)
	}
	removed := 0
	for _, indexKey := range indexKeys {
		ids, err := r.redis.SMembers(ctx, indexKey)
		if err != nil {
			return removed, fmt.Errorf("failed to list %s: %w", indexKey, err)
		}
		for _, id := range ids {
			n, err := r.redis.Exists(ctx, sessionKey(id))
			if err != nil {
				return removed, fmt.Errorf("failed to check session: %w", err)
			}
			if n > 0 {
				continue
			}
			if err := r.redis.SRem(ctx, indexKey, id); err != nil {
				return removed, fmt.Errorf("failed to unindex session: %w", err)
			}
			removed++
			r.logger.Debug("stale session index entry removed",
				slog.String("user_id", strings.TrimPrefix(indexKey, userSessionKeyPrefix)),
				slog.String("session_id", id),
			)
		}
	}
	return removed, nil
}

// CountSessions returns the number of live sessions
func (r *RedisSessionRepository) CountSessions(ctx context.Context) (int, error) {
	keys, err := r.redis.Scan(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return len(keys), nil
}
