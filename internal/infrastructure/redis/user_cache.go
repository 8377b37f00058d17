// Package redis caches user identities in front of the credential store so
// the access guard does not hit Postgres on every request.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/metrics"
	"github.com/ErlanBelekov/storefront/internal/repository"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "storefront:user:"
	// The version key is bumped on every write to a user. A fill only lands
	// if the version it read before loading the user is still current.
	userVersionPrefix = "storefront:user-version:"
	evictTimeout      = 2 * time.Second
)

var errStaleFill = errors.New("user changed during cache fill")

// NewClient parses a redis:// URL and checks the server is reachable.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// cachedUser never carries the password hash.
type cachedUser struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CachedUserRepository is a read-through cache over FindByID. Writes go to the
// wrapped repository first and then drop the cached entry. Redis failures
// fall back to the wrapped repository.
type CachedUserRepository struct {
	repository.UserRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedUserRepository(inner repository.UserRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		UserRepository: inner,
		client:         client,
		ttl:            ttl,
		logger:         logger.With("component", "user_cache"),
	}
}

func (r *CachedUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	key := userKeyPrefix + id

	raw, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cu cachedUser
		if err := json.Unmarshal(raw, &cu); err == nil {
			metrics.UserCacheRequestsTotal.WithLabelValues("hit").Inc()
			return &domain.User{
				ID:        cu.ID,
				Name:      cu.Name,
				Email:     cu.Email,
				Role:      cu.Role,
				CreatedAt: cu.CreatedAt,
				UpdatedAt: cu.UpdatedAt,
			}, nil
		}
		r.logger.WarnContext(ctx, "discarding undecodable cache entry", "user_id", id)
		metrics.UserCacheRequestsTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.UserCacheRequestsTotal.WithLabelValues("miss").Inc()
	default:
		r.logger.WarnContext(ctx, "cache read failed", "user_id", id, "error", err)
		metrics.UserCacheRequestsTotal.WithLabelValues("error").Inc()
	}

	verKey := userVersionPrefix + id
	ver, err := r.client.Get(ctx, verKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Without a version the fill cannot be checked against writes.
		r.logger.WarnContext(ctx, "cache version read failed", "user_id", id, "error", err)
		return r.UserRepository.FindByID(ctx, id)
	}

	u, err := r.UserRepository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, u, ver)
	return u, nil
}

// fill stores u unless SetRole or Delete bumped the version since ver was read.
func (r *CachedUserRepository) fill(ctx context.Context, u *domain.User, ver int64) {
	payload, err := json.Marshal(cachedUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	})
	if err != nil {
		return
	}

	verKey := userVersionPrefix + u.ID
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != ver {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKeyPrefix+u.ID, payload, r.ttl)
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		r.logger.DebugContext(ctx, "skipped stale cache fill", "user_id", u.ID)
	default:
		r.logger.WarnContext(ctx, "cache write failed", "user_id", u.ID, "error", err)
	}
}

func (r *CachedUserRepository) SetRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	u, err := r.UserRepository.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, id)
	return u, nil
}

func (r *CachedUserRepository) Delete(ctx context.Context, id string) error {
	if err := r.UserRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.evict(ctx, id)
	return nil
}

// evict bumps the version before dropping the entry, so a fill that loaded
// the user before the write cannot store it afterwards. It outlives the
// request context because a missed eviction keeps a revoked role cached.
func (r *CachedUserRepository) evict(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evictTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, userVersionPrefix+id)
		pipe.Del(ctx, userKeyPrefix+id)
		return nil
	})
	if err != nil {
		// A stale entry lives at most ttl.
		r.logger.ErrorContext(ctx, "cache eviction failed", "user_id", id, "error", err)
	}
}

// Pinger adapts a client to health.Pinger.
type Pinger struct{ Client *redis.Client }

func (p Pinger) Ping(ctx context.Context) error { return p.Client.Ping(ctx).Err() }
