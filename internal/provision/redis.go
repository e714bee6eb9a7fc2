// Package provision holds the cross-process lock used to serialize default
// list provisioning when several server replicas share one store.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
)

const (
	DefaultLockTTL      = 10 * time.Second
	DefaultPollInterval = 50 * time.Millisecond
	keyPrefix           = "favorites:provision:"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisGuard implements favorites.ProvisionGuard with SET NX PX locks. A held
// lock is renewed every ttl/3 until released, so the TTL bounds how long a
// crashed holder blocks others, not how long provisioning may take.
type RedisGuard struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	logger zerolog.Logger
}

type Option func(*RedisGuard)

func WithLockTTL(ttl time.Duration) Option {
	return func(g *RedisGuard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(g *RedisGuard) {
		if d > 0 {
			g.poll = d
		}
	}
}

func NewRedisGuard(client redis.UniversalClient, logger zerolog.Logger, opts ...Option) *RedisGuard {
	g := &RedisGuard{
		client: client,
		ttl:    DefaultLockTTL,
		poll:   DefaultPollInterval,
		logger: logger.With().Str("component", "provision_guard").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Acquire blocks until the owner's lock is held or ctx is done.
func (g *RedisGuard) Acquire(ctx context.Context, ownerID int64) (func(), error) {
	key := keyPrefix + strconv.FormatInt(ownerID, 10)
	token := uuid.NewString()

	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire provision lock for user %d: %w", ownerID, err)
		}
		if ok {
			return g.hold(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold renews the lock in the background and returns the idempotent release.
func (g *RedisGuard) hold(key, token string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		g.renew(done, key, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, g.client, []string{key}, token).Err(); err != nil {
				g.logger.Warn().Err(err).Str("key", key).Msg("release provision lock")
			}
		})
	}
}

func (g *RedisGuard) renew(done <-chan struct{}, key, token string) {
	interval := g.ttl / 3
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		kept, err := extendScript.Run(ctx, g.client, []string{key}, token, g.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			g.logger.Warn().Err(err).Str("key", key).Msg("renew provision lock")
			continue
		}
		if kept == 0 {
			g.logger.Warn().Str("key", key).Msg("provision lock lost before release")
			return
		}
	}
}

var _ favorites.ProvisionGuard = (*RedisGuard)(nil)
