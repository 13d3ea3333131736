// Package cache provides the redis-backed session cache. It sits in front of
// the repository as a read-through layer and is never authoritative.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/poyrazK/sandboxAuth/internal/core/domain"
	"github.com/poyrazK/sandboxAuth/internal/infrastructure/metrics"
	"github.com/redis/go-redis/v9"
)

const keyspace = "session:"

type RedisSessionCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisSessionCache(addr string, password string, db int) *RedisSessionCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSessionCache{client: rdb, now: time.Now}
}

// cachedSession carries the token explicitly; the domain type hides it from
// JSON on purpose.
type cachedSession struct {
	SessionToken string    `json:"session_token"`
	UserID       string    `json:"user_id"`
	Expires      time.Time `json:"expires"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *RedisSessionCache) Get(ctx context.Context, token string) (*domain.Session, bool) {
	val, err := r.client.Get(ctx, keyspace+token).Bytes()
	if err != nil {
		metrics.CacheOperations.WithLabelValues("miss").Inc()
		return nil, false
	}
	var cs cachedSession
	if err := json.Unmarshal(val, &cs); err != nil {
		// A corrupt entry behaves like a miss; the repository is authoritative.
		metrics.CacheOperations.WithLabelValues("error").Inc()
		r.client.Del(ctx, keyspace+token)
		return nil, false
	}
	metrics.CacheOperations.WithLabelValues("hit").Inc()
	return &domain.Session{
		SessionToken: cs.SessionToken,
		UserID:       cs.UserID,
		Expires:      cs.Expires,
		CreatedAt:    cs.CreatedAt,
		UpdatedAt:    cs.UpdatedAt,
	}, true
}

// Set stores the session with a TTL matching its remaining lifetime, so redis
// drops the entry on its own once the session expires.
func (r *RedisSessionCache) Set(ctx context.Context, session *domain.Session) {
	ttl := session.Expires.Sub(r.now())
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(cachedSession{
		SessionToken: session.SessionToken,
		UserID:       session.UserID,
		Expires:      session.Expires,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	})
	if err != nil {
		return
	}
	r.client.Set(ctx, keyspace+session.SessionToken, data, ttl)
}

func (r *RedisSessionCache) Delete(ctx context.Context, token string) {
	r.client.Del(ctx, keyspace+token)
}

func (r *RedisSessionCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
