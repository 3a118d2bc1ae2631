// Package distlock provides the per-task mutual exclusion the tick driver
// needs when several workers share one deployment: Redis SET NX with a TTL
// when Redis is configured, Postgres advisory locks otherwise.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is one named lock. A lock instance belongs to a single
// goroutine; concurrent holders need separate instances.
type DistLock interface {
	// Acquire attempts the lock without blocking. True means held.
	Acquire(ctx context.Context) (bool, error)
	// Release frees the lock if this instance still owns it.
	Release(ctx context.Context) error
}

// NewLock picks the best available backend: Redis when a client is given,
// Postgres advisory locks as the fallback.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return newRedisLock(redisClient, key, ttl)
	}
	return newAdvisoryLock(db, key)
}

// redisLock holds a key with a random ownership token so Release can never
// free a lock another process re-acquired after our TTL expired.
type redisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func newRedisLock(client *redis.Client, key string, ttl time.Duration) *redisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisLock{
		client: client,
		key:    "outreach:lock:" + key,
		token:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func (l *redisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	return err
}

// advisoryLock maps the key to a pg_try_advisory_lock id. Session scoping
// stands in for a TTL: the lock dies with the connection.
type advisoryLock struct {
	db *sql.DB
	id int64
}

func newAdvisoryLock(db *sql.DB, key string) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &advisoryLock{db: db, id: int64(h.Sum64())}
}

func (l *advisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&acquired)
	return acquired, err
}

func (l *advisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	return err
}
