package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values whose key TTL matches the session TTL.
// Expired keys vanish server side, so expiry surfaces as ErrSessionNotFound.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	now    Clock
}

// NewRedisStore creates a store on client. An empty prefix uses "custimport:sessions".
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, clock Clock) *RedisStore {
	if prefix == "" {
		prefix = "custimport:sessions"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl, now: clock}
}

func (r *RedisStore) Put(ctx context.Context, s Session) (Session, error) {
	s = stamp(s, r.now(), r.ttl)
	payload, err := json.Marshal(s)
	if err != nil {
		return Session{}, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.redis.Set(ctx, r.key(s.ID), payload, r.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	return s, nil
}

// Replace writes with SET XX inside a WATCH on the key, so a session consumed by Take
// in the meantime stays gone.
func (r *RedisStore) Replace(ctx context.Context, s Session) (Session, error) {
	key := r.key(s.ID)
	var replaced Session

	err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
		result, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return err
		}
		if _, err := r.decode(result, s.TenantID); err != nil {
			return err
		}
		next := stamp(s, r.now(), r.ttl)
		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		var written *redis.BoolCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			written = pipe.SetXX(ctx, key, payload, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		if !written.Val() {
			return ErrSessionNotFound
		}
		replaced = next
		return nil
	}, key)

	switch {
	case err == nil:
		return replaced, nil
	case errors.Is(err, redis.TxFailedErr):
		return Session{}, ErrSessionNotFound
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionForbidden):
		return Session{}, err
	default:
		return Session{}, fmt.Errorf("failed to replace session: %w", err)
	}
}

func (r *RedisStore) Get(ctx context.Context, tenantID, id uuid.UUID) (Session, error) {
	result, err := r.redis.Get(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return r.decode(result, tenantID)
}

func (r *RedisStore) Take(ctx context.Context, tenantID, id uuid.UUID) (Session, error) {
	key := r.key(id)
	var taken Session

	err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
		result, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return err
		}
		s, err := r.decode(result, tenantID)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}
		taken = s
		return nil
	}, key)

	switch {
	case err == nil:
		return taken, nil
	case errors.Is(err, redis.TxFailedErr):
		// Another caller consumed the session between WATCH and EXEC.
		return Session{}, ErrSessionNotFound
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionForbidden):
		return Session{}, err
	default:
		return Session{}, fmt.Errorf("failed to take session: %w", err)
	}
}

func (r *RedisStore) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := r.Get(ctx, tenantID, id); err != nil && !errors.Is(err, ErrSessionExpired) {
		return err
	}
	return r.redis.Del(ctx, r.key(id)).Err()
}

// Sweep is a no-op; Redis expires keys itself.
func (r *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

func (r *RedisStore) decode(payload string, tenantID uuid.UUID) (Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if err := check(s, tenantID, r.now()); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *RedisStore) key(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", r.prefix, id.String())
}
