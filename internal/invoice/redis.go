package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces invoice keys in the shared KV.
const keyPrefix = "payment:"

// initPingTimeout bounds the boot-time connectivity check.
const initPingTimeout = 5 * time.Second

// markUsedScript flips used=false→true atomically. Returning the previous
// state from a single script execution is what keeps two concurrent
// consumers from both winning. KEEPTTL preserves the expiry armed at
// creation.
var markUsedScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then
  return -1
end
local inv = cjson.decode(v)
if inv.used then
  return 0
end
inv.used = true
inv.usedAt = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(inv), 'KEEPTTL')
return 1
`)

// RedisStore is the preferred external KV backend. Each invoice lives under
// payment:<paymentId> with the TTL applied at write time, so expiry needs
// no sweeper.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects and pings the KV. Errors here make the caller
// fall back to the in-memory backend.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, initPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func key(paymentID string) string { return keyPrefix + paymentID }

func (s *RedisStore) Create(ctx context.Context, inv *Invoice) error {
	raw, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("%w: marshal invoice: %v", ErrUnavailable, err)
	}

	ok, err := s.client.SetNX(ctx, key(inv.PaymentID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrDuplicateID
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, paymentID string) (*Invoice, error) {
	raw, err := s.client.Get(ctx, key(paymentID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var inv Invoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, fmt.Errorf("%w: unmarshal invoice: %v", ErrUnavailable, err)
	}
	return &inv, nil
}

func (s *RedisStore) MarkUsed(ctx context.Context, paymentID string) (bool, error) {
	usedAt := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := markUsedScript.Run(ctx, s.client, []string{key(paymentID)}, usedAt).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch res {
	case -1:
		return false, ErrNotFound
	case 0:
		return true, nil
	default:
		return false, nil
	}
}

func (s *RedisStore) Delete(ctx context.Context, paymentID string) error {
	if err := s.client.Del(ctx, key(paymentID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: s.Backend()}

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and get
		}
		if err != nil {
			return Stats{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		var inv Invoice
		if err := json.Unmarshal([]byte(raw), &inv); err != nil {
			continue
		}
		stats.Total++
		if inv.Used {
			stats.Used++
		} else {
			stats.Unused++
		}
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stats, nil
}

func (s *RedisStore) Backend() string { return "redis" }

func (s *RedisStore) Close() error { return s.client.Close() }
