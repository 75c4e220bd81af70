// Package redis stores decryption signatures in Redis with native expiry.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type SignatureStore struct {
	rdb    *goredis.Client
	prefix string
	now    func() time.Time
}

func NewSignatureStore(rdb *goredis.Client, prefix string) *SignatureStore {
	return &SignatureStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *SignatureStore) key(k string) string { return s.prefix + k }

func (s *SignatureStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetItem stores the value until expiresAt. A past expiry removes the key.
func (s *SignatureStore) SetItem(ctx context.Context, key, value string, expiresAt time.Time) error {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.RemoveItem(ctx, key)
		}
	}
	return s.rdb.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *SignatureStore) RemoveItem(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
