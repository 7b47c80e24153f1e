package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-premium-api/internal/config"
	"github.com/go-premium-api/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	codePrefix        = "premium:code:"
	markerPrefix      = "premium:verified:"
	entitlementPrefix = "premium:entitlement:"

	// consumeRetries bounds the optimistic WATCH loop.
	consumeRetries = 4
)

// NewClient builds a go-redis client from configuration.
func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// ttlUntil turns an absolute deadline into a Redis expiry of at least one
// second, so a record written just before its deadline still lands.
func ttlUntil(deadline time.Time) time.Duration {
	d := time.Until(deadline)
	if d < time.Second {
		return time.Second
	}
	return d
}

func getJSON(ctx context.Context, rdb *redis.Client, key string, v any, what string) error {
	data, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s not found: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", what, err)
	}
	return nil
}

// CodeStore keeps pending codes under premium:code:<identity>.
type CodeStore struct {
	rdb *redis.Client
}

func NewCodeStore(rdb *redis.Client) *CodeStore {
	return &CodeStore{rdb: rdb}
}

func (s *CodeStore) Put(ctx context.Context, c *domain.OneTimeCode) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode code: %w", err)
	}
	return s.rdb.Set(ctx, codePrefix+c.Identity, data, ttlUntil(c.ExpiresAt)).Err()
}

func (s *CodeStore) Get(ctx context.Context, identity string) (*domain.OneTimeCode, error) {
	var c domain.OneTimeCode
	if err := getJSON(ctx, s.rdb, codePrefix+identity, &c, "code"); err != nil {
		return nil, err
	}
	return &c, nil
}

// Consume deletes the key inside a WATCH transaction only while the stored
// code still equals code.
func (s *CodeStore) Consume(ctx context.Context, identity, code string) (bool, error) {
	key := codePrefix + identity
	for i := 0; i < consumeRetries; i++ {
		consumed := false
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			var c domain.OneTimeCode
			if err := json.Unmarshal(data, &c); err != nil {
				return fmt.Errorf("decode code: %w", err)
			}
			if c.Code != code {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			consumed = true
			return nil
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, err
		}
		return consumed, nil
	}
	// Every attempt raced a concurrent writer; someone else won.
	return false, nil
}

// MarkerStore keeps verified-email markers under premium:verified:<identity>.
type MarkerStore struct {
	rdb *redis.Client
}

func NewMarkerStore(rdb *redis.Client) *MarkerStore {
	return &MarkerStore{rdb: rdb}
}

func (s *MarkerStore) Put(ctx context.Context, m *domain.VerifiedEmailMarker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode marker: %w", err)
	}
	return s.rdb.Set(ctx, markerPrefix+m.Identity, data, ttlUntil(m.ExpiresAt)).Err()
}

func (s *MarkerStore) Get(ctx context.Context, identity string) (*domain.VerifiedEmailMarker, error) {
	var m domain.VerifiedEmailMarker
	if err := getJSON(ctx, s.rdb, markerPrefix+identity, &m, "marker"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MarkerStore) Delete(ctx context.Context, identity string) error {
	return s.rdb.Del(ctx, markerPrefix+identity).Err()
}

// EntitlementStore keeps entitlements under premium:entitlement:<identity>
// without expiry.
type EntitlementStore struct {
	rdb *redis.Client
}

func NewEntitlementStore(rdb *redis.Client) *EntitlementStore {
	return &EntitlementStore{rdb: rdb}
}

func (s *EntitlementStore) Get(ctx context.Context, identity string) (*domain.Entitlement, error) {
	var e domain.Entitlement
	if err := getJSON(ctx, s.rdb, entitlementPrefix+identity, &e, "entitlement"); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *EntitlementStore) PutIfAbsent(ctx context.Context, e *domain.Entitlement) (bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode entitlement: %w", err)
	}
	return s.rdb.SetNX(ctx, entitlementPrefix+e.Identity, data, 0).Result()
}
