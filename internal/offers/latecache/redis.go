package latecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"offer_compare_backend/internal/offers/domain"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces late-offer lists in Redis.
const KeyPrefix = "late_offers:"

// RedisStore keeps one Redis list per address key so that several processes
// (API and prefetch worker) share the same entries.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore wraps client. A positive ttl is refreshed on every Record.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Record(ctx context.Context, key string, offers []domain.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	values := make([]any, 0, len(offers))
	for _, o := range offers {
		raw, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("encode late offer: %w", err)
		}
		values = append(values, raw)
	}

	redisKey := KeyPrefix + key
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, redisKey, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, redisKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record late offers: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, key string) ([]domain.Offer, error) {
	redisKey := KeyPrefix + key
	pipe := s.client.TxPipeline()
	items := pipe.LRange(ctx, redisKey, 0, -1)
	pipe.Del(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("consume late offers: %w", err)
	}

	offers := make([]domain.Offer, 0, len(items.Val()))
	var decodeErrs []error
	for _, raw := range items.Val() {
		var o domain.Offer
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			decodeErrs = append(decodeErrs, err)
			continue
		}
		offers = append(offers, o)
	}
	if len(decodeErrs) > 0 {
		return offers, fmt.Errorf("decode late offers: %w", errors.Join(decodeErrs...))
	}
	return offers, nil
}
