package offers

import (
	"context"
	"fmt"

	"offer_compare_backend/internal/offers/latecache"
	"offer_compare_backend/internal/offers/providers/registry"
	"offer_compare_backend/internal/offers/retry"
	"offer_compare_backend/internal/offers/service"
	"offer_compare_backend/platform/config"
	"offer_compare_backend/platform/logger"
	"offer_compare_backend/platform/redisclient"

	"github.com/redis/go-redis/v9"
)

// ServiceConfig combines the settings the aggregation service needs.
type ServiceConfig interface {
	config.OffersConfig
	config.ProvidersConfig
}

// StoreConfig combines the settings the late-offer store needs.
type StoreConfig interface {
	config.OffersConfig
	config.RedisConfig
}

// RetryPolicy builds the per-provider retry policy.
func RetryPolicy(cfg config.OffersConfig) retry.Policy {
	return retry.Policy{
		MaxRetries:     cfg.GetRetryMaxRetries(),
		AttemptTimeout: cfg.GetRetryAttemptTimeout(),
		Delay:          cfg.GetRetryDelay(),
	}
}

// NewService builds the aggregation service over every configured provider.
func NewService(cfg ServiceConfig, store latecache.Store, log *logger.Logger) *service.Service {
	return service.New(registry.Build(cfg, log), store, RetryPolicy(cfg), log,
		service.WithDefaultCountry(cfg.GetDefaultCountry()))
}

// Store is an opened late-offer store. Redis is nil for the in-process store.
type Store struct {
	latecache.Store
	Redis  *redis.Client
	Memory *latecache.MemoryStore
}

// Close releases the Redis connection, if any.
func (s *Store) Close() error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Close()
}

// OpenStore uses Redis when REDIS_URL is set so late offers survive restarts
// and are shared between API and worker; otherwise it keeps them in process.
func OpenStore(ctx context.Context, cfg StoreConfig, log *logger.Logger) (*Store, error) {
	if cfg.GetRedisURL() == "" {
		log.Info("late offers kept in process: REDIS_URL not configured")
		mem := latecache.NewMemoryStore(cfg.GetLateOffersTTL())
		return &Store{Store: mem, Memory: mem}, nil
	}

	client, err := redisclient.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Info("late offers stored in redis")
	return &Store{Store: latecache.NewRedisStore(client, cfg.GetLateOffersTTL()), Redis: client}, nil
}
