package latecache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"offer_compare_backend/internal/offers/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl), mr
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t, 0)
	return map[string]Store{
		"memory": NewMemoryStore(0),
		"redis":  redisStore,
	}
}

func offer(provider, id string) domain.Offer {
	return domain.Offer{
		Provider:       provider,
		ProductID:      id,
		Title:          provider + " " + id,
		SpeedMbps:      100,
		PricePerMonth:  29.99,
		DurationMonths: 24,
		ConnectionType: domain.ConnectionDSL,
		Extras:         []string{},
	}
}

func TestConsumeReturnsRecordedOffersOnce(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := []domain.Offer{offer(domain.ProviderServusSpeed, "a"), offer(domain.ProviderServusSpeed, "b")}

			require.NoError(t, store.Record(ctx, "k1", want))

			got, err := store.Consume(ctx, "k1")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			again, err := store.Consume(ctx, "k1")
			require.NoError(t, err)
			assert.NotNil(t, again)
			assert.Empty(t, again)
		})
	}
}

func TestRecordAppends(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Record(ctx, "k", []domain.Offer{offer(domain.ProviderByteMe, "1")}))
			require.NoError(t, store.Record(ctx, "k", []domain.Offer{offer(domain.ProviderVerbynDich, "2")}))

			got, err := store.Consume(ctx, "k")
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "1", got[0].ProductID)
			assert.Equal(t, "2", got[1].ProductID)
		})
	}
}

func TestRecordEmptyCreatesNoEntry(t *testing.T) {
	store := NewMemoryStore(0)
	require.NoError(t, store.Record(context.Background(), "k", nil))
	assert.Equal(t, 0, store.Len())
}

func TestKeysAreIndependent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Record(ctx, "a", []domain.Offer{offer(domain.ProviderByteMe, "1")}))
			require.NoError(t, store.Record(ctx, "b", []domain.Offer{offer(domain.ProviderByteMe, "2")}))

			got, err := store.Consume(ctx, "a")
			require.NoError(t, err)
			require.Len(t, got, 1)

			got, err = store.Consume(ctx, "b")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "2", got[0].ProductID)
		})
	}
}

func TestMemoryStoreConcurrentRecord(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Record(ctx, "k", []domain.Offer{offer(domain.ProviderWebWunder, fmt.Sprint(i))})
		}()
	}
	wg.Wait()

	got, err := store.Consume(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got, 50)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, "old", []domain.Offer{offer(domain.ProviderByteMe, "1")}))
	store.now = func() time.Time { return base.Add(50 * time.Second) }
	require.NoError(t, store.Record(ctx, "fresh", []domain.Offer{offer(domain.ProviderByteMe, "2")}))

	assert.Equal(t, 1, store.Sweep(base.Add(90*time.Second)))
	assert.Equal(t, 1, store.Len())

	store.now = func() time.Time { return base.Add(90 * time.Second) }
	got, err := store.Consume(ctx, "fresh")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStoreExpiredEntryIsNotReturned(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	require.NoError(t, store.Record(context.Background(), "k", []domain.Offer{offer(domain.ProviderByteMe, "1")}))
	store.now = func() time.Time { return base.Add(2 * time.Minute) }

	got, err := store.Consume(context.Background(), "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStoreWithoutTTLKeepsEntries(t *testing.T) {
	store := NewMemoryStore(0)
	require.NoError(t, store.Record(context.Background(), "k", []domain.Offer{offer(domain.ProviderByteMe, "1")}))
	assert.Equal(t, 0, store.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, store.Len())
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "k", []domain.Offer{offer(domain.ProviderByteMe, "1")}))
	assert.Equal(t, time.Minute, mr.TTL(KeyPrefix+"k"))

	mr.FastForward(2 * time.Minute)
	got, err := store.Consume(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStoreSkipsMalformedEntries(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "k", []domain.Offer{offer(domain.ProviderByteMe, "1")}))
	_, err := mr.RPush(KeyPrefix+"k", "{not json")
	require.NoError(t, err)

	got, err := store.Consume(ctx, "k")
	assert.Error(t, err)
	require.Len(t, got, 1)
	assert.False(t, mr.Exists(KeyPrefix+"k"))
}
