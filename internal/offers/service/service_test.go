package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/latecache"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/internal/offers/retry"
	"offer_compare_backend/internal/offers/stream"
	"offer_compare_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var query = domain.AddressQuery{Street: "Hauptstraße", HouseNumber: "5", City: "Köln", PostalCode: "50667"}

type fakeProvider struct {
	name    string
	offers  int
	err     error
	panics  bool
	release chan struct{}
	failFor int32
	calls   atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	n := f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("adapter bug")
	}
	if n <= f.failFor {
		return nil, errors.New("temporary outage")
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Offer, 0, f.offers)
	for i := range f.offers {
		out = append(out, domain.Offer{
			Provider:       f.name,
			ProductID:      fmt.Sprintf("%s-%d", f.name, i),
			SpeedMbps:      100,
			PricePerMonth:  19.99,
			DurationMonths: 24,
			ConnectionType: domain.ConnectionDSL,
		})
	}
	return out, nil
}

// drain reads events until the channel closes and returns the offers, the
// error events and the number of done events seen.
func drain(events <-chan stream.Event) (offers []domain.Offer, errs []stream.Event, done int) {
	for ev := range events {
		switch ev.Kind {
		case stream.KindOffer:
			offers = append(offers, ev.Offer)
		case stream.KindError:
			errs = append(errs, ev)
		case stream.KindDone:
			done++
		}
	}
	return offers, errs, done
}

type queryRecorder struct {
	got chan domain.AddressQuery
}

func (r *queryRecorder) Name() string { return domain.ProviderWebWunder }

func (r *queryRecorder) Fetch(_ context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	r.got <- q
	return nil, nil
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 3, AttemptTimeout: 5 * time.Second}
}

func newService(store latecache.Store, ps ...providers.Provider) *Service {
	return New(ps, store, testPolicy(), logger.Discard())
}

func fiveProviders() []providers.Provider {
	return []providers.Provider{
		&fakeProvider{name: domain.ProviderByteMe, offers: 2},
		&fakeProvider{name: domain.ProviderWebWunder, offers: 3},
		&fakeProvider{name: domain.ProviderPingPerfect, offers: 1},
		&fakeProvider{name: domain.ProviderVerbynDich, offers: 4},
		&fakeProvider{name: domain.ProviderServusSpeed, offers: 2},
	}
}

func countByProvider(offers []domain.Offer) map[string]int {
	out := map[string]int{}
	for _, o := range offers {
		out[o.Provider]++
	}
	return out
}

func TestCollectSingleProviderFailureKeepsOthers(t *testing.T) {
	defer goleak.VerifyNone(t)

	ps := fiveProviders()
	failing := ps[1].(*fakeProvider)
	failing.err = retry.Terminal(errors.New("status 500 with malformed body"))

	svc := newService(latecache.NewMemoryStore(0), ps...)
	res := svc.Collect(context.Background(), query)
	svc.Wait()

	assert.Len(t, res.Offers, 9)
	counts := countByProvider(res.Offers)
	assert.Zero(t, counts[domain.ProviderWebWunder])
	assert.Equal(t, 2, counts[domain.ProviderByteMe])
	assert.Equal(t, 4, counts[domain.ProviderVerbynDich])
	assert.Equal(t, 5, res.Stats.Total)
	assert.Equal(t, 4, res.Stats.Succeeded)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Zero(t, res.Stats.Pending)
	assert.Equal(t, int32(1), failing.calls.Load(), "terminal errors are not retried")
}

func TestCollectIsolatesPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	ps := fiveProviders()
	ps[2].(*fakeProvider).panics = true

	svc := newService(latecache.NewMemoryStore(0), ps...)
	res := svc.Collect(context.Background(), query)
	svc.Wait()

	assert.Len(t, res.Offers, 11)
	assert.Equal(t, 1, res.Stats.Failed)
}

func TestCollectRetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	flaky := &fakeProvider{name: domain.ProviderServusSpeed, offers: 2, failFor: 2}
	svc := newService(latecache.NewMemoryStore(0), flaky)

	res := svc.Collect(context.Background(), query)
	svc.Wait()

	assert.Len(t, res.Offers, 2)
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestCollectWithNoProviders(t *testing.T) {
	svc := newService(latecache.NewMemoryStore(0))

	res := svc.Collect(context.Background(), query)

	assert.NotNil(t, res.Offers)
	assert.Empty(t, res.Offers)
	assert.Zero(t, res.Stats.Total)
}

func TestCollectWithinDetachesSlowProviders(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := latecache.NewMemoryStore(0)
	slow := &fakeProvider{name: domain.ProviderServusSpeed, offers: 3, release: make(chan struct{})}
	ps := []providers.Provider{
		&fakeProvider{name: domain.ProviderByteMe, offers: 2},
		&fakeProvider{name: domain.ProviderVerbynDich, offers: 1},
		slow,
	}
	svc := newService(store, ps...)

	res := svc.CollectWithin(context.Background(), query, 50*time.Millisecond)

	assert.Len(t, res.Offers, 3)
	assert.Equal(t, 1, res.Stats.Pending)
	assert.Equal(t, 2, res.Stats.Succeeded)

	late, err := svc.LateOffers(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, late, "nothing is parked before the slow provider answers")

	close(slow.release)
	svc.Wait()

	late, err = svc.LateOffers(context.Background(), query)
	require.NoError(t, err)
	assert.Len(t, late, 3)
	for _, o := range late {
		assert.Equal(t, domain.ProviderServusSpeed, o.Provider)
	}

	late, err = svc.LateOffers(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, late)
}

func TestCollectDetachesWhenCallerGoesAway(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := latecache.NewMemoryStore(0)
	slow := &fakeProvider{name: domain.ProviderWebWunder, offers: 2, release: make(chan struct{})}
	svc := newService(store, &fakeProvider{name: domain.ProviderByteMe, offers: 1}, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := svc.Collect(ctx, query)

	assert.Len(t, res.Offers, 1)
	assert.Equal(t, 1, res.Stats.Pending)

	close(slow.release)
	svc.Wait()

	late, err := store.Consume(context.Background(), query.Key())
	require.NoError(t, err)
	assert.Len(t, late, 2)
}

func TestStreamEmitsExactlyOneDoneAfterAllOffers(t *testing.T) {
	defer goleak.VerifyNone(t)

	ps := fiveProviders()
	ps[3].(*fakeProvider).err = retry.Terminal(errors.New("rejected"))
	svc := newService(latecache.NewMemoryStore(0), ps...)

	var kinds []stream.Kind
	var offers int
	var errorEvents []stream.Event
	for ev := range svc.Stream(context.Background(), query) {
		kinds = append(kinds, ev.Kind)
		switch ev.Kind {
		case stream.KindOffer:
			offers++
		case stream.KindError:
			errorEvents = append(errorEvents, ev)
		}
	}
	svc.Wait()

	require.NotEmpty(t, kinds)
	assert.Equal(t, stream.KindDone, kinds[len(kinds)-1])
	done := 0
	for _, k := range kinds {
		if k == stream.KindDone {
			done++
		}
	}
	assert.Equal(t, 1, done)
	assert.Equal(t, 8, offers)
	require.Len(t, errorEvents, 1)
	assert.Equal(t, domain.ProviderVerbynDich, errorEvents[0].Provider)
}

func TestStreamWithNoProvidersStillFinishes(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newService(latecache.NewMemoryStore(0))
	offers, errs, done := drain(svc.Stream(context.Background(), query))
	svc.Wait()

	assert.Empty(t, offers)
	assert.Empty(t, errs)
	assert.Equal(t, 1, done)
}

func TestStreamConsumerDisconnectParksRemainingOffers(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := latecache.NewMemoryStore(0)
	slow := &fakeProvider{name: domain.ProviderServusSpeed, offers: 2, release: make(chan struct{})}
	svc := newService(store, &fakeProvider{name: domain.ProviderByteMe, offers: 1}, slow)

	ctx, cancel := context.WithCancel(context.Background())
	events := svc.Stream(ctx, query)

	first := <-events
	assert.Equal(t, stream.KindOffer, first.Kind)
	assert.Equal(t, domain.ProviderByteMe, first.Provider)

	cancel()
	_, _, done := drain(events)
	assert.Zero(t, done)

	close(slow.release)
	svc.Wait()

	late, err := store.Consume(context.Background(), query.Key())
	require.NoError(t, err)
	assert.Len(t, late, 2)
}

func TestKeepValidDropsNegativeOffersAndCleansText(t *testing.T) {
	offers := []domain.Offer{
		{ProductID: "ok", Title: "<b>Fiber</b>  500", SpeedMbps: 10, PricePerMonth: 1, DurationMonths: 1},
		{ProductID: "bad", SpeedMbps: -1},
	}

	got := keepValid(offers, "x", logger.Discard())

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ProductID)
	assert.Equal(t, "Fiber 500", got[0].Title)
	assert.NotNil(t, got[0].Extras)
}

func TestDefaultCountryReachesProviders(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name  string
		opts  []Option
		query domain.AddressQuery
		want  string
	}{
		{"built-in default", nil, query, domain.DefaultCountryCode},
		{"configured default", []Option{WithDefaultCountry("AT")}, query, "AT"},
		{"query wins", []Option{WithDefaultCountry("AT")}, domain.AddressQuery{Street: "a", HouseNumber: "1", City: "b", PostalCode: "12345", CountryCode: "ch"}, "CH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &queryRecorder{got: make(chan domain.AddressQuery, 2)}
			svc := New([]providers.Provider{rec}, latecache.NewMemoryStore(0), testPolicy(), logger.Discard(), tt.opts...)

			svc.Collect(context.Background(), tt.query)
			drain(svc.Stream(context.Background(), tt.query))
			svc.Wait()

			assert.Equal(t, tt.want, (<-rec.got).CountryCode)
			assert.Equal(t, tt.want, (<-rec.got).CountryCode)
		})
	}
}
