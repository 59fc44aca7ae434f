// Package service fans one address query out to every provider and delivers
// the offers either as one buffered result or as an event stream. Providers
// that miss the response window keep running in the background and their
// offers are parked in the late-offer store.
package service

import (
	"context"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/latecache"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/internal/offers/retry"
	"offer_compare_backend/internal/offers/stream"
	"offer_compare_backend/platform/logger"
	"offer_compare_backend/platform/sanitize"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "offer_compare_backend/internal/offers/service"

// Provider outcome states reported in Stats.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

// ProviderStatus describes how one provider fared in a run.
type ProviderStatus struct {
	Provider  string `json:"provider"`
	Status    string `json:"status"`
	Offers    int    `json:"offers"`
	ElapsedMs int64  `json:"elapsedMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Stats summarizes a buffered run.
type Stats struct {
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Pending    int              `json:"pending"`
	DurationMs int64            `json:"durationMs"`
	Providers  []ProviderStatus `json:"providers"`
}

// Result is the outcome of a buffered run.
type Result struct {
	Offers []domain.Offer `json:"offers"`
	Stats  Stats          `json:"stats"`
}

type outcome struct {
	provider string
	offers   []domain.Offer
	err      error
	elapsed  time.Duration
}

// Service aggregates offers across providers.
type Service struct {
	providers  []providers.Provider
	store      latecache.Store
	policy     retry.Policy
	country    string
	tracer     trace.Tracer
	log        *logger.Logger
	background conc.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultCountry sets the country code used for queries without one.
func WithDefaultCountry(country string) Option {
	return func(s *Service) { s.country = country }
}

// New creates the aggregation service.
func New(ps []providers.Provider, store latecache.Store, policy retry.Policy, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		providers: ps,
		store:     store,
		policy:    policy,
		country:   domain.DefaultCountryCode,
		tracer:    otel.Tracer(tracerName),
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProviderNames lists the active providers in registry order.
func (s *Service) ProviderNames() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// Wait blocks until every detached continuation and stream emitter has
// finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Collect waits for every provider and returns the concatenated offers. If
// ctx ends first, the offers received so far are returned and the remaining
// providers are detached into the late-offer store.
func (s *Service) Collect(ctx context.Context, q domain.AddressQuery) Result {
	return s.collect(ctx, q, nil)
}

// CollectWithin returns the offers of the providers that answer within
// window. Providers still running afterwards finish in the background and
// record their offers under q.Key(). A non-positive window waits for all.
func (s *Service) CollectWithin(ctx context.Context, q domain.AddressQuery, window time.Duration) Result {
	if window <= 0 {
		return s.collect(ctx, q, nil)
	}
	timer := time.NewTimer(window)
	defer timer.Stop()
	return s.collect(ctx, q, timer.C)
}

func (s *Service) collect(ctx context.Context, q domain.AddressQuery, deadline <-chan time.Time) Result {
	start := time.Now()
	q = q.WithDefaults(s.country)
	results := s.launch(ctx, q)

	total := len(s.providers)
	res := Result{
		Offers: []domain.Offer{},
		Stats:  Stats{Total: total, Providers: make([]ProviderStatus, 0, total)},
	}
	answered := make(map[string]bool, total)

	for received := 0; received < total; received++ {
		select {
		case o := <-results:
			res.add(o)
			answered[o.provider] = true
		case <-ctx.Done():
			s.markPending(&res, answered)
			s.detach(q, results, total-received)
			res.Stats.DurationMs = time.Since(start).Milliseconds()
			return res
		case <-deadline:
			s.markPending(&res, answered)
			s.detach(q, results, total-received)
			res.Stats.DurationMs = time.Since(start).Milliseconds()
			return res
		}
	}

	res.Stats.DurationMs = time.Since(start).Milliseconds()
	return res
}

func (r *Result) add(o outcome) {
	status := ProviderStatus{Provider: o.provider, ElapsedMs: o.elapsed.Milliseconds()}
	if o.err != nil {
		r.Stats.Failed++
		status.Status = StatusFailed
		status.Error = o.err.Error()
	} else {
		r.Stats.Succeeded++
		status.Status = StatusSucceeded
		status.Offers = len(o.offers)
		r.Offers = append(r.Offers, o.offers...)
	}
	r.Stats.Providers = append(r.Stats.Providers, status)
}

func (s *Service) markPending(res *Result, answered map[string]bool) {
	for _, p := range s.providers {
		if !answered[p.Name()] {
			res.Stats.Pending++
			res.Stats.Providers = append(res.Stats.Providers, ProviderStatus{Provider: p.Name(), Status: StatusPending})
		}
	}
}

// Stream emits offer events in completion order, an error event per failed
// provider and a final done event, then closes the channel. If ctx ends
// before the consumer has read everything, the remaining offers go to the
// late-offer store and no done event is sent.
func (s *Service) Stream(ctx context.Context, q domain.AddressQuery) <-chan stream.Event {
	q = q.WithDefaults(s.country)
	events := make(chan stream.Event)
	results := s.launch(ctx, q)
	total := len(s.providers)

	s.background.Go(func() {
		defer close(events)

		for received := 0; received < total; received++ {
			var o outcome
			select {
			case o = <-results:
			case <-ctx.Done():
				s.detach(q, results, total-received)
				return
			}

			remaining := total - received - 1
			if o.err != nil {
				if !send(ctx, events, stream.ErrorEvent(o.provider, o.err)) {
					s.detach(q, results, remaining)
					return
				}
				continue
			}
			for i, offer := range o.offers {
				if !send(ctx, events, stream.OfferEvent(offer)) {
					s.record(q, o.provider, o.offers[i:])
					s.detach(q, results, remaining)
					return
				}
			}
		}

		send(ctx, events, stream.DoneEvent())
	})

	return events
}

func send(ctx context.Context, events chan<- stream.Event, ev stream.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// LateOffers consumes the offers parked for the address.
func (s *Service) LateOffers(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	offers, err := s.store.Consume(ctx, q.Key())
	if err != nil {
		s.log.WithContext(ctx).Error("late offers could not be consumed", "error", err)
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	return offers, err
}

// launch starts every provider on a context that outlives the caller. The
// returned channel receives exactly one outcome per provider.
func (s *Service) launch(ctx context.Context, q domain.AddressQuery) <-chan outcome {
	log := s.log.WithContext(ctx)
	detached := context.WithoutCancel(ctx)
	results := make(chan outcome, len(s.providers))
	for _, p := range s.providers {
		s.background.Go(func() {
			results <- s.invoke(detached, p, q, log)
		})
	}
	return results
}

func (s *Service) invoke(ctx context.Context, p providers.Provider, q domain.AddressQuery, log *logger.Logger) outcome {
	name := p.Name()
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "offers.provider.fetch",
		trace.WithAttributes(attribute.String("offers.provider", name)))
	defer span.End()

	policy := s.policy.WithOnRetry(func(err error, wait time.Duration) {
		log.Warn("retrying provider", "provider", name, "error", err, "wait_ms", wait.Milliseconds())
	})

	o := outcome{provider: name}
	recovered := panics.Try(func() {
		o.offers, o.err = retry.Do(ctx, policy, func(ctx context.Context) ([]domain.Offer, error) {
			return p.Fetch(ctx, q)
		})
	})
	if recovered != nil {
		o.offers, o.err = nil, recovered.AsError()
	}
	o.elapsed = time.Since(start)

	if o.err != nil {
		o.offers = nil
		span.RecordError(o.err)
		span.SetStatus(codes.Error, "provider failed")
		log.ProviderFailed(name, o.err, o.elapsed)
		return o
	}

	o.offers = keepValid(o.offers, name, log)
	span.SetAttributes(attribute.Int("offers.count", len(o.offers)))
	log.ProviderCompleted(name, len(o.offers), o.elapsed)
	return o
}

func keepValid(offers []domain.Offer, provider string, log *logger.Logger) []domain.Offer {
	out := offers[:0]
	for _, o := range offers {
		if !o.Valid() {
			log.Warn("offer with negative values dropped", "provider", provider, "productId", o.ProductID)
			continue
		}
		o.Title = sanitize.Text(o.Title)
		o.Extras = sanitize.Texts(o.Extras)
		out = append(out, o)
	}
	return out
}

// detach drains the pending outcomes in the background and records their
// offers under the address key.
func (s *Service) detach(q domain.AddressQuery, results <-chan outcome, pending int) {
	if pending <= 0 {
		return
	}
	s.background.Go(func() {
		for range pending {
			o := <-results
			if o.err != nil {
				continue
			}
			s.record(q, o.provider, o.offers)
		}
	})
}

func (s *Service) record(q domain.AddressQuery, provider string, offers []domain.Offer) {
	if len(offers) == 0 {
		return
	}
	if err := s.store.Record(context.Background(), q.Key(), offers); err != nil {
		s.log.Error("late offers could not be recorded", "provider", provider, "error", err)
		return
	}
	s.log.Info("late offers recorded", "provider", provider, "offers", len(offers))
}
