package scheduler

import (
	"context"
	"fmt"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/latecache"
	"offer_compare_backend/internal/offers/service"
	"offer_compare_backend/platform/config"
	"offer_compare_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Collector runs one buffered aggregation.
type Collector interface {
	Collect(ctx context.Context, q domain.AddressQuery) service.Result
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	collector Collector
	store     latecache.Store
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, collector Collector, store latecache.Store, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		Logger: newAsynqLogger(log),
	})

	w := newWorker(collector, store, log)
	w.server = server
	return w, nil
}

func newWorker(collector Collector, store latecache.Store, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:       mux,
		collector: collector,
		store:     store,
		log:       log,
	}
	mux.HandleFunc(TaskOffersPrefetch, w.handleOffersPrefetch)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleOffersPrefetch runs a full search and parks the offers under the
// address key, where the late-offer poll picks them up.
func (w *Worker) handleOffersPrefetch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOffersPrefetchPayload(task)
	if err != nil {
		return err
	}

	q := payload.Address
	res := w.collector.Collect(ctx, q)
	w.log.Info("offers prefetched",
		"key", q.Key(),
		"offers", len(res.Offers),
		"succeeded", res.Stats.Succeeded,
		"failed", res.Stats.Failed,
		"pending", res.Stats.Pending,
	)

	if err := w.store.Record(ctx, q.Key(), res.Offers); err != nil {
		return fmt.Errorf("record prefetched offers: %w", err)
	}
	return nil
}
