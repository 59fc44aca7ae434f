package handler

import (
	"context"
	"net/http"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/service"
	"offer_compare_backend/internal/offers/stream"
	"offer_compare_backend/internal/offers/transport"
	"offer_compare_backend/platform/apperr"
	"offer_compare_backend/platform/httpkit"
	"offer_compare_backend/platform/logger"
	"offer_compare_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Searcher is the aggregation surface the handler needs.
type Searcher interface {
	Collect(ctx context.Context, q domain.AddressQuery) service.Result
	CollectWithin(ctx context.Context, q domain.AddressQuery, window time.Duration) service.Result
	Stream(ctx context.Context, q domain.AddressQuery) <-chan stream.Event
	LateOffers(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error)
}

// PrefetchQueue enqueues background searches.
type PrefetchQueue interface {
	EnqueuePrefetch(ctx context.Context, q domain.AddressQuery) error
}

// Handler handles HTTP requests for offers.
type Handler struct {
	svc    Searcher
	queue  PrefetchQueue
	val    *validator.Validator
	window  time.Duration
	country string
	log     *logger.Logger
}

// New creates a new offers handler. queue may be nil; window 0 waits for
// every provider. country is used for requests without a country code.
func New(svc Searcher, queue PrefetchQueue, val *validator.Validator, window time.Duration, country string, log *logger.Logger) *Handler {
	return &Handler{svc: svc, queue: queue, val: val, window: window, country: country, log: log}
}

// RegisterRoutes registers offer routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Search)
	rg.GET("/stream", h.Stream)
	rg.GET("/late", h.Late)
	rg.POST("/prefetch", h.Prefetch)
}

// Search handles POST /api/v1/offers.
func (h *Handler) Search(c *gin.Context) {
	var req transport.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	q, ok := h.validate(c, req)
	if !ok {
		return
	}

	var res service.Result
	if h.window > 0 {
		res = h.svc.CollectWithin(c.Request.Context(), q, h.window)
	} else {
		res = h.svc.Collect(c.Request.Context(), q)
	}

	httpkit.OK(c, transport.OffersResponse{Offers: res.Offers, Stats: res.Stats})
}

// Stream handles GET /api/v1/offers/stream as server-sent events.
func (h *Handler) Stream(c *gin.Context) {
	var req transport.AddressRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	q, ok := h.validate(c, req)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for ev := range h.svc.Stream(c.Request.Context(), q) {
		switch ev.Kind {
		case stream.KindOffer:
			c.SSEvent("message", ev.Offer)
		case stream.KindError:
			msg := "provider failed"
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			c.SSEvent("error", transport.StreamError{Provider: ev.Provider, Error: msg})
		case stream.KindDone:
			c.SSEvent("done", stream.DoneMessage)
		}
		c.Writer.Flush()
	}
}

// Late handles GET /api/v1/offers/late.
func (h *Handler) Late(c *gin.Context) {
	var req transport.AddressRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	q, ok := h.validate(c, req)
	if !ok {
		return
	}

	offers, err := h.svc.LateOffers(c.Request.Context(), q)
	if err != nil {
		h.log.WithContext(c.Request.Context()).Error("late offers lookup failed", "error", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, "late offers unavailable", err))
		return
	}

	httpkit.OK(c, transport.LateOffersResponse{Offers: offers})
}

// Prefetch handles POST /api/v1/offers/prefetch.
func (h *Handler) Prefetch(c *gin.Context) {
	if h.queue == nil {
		httpkit.HandleError(c, apperr.Unavailable("background prefetch is not configured"))
		return
	}

	var req transport.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}
	q, ok := h.validate(c, req)
	if !ok {
		return
	}

	if err := h.queue.EnqueuePrefetch(c.Request.Context(), q); err != nil {
		h.log.WithContext(c.Request.Context()).Error("prefetch enqueue failed", "error", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, "could not schedule prefetch", err))
		return
	}

	httpkit.Accepted(c, transport.PrefetchResponse{Status: "queued", Key: q.Key()})
}

func (h *Handler) validate(c *gin.Context, req transport.AddressRequest) (domain.AddressQuery, bool) {
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(validator.FieldErrors(err)))
		return domain.AddressQuery{}, false
	}
	return req.ToQuery(h.country), true
}
