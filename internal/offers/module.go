// Package offers provides the offer comparison bounded context module.
// This file defines the module that wires the HTTP surface to the aggregation service.
package offers

import (
	apphttp "offer_compare_backend/internal/http"
	"offer_compare_backend/internal/offers/handler"
	"offer_compare_backend/internal/offers/service"
	"offer_compare_backend/platform/config"
	"offer_compare_backend/platform/logger"
	"offer_compare_backend/platform/validator"
)

// Module is the offers bounded context module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the offers module. queue may be nil, in which case
// prefetch requests answer 503.
func NewModule(svc *service.Service, queue handler.PrefetchQueue, val *validator.Validator, cfg config.OffersConfig, log *logger.Logger) *Module {
	if queue == nil {
		log.Info("offer prefetch disabled: REDIS_URL not configured")
	}
	h := handler.New(svc, queue, val, cfg.GetLateOffersWindow(), cfg.GetDefaultCountry(), log)
	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "offers"
}

// Service returns the aggregation service.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the offer routes under /api/v1/offers.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/offers"))
}

var _ apphttp.Module = (*Module)(nil)
