package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"

	"offer_compare_backend/internal/offers/domain"

	"github.com/hibiken/asynq"
)

const TaskOffersPrefetch = "offers.prefetch"

type OffersPrefetchPayload struct {
	Address domain.AddressQuery `json:"address"`
}

func NewOffersPrefetchTask(q domain.AddressQuery) (*asynq.Task, error) {
	data, err := json.Marshal(OffersPrefetchPayload{Address: q.WithDefaults("")})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOffersPrefetch, data), nil
}

func ParseOffersPrefetchPayload(task *asynq.Task) (OffersPrefetchPayload, error) {
	var payload OffersPrefetchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OffersPrefetchPayload{}, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if strings.TrimSpace(payload.Address.Street) == "" || strings.TrimSpace(payload.Address.PostalCode) == "" {
		return OffersPrefetchPayload{}, fmt.Errorf("%w: empty address", asynq.SkipRetry)
	}
	return payload, nil
}
