// Package latecache holds offers that arrived after the primary response
// window, keyed by the address key, until a follow-up poll consumes them.
package latecache

import (
	"context"

	"offer_compare_backend/internal/offers/domain"
)

// Store records late offers and hands each batch out at most once.
type Store interface {
	// Record appends offers to the entry for key.
	Record(ctx context.Context, key string, offers []domain.Offer) error
	// Consume returns and deletes the entry for key. An absent key yields an
	// empty slice.
	Consume(ctx context.Context, key string) ([]domain.Offer, error)
}
