// Package stream defines the event sequence used to deliver offers
// incrementally: zero or more offer events, optional per-provider error
// events, and exactly one done event at the end.
package stream

import (
	"offer_compare_backend/internal/offers/domain"
)

// Kind tags an Event.
type Kind string

const (
	KindOffer Kind = "offer"
	KindError Kind = "error"
	KindDone  Kind = "done"
)

// DoneMessage is the payload transports send with the done event.
const DoneMessage = "All providers processed"

// Event is one element of an incremental delivery.
type Event struct {
	Kind     Kind
	Offer    domain.Offer
	Provider string
	Err      error
}

// OfferEvent wraps an offer.
func OfferEvent(o domain.Offer) Event {
	return Event{Kind: KindOffer, Offer: o, Provider: o.Provider}
}

// ErrorEvent reports that a provider contributed nothing.
func ErrorEvent(provider string, err error) Event {
	return Event{Kind: KindError, Provider: provider, Err: err}
}

// DoneEvent marks the end of the sequence.
func DoneEvent() Event {
	return Event{Kind: KindDone}
}
