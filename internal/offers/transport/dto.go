// Package transport holds the HTTP request and response shapes of the offers API.
package transport

import (
	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/service"
)

// AddressRequest is accepted as a JSON body (POST) or as query parameters (GET).
type AddressRequest struct {
	Street      string `json:"street" form:"street" validate:"required,max=200"`
	HouseNumber string `json:"houseNumber" form:"houseNumber" validate:"required,max=20"`
	City        string `json:"city" form:"city" validate:"required,max=100"`
	PostalCode  string `json:"plz" form:"plz" validate:"required,plz"`
	CountryCode string `json:"countryCode" form:"countryCode" validate:"omitempty,iso3166_1_alpha2"`
}

// ToQuery converts the request into a domain query; defaultCountry fills in
// a missing country code.
func (r AddressRequest) ToQuery(defaultCountry string) domain.AddressQuery {
	return domain.AddressQuery{
		Street:      r.Street,
		HouseNumber: r.HouseNumber,
		City:        r.City,
		PostalCode:  r.PostalCode,
		CountryCode: r.CountryCode,
	}.WithDefaults(defaultCountry)
}

// OffersResponse is returned by the buffered search.
type OffersResponse struct {
	Offers []domain.Offer `json:"offers"`
	Stats  service.Stats  `json:"stats"`
}

// LateOffersResponse is returned by the late-offer poll.
type LateOffersResponse struct {
	Offers []domain.Offer `json:"offers"`
}

// PrefetchResponse acknowledges an enqueued background search.
type PrefetchResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
}

// StreamError is the payload of an "error" event on the stream.
type StreamError struct {
	Provider string `json:"provider"`
	Error    string `json:"error"`
}
