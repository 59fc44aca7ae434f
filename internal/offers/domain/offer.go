// Package domain contains the offer comparison value types shared by
// providers, the aggregation service and the transports.
package domain

import (
	"strings"
)

// Known provider identifiers.
const (
	ProviderByteMe      = "ByteMe"
	ProviderWebWunder   = "WebWunder"
	ProviderPingPerfect = "Ping Perfect"
	ProviderVerbynDich  = "VerbynDich"
	ProviderServusSpeed = "Servus Speed"
)

// DefaultCountryCode is used when neither the query nor the configuration
// names a country.
const DefaultCountryCode = "DE"

// AddressQuery is the input of one aggregation run.
type AddressQuery struct {
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	City        string `json:"city"`
	PostalCode  string `json:"plz"`
	CountryCode string `json:"countryCode,omitempty"`
}

// WithDefaults returns a copy with the country code normalized and, when
// empty, set to country (or DefaultCountryCode if country is empty too).
func (q AddressQuery) WithDefaults(country string) AddressQuery {
	q.CountryCode = normalizeCountry(q.CountryCode)
	if q.CountryCode == "" {
		q.CountryCode = normalizeCountry(country)
	}
	if q.CountryCode == "" {
		q.CountryCode = DefaultCountryCode
	}
	return q
}

func normalizeCountry(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}

// Line joins the four required fields as "street;houseNumber;city;plz".
func (q AddressQuery) Line() string {
	return strings.Join([]string{
		strings.TrimSpace(q.Street),
		strings.TrimSpace(q.HouseNumber),
		strings.TrimSpace(q.City),
		strings.TrimSpace(q.PostalCode),
	}, ";")
}

// Key is the late-offer cache key for the address.
func (q AddressQuery) Key() string {
	return strings.ToLower(q.Line())
}

// ConnectionType is the access technology of an offer.
type ConnectionType string

const (
	ConnectionDSL     ConnectionType = "DSL"
	ConnectionCable   ConnectionType = "CABLE"
	ConnectionFiber   ConnectionType = "FIBER"
	ConnectionMobile  ConnectionType = "MOBILE"
	ConnectionUnknown ConnectionType = "UNKNOWN"
)

// ParseConnectionType maps an upstream spelling onto a ConnectionType.
func ParseConnectionType(raw string) ConnectionType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DSL", "VDSL", "ADSL":
		return ConnectionDSL
	case "CABLE", "KABEL":
		return ConnectionCable
	case "FIBER", "FIBRE", "GLASFASER":
		return ConnectionFiber
	case "MOBILE", "LTE", "5G", "MOBILFUNK":
		return ConnectionMobile
	default:
		return ConnectionUnknown
	}
}

// Offer is one normalized product returned by a provider.
type Offer struct {
	Provider       string         `json:"provider"`
	ProductID      string         `json:"productId"`
	Title          string         `json:"title"`
	SpeedMbps      int            `json:"speedMbps"`
	PricePerMonth  float64        `json:"pricePerMonth"`
	DurationMonths int            `json:"durationMonths"`
	ConnectionType ConnectionType `json:"connectionType"`
	Extras         []string       `json:"extras"`
}

// Valid reports whether the numeric fields are non-negative.
func (o Offer) Valid() bool {
	return o.SpeedMbps >= 0 && o.PricePerMonth >= 0 && o.DurationMonths >= 0
}

// CentsToPrice converts minor currency units to a decimal price.
func CentsToPrice(cents int) float64 {
	return float64(cents) / 100
}
