package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressQueryLineAndKey(t *testing.T) {
	q := AddressQuery{Street: " Hauptstraße ", HouseNumber: "5a", City: "Berlin", PostalCode: "10115"}

	assert.Equal(t, "Hauptstraße;5a;Berlin;10115", q.Line())
	assert.Equal(t, "hauptstraße;5a;berlin;10115", q.Key())

	same := AddressQuery{Street: "HAUPTSTRASSE", HouseNumber: "5A", City: "berlin", PostalCode: "10115"}
	assert.NotEqual(t, q.Key(), same.Key(), "ß is not folded")

	upper := AddressQuery{Street: "HAUPTSTRAßE", HouseNumber: "5A", City: "BERLIN", PostalCode: "10115"}
	assert.Equal(t, q.Key(), upper.Key())
}

func TestAddressQueryWithDefaults(t *testing.T) {
	assert.Equal(t, "DE", AddressQuery{}.WithDefaults("").CountryCode)
	assert.Equal(t, "AT", AddressQuery{CountryCode: " at"}.WithDefaults("").CountryCode)
	assert.Equal(t, "CH", AddressQuery{}.WithDefaults(" ch").CountryCode)
	assert.Equal(t, "AT", AddressQuery{CountryCode: "AT"}.WithDefaults("CH").CountryCode)
}

func TestParseConnectionType(t *testing.T) {
	cases := map[string]ConnectionType{
		"dsl":       ConnectionDSL,
		"Kabel":     ConnectionCable,
		"GLASFASER": ConnectionFiber,
		"fiber":     ConnectionFiber,
		"LTE":       ConnectionMobile,
		"5g":        ConnectionMobile,
		"":          ConnectionUnknown,
		"satellite": ConnectionUnknown,
	}
	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			assert.Equal(t, want, ParseConnectionType(raw))
		})
	}
}

func TestCentsToPrice(t *testing.T) {
	assert.Equal(t, 29.99, CentsToPrice(2999))
	assert.Equal(t, 0.0, CentsToPrice(0))
}

func TestOfferValid(t *testing.T) {
	assert.True(t, Offer{SpeedMbps: 100, PricePerMonth: 19.99, DurationMonths: 24}.Valid())
	assert.True(t, Offer{}.Valid())
	assert.False(t, Offer{SpeedMbps: -1}.Valid())
	assert.False(t, Offer{PricePerMonth: -0.01}.Valid())
}

func TestOfferJSONFieldNames(t *testing.T) {
	raw, err := json.Marshal(Offer{
		Provider:       ProviderByteMe,
		ProductID:      "p1",
		Title:          "ByteMe 100 Mbit/s",
		SpeedMbps:      100,
		PricePerMonth:  29.99,
		DurationMonths: 24,
		ConnectionType: ConnectionDSL,
		Extras:         []string{"TV: Basic"},
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"provider", "productId", "title", "speedMbps", "pricePerMonth", "durationMonths", "connectionType", "extras"} {
		assert.Contains(t, fields, key)
	}
}
