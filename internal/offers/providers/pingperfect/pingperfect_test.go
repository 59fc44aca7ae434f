package pingperfect

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/internal/offers/retry"
	"offer_compare_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	query     = domain.AddressQuery{Street: "Main Street", HouseNumber: "12", City: "Berlin", PostalCode: "10115"}
	fixedTime = time.Unix(1_700_000_000, 0)
)

func newClient(srv *httptest.Server) *Client {
	return New(srv.Client(), srv.URL, "client-1", "s3cret", logger.Discard(), WithClock(func() time.Time { return fixedTime }))
}

func TestBodyKeyOrder(t *testing.T) {
	raw, err := Body(query, true)
	require.NoError(t, err)
	assert.Equal(t, `{"street":"Main Street","plz":"10115","houseNumber":"12","city":"Berlin","wantsFiber":true}`, string(raw))
}

func TestSignMatchesReferenceHMAC(t *testing.T) {
	body := []byte(`{"street":"Main Street","plz":"10115","houseNumber":"12","city":"Berlin","wantsFiber":false}`)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("1700000000:" + string(body)))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, Sign("s3cret", "1700000000", body))
}

func TestFetchSignsExactBodyAndQueriesBothAxes(t *testing.T) {
	axes := make(chan bool, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "client-1", r.Header.Get("X-Client-Id"))
		assert.Equal(t, "1700000000", r.Header.Get("X-Timestamp"))
		assert.Equal(t, Sign("s3cret", "1700000000", body), r.Header.Get("X-Signature"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			WantsFiber bool `json:"wantsFiber"`
		}
		assert.NoError(t, json.Unmarshal(body, &payload))
		axes <- payload.WantsFiber

		if payload.WantsFiber {
			_, _ = w.Write([]byte(`{"offers":[{"productId":7,"name":"Fiber 1000","speedMbps":"1000","price":5999,"duration":24,"connectionType":"FIBER","tv":"PingTV"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"offers":[
			{"productId":"d-1","name":"DSL 100","speedMbps":100,"price":"2999","duration":"12","connectionType":"DSL","voucher":"10% off","limit":""},
			{"productId":"d-2","name":"Broken","speedMbps":100,"duration":24}
		]}`))
	}))
	defer srv.Close()

	offers, err := newClient(srv).Fetch(context.Background(), query)

	require.NoError(t, err)
	close(axes)
	var seen []bool
	for a := range axes {
		seen = append(seen, a)
	}
	assert.ElementsMatch(t, []bool{false, true}, seen)

	require.Len(t, offers, 2)
	byID := map[string]domain.Offer{}
	for _, o := range offers {
		byID[o.ProductID] = o
	}
	dsl := byID["d-1"]
	assert.Equal(t, 29.99, dsl.PricePerMonth)
	assert.Equal(t, 100, dsl.SpeedMbps)
	assert.Equal(t, 12, dsl.DurationMonths)
	assert.Equal(t, []string{"10% off"}, dsl.Extras)

	fiber := byID["7"]
	assert.Equal(t, domain.ConnectionFiber, fiber.ConnectionType)
	assert.Equal(t, 1000, fiber.SpeedMbps)
	assert.Equal(t, 59.99, fiber.PricePerMonth)
}

func TestFetchOneAxisFailingKeepsTheOther(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			WantsFiber bool `json:"wantsFiber"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.WantsFiber {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"offers":[{"productId":"d-1","name":"DSL","speedMbps":50,"price":1999,"duration":24}]}`))
	}))
	defer srv.Close()

	offers, err := newClient(srv).Fetch(context.Background(), query)

	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "d-1", offers[0].ProductID)
}

func TestFetchBothAxesFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	offers, err := newClient(srv).Fetch(context.Background(), query)

	assert.Nil(t, offers)
	assert.ErrorIs(t, err, providers.ErrUnauthorized)
	assert.True(t, retry.IsTerminal(err))
}

func TestFetchMalformedJSONIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"offers":[`))
	}))
	defer srv.Close()

	_, err := newClient(srv).Fetch(context.Background(), query)

	assert.ErrorIs(t, err, providers.ErrParse)
	assert.True(t, retry.IsTerminal(err))
}
