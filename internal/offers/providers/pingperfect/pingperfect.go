// Package pingperfect adapts the Ping Perfect HMAC-signed JSON API.
package pingperfect

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/platform/logger"

	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/panics"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	headerClientID  = "X-Client-Id"
	headerTimestamp = "X-Timestamp"
	headerSignature = "X-Signature"
)

type record struct {
	ProductID      providers.FlexString  `json:"productId"`
	Name           string                `json:"name"`
	Product        string                `json:"product"`
	SpeedMbps      *providers.FlexNumber `json:"speedMbps"`
	Speed          *providers.FlexNumber `json:"speed"`
	Price          *providers.FlexNumber `json:"price"`
	Duration       *providers.FlexNumber `json:"duration"`
	ConnectionType string                `json:"connectionType"`
	Voucher        string                `json:"voucher"`
	TV             string                `json:"tv"`
	Limit          string                `json:"limit"`
}

type response struct {
	Offers []record `json:"offers"`
}

// Client fetches offers from Ping Perfect.
type Client struct {
	httpClient *http.Client
	endpoint   string
	clientID   string
	secret     string
	now        func() time.Time
	log        *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithClock replaces time.Now for the request timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a Ping Perfect client.
func New(httpClient *http.Client, endpoint, clientID, secret string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		clientID:   clientID,
		secret:     secret,
		now:        time.Now,
		log:        log.WithProvider(domain.ProviderPingPerfect),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return domain.ProviderPingPerfect }

type axisResult struct {
	wantsFiber bool
	offers     []domain.Offer
	err        error
}

// Fetch queries both values of the fiber axis independently.
func (c *Client) Fetch(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	results := iter.Map([]bool{false, true}, func(wantsFiber *bool) axisResult {
		res := axisResult{wantsFiber: *wantsFiber}
		if r := panics.Try(func() { res.offers, res.err = c.call(ctx, q, res.wantsFiber) }); r != nil {
			res.offers, res.err = nil, r.AsError()
		}
		return res
	})

	offers := []domain.Offer{}
	var errs []error
	for _, r := range results {
		if r.err != nil {
			c.log.Warn("pingperfect axis failed", "wantsFiber", r.wantsFiber, "error", r.err)
			errs = append(errs, fmt.Errorf("wantsFiber=%t: %w", r.wantsFiber, r.err))
			continue
		}
		offers = append(offers, r.offers...)
	}
	if len(errs) == len(results) {
		return nil, providers.JoinFailures(errs)
	}
	return offers, nil
}

// Body serializes the request payload with its fixed key order.
func Body(q domain.AddressQuery, wantsFiber bool) ([]byte, error) {
	om := orderedmap.New[string, any]()
	om.Set("street", q.Street)
	om.Set("plz", q.PostalCode)
	om.Set("houseNumber", q.HouseNumber)
	om.Set("city", q.City)
	om.Set("wantsFiber", wantsFiber)
	return json.Marshal(om)
}

// Sign returns hex(HMAC-SHA256(secret, "{timestamp}:{body}")).
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{':'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) call(ctx context.Context, q domain.AddressQuery, wantsFiber bool) ([]domain.Offer, error) {
	payload, err := Body(q, wantsFiber)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerClientID, c.clientID)
	req.Header.Set(headerTimestamp, timestamp)
	req.Header.Set(headerSignature, Sign(c.secret, timestamp, payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pingperfect request: %w", err)
	}
	defer resp.Body.Close()

	if err := providers.CheckStatus(resp); err != nil {
		return nil, err
	}

	body, err := providers.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("pingperfect read body: %w", err)
	}
	return c.parse(body)
}

func (c *Client) parse(body []byte) ([]domain.Offer, error) {
	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, providers.ParseError(err)
	}

	offers := make([]domain.Offer, 0, len(decoded.Offers))
	for _, r := range decoded.Offers {
		offer, ok := toOffer(r)
		if !ok {
			c.log.Debug("pingperfect record dropped", "productId", string(r.ProductID))
			continue
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func toOffer(r record) (domain.Offer, bool) {
	speedField := r.SpeedMbps
	if speedField == nil {
		speedField = r.Speed
	}
	speed, ok := speedField.Positive()
	if !ok {
		return domain.Offer{}, false
	}
	cents, ok := r.Price.Positive()
	if !ok {
		return domain.Offer{}, false
	}
	duration, ok := r.Duration.Positive()
	if !ok {
		return domain.Offer{}, false
	}

	title := strings.TrimSpace(r.Name)
	if title == "" {
		title = strings.TrimSpace(r.Product)
	}
	if title == "" {
		title = fmt.Sprintf("%s %d Mbit/s", domain.ProviderPingPerfect, speed)
	}

	return domain.Offer{
		Provider:       domain.ProviderPingPerfect,
		ProductID:      string(r.ProductID),
		Title:          title,
		SpeedMbps:      speed,
		PricePerMonth:  domain.CentsToPrice(cents),
		DurationMonths: duration,
		ConnectionType: domain.ParseConnectionType(r.ConnectionType),
		Extras:         providers.Extras(r.Voucher, r.TV, r.Limit),
	}, true
}
