// Package servusspeed adapts the Servus Speed two-phase API: one call lists
// the product ids available at an address, then one call per id returns the
// product details.
package servusspeed

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/platform/logger"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
)

const (
	listPath   = "/api/external/available-products"
	detailPath = "/api/external/product-details/"

	maxParallelDetails    = 4
	defaultListRetryDelay = time.Second
	defaultMaxJitter      = 250 * time.Millisecond
)

type listRequest struct {
	Address listAddress `json:"address"`
}

type listAddress struct {
	Street      string `json:"strasse"`
	HouseNumber string `json:"hausnummer"`
	PostalCode  string `json:"postleitzahl"`
	City        string `json:"stadt"`
	Country     string `json:"land"`
}

type listResponse struct {
	ProductIDs        []providers.FlexString `json:"productIds"`
	AvailableProducts []providers.FlexString `json:"availableProducts"`
}

type detail struct {
	ProductID      providers.FlexString  `json:"productId"`
	ProductName    string                `json:"productName"`
	SpeedMbps      *providers.FlexNumber `json:"speedMbps"`
	PriceInCent    *providers.FlexNumber `json:"priceInCent"`
	DurationMonths *providers.FlexNumber `json:"durationMonths"`
	ConnectionType string                `json:"connectionType"`
	Features       []string              `json:"features"`
}

// Client fetches offers from Servus Speed.
type Client struct {
	httpClient *http.Client
	listClient *retryablehttp.Client
	baseURL    string
	username   string
	password   string
	maxJitter  time.Duration
	log        *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithListRetryDelay sets the fixed wait before the single list retry.
func WithListRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.listClient.RetryWaitMin = d
		c.listClient.RetryWaitMax = d
	}
}

// WithMaxJitter sets the upper bound of the random delay before each detail
// call. Zero disables the delay.
func WithMaxJitter(d time.Duration) Option {
	return func(c *Client) { c.maxJitter = d }
}

// New creates a Servus Speed client. The list call is retried exactly once
// when the upstream answers 503.
func New(httpClient *http.Client, baseURL, username, password string, log *logger.Logger, opts ...Option) *Client {
	log = log.WithProvider(domain.ProviderServusSpeed)

	listClient := retryablehttp.NewClient()
	listClient.HTTPClient = httpClient
	listClient.Logger = log.Logger
	listClient.RetryMax = 1
	listClient.RetryWaitMin = defaultListRetryDelay
	listClient.RetryWaitMax = defaultListRetryDelay
	listClient.Backoff = func(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
		return min
	}
	listClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return false, err
		}
		return resp.StatusCode == http.StatusServiceUnavailable, nil
	}
	listClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		httpClient: httpClient,
		listClient: listClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		maxJitter:  defaultMaxJitter,
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return domain.ProviderServusSpeed }

// Fetch lists the product ids and loads their details, at most four at a
// time. Failed detail calls are skipped.
func (c *Client) Fetch(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	ids, err := c.listProducts(ctx, q.WithDefaults(""))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Offer{}, nil
	}

	type slot struct {
		offer domain.Offer
		ok    bool
		err   error
	}
	slots := make([]slot, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDetails)
	for i, id := range ids {
		g.Go(func() error {
			if err := c.jitter(gctx); err != nil {
				slots[i].err = err
				return nil
			}
			d, err := c.productDetail(gctx, id)
			if err != nil {
				c.log.Warn("servusspeed product detail failed", "productId", id, "error", err)
				slots[i].err = err
				return nil
			}
			offer, ok := toOffer(d, id)
			if !ok {
				c.log.Debug("servusspeed record dropped", "productId", id)
			}
			slots[i] = slot{offer: offer, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	offers := make([]domain.Offer, 0, len(ids))
	var errs []error
	for _, s := range slots {
		if s.err != nil {
			errs = append(errs, s.err)
			continue
		}
		if s.ok {
			offers = append(offers, s.offer)
		}
	}
	if len(errs) == len(ids) {
		return nil, providers.JoinFailures(errs)
	}
	return offers, nil
}

func (c *Client) listProducts(ctx context.Context, q domain.AddressQuery) ([]string, error) {
	payload, err := json.Marshal(listRequest{Address: listAddress{
		Street:      q.Street,
		HouseNumber: q.HouseNumber,
		PostalCode:  q.PostalCode,
		City:        q.City,
		Country:     q.CountryCode,
	}})
	if err != nil {
		return nil, fmt.Errorf("encode list request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+listPath, payload)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.listClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("servusspeed list: %w", err)
	}
	defer resp.Body.Close()

	if err := providers.CheckStatus(resp); err != nil {
		return nil, err
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, providers.ParseError(err)
	}

	raw := decoded.ProductIDs
	if len(raw) == 0 {
		raw = decoded.AvailableProducts
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id != "" {
			ids = append(ids, string(id))
		}
	}
	return ids, nil
}

func (c *Client) productDetail(ctx context.Context, id string) (detail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+detailPath+url.PathEscape(id), nil)
	if err != nil {
		return detail{}, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return detail{}, fmt.Errorf("servusspeed detail %s: %w", id, err)
	}
	defer resp.Body.Close()

	if err := providers.CheckStatus(resp); err != nil {
		return detail{}, err
	}

	var d detail
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return detail{}, providers.ParseError(err)
	}
	return d, nil
}

func (c *Client) jitter(ctx context.Context) error {
	if c.maxJitter <= 0 {
		return nil
	}
	timer := time.NewTimer(rand.N(c.maxJitter))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func toOffer(d detail, requestedID string) (domain.Offer, bool) {
	speed, ok := d.SpeedMbps.Positive()
	if !ok {
		return domain.Offer{}, false
	}
	cents, ok := d.PriceInCent.Positive()
	if !ok {
		return domain.Offer{}, false
	}
	duration, ok := d.DurationMonths.Positive()
	if !ok {
		return domain.Offer{}, false
	}

	id := string(d.ProductID)
	if id == "" {
		id = requestedID
	}
	title := strings.TrimSpace(d.ProductName)
	if title == "" {
		title = fmt.Sprintf("%s %d Mbit/s", domain.ProviderServusSpeed, speed)
	}

	return domain.Offer{
		Provider:       domain.ProviderServusSpeed,
		ProductID:      id,
		Title:          title,
		SpeedMbps:      speed,
		PricePerMonth:  domain.CentsToPrice(cents),
		DurationMonths: duration,
		ConnectionType: domain.ParseConnectionType(d.ConnectionType),
		Extras:         providers.Extras(d.Features...),
	}, true
}
