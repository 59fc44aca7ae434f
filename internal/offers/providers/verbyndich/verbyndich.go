// Package verbyndich adapts the VerbynDich paginated offer API. Each page
// describes one product in free text; the numeric fields are extracted from
// the description.
package verbyndich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/platform/logger"

	"golang.org/x/time/rate"
)

const defaultMaxPages = 200

var (
	groupSeparators = strings.NewReplacer(".", "", ",", "")

	speedPattern    = regexp.MustCompile(`(?i)(\d+)\s*Mbit`)
	pricePattern    = regexp.MustCompile(`(?:^|[^\d.,])(\d{1,3}(?:[.,]\d{3})+|\d+)(?:[.,](\d{1,2}))?\s*€`)
	durationPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:Monate|months?)`)
	typePattern     = regexp.MustCompile(`([A-Za-z]+)-Verbindung`)
)

type page struct {
	Product     string `json:"product"`
	Description string `json:"description"`
	Last        bool   `json:"last"`
	Valid       bool   `json:"valid"`
}

// Client fetches offers from VerbynDich.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	maxPages   int
	limiter    *rate.Limiter
	log        *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithMaxPages caps the number of pages requested per Fetch.
func WithMaxPages(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithPageRate limits outbound page requests to perSecond. Zero disables pacing.
func WithPageRate(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// New creates a VerbynDich client.
func New(httpClient *http.Client, endpoint, apiKey string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		maxPages:   defaultMaxPages,
		log:        log.WithProvider(domain.ProviderVerbynDich),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return domain.ProviderVerbynDich }

// Fetch walks the pages from 0 until an invalid or last page. A rate-limit
// answer ends the walk and keeps what was collected.
func (c *Client) Fetch(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	line := q.Line()
	offers := []domain.Offer{}

	for n := 0; n < c.maxPages; n++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		p, err := c.fetchPage(ctx, line, n)
		if err != nil {
			if errors.Is(err, providers.ErrRateLimited) {
				c.log.Warn("verbyndich rate limited, returning collected pages", "page", n, "offers", len(offers))
				return offers, nil
			}
			return nil, err
		}
		if !p.Valid {
			break
		}

		if offer, ok := extract(p, n); ok {
			offers = append(offers, offer)
		} else {
			c.log.Debug("verbyndich page skipped", "page", n, "product", p.Product)
		}

		if p.Last {
			return offers, nil
		}
	}

	return offers, nil
}

func (c *Client) fetchPage(ctx context.Context, line string, n int) (page, error) {
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("page", strconv.Itoa(n))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+params.Encode(), bytes.NewBufferString(line))
	if err != nil {
		return page{}, err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("verbyndich page %d: %w", n, err)
	}
	defer resp.Body.Close()

	if err := providers.CheckStatus(resp); err != nil {
		return page{}, err
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return page{}, providers.ParseError(fmt.Errorf("page %d: %w", n, err))
	}
	return p, nil
}

// extract reads speed, price, duration and connection type from the page
// description. All four are required.
func extract(p page, n int) (domain.Offer, bool) {
	desc := p.Description

	m := speedPattern.FindStringSubmatch(desc)
	if m == nil {
		return domain.Offer{}, false
	}
	speed, _ := strconv.Atoi(m[1])

	m = pricePattern.FindStringSubmatch(desc)
	if m == nil {
		return domain.Offer{}, false
	}
	price, ok := parsePrice(m[1], m[2])
	if !ok {
		return domain.Offer{}, false
	}

	m = durationPattern.FindStringSubmatch(desc)
	if m == nil {
		return domain.Offer{}, false
	}
	duration, _ := strconv.Atoi(m[1])

	m = typePattern.FindStringSubmatch(desc)
	if m == nil {
		return domain.Offer{}, false
	}

	return domain.Offer{
		Provider:       domain.ProviderVerbynDich,
		ProductID:      strconv.Itoa(n),
		Title:          strings.TrimSpace(p.Product),
		SpeedMbps:      speed,
		PricePerMonth:  price,
		DurationMonths: duration,
		ConnectionType: domain.ParseConnectionType(m[1]),
		Extras:         providers.Extras(desc),
	}, true
}

// parsePrice combines whole and fractional currency digits; "5" as fraction
// means 50 cents. Thousands separators in whole are ignored.
func parsePrice(whole, frac string) (float64, bool) {
	units, err := strconv.Atoi(groupSeparators.Replace(whole))
	if err != nil {
		return 0, false
	}
	cents := 0
	switch len(frac) {
	case 1:
		cents, _ = strconv.Atoi(frac)
		cents *= 10
	case 2:
		cents, _ = strconv.Atoi(frac)
	}
	return domain.CentsToPrice(units*100 + cents), true
}
