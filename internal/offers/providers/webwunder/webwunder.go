// Package webwunder adapts the WebWunder SOAP offer service.
package webwunder

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/platform/logger"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

const (
	// maxParallelCalls bounds the sub-calls running at the same time.
	maxParallelCalls = 4
	// defaultDurationMonths is used when the service omits the contract length.
	defaultDurationMonths = 24
)

var connectionEnums = []string{"DSL", "MOBILE", "FIBER", "CABLE"}

// combination is one value of the installation x connection axes.
type combination struct {
	Installation bool
	Connection   string
}

func (c combination) String() string {
	return fmt.Sprintf("%s/installation=%t", c.Connection, c.Installation)
}

// combinations returns the default (installation, DSL) first, followed by the
// seven other axis values.
func combinations() []combination {
	out := []combination{{Installation: true, Connection: "DSL"}}
	for _, installation := range []bool{true, false} {
		for _, conn := range connectionEnums {
			if installation && conn == "DSL" {
				continue
			}
			out = append(out, combination{Installation: installation, Connection: conn})
		}
	}
	return out
}

// Client fetches offers from WebWunder.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	log        *logger.Logger
}

// New creates a WebWunder client.
func New(httpClient *http.Client, endpoint, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     apiKey,
		log:        log.WithProvider(domain.ProviderWebWunder),
	}
}

func (c *Client) Name() string { return domain.ProviderWebWunder }

type subResult struct {
	combo  combination
	offers []domain.Offer
	err    error
}

// Fetch runs the default combination, then the remaining seven concurrently.
// Failed sub-calls are logged and skipped; an error is returned only when all
// of them failed.
func (c *Client) Fetch(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	q = q.WithDefaults("")
	combos := combinations()

	results := make([]subResult, 0, len(combos))
	results = append(results, c.safeCall(ctx, q, combos[0]))

	p := pool.NewWithResults[subResult]().WithMaxGoroutines(maxParallelCalls)
	for _, combo := range combos[1:] {
		p.Go(func() subResult {
			return c.safeCall(ctx, q, combo)
		})
	}
	results = append(results, p.Wait()...)

	var offers []domain.Offer
	var errs []error
	for _, r := range results {
		if r.err != nil {
			c.log.Warn("webwunder sub-call failed", "combination", r.combo.String(), "error", r.err)
			errs = append(errs, fmt.Errorf("%s: %w", r.combo, r.err))
			continue
		}
		offers = append(offers, r.offers...)
	}

	if len(errs) == len(results) {
		return nil, providers.JoinFailures(errs)
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	return offers, nil
}

func (c *Client) safeCall(ctx context.Context, q domain.AddressQuery, combo combination) subResult {
	res := subResult{combo: combo}
	recovered := panics.Try(func() {
		res.offers, res.err = c.call(ctx, q, combo)
	})
	if recovered != nil {
		res.offers, res.err = nil, recovered.AsError()
	}
	return res
}

func (c *Client) call(ctx context.Context, q domain.AddressQuery, combo combination) ([]domain.Offer, error) {
	env := newRequestEnvelope(offersInput{
		Installation:   combo.Installation,
		ConnectionEnum: combo.Connection,
		Address: inputAddress{
			Street:      q.Street,
			HouseNumber: q.HouseNumber,
			City:        q.City,
			PLZ:         q.PostalCode,
			CountryCode: q.CountryCode,
		},
	})
	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	payload = append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webwunder request: %w", err)
	}
	defer resp.Body.Close()

	// SOAP faults arrive as 500 with an envelope; those are rejections, not outages.
	body, readErr := providers.ReadBody(resp)
	if statusErr := providers.CheckStatus(resp); statusErr != nil {
		if readErr == nil {
			if fault := parseFault(body); fault != nil {
				return nil, providers.ParseError(fmt.Errorf("soap fault %s: %s", fault.Code, fault.String))
			}
		}
		return nil, statusErr
	}
	if readErr != nil {
		return nil, fmt.Errorf("webwunder read body: %w", readErr)
	}

	return c.parse(body, combo)
}

func parseFault(body []byte) *soapFault {
	var env responseEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil
	}
	return env.Body.Fault
}

func (c *Client) parse(body []byte, combo combination) ([]domain.Offer, error) {
	var env responseEnvelope
	if err := xml.Unmarshal(body, &env); err != nil {
		return nil, providers.ParseError(err)
	}
	if env.Body.Fault != nil {
		return nil, providers.ParseError(errors.New(env.Body.Fault.String))
	}
	if env.Body.Response == nil {
		return []domain.Offer{}, nil
	}

	offers := make([]domain.Offer, 0, len(env.Body.Response.Outputs))
	for _, out := range env.Body.Response.Outputs {
		offer, ok := toOffer(out, combo)
		if !ok {
			c.log.Debug("webwunder record dropped", "productId", firstNonEmpty(out.ProductID, out.ID))
			continue
		}
		offers = append(offers, offer)
	}
	return offers, nil
}

func toOffer(out output, combo combination) (domain.Offer, bool) {
	speedRaw, priceRaw, durationRaw := out.Speed, out.MonthlyCostInCent, out.DurationInMonths
	connRaw, tv, installation := out.ConnectionType, out.TV, ""
	var limitFrom, maxAge string
	if pi := out.ProductInfo; pi != nil {
		speedRaw = firstNonEmpty(pi.Speed, speedRaw)
		durationRaw = firstNonEmpty(pi.ContractDurationInMonths, durationRaw)
		connRaw = firstNonEmpty(pi.ConnectionType, connRaw)
		tv = firstNonEmpty(pi.TV, tv)
		limitFrom, maxAge = pi.LimitFrom, pi.MaxAge
	}
	if pd := out.PricingDetails; pd != nil {
		priceRaw = firstNonEmpty(pd.MonthlyCostInCent, priceRaw)
		installation = pd.InstallationService
	}

	speed, ok := positiveInt(speedRaw)
	if !ok {
		return domain.Offer{}, false
	}
	cents, ok := positiveInt(priceRaw)
	if !ok {
		return domain.Offer{}, false
	}
	duration, ok := positiveInt(durationRaw)
	if !ok {
		duration = defaultDurationMonths
	}

	conn := domain.ParseConnectionType(connRaw)
	if conn == domain.ConnectionUnknown {
		conn = domain.ParseConnectionType(combo.Connection)
	}

	title := firstNonEmpty(out.Title, out.ProviderName)
	if title == "" {
		title = domain.ProviderWebWunder
	}

	return domain.Offer{
		Provider:       domain.ProviderWebWunder,
		ProductID:      firstNonEmpty(out.ProductID, out.ID),
		Title:          title,
		SpeedMbps:      speed,
		PricePerMonth:  domain.CentsToPrice(cents),
		DurationMonths: duration,
		ConnectionType: conn,
		Extras: providers.Extras(
			labelled("Installation Service", installation),
			labelled("TV", tv),
			labelled("Limit from", limitFrom),
			labelled("Max Age", maxAge),
			voucherText(out),
		),
	}, true
}

func voucherText(out output) string {
	if v := out.Voucher; v != nil {
		if v.Percentage != "" {
			text := "Voucher: " + v.Percentage + "%"
			if cents, ok := positiveInt(v.MaxDiscountInCent); ok {
				text += fmt.Sprintf(" (max %.2f €)", domain.CentsToPrice(cents))
			}
			return text
		}
		if cents, ok := positiveInt(v.DiscountInCent); ok {
			return fmt.Sprintf("Voucher: %.2f €", domain.CentsToPrice(cents))
		}
	}
	return labelled("Voucher", out.VoucherType)
}

func positiveInt(raw string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func labelled(label, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return label + ": " + value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
