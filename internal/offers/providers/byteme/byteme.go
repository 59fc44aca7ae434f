// Package byteme adapts the ByteMe CSV export to offers.
package byteme

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/platform/logger"

	"github.com/gocarina/gocsv"
)

// row mirrors one CSV line. Every column is kept as text so that broken
// numeric cells drop the row instead of failing the whole document.
type row struct {
	ProductID                string `csv:"productId"`
	ProviderName             string `csv:"providerName"`
	Speed                    string `csv:"speed"`
	MonthlyCostInCent        string `csv:"monthlyCostInCent"`
	AfterTwoYearsMonthlyCost string `csv:"afterTwoYearsMonthlyCost"`
	DurationInMonths         string `csv:"durationInMonths"`
	ConnectionType           string `csv:"connectionType"`
	InstallationService      string `csv:"installationService"`
	TV                       string `csv:"tv"`
	LimitFrom                string `csv:"limitFrom"`
	MaxAge                   string `csv:"maxAge"`
	VoucherType              string `csv:"voucherType"`
	VoucherValue             string `csv:"voucherValue"`
}

// Client fetches offers from ByteMe.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *logger.Logger
}

// New creates a ByteMe client.
func New(httpClient *http.Client, baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		log:        log.WithProvider(domain.ProviderByteMe),
	}
}

func (c *Client) Name() string { return domain.ProviderByteMe }

// Fetch issues one GET for the address and maps every valid row.
func (c *Client) Fetch(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error) {
	params := url.Values{}
	params.Set("street", q.Street)
	params.Set("houseNumber", q.HouseNumber)
	params.Set("city", q.City)
	params.Set("plz", q.PostalCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("byteme request: %w", err)
	}
	defer resp.Body.Close()

	if err := providers.CheckStatus(resp); err != nil {
		c.log.Warn("byteme returned unexpected status", "status", resp.StatusCode)
		return nil, err
	}

	body, err := providers.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("byteme read body: %w", err)
	}

	return c.parse(body)
}

func (c *Client) parse(body []byte) ([]domain.Offer, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []domain.Offer{}, nil
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows []row
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		c.log.Error("byteme csv could not be decoded", "error", err)
		return nil, providers.ParseError(err)
	}

	seen := make(map[string]struct{}, len(rows))
	offers := make([]domain.Offer, 0, len(rows))
	for i, r := range rows {
		offer, reason := c.toOffer(r)
		if reason != "" {
			c.log.Debug("byteme row dropped", "row", i+1, "productId", r.ProductID, "reason", reason)
			continue
		}
		if _, dup := seen[offer.ProductID]; dup {
			continue
		}
		seen[offer.ProductID] = struct{}{}
		offers = append(offers, offer)
	}
	return offers, nil
}

// toOffer returns a non-empty reason when the row has to be dropped.
func (c *Client) toOffer(r row) (domain.Offer, string) {
	price, ok := positiveInt(r.MonthlyCostInCent)
	if !ok {
		return domain.Offer{}, "invalid monthlyCostInCent"
	}
	speed, ok := positiveInt(r.Speed)
	if !ok {
		return domain.Offer{}, "invalid speed"
	}
	duration, ok := positiveInt(r.DurationInMonths)
	if !ok {
		return domain.Offer{}, "invalid durationInMonths"
	}

	voucherType := strings.TrimSpace(r.VoucherType)
	var voucher string
	if voucherType != "" {
		value, ok := positiveInt(r.VoucherValue)
		if !ok {
			return domain.Offer{}, "invalid voucherValue"
		}
		voucher = fmt.Sprintf("Voucher: %s %d", voucherType, value)
	}

	providerName := strings.TrimSpace(r.ProviderName)
	if providerName == "" {
		providerName = domain.ProviderByteMe
	}

	return domain.Offer{
		Provider:       domain.ProviderByteMe,
		ProductID:      strings.TrimSpace(r.ProductID),
		Title:          fmt.Sprintf("%s %d Mbit/s", providerName, speed),
		SpeedMbps:      speed,
		PricePerMonth:  domain.CentsToPrice(price),
		DurationMonths: duration,
		ConnectionType: domain.ParseConnectionType(r.ConnectionType),
		Extras: providers.Extras(
			labelled("Installation Service", r.InstallationService),
			labelled("TV", r.TV),
			labelled("Limit from", r.LimitFrom),
			labelled("Max Age", r.MaxAge),
			voucher,
			afterTwoYears(r.AfterTwoYearsMonthlyCost),
		),
	}, ""
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

func afterTwoYears(raw string) string {
	cents, ok := positiveInt(raw)
	if !ok {
		return ""
	}
	return fmt.Sprintf("After 2 years: %.2f €", domain.CentsToPrice(cents))
}
