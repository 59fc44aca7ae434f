// Package providers contains what the upstream adapters share: the Provider
// contract, an instrumented HTTP client, status classification and small
// decoding helpers.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/retry"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultTimeout is the client-level timeout used when none is configured.
	DefaultTimeout = 10 * time.Second
	// MaxBodyBytes caps how much of an upstream response is read.
	MaxBodyBytes = 8 << 20
)

var (
	ErrUnauthorized = errors.New("upstream rejected credentials")
	ErrRejected     = errors.New("upstream rejected request")
	ErrRateLimited  = errors.New("upstream rate limit reached")
	ErrParse        = errors.New("unexpected upstream response")
	ErrUpstream     = errors.New("upstream unavailable")
)

// Provider fetches the offers of one upstream for an address. Record-level and
// sub-call failures are absorbed by the implementation; an error means the call
// as a whole produced nothing.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q domain.AddressQuery) ([]domain.Offer, error)
}

// NewHTTPClient returns a client whose transport records an OpenTelemetry span
// per upstream request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}

// CheckStatus classifies a non-2xx response. Authentication problems, request
// rejections and rate limits are terminal; everything else may be retried.
func CheckStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return retry.Terminal(fmt.Errorf("%w: status %d", ErrUnauthorized, code))
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return retry.Terminal(fmt.Errorf("%w: status %d", ErrRejected, code))
	case code == http.StatusTooManyRequests:
		return retry.Terminal(fmt.Errorf("%w: status %d", ErrRateLimited, code))
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, code)
	}
}

// ParseError tags a decoding failure as terminal.
func ParseError(err error) error {
	return retry.Terminal(fmt.Errorf("%w: %w", ErrParse, err))
}

// JoinFailures combines the errors of independent sub-calls that all failed.
// The result is terminal only when every sub-call failed terminally.
func JoinFailures(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	allTerminal := true
	plain := make([]error, 0, len(errs))
	for _, err := range errs {
		var t *retry.TerminalError
		if errors.As(err, &t) {
			plain = append(plain, t.Err)
			continue
		}
		allTerminal = false
		plain = append(plain, err)
	}
	joined := errors.Join(plain...)
	if allTerminal {
		return retry.Terminal(joined)
	}
	return joined
}

// ReadBody reads at most MaxBodyBytes of the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
}

// Extras trims the given values and keeps the non-empty ones in order.
// The result is never nil.
func Extras(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// FlexNumber handles JSON values that can be either string or number.
type FlexNumber float64

func (f *FlexNumber) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexNumber(num)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return err
		}
		*f = FlexNumber(parsed)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into FlexNumber", string(data))
}

// FlexString handles JSON identifiers that can be either string or number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = FlexString(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexString(num.String())
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into FlexString", string(data))
}

// Positive returns the value rounded to an int when it is present and > 0.
func (f *FlexNumber) Positive() (int, bool) {
	if f == nil || *f <= 0 {
		return 0, false
	}
	return int(math.Round(float64(*f))), true
}
