package providers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"offer_compare_backend/internal/offers/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus(t *testing.T) {
	cases := []struct {
		status   int
		want     error
		terminal bool
	}{
		{http.StatusOK, nil, false},
		{http.StatusUnauthorized, ErrUnauthorized, true},
		{http.StatusForbidden, ErrUnauthorized, true},
		{http.StatusBadRequest, ErrRejected, true},
		{http.StatusUnprocessableEntity, ErrRejected, true},
		{http.StatusTooManyRequests, ErrRateLimited, true},
		{http.StatusInternalServerError, ErrUpstream, false},
		{http.StatusServiceUnavailable, ErrUpstream, false},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			err := CheckStatus(&http.Response{StatusCode: tc.status})
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.terminal, retry.IsTerminal(err))
		})
	}
}

func TestParseErrorIsTerminal(t *testing.T) {
	cause := errors.New("bad xml")
	err := ParseError(cause)
	assert.True(t, retry.IsTerminal(err))
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, cause)
}

func TestExtras(t *testing.T) {
	assert.Equal(t, []string{"TV", "Voucher 10"}, Extras("", " TV ", "   ", "Voucher 10"))
	assert.NotNil(t, Extras())
}

func TestFlexNumber(t *testing.T) {
	var payload struct {
		A *FlexNumber `json:"a"`
		B *FlexNumber `json:"b"`
		C *FlexNumber `json:"c"`
		D *FlexNumber `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":2999,"b":"100","c":""}`), &payload))

	v, ok := payload.A.Positive()
	assert.True(t, ok)
	assert.Equal(t, 2999, v)

	v, ok = payload.B.Positive()
	assert.True(t, ok)
	assert.Equal(t, 100, v)

	_, ok = payload.C.Positive()
	assert.False(t, ok)
	_, ok = payload.D.Positive()
	assert.False(t, ok)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"fast"}`), &payload))
}

func TestJoinFailures(t *testing.T) {
	assert.NoError(t, JoinFailures(nil))

	auth := retry.Terminal(ErrUnauthorized)
	allTerminal := JoinFailures([]error{auth, retry.Terminal(ErrRejected)})
	assert.True(t, retry.IsTerminal(allTerminal))
	assert.ErrorIs(t, allTerminal, ErrRejected)

	mixed := JoinFailures([]error{auth, ErrUpstream})
	assert.False(t, retry.IsTerminal(mixed))
	assert.ErrorIs(t, mixed, ErrUnauthorized)
	assert.ErrorIs(t, mixed, ErrUpstream)
}

func TestFlexString(t *testing.T) {
	var payload struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":" x-1 ","b":42,"c":null}`), &payload))
	assert.Equal(t, FlexString("x-1"), payload.A)
	assert.Equal(t, FlexString("42"), payload.B)
	assert.Equal(t, FlexString(""), payload.C)
}
