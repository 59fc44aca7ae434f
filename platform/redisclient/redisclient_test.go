package redisclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfig struct {
	url      string
	insecure bool
}

func (s stubConfig) GetRedisURL() string       { return s.url }
func (s stubConfig) GetRedisTLSInsecure() bool { return s.insecure }

func TestParseOptions(t *testing.T) {
	opt, err := ParseOptions("redis://:secret@localhost:6380/2", false)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opt.Addr)
	assert.Equal(t, "secret", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Nil(t, opt.TLSConfig)
}

func TestParseOptionsInsecureTLS(t *testing.T) {
	opt, err := ParseOptions("rediss://cache.example.com:6379", true)
	require.NoError(t, err)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)

	opt, err = ParseOptions("redis://localhost:6379", true)
	require.NoError(t, err)
	require.NotNil(t, opt.TLSConfig)
	assert.True(t, opt.TLSConfig.InsecureSkipVerify)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(stubConfig{})
	assert.Error(t, err)

	_, err = ParseOptions("http://nope", false)
	assert.Error(t, err)
}
