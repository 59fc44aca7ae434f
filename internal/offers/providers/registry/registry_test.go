package registry

import (
	"testing"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/platform/config"
	"offer_compare_backend/platform/logger"

	"github.com/stretchr/testify/assert"
)

func TestBuildKeepsFixedOrder(t *testing.T) {
	cfg := &config.Config{
		UpstreamTimeout: time.Second,
		ByteMe:          config.ByteMeSettings{Enabled: true, URL: "http://b", APIKey: "k"},
		WebWunder:       config.WebWunderSettings{Enabled: true, URL: "http://w", APIKey: "k"},
		PingPerfect:     config.PingPerfectSettings{Enabled: true, URL: "http://p", ClientID: "c", Secret: "s"},
		VerbynDich:      config.VerbynDichSettings{Enabled: true, URL: "http://v", APIKey: "k"},
		ServusSpeed:     config.ServusSpeedSettings{Enabled: true, URL: "http://s", Username: "u", Password: "p"},
	}

	got := Build(cfg, logger.Discard())

	names := make([]string, 0, len(got))
	for _, p := range got {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{
		domain.ProviderByteMe,
		domain.ProviderWebWunder,
		domain.ProviderPingPerfect,
		domain.ProviderVerbynDich,
		domain.ProviderServusSpeed,
	}, names)
}

func TestBuildSkipsUnconfiguredProviders(t *testing.T) {
	cfg := &config.Config{
		VerbynDich: config.VerbynDichSettings{Enabled: true, URL: "http://v", APIKey: "k"},
	}

	got := Build(cfg, logger.Discard())

	if assert.Len(t, got, 1) {
		assert.Equal(t, domain.ProviderVerbynDich, got[0].Name())
	}
}
