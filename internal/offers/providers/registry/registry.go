// Package registry assembles the configured upstream providers in their
// fixed order.
package registry

import (
	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/providers"
	"offer_compare_backend/internal/offers/providers/byteme"
	"offer_compare_backend/internal/offers/providers/pingperfect"
	"offer_compare_backend/internal/offers/providers/servusspeed"
	"offer_compare_backend/internal/offers/providers/verbyndich"
	"offer_compare_backend/internal/offers/providers/webwunder"
	"offer_compare_backend/platform/config"
	"offer_compare_backend/platform/logger"
)

// Build returns ByteMe, WebWunder, Ping Perfect, VerbynDich and Servus Speed,
// in that order, leaving out every provider that is not configured.
func Build(cfg config.ProvidersConfig, log *logger.Logger) []providers.Provider {
	httpClient := providers.NewHTTPClient(cfg.GetUpstreamTimeout())
	out := make([]providers.Provider, 0, 5)

	if s := cfg.GetByteMe(); s.Enabled {
		out = append(out, byteme.New(httpClient, s.URL, s.APIKey, log))
	} else {
		disabled(log, domain.ProviderByteMe, "BYTEME_API_KEY")
	}

	if s := cfg.GetWebWunder(); s.Enabled {
		out = append(out, webwunder.New(httpClient, s.URL, s.APIKey, log))
	} else {
		disabled(log, domain.ProviderWebWunder, "WEBWUNDER_API_KEY")
	}

	if s := cfg.GetPingPerfect(); s.Enabled {
		out = append(out, pingperfect.New(httpClient, s.URL, s.ClientID, s.Secret, log))
	} else {
		disabled(log, domain.ProviderPingPerfect, "PINGPERFECT_CLIENT_ID/PINGPERFECT_SIGNATURE_SECRET")
	}

	if s := cfg.GetVerbynDich(); s.Enabled {
		out = append(out, verbyndich.New(httpClient, s.URL, s.APIKey, log, verbyndich.WithPageRate(s.PageRate)))
	} else {
		disabled(log, domain.ProviderVerbynDich, "VERBYNDICH_API_KEY")
	}

	if s := cfg.GetServusSpeed(); s.Enabled {
		out = append(out, servusspeed.New(httpClient, s.URL, s.Username, s.Password, log,
			servusspeed.WithListRetryDelay(s.ListRetryDelay),
			servusspeed.WithMaxJitter(s.DetailJitter),
		))
	} else {
		disabled(log, domain.ProviderServusSpeed, "SERVUSSPEED_USERNAME/SERVUSSPEED_PASSWORD")
	}

	log.Info("offer providers initialized", "count", len(out))
	return out
}

func disabled(log *logger.Logger, provider, settings string) {
	log.Info("offer provider disabled: not configured", "provider", provider, "settings", settings)
}
