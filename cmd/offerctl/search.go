package main

import (
	"fmt"
	"time"

	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/service"
	"offer_compare_backend/internal/offers/stream"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		q      domain.AddressQuery
		live   bool
		window time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search offers for an address",
		Long: `Queries every configured provider. By default it waits for all of them;
--window returns after the given duration and parks slower answers for "offerctl late".
--stream prints offers as they arrive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateAddress(q); err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(s.svc.ProviderNames()) == 0 {
				s.log.Warn("no providers configured; set provider credentials in the environment")
			}

			out := cmd.OutOrStdout()
			if live {
				return runStream(cmd, s, q)
			}

			var res service.Result
			if window > 0 {
				res = s.svc.CollectWithin(cmd.Context(), q, window)
			} else {
				res = s.svc.Collect(cmd.Context(), q)
			}

			renderOffers(out, res.Offers)
			renderStats(out, res.Stats)
			return nil
		},
	}

	addressFlags(cmd, &q)
	cmd.Flags().BoolVar(&live, "stream", false, "Print offers as they arrive")
	cmd.Flags().DurationVar(&window, "window", 0, "Return after this long and park slower offers (0 waits for all)")

	return cmd
}

func runStream(cmd *cobra.Command, s *session, q domain.AddressQuery) error {
	out := cmd.OutOrStdout()

	var collected []domain.Offer
	for ev := range s.svc.Stream(cmd.Context(), q) {
		switch ev.Kind {
		case stream.KindOffer:
			collected = append(collected, ev.Offer)
			fmt.Fprintf(out, "+ %s  %s  %d Mbit/s  %.2f €\n", ev.Provider, ev.Offer.Title, ev.Offer.SpeedMbps, ev.Offer.PricePerMonth)
		case stream.KindError:
			fmt.Fprintf(out, "! %s failed: %v\n", ev.Provider, ev.Err)
		case stream.KindDone:
			fmt.Fprintln(out, stream.DoneMessage)
		}
	}

	renderOffers(out, collected)
	return cmd.Context().Err()
}
