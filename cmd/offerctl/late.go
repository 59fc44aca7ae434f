package main

import (
	"offer_compare_backend/internal/offers/domain"

	"github.com/spf13/cobra"
)

func newLateCmd() *cobra.Command {
	var q domain.AddressQuery

	cmd := &cobra.Command{
		Use:   "late",
		Short: "Print offers that arrived after an earlier search returned",
		Long:  `Fetches and clears the offers parked for an address. Needs REDIS_URL to see offers from other processes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateAddress(q); err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.store.Redis == nil {
				s.log.Warn("REDIS_URL not configured; only offers parked by this process are visible")
			}

			late, err := s.svc.LateOffers(cmd.Context(), q)
			if err != nil {
				return err
			}

			renderOffers(cmd.OutOrStdout(), late)
			return nil
		},
	}

	addressFlags(cmd, &q)
	return cmd
}
