package main

import (
	"fmt"
	"os"

	"offer_compare_backend/internal/offers"
	"offer_compare_backend/internal/offers/domain"
	"offer_compare_backend/internal/offers/service"
	"offer_compare_backend/platform/config"
	"offer_compare_backend/platform/logger"
	"offer_compare_backend/platform/validator"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "offerctl",
		Short:        "Compare internet offers for an address",
		Long:         `Queries every configured internet provider for an address and prints the offers as a table.`,
		SilenceUsage: true,
	}

	root.AddCommand(newSearchCmd())
	root.AddCommand(newLateCmd())

	return root
}

// addressFlags binds the address flags shared by every command.
func addressFlags(cmd *cobra.Command, q *domain.AddressQuery) {
	cmd.Flags().StringVar(&q.Street, "street", "", "Street name")
	cmd.Flags().StringVar(&q.HouseNumber, "house-number", "", "House number")
	cmd.Flags().StringVar(&q.City, "city", "", "City")
	cmd.Flags().StringVar(&q.PostalCode, "plz", "", "Postal code")
	cmd.Flags().StringVar(&q.CountryCode, "country", "", "ISO 3166 alpha-2 country code (default DEFAULT_COUNTRY or DE)")

	for _, name := range []string{"street", "house-number", "city", "plz"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func validateAddress(q domain.AddressQuery) error {
	val := validator.New()
	if err := val.Var(q.PostalCode, "plz"); err != nil {
		return fmt.Errorf("invalid --plz %q", q.PostalCode)
	}
	if q.CountryCode != "" {
		if err := val.Var(q.CountryCode, "iso3166_1_alpha2"); err != nil {
			return fmt.Errorf("invalid --country %q", q.CountryCode)
		}
	}
	return nil
}

// session holds what a command needs to talk to the providers.
type session struct {
	cfg   *config.Config
	log   *logger.Logger
	store *offers.Store
	svc   *service.Service
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// stdout is reserved for results
	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	store, err := offers.OpenStore(cmd.Context(), cfg, log)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:   cfg,
		log:   log,
		store: store,
		svc:   offers.NewService(cfg, store, log),
	}, nil
}

func (s *session) Close() {
	s.svc.Wait()
	_ = s.store.Close()
}
