package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/karanuppal/halo/internal/orchestrator"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load household state from a YAML file",
		Long: `Load a household, its members, usual items, subscriptions and booking
vendors from YAML. Re-applying the same file updates rows in place.

Example file:
  household: {id: hh-smith, name: Smith Home}
  users:
    - {id: u-alex, display_name: Alex}
  usual_items:
    - {name: Pet Food, quantity: 2}
  subscriptions:
    - {name: Netflix, monthly_cost_cents: 1599, renews_in_days: 12}
  booking_vendors:
    - {name: Sparkle Cleaning, default_service_type: home_cleaning, price_estimate_cents: 9000}

Example:
  halo seed household.yaml --db ./halo.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	seed, err := loadSeed(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load seed", err)
	}

	f := opts.formatter(cmd)
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		res, err := a.orch.ApplySeed(ctx, seed)
		if err != nil {
			return f.Reject(err)
		}
		return f.Emit(res, func(w io.Writer) {
			verb := "Updated"
			if res.HouseholdCreated {
				verb = "Created"
			}
			fmt.Fprintf(w, "%s household %s: %d users, %d usual items, %d subscriptions, %d booking vendors\n",
				verb, seed.Household.ID, res.Users, res.UsualItems, res.Subscriptions, res.BookingVendors)
		})
	})
}

func loadSeed(path string) (orchestrator.Seed, error) {
	var seed orchestrator.Seed
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return seed, fmt.Errorf("parse %s: %w", path, err)
	}
	return seed, nil
}
