package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"lead_cadence_backend/internal/qualification/cadence"
	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/internal/qualification/repository"
	"lead_cadence_backend/platform/db"
	"lead_cadence_backend/platform/logger"

	"github.com/spf13/cobra"
)

func newStrategiesCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "Inspect and change cadence strategies",
	}
	cmd.AddCommand(newStrategiesListCmd(c), newStrategiesSeedCmd(c), newStrategiesSetCmd(c))
	return cmd
}

// newStrategyStore builds the store the strategy commands share. A single
// invocation never needs expiry, so the cache TTL is left at zero.
func newStrategyStore(pool db.Pool, policy *domain.ClassificationPolicy, log *logger.Logger) *cadence.StrategyStore {
	return cadence.NewStrategyStore(repository.New(pool).Strategies(), policy, cadence.StoreOptions{
		CacheSize: 1,
		Logger:    log,
	})
}

func writeStrategyTable(w io.Writer, strategies []domain.CadenceStrategy) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tENABLED\tINITIAL WAIT (d)\tCOOLDOWN (h)\tMAX/WEEK")
	for _, s := range strategies {
		fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\n", s.Category, s.Enabled, s.InitialWaitDays, s.CooldownHours, s.MaxSessionsPerWeek)
	}
	return tw.Flush()
}

// withStore opens the database and builds the strategy store.
func (c *cli) withStore(ctx context.Context, fn func(*cadence.StrategyStore, *domain.Scoring) error) error {
	scoring, err := c.scoring()
	if err != nil {
		return err
	}
	pool, err := c.pool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(newStrategyStore(pool, scoring.Policy, c.log), scoring)
}

func newStrategiesListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the strategy of every tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd.Context(), func(store *cadence.StrategyStore, _ *domain.Scoring) error {
				strategies, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				return writeStrategyTable(cmd.OutOrStdout(), strategies)
			})
		},
	}
}

func newStrategiesSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the configured default strategies for tiers without one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withStore(cmd.Context(), func(store *cadence.StrategyStore, scoring *domain.Scoring) error {
				inserted, err := store.SeedDefaults(cmd.Context(), scoring.Strategies)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d strategies\n", inserted)
				return nil
			})
		},
	}
}

func newStrategiesSetCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <category>",
		Short: "Change fields of a tier's strategy; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := strategyPatchFromFlags(cmd)
			if err != nil {
				return err
			}
			return c.withStore(cmd.Context(), func(store *cadence.StrategyStore, _ *domain.Scoring) error {
				saved, err := store.Update(cmd.Context(), domain.Tier(args[0]), patch)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), saved)
			})
		},
	}
	cmd.Flags().Bool("enabled", false, "enable outreach for the category")
	cmd.Flags().Int("initial-wait-days", 0, "days to wait after qualification")
	cmd.Flags().Int("cooldown-hours", 0, "hours between attempts")
	cmd.Flags().Int("max-per-week", 0, "attempts allowed per rolling 7 days")
	return cmd
}

func strategyPatchFromFlags(cmd *cobra.Command) (domain.StrategyPatch, error) {
	var patch domain.StrategyPatch
	flags := cmd.Flags()
	if flags.Changed("enabled") {
		v, _ := flags.GetBool("enabled")
		patch.Enabled = &v
	}
	if flags.Changed("initial-wait-days") {
		v, _ := flags.GetInt("initial-wait-days")
		patch.InitialWaitDays = &v
	}
	if flags.Changed("cooldown-hours") {
		v, _ := flags.GetInt("cooldown-hours")
		patch.CooldownHours = &v
	}
	if flags.Changed("max-per-week") {
		v, _ := flags.GetInt("max-per-week")
		patch.MaxSessionsPerWeek = &v
	}
	if patch.IsEmpty() {
		return patch, fmt.Errorf("nothing to change: pass at least one of --enabled, --initial-wait-days, --cooldown-hours, --max-per-week")
	}
	return patch, nil
}

