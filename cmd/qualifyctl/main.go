// Command qualifyctl scores questionnaire files offline, validates scoring
// configuration and administers cadence strategies.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"lead_cadence_backend/internal/qualification/domain"
	"lead_cadence_backend/platform/db"
	"lead_cadence_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "QUALIFY"

// cli carries the settings shared by every subcommand.
type cli struct {
	v   *viper.Viper
	log *logger.Logger
}

func (c *cli) GetDatabaseURL() string { return c.v.GetString("database_url") }

func (c *cli) scoring() (*domain.Scoring, error) {
	return domain.LoadScoringConfig(c.v.GetString("scoring_config"))
}

func (c *cli) pool(ctx context.Context) (*pgxpool.Pool, error) {
	if c.GetDatabaseURL() == "" {
		return nil, fmt.Errorf("--database-url or %s_DATABASE_URL is required", envPrefix)
	}
	return db.NewPool(ctx, c)
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	c.v.AutomaticEnv()
	c.v.SetDefault("env", "production")

	root := &cobra.Command{
		Use:           "qualifyctl",
		Short:         "Lead qualification and outreach cadence administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.log = logger.NewWithWriter(c.v.GetString("env"), cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "scoring config YAML (defaults to the embedded config)")
	root.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
	root.PersistentFlags().String("env", "production", "log environment (development enables debug logs)")
	_ = c.v.BindPFlag("scoring_config", root.PersistentFlags().Lookup("config"))
	_ = c.v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))
	_ = c.v.BindPFlag("env", root.PersistentFlags().Lookup("env"))

	root.AddCommand(
		newScoreCmd(c),
		newValidateConfigCmd(c),
		newStrategiesCmd(c),
		newEligibilityCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
