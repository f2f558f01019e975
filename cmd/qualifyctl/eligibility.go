package main

import (
	"fmt"
	"time"

	"lead_cadence_backend/internal/qualification/cadence"
	"lead_cadence_backend/internal/qualification/repository"
	"lead_cadence_backend/internal/qualification/service"
	"lead_cadence_backend/internal/qualification/transport"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newEligibilityCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Evaluate whether a lead may be contacted now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			orgRaw, _ := cmd.Flags().GetString("org")
			leadRaw, _ := cmd.Flags().GetString("lead")
			orgID, err := uuid.Parse(orgRaw)
			if err != nil {
				return fmt.Errorf("--org: %w", err)
			}
			leadID, err := uuid.Parse(leadRaw)
			if err != nil {
				return fmt.Errorf("--lead: %w", err)
			}

			ctx := cmd.Context()
			scoring, err := c.scoring()
			if err != nil {
				return err
			}
			pool, err := c.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := repository.New(pool)
			strategies := cadence.NewStrategyStore(repo.Strategies(), scoring.Policy, cadence.StoreOptions{Logger: c.log})
			svc := service.New(service.Deps{
				Scoring:    scoring,
				Records:    repo,
				Attempts:   repo.Attempts(),
				Strategies: strategies,
				Controller: cadence.NewController(strategies, repo.Attempts(), repo, nil, nil, c.log),
				Logger:     c.log,
			})

			now := time.Now().UTC()
			result, err := svc.CheckEligibility(ctx, orgID, leadID, now)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), transport.ToEligibilityResponse(result.Decision, result.Category, now))
		},
	}
	cmd.Flags().String("org", "", "organization ID")
	cmd.Flags().String("lead", "", "lead ID")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("lead")
	return cmd
}
