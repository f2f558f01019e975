package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"lead_cadence_backend/internal/qualification/domain"

	"github.com/spf13/cobra"
)

type scoreOutput struct {
	Score          int                 `json:"score"`
	Classification domain.Tier         `json:"classification"`
	Factors        map[string]float64  `json:"factors"`
	UnknownChoices map[string][]string `json:"unknownChoices,omitempty"`
	ScoringVersion string              `json:"scoringVersion"`
}

func newScoreCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a questionnaire response file",
		Long:  `Reads {"questionId": "choice" | ["a","b"]} from --answers ("-" for stdin) and prints score and tier.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("answers")
			if path == "" {
				return fmt.Errorf("--answers is required")
			}

			raw, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			var answers domain.Answers
			if err := json.Unmarshal(raw, &answers); err != nil {
				return fmt.Errorf("parse answers: %w", err)
			}

			scoring, err := c.scoring()
			if err != nil {
				return err
			}
			result, err := scoring.Questionnaire.ComputeScore(answers)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), scoreOutput{
				Score:          result.Score,
				Classification: scoring.Policy.Classify(result.Score),
				Factors:        result.Factors,
				UnknownChoices: result.UnknownChoices,
				ScoringVersion: result.Version,
			})
		},
	}
	cmd.Flags().String("answers", "", "answers JSON file, or - for stdin")
	return cmd
}

func newValidateConfigCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Validate the scoring configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scoring, err := c.scoring()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version %s: %d questions\n", scoring.Questionnaire.Version(), len(scoring.Questionnaire.Questions()))
			for _, t := range scoring.Policy.Tiers() {
				fmt.Fprintf(out, "  %-12s >= %d\n", t.Tier, t.Threshold)
			}
			fmt.Fprintf(out, "%d default strategies\n", len(scoring.Strategies))
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
