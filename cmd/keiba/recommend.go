package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/takashi5144/keiba-3/internal/predictor"
)

var recommendFlags struct {
	date  string
	place string
}

func init() {
	recommendCmd.Flags().StringVar(&recommendFlags.date, "date", "", "Race date (YYYY-MM-DD), defaults to today")
	recommendCmd.Flags().StringVar(&recommendFlags.place, "place", "", "Only include races at this course")
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print betting recommendations for a race day as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		date := time.Now().In(cfg.Location())
		if recommendFlags.date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", recommendFlags.date, cfg.Location())
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			date = parsed
		}

		pred := predictor.NewClient(&cfg.Predictor, appLog)
		defer pred.Close()

		svc, err := newRecommendationService(pred)
		if err != nil {
			return err
		}
		batch, err := svc.ForDate(cmd.Context(), date, recommendFlags.place)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	},
}
