package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/takashi5144/keiba-3/internal/models"
)

var (
	importFile   string
	settleRaceID string
	settleWinner string
)

func init() {
	racesImportCmd.Flags().StringVarP(&importFile, "file", "f", "", "JSON file holding an array of races")
	_ = racesImportCmd.MarkFlagRequired("file")

	racesSettleCmd.Flags().StringVar(&settleRaceID, "race", "", "Race id")
	racesSettleCmd.Flags().StringVar(&settleWinner, "winner", "", "Winning horse id")
	_ = racesSettleCmd.MarkFlagRequired("race")
	_ = racesSettleCmd.MarkFlagRequired("winner")

	racesCmd.AddCommand(racesImportCmd, racesSettleCmd)
}

var racesCmd = &cobra.Command{
	Use:   "races",
	Short: "Manage stored races",
}

var racesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load races and candidates from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(importFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", importFile, err)
		}
		var races []*models.Race
		if err := json.Unmarshal(data, &races); err != nil {
			return fmt.Errorf("failed to decode races: %w", err)
		}

		imported := 0
		for _, race := range races {
			if err := race.CheckIntegrity(); err != nil {
				appLog.WithError(err).WithField("race_id", race.RaceID).Warn("Importing race with data quality issues")
			}
			if err := repos.Race.Create(cmd.Context(), race); err != nil {
				return fmt.Errorf("failed to import race %s: %w", race.RaceID, err)
			}
			imported++
		}
		appLog.WithFields(logrus.Fields{
			"file":  importFile,
			"races": imported,
		}).Info("Races imported")
		return nil
	},
}

var racesSettleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Record the winner of a race",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repos.Race.SetWinner(cmd.Context(), settleRaceID, settleWinner); err != nil {
			return err
		}
		appLog.WithFields(logrus.Fields{
			"race_id":   settleRaceID,
			"winner_id": settleWinner,
		}).Info("Race settled")
		return nil
	},
}
