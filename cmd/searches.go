package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

var searchesCmd = &cobra.Command{
	Use:   "searches",
	Short: "Manage saved searches and their alert preferences",
}

var searchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a client's saved searches",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		clientID, _ := cmd.Flags().GetString("client")

		searches, err := s.ListSavedSearches(context.Background(), clientID)
		if err != nil {
			log.Fatal("listing saved searches", zap.Error(err))
		}

		for _, search := range searches {
			alerts := "alerts off"
			if search.AlertsEnabled {
				alerts = fmt.Sprintf("alerts %s", search.AlertFrequency)
			}
			fmt.Printf("%-36s %-25s %s\n", search.ID, search.Name, alerts)
		}
		log.Info("saved searches listed", zap.String("client_id", clientID), zap.Int("count", len(searches)))
	},
}

var searchesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Save a requirement profile as a named search",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		clientID, _ := cmd.Flags().GetString("client")
		name, _ := cmd.Flags().GetString("name")
		profilePath, _ := cmd.Flags().GetString("profile")
		alerts, _ := cmd.Flags().GetBool("alerts")
		frequency, _ := cmd.Flags().GetString("frequency")

		b, err := os.ReadFile(profilePath)
		if err != nil {
			log.Fatal("reading profile file", zap.Error(err))
		}
		var criteria domain.RequirementProfile
		if err := json.Unmarshal(b, &criteria); err != nil {
			log.Fatal("parsing profile file", zap.Error(err))
		}

		search, err := s.CreateSavedSearch(context.Background(), domain.SavedSearch{
			ClientID:       clientID,
			Name:           name,
			Criteria:       criteria,
			AlertsEnabled:  alerts,
			AlertFrequency: domain.AlertFrequency(frequency),
		})
		if err != nil {
			log.Fatal("creating saved search", zap.Error(err))
		}

		log.Info("saved search created",
			zap.String("id", search.ID),
			zap.String("name", search.Name),
			zap.Bool("alerts", search.AlertsEnabled),
			zap.String("frequency", string(search.AlertFrequency)),
		)
	},
}

var searchesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a saved search",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		id, _ := cmd.Flags().GetString("id")
		if err := s.DeleteSavedSearch(context.Background(), id); err != nil {
			log.Fatal("deleting saved search", zap.Error(err))
		}
		log.Info("saved search deleted", zap.String("id", id))
	},
}

func init() {
	rootCmd.AddCommand(searchesCmd)

	searchesListCmd.Flags().StringP("client", "c", "", "client identifier (required)")
	searchesListCmd.MarkFlagRequired("client")

	searchesCreateCmd.Flags().StringP("client", "c", "", "client identifier (required)")
	searchesCreateCmd.Flags().StringP("name", "n", "", "search name (required)")
	searchesCreateCmd.Flags().StringP("profile", "p", "", "path to a JSON requirement profile (required)")
	searchesCreateCmd.Flags().Bool("alerts", false, "enable alerts for the external scheduler")
	searchesCreateCmd.Flags().String("frequency", string(domain.AlertDaily), "alert frequency: instant, daily or weekly")
	searchesCreateCmd.MarkFlagRequired("client")
	searchesCreateCmd.MarkFlagRequired("name")
	searchesCreateCmd.MarkFlagRequired("profile")

	searchesDeleteCmd.Flags().String("id", "", "saved search identifier (required)")
	searchesDeleteCmd.MarkFlagRequired("id")

	searchesCmd.AddCommand(searchesListCmd, searchesCreateCmd, searchesDeleteCmd)
}
