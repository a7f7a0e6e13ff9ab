package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
	"github.com/marciobastos-droid/propmatch/internal/scoring"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Manage named scoring-weight profiles",
}

var weightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored weight profiles",
	Run: func(_ *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		profiles, err := s.ListWeightProfiles(context.Background())
		if err != nil {
			log.Fatal("listing weight profiles", zap.Error(err))
		}

		for _, p := range profiles {
			marker := " "
			if p.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-20s %s\n", marker, p.Name, formatWeights(p.Weights))
		}
		fmt.Printf("  %-20s %s\n", "(built-in)", formatWeights(scoring.DefaultWeights()))
	},
}

var weightsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a weight profile",
	Long: `Create or update a weight profile. Weights are given as
criterion=value pairs, e.g.:

  propmatch weights set --name investors -w price=40 -w location=30 -w area=20`,
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		name, _ := cmd.Flags().GetString("name")
		isDefault, _ := cmd.Flags().GetBool("default")
		pairs, _ := cmd.Flags().GetStringArray("weight")

		weights, err := parseWeights(pairs)
		if err != nil {
			log.Fatal("parsing weights", zap.Error(err))
		}

		profile, err := s.UpsertWeightProfile(context.Background(), domain.WeightProfile{
			Name:      name,
			Weights:   weights,
			IsDefault: isDefault,
		})
		if err != nil {
			log.Fatal("storing weight profile", zap.Error(err))
		}

		log.Info("weight profile stored",
			zap.String("name", profile.Name),
			zap.String("id", profile.ID),
			zap.Bool("default", profile.IsDefault),
		)
	},
}

var weightsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a weight profile",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()
		s := mustOpenStore(log)
		defer s.Close()

		name, _ := cmd.Flags().GetString("name")
		if err := s.DeleteWeightProfile(context.Background(), name); err != nil {
			log.Fatal("deleting weight profile", zap.Error(err))
		}
		log.Info("weight profile deleted", zap.String("name", name))
	},
}

func init() {
	rootCmd.AddCommand(weightsCmd)

	weightsSetCmd.Flags().StringP("name", "n", "", "profile name (required)")
	weightsSetCmd.Flags().StringArrayP("weight", "w", nil, "criterion=value pair, repeatable")
	weightsSetCmd.Flags().Bool("default", false, "mark this profile as the default (informational)")
	weightsSetCmd.MarkFlagRequired("name")

	weightsDeleteCmd.Flags().StringP("name", "n", "", "profile name (required)")
	weightsDeleteCmd.MarkFlagRequired("name")

	weightsCmd.AddCommand(weightsListCmd, weightsSetCmd, weightsDeleteCmd)
}

func parseWeights(pairs []string) (domain.Weights, error) {
	weights := make(domain.Weights, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid weight %q, expected criterion=value", pair)
		}

		criterion := domain.Criterion(strings.TrimSpace(key))
		known := false
		for _, c := range domain.Criteria {
			if c == criterion {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown criterion %q", key)
		}

		w, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid weight value %q: %w", value, err)
		}
		weights[criterion] = w
	}
	return weights, nil
}

func formatWeights(weights domain.Weights) string {
	parts := make([]string, 0, len(weights))
	for criterion, w := range weights {
		parts = append(parts, fmt.Sprintf("%s=%d", criterion, w))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
