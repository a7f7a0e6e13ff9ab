package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
	"github.com/marciobastos-droid/propmatch/internal/inventory"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Seed and inspect the local listing inventory",
}

var inventoryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import listings from a JSON file",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()

		config, err := getConfig()
		if err != nil {
			log.Fatal("getting a config", zap.Error(err))
		}

		s, repo, err := openStores(config)
		if err != nil {
			log.Fatal("opening stores", zap.Error(err))
		}
		defer s.Close()

		path, _ := cmd.Flags().GetString("file")
		listings, err := inventory.LoadFromFile(path)
		if err != nil {
			log.Fatal("loading listings", zap.Error(err))
		}

		ctx := context.Background()
		if err := repo.UpsertMany(ctx, listings); err != nil {
			log.Fatal("importing listings", zap.Error(err))
		}

		total, err := repo.Count(ctx)
		if err != nil {
			log.Fatal("counting listings", zap.Error(err))
		}

		log.Info("inventory imported",
			zap.String("file", path),
			zap.Int("imported", len(listings)),
			zap.Int("total", total),
		)
	},
}

var inventoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the inventory",
	Run: func(cmd *cobra.Command, _ []string) {
		log := newLogger()

		config, err := getConfig()
		if err != nil {
			log.Fatal("getting a config", zap.Error(err))
		}

		s, repo, err := openStores(config)
		if err != nil {
			log.Fatal("opening stores", zap.Error(err))
		}
		defer s.Close()

		all, _ := cmd.Flags().GetBool("all")

		ctx := context.Background()
		items, err := listInventory(ctx, repo, all)
		if err != nil {
			log.Fatal("listing inventory", zap.Error(err))
		}

		for _, l := range items {
			fmt.Printf("%-12s %-8s %-12s %-15s %10.0f  %s\n",
				l.ID, l.Status, l.ListingType, l.City, l.Price, l.Country)
		}
		log.Info("inventory listed", zap.Int("count", len(items)), zap.Bool("all", all))
	},
}

func listInventory(ctx context.Context, repo *inventory.Repo, all bool) ([]domain.Listing, error) {
	if all {
		return repo.ListAll(ctx)
	}
	return repo.ListActive(ctx)
}

func init() {
	rootCmd.AddCommand(inventoryCmd)

	inventoryImportCmd.Flags().StringP("file", "f", "", "path to a JSON listings file (required)")
	inventoryImportCmd.MarkFlagRequired("file")

	inventoryListCmd.Flags().Bool("all", false, "include inactive listings")

	inventoryCmd.AddCommand(inventoryImportCmd, inventoryListCmd)
}
