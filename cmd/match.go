package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/ai"
	"github.com/marciobastos-droid/propmatch/internal/ai/gemini"
	"github.com/marciobastos-droid/propmatch/internal/domain"
	"github.com/marciobastos-droid/propmatch/internal/logger"
	"github.com/marciobastos-droid/propmatch/internal/match"
	"github.com/marciobastos-droid/propmatch/internal/pipeline"
	"github.com/marciobastos-droid/propmatch/internal/secrets"
	"github.com/marciobastos-droid/propmatch/internal/store"
)

const (
	PromptSendEmail    = "Send via email"
	PromptSendWhatsapp = "Send via whatsapp"
	PromptSaveForLater = "Save for later"
	PromptBack         = "back"
	PromptDone         = "done"
	PromptYes          = "Yes"
	PromptNo           = "No"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank the inventory for a client and optionally send or save matches",
	Run: func(cmd *cobra.Command, _ []string) {
		runMatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("client", "c", "", "client identifier (required)")
	matchCmd.Flags().StringP("profile", "p", "", "path to a JSON requirement profile")
	matchCmd.Flags().String("search", "", "rank using the criteria of this saved search instead of a profile file")
	matchCmd.Flags().StringP("weights", "w", "", "name of a stored weight profile (defaults to built-in weights)")
	matchCmd.Flags().String("notes", "", "free-text agent notes passed to the AI ranking")
	matchCmd.Flags().Bool("no-ai", false, "force the weighted strategy even when AI is configured")
	matchCmd.Flags().Bool("no-input", false, "print the ranking and exit without the interactive send loop")

	matchCmd.MarkFlagRequired("client")
}

func runMatch(cmd *cobra.Command) {
	ctx := context.Background()

	log := newLogger()

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	clientID, _ := cmd.Flags().GetString("client")

	s, repo, err := openStores(config)
	if err != nil {
		log.Fatal("opening stores", zap.Error(err))
	}
	defer s.Close()

	profile, err := resolveProfile(ctx, cmd, s)
	if err != nil {
		log.Fatal("resolving requirement profile", zap.Error(err))
	}

	weights, weightsName, err := resolveWeights(ctx, cmd, s)
	if err != nil {
		log.Fatal("resolving weight profile", zap.Error(err))
	}
	if weightsName != "" {
		log.Info("using stored weight profile", zap.String("name", weightsName))
	}

	listings, err := repo.ListActive(ctx)
	if err != nil {
		log.Fatal("loading inventory", zap.Error(err))
	}
	if len(listings) == 0 {
		log.Info("exiting", zap.String("reason", "inventory is empty"))
		return
	}

	log.Info("starting the match", zap.String("client_id", clientID), zap.Int("inventory", len(listings)))

	p := pipeline.New(pipeline.Deps{Feedback: s, Logger: log})
	strategy := prepareStrategy(ctx, cmd, config, p, log)

	notes, _ := cmd.Flags().GetString("notes")
	results, err := strategy.Rank(ctx, match.Request{
		ClientID:  clientID,
		Inventory: listings,
		Profile:   profile,
		Weights:   weights,
		Notes:     notes,
	})
	if err != nil {
		log.Fatal("ranking failed", zap.Error(err))
	}

	if len(results) == 0 {
		log.Info("exiting", zap.String("reason", "no compatible listings found"))
		return
	}

	printResults(results)

	if noInput, _ := cmd.Flags().GetBool("no-input"); noInput {
		return
	}

	if err := dispatchLoop(ctx, config, s, log, clientID, results); err != nil && !errors.Is(err, errExit) {
		log.Fatal("exiting", zap.Error(err))
	}
}

func resolveProfile(ctx context.Context, cmd *cobra.Command, s *store.Store) (domain.RequirementProfile, error) {
	searchID, _ := cmd.Flags().GetString("search")
	if searchID != "" {
		search, err := s.GetSavedSearch(ctx, searchID)
		if err != nil {
			return domain.RequirementProfile{}, err
		}
		return search.Criteria, nil
	}

	path, _ := cmd.Flags().GetString("profile")
	if path == "" {
		return domain.RequirementProfile{}, errors.New("either --profile or --search is required")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return domain.RequirementProfile{}, fmt.Errorf("read profile file: %w", err)
	}

	var profile domain.RequirementProfile
	if err := json.Unmarshal(b, &profile); err != nil {
		return domain.RequirementProfile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return profile, nil
}

func resolveWeights(ctx context.Context, cmd *cobra.Command, s *store.Store) (domain.Weights, string, error) {
	name, _ := cmd.Flags().GetString("weights")
	if name == "" {
		// nil makes the engine fall back to its built-in defaults.
		return nil, "", nil
	}

	profile, err := s.GetWeightProfile(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return profile.Weights, profile.Name, nil
}

func prepareStrategy(ctx context.Context, cmd *cobra.Command, config *Config, p *pipeline.Pipeline, log *zap.Logger) match.Strategy {
	weighted := match.NewWeightedStrategy(p)

	noAI, _ := cmd.Flags().GetBool("no-ai")
	if noAI || config.AI == nil || !config.AI.Enabled {
		return weighted
	}

	ranker, err := newAIRanker(ctx, config.AI, log)
	if err != nil {
		log.Warn("ai ranking unavailable, using standard matching", zap.Error(err))
		return weighted
	}

	return match.NewFallback(
		match.NewAIStrategy(ranker, p, log),
		weighted,
		config.AI.Timeout,
		log,
	)
}

func newAIRanker(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Ranker, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, err
	}

	rankerLogger := logger.WithCommonFields(log, "gemini", generator.Model())
	return gemini.NewRanker(generator, rankerLogger, cfg.Gemini.MaxLogLength), nil
}

func printResults(results []domain.MatchResult) {
	for i, r := range results {
		line := fmt.Sprintf("%2d. [%3d %-9s] %s %s / %s / %.0f",
			i+1, r.Score, domain.CompatibilityFor(r.Score), r.Listing.ID,
			r.Listing.City, r.Listing.PropertyType, r.Listing.Price,
		)
		if r.Reason != "" {
			line += " / " + r.Reason
		}
		fmt.Println(line)
	}
}

// dispatchLoop lets the agent pick matches and either send them or save
// them for later, recording each action in the dispatch ledger.
func dispatchLoop(ctx context.Context, config *Config, s *store.Store, log *zap.Logger, clientID string, results []domain.MatchResult) error {
	for {
		items := make([]string, 0, len(results)+1)
		for _, r := range results {
			items = append(items, fmt.Sprintf("%s %s / score %d", r.Listing.ID, r.Listing.City, r.Score))
		}

		listingPrompt := promptui.Select{
			Label: "Choose a match and press ENTER",
			Items: append(items, PromptDone),
		}

		_, selected, err := listingPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptDone {
			return errExit
		}

		listingID := strings.Split(selected, " ")[0]
		result := findResult(results, listingID)
		if result == nil {
			return fmt.Errorf("there is no such listing id %s", listingID)
		}

		if err := dispatchOne(ctx, config, s, log, clientID, *result); err != nil {
			return err
		}
	}
}

func dispatchOne(ctx context.Context, config *Config, s *store.Store, log *zap.Logger, clientID string, result domain.MatchResult) error {
	actionPrompt := promptui.Select{
		Label: "Action",
		Items: []string{PromptSendEmail, PromptSendWhatsapp, PromptSaveForLater, PromptBack},
	}

	_, action, err := actionPrompt.Run()
	if err != nil {
		return err
	}
	if action == PromptBack {
		return nil
	}

	propertyID := result.Listing.ID

	if action == PromptSaveForLater {
		entry, err := s.MarkSavedForLater(ctx, clientID, propertyID, result.Score, config.Sender)
		if err != nil {
			return fmt.Errorf("saving match for later: %w", err)
		}
		log.Info("match saved for later",
			zap.String("listing_id", propertyID),
			zap.String("entry_id", entry.ID),
		)
		return nil
	}

	channel := "email"
	if action == PromptSendWhatsapp {
		channel = "whatsapp"
	}

	// Resends are allowed but never silent: surface the prior history and
	// ask before inserting another ledger entry.
	sent, err := s.AlreadySent(ctx, clientID, propertyID)
	if err != nil {
		return fmt.Errorf("checking dispatch history: %w", err)
	}
	if sent {
		log.Warn("listing was already sent to this client",
			zap.String("listing_id", propertyID),
			zap.String("client_id", clientID),
		)

		confirm := promptui.Select{
			Label: "Already sent before. Send again?",
			Items: []string{PromptNo, PromptYes},
		}
		if _, answer, err := confirm.Run(); err != nil || answer != PromptYes {
			return err
		}
	}

	entry, err := s.RecordSent(ctx, clientID, propertyID, result.Score, channel, config.Sender)
	if err != nil {
		return fmt.Errorf("recording sent match: %w", err)
	}

	log.Info("match recorded as sent",
		zap.String("listing_id", propertyID),
		zap.String("channel", channel),
		zap.String("compatibility", string(entry.Compatibility)),
		zap.String("entry_id", entry.ID),
	)
	return nil
}

func findResult(results []domain.MatchResult, listingID string) *domain.MatchResult {
	for i := range results {
		if results[i].Listing.ID == listingID {
			return &results[i]
		}
	}
	return nil
}
