package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/ai"
	"github.com/marciobastos-droid/propmatch/internal/domain"
	"github.com/marciobastos-droid/propmatch/internal/pipeline"
)

// Request carries everything one ranking call needs. Weights are always
// explicit; there is no ambient "currently applied" profile.
type Request struct {
	ClientID  string
	Inventory []domain.Listing
	Profile   domain.RequirementProfile
	Weights   domain.Weights
	// Notes is free text for the AI strategy; the weighted strategy
	// ignores it.
	Notes string
}

// Strategy ranks inventory for a client. Implementations must be stateless
// between calls and safe for concurrent use across clients.
type Strategy interface {
	Name() string
	Rank(ctx context.Context, req Request) ([]domain.MatchResult, error)
}

// WeightedStrategy is the deterministic scoring path.
type WeightedStrategy struct {
	pipeline *pipeline.Pipeline
}

func NewWeightedStrategy(p *pipeline.Pipeline) *WeightedStrategy {
	return &WeightedStrategy{pipeline: p}
}

func (s *WeightedStrategy) Name() string { return "weighted" }

func (s *WeightedStrategy) Rank(ctx context.Context, req Request) ([]domain.MatchResult, error) {
	return s.pipeline.Rank(ctx, req.ClientID, req.Inventory, req.Profile, req.Weights)
}

// AIStrategy delegates the ordering of pre-filtered candidates to a
// reasoning service. It never mutates feedback or the dispatch ledger; its
// output is a transient list for manual review.
type AIStrategy struct {
	ranker   ai.Ranker
	pipeline *pipeline.Pipeline
	logger   *zap.Logger
}

func NewAIStrategy(ranker ai.Ranker, p *pipeline.Pipeline, log *zap.Logger) *AIStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &AIStrategy{ranker: ranker, pipeline: p, logger: log}
}

func (s *AIStrategy) Name() string { return "ai" }

func (s *AIStrategy) Rank(ctx context.Context, req Request) ([]domain.MatchResult, error) {
	// The model only ever sees vetted candidates: the weighted pipeline has
	// already removed inactive and rejected listings.
	base, err := s.pipeline.Rank(ctx, req.ClientID, req.Inventory, req.Profile, req.Weights)
	if err != nil {
		return nil, fmt.Errorf("preparing candidates: %w", err)
	}
	if len(base) == 0 {
		return base, nil
	}

	listings := make([]domain.Listing, 0, len(base))
	byID := make(map[string]domain.Listing, len(base))
	for _, r := range base {
		listings = append(listings, r.Listing)
		byID[r.Listing.ID] = r.Listing
	}

	notes := req.Notes
	if notes == "" {
		notes = req.Profile.AdditionalNotes
	}

	ranked, err := s.ranker.RankListings(ctx, req.Profile, notes, listings)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, errors.New("reasoning service returned no matches")
	}

	results := make([]domain.MatchResult, 0, len(ranked))
	for _, entry := range ranked {
		listing, ok := byID[entry.ID]
		if !ok {
			continue
		}
		results = append(results, domain.MatchResult{
			Listing: listing,
			Score:   int(math.Round(entry.Score)),
			Reason:  entry.Reason,
		})
	}

	if len(results) == 0 {
		return nil, errors.New("reasoning service ranked no known candidates")
	}

	return results, nil
}

// Fallback wraps a primary strategy with a deadline and falls back to a
// secondary one on any failure or empty result, so callers never see a
// partial AI ranking.
type Fallback struct {
	primary   Strategy
	secondary Strategy
	timeout   time.Duration
	logger    *zap.Logger
}

const defaultTimeout = 30 * time.Second

func NewFallback(primary, secondary Strategy, timeout time.Duration, log *zap.Logger) *Fallback {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, timeout: timeout, logger: log}
}

func (f *Fallback) Name() string { return f.primary.Name() }

func (f *Fallback) Rank(ctx context.Context, req Request) ([]domain.MatchResult, error) {
	primaryCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	results, err := f.primary.Rank(primaryCtx, req)
	if err == nil && len(results) > 0 {
		return results, nil
	}

	if err != nil {
		f.logger.Warn("using standard matching",
			zap.String("failed_strategy", f.primary.Name()),
			zap.String("client_id", req.ClientID),
			zap.Error(err),
		)
	} else {
		f.logger.Warn("using standard matching",
			zap.String("failed_strategy", f.primary.Name()),
			zap.String("client_id", req.ClientID),
			zap.String("reason", "empty result"),
		)
	}

	return f.secondary.Rank(ctx, req)
}
