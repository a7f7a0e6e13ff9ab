package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
	"github.com/marciobastos-droid/propmatch/internal/scoring"
)

const (
	// MaxResults caps the ranked list returned to callers.
	MaxResults = 30
	// MinScore is the exclusive threshold a candidate must beat to be kept.
	MinScore = 30
)

// Filter represents a single candidate-reduction step applied before scoring.
type Filter interface {
	Name() string
	Apply(ctx context.Context, deps Deps, c *Candidates) (*Candidates, Step, error)
}

// Deps aggregates dependencies shared across filtering steps.
type Deps struct {
	Feedback FeedbackSource
	Logger   *zap.Logger
}

// FeedbackSource provides per-client feedback signals to the pipeline.
type FeedbackSource interface {
	ListFavorites(ctx context.Context, clientID string) ([]string, error)
	ListRejected(ctx context.Context, clientID string) ([]string, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Candidates is the mutable working set of listings flowing through filters.
type Candidates struct {
	Items []domain.Listing
}

func (c *Candidates) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// Pipeline filters, scores, ranks and truncates inventory for one client.
// It holds no per-call state and is safe to use concurrently.
type Pipeline struct {
	deps     Deps
	limit    int
	minScore int
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, limit: MaxResults, minScore: MinScore}
}

// Rank produces the ordered match list for a client: active listings only,
// minus rejected ones, scored, thresholded, sorted by score with a recency
// tie-break and truncated.
func (p *Pipeline) Rank(ctx context.Context, clientID string, inventory []domain.Listing, profile domain.RequirementProfile, weights domain.Weights) ([]domain.MatchResult, error) {
	steps := []Filter{
		NewActiveStatus(),
		NewRejectedHistory(clientID),
	}
	return p.process(ctx, clientID, inventory, profile, weights, steps)
}

// Rerank recomputes scores over an already-ranked result set, e.g. after a
// weight profile change. It reuses the caller's listing set instead of
// re-querying inventory, so mid-session churn cannot alter what is shown;
// freshly rejected listings are still dropped.
func (p *Pipeline) Rerank(ctx context.Context, clientID string, results []domain.MatchResult, profile domain.RequirementProfile, weights domain.Weights) ([]domain.MatchResult, error) {
	items := make([]domain.Listing, 0, len(results))
	for _, r := range results {
		items = append(items, r.Listing)
	}

	steps := []Filter{NewRejectedHistory(clientID)}
	return p.process(ctx, clientID, items, profile, weights, steps)
}

func (p *Pipeline) process(ctx context.Context, clientID string, items []domain.Listing, profile domain.RequirementProfile, weights domain.Weights, steps []Filter) ([]domain.MatchResult, error) {
	c := &Candidates{Items: items}

	for _, step := range steps {
		next, info, err := step.Apply(ctx, p.deps, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		p.deps.Logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.String("client_id", clientID),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		c = next
	}

	favorites, err := p.favoriteSet(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}

	results := make([]domain.MatchResult, 0, c.Len())
	for _, listing := range c.Items {
		score := scoring.Score(listing, profile, weights, favorites[listing.ID])
		if score <= p.minScore {
			continue
		}
		results = append(results, domain.MatchResult{Listing: listing, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// Recency tie-break, most recent first. IDs keep the order total
		// when timestamps collide.
		if !results[i].Listing.ListedAt.Equal(results[j].Listing.ListedAt) {
			return results[i].Listing.ListedAt.After(results[j].Listing.ListedAt)
		}
		return results[i].Listing.ID < results[j].Listing.ID
	})

	if len(results) > p.limit {
		results = results[:p.limit]
	}

	p.deps.Logger.Info("ranking completed",
		zap.String("client_id", clientID),
		zap.Int("candidates", c.Len()),
		zap.Int("matches", len(results)),
	)

	return results, nil
}

func (p *Pipeline) favoriteSet(ctx context.Context, clientID string) (map[string]bool, error) {
	if p.deps.Feedback == nil {
		return nil, nil
	}

	ids, err := p.deps.Feedback.ListFavorites(ctx, clientID)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
