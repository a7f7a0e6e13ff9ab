package ai

import (
	"context"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

// RankedCandidate is one entry of a reasoning-service ranking: a listing ID,
// a 0..100 score and a short natural-language justification.
type RankedCandidate struct {
	ID     string
	Score  float64
	Reason string
}

// Ranker orders candidate listings for a client using an external reasoning
// service. Implementations may return a subset of the candidates. The result
// is transient and best-effort; callers are expected to fall back to the
// weighted pipeline on any error.
type Ranker interface {
	RankListings(ctx context.Context, profile domain.RequirementProfile, notes string, candidates []domain.Listing) ([]RankedCandidate, error)
}
