package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
	"github.com/marciobastos-droid/propmatch/internal/scoring"
)

type stubFeedback struct {
	favorites map[string][]string
	rejected  map[string][]string
	err       error
}

func (s *stubFeedback) ListFavorites(_ context.Context, clientID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.favorites[clientID], nil
}

func (s *stubFeedback) ListRejected(_ context.Context, clientID string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rejected[clientID], nil
}

func iptr(v int) *int         { return &v }
func fptr(v float64) *float64 { return &v }

func testProfile() domain.RequirementProfile {
	return domain.RequirementProfile{
		ListingType: domain.ListingSale,
		BudgetMin:   fptr(200000),
		BudgetMax:   fptr(300000),
		BedroomsMin: iptr(2),
	}
}

func listing(id string, price float64, listedAt time.Time) domain.Listing {
	return domain.Listing{
		ID:          id,
		Country:     "Portugal",
		City:        "Lisbon",
		ListingType: domain.ListingSale,
		Price:       price,
		Bedrooms:    iptr(2),
		Status:      domain.StatusActive,
		ListedAt:    listedAt,
	}
}

func newTestPipeline(fb FeedbackSource) *Pipeline {
	return New(Deps{Feedback: fb, Logger: zap.NewNop()})
}

func TestRankExcludesInactiveListings(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	sold := listing("sold", 250000, day)
	sold.Status = "sold"

	inventory := []domain.Listing{listing("ok", 250000, day), sold}

	p := newTestPipeline(&stubFeedback{})
	results, err := p.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 1 || results[0].Listing.ID != "ok" {
		t.Fatalf("expected only the active listing, got %+v", results)
	}
}

func TestRankExcludesRejectedListings(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	inventory := []domain.Listing{
		listing("keep", 250000, day),
		listing("spurned", 250000, day),
	}

	fb := &stubFeedback{rejected: map[string][]string{"c1": {"spurned"}}}
	p := newTestPipeline(fb)

	results, err := p.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, r := range results {
		if r.Listing.ID == "spurned" {
			t.Fatalf("rejected listing must never be ranked")
		}
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	// Another client is unaffected by the first client's rejection.
	results, err = p.Rank(context.Background(), "c2", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("rejections must be scoped per client, got %d results", len(results))
	}
}

func TestRankDropsLowScores(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	miss := listing("miss", 999999, day)
	miss.ListingType = domain.ListingRent
	miss.Bedrooms = iptr(0)

	inventory := []domain.Listing{listing("hit", 250000, day), miss}

	p := newTestPipeline(&stubFeedback{})
	results, err := p.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 1 || results[0].Listing.ID != "hit" {
		t.Fatalf("scores at or below %d must be dropped, got %+v", MinScore, results)
	}
}

func TestRankOrderAndTruncation(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	inventory := make([]domain.Listing, 0, 40)
	for i := 0; i < 40; i++ {
		l := listing(fmt.Sprintf("l%02d", i), 250000, base.Add(time.Duration(i)*time.Hour))
		inventory = append(inventory, l)
	}
	// One weaker candidate that still clears the threshold.
	weak := listing("weak", 340000, base)
	inventory = append(inventory, weak)

	p := newTestPipeline(&stubFeedback{})
	results, err := p.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != MaxResults {
		t.Fatalf("expected %d results, got %d", MaxResults, len(results))
	}

	for i := 1; i < len(results); i++ {
		prev, cur := results[i-1], results[i]
		if prev.Score < cur.Score {
			t.Fatalf("results must be sorted by score descending")
		}
		if prev.Score == cur.Score && prev.Listing.ListedAt.Before(cur.Listing.ListedAt) {
			t.Fatalf("equal scores must be ordered by recency, most recent first")
		}
	}

	// The weaker candidate cannot displace full matches and the truncation
	// keeps the most recent full matches.
	for _, r := range results {
		if r.Listing.ID == "weak" {
			t.Fatalf("truncation must keep the highest-scoring candidates")
		}
	}
	if results[0].Listing.ID != "l39" {
		t.Fatalf("most recent full match must rank first, got %s", results[0].Listing.ID)
	}
}

func TestRankIdempotent(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	inventory := []domain.Listing{
		listing("a", 250000, base),
		listing("b", 250000, base.Add(time.Hour)),
		listing("c", 310000, base),
		listing("d", 340000, base),
	}

	fb := &stubFeedback{favorites: map[string][]string{"c1": {"c"}}}
	p := newTestPipeline(fb)

	first, err := p.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated ranking with unchanged inputs must be identical:\n%+v\n%+v", first, second)
	}
}

func TestRankAppliesFavoriteBonus(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	inventory := []domain.Listing{listing("fav", 340000, day)}

	plain := newTestPipeline(&stubFeedback{})
	favored := newTestPipeline(&stubFeedback{favorites: map[string][]string{"c1": {"fav"}}})

	base, err := plain.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boosted, err := favored.Rank(context.Background(), "c1", inventory, testProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(base) != 1 || len(boosted) != 1 {
		t.Fatalf("expected single results, got %d and %d", len(base), len(boosted))
	}
	if boosted[0].Score != base[0].Score+10 {
		t.Fatalf("favorite must add exactly 10: %d vs %d", base[0].Score, boosted[0].Score)
	}
}

func TestRankPropagatesFeedbackErrors(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	fb := &stubFeedback{err: errors.New("store offline")}
	p := newTestPipeline(fb)

	if _, err := p.Rank(context.Background(), "c1", []domain.Listing{listing("a", 250000, day)}, testProfile(), nil); err == nil {
		t.Fatalf("expected feedback store error to surface")
	}
}

func TestRerankReusesListingSet(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// The previously shown set includes a listing that has since gone off
	// market; reranking must keep it because the set is not re-queried.
	gone := listing("gone", 250000, day)
	gone.Status = "sold"
	prior := []domain.MatchResult{
		{Listing: listing("a", 250000, day), Score: 100},
		{Listing: gone, Score: 100},
	}

	p := newTestPipeline(&stubFeedback{})

	heavyPrice := domain.Weights{domain.CriterionPrice: 50}
	results, err := p.Rerank(context.Background(), "c1", prior, testProfile(), heavyPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("rerank must reuse the shown listing set, got %d results", len(results))
	}
}

func TestRerankDropsFreshRejections(t *testing.T) {
	day := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	prior := []domain.MatchResult{
		{Listing: listing("a", 250000, day), Score: 100},
		{Listing: listing("b", 250000, day), Score: 100},
	}

	fb := &stubFeedback{rejected: map[string][]string{"c1": {"b"}}}
	p := newTestPipeline(fb)

	results, err := p.Rerank(context.Background(), "c1", prior, testProfile(), scoring.DefaultWeights())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 1 || results[0].Listing.ID != "a" {
		t.Fatalf("rerank must drop freshly rejected listings, got %+v", results)
	}
}
