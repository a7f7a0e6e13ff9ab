package store

import (
	"context"
	"errors"
	"testing"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.EnsureSchema(); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func TestFeedbackLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetFeedback(ctx, "c1", "p1", domain.FeedbackFavorite); err != nil {
		t.Fatalf("set favorite: %v", err)
	}
	if err := s.SetFeedback(ctx, "c1", "p1", domain.FeedbackRejected); err != nil {
		t.Fatalf("flip to rejected: %v", err)
	}

	favorites, err := s.ListFavorites(ctx, "c1")
	if err != nil {
		t.Fatalf("list favorites: %v", err)
	}
	if len(favorites) != 0 {
		t.Fatalf("rejection must replace the favorite, got %v", favorites)
	}

	rejected, err := s.ListRejected(ctx, "c1")
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 1 || rejected[0] != "p1" {
		t.Fatalf("expected p1 rejected, got %v", rejected)
	}
}

func TestFeedbackScopedPerClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetFeedback(ctx, "c1", "p1", domain.FeedbackRejected); err != nil {
		t.Fatalf("set feedback: %v", err)
	}

	rejected, err := s.ListRejected(ctx, "c2")
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("feedback must be scoped per client, got %v", rejected)
	}
}

func TestFeedbackDeleteLiftsRejection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetFeedback(ctx, "c1", "p1", domain.FeedbackRejected); err != nil {
		t.Fatalf("set feedback: %v", err)
	}
	if err := s.DeleteFeedback(ctx, "c1", "p1"); err != nil {
		t.Fatalf("delete feedback: %v", err)
	}

	rejected, err := s.ListRejected(ctx, "c1")
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("deleted rejection must be lifted, got %v", rejected)
	}
}

func TestFeedbackRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetFeedback(context.Background(), "c1", "p1", "meh"); err == nil {
		t.Fatalf("unknown feedback kind must be rejected")
	}
}

func TestRecordSentAppearsInHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.RecordSent(ctx, "c1", "p1", 85, "email", "agent-7")
	if err != nil {
		t.Fatalf("record sent: %v", err)
	}
	if entry.ClientResponse != domain.ResponsePending {
		t.Fatalf("new sends must start pending, got %s", entry.ClientResponse)
	}
	if entry.Compatibility != domain.CompatibilityExcellent {
		t.Fatalf("score 85 must map to excellent, got %s", entry.Compatibility)
	}

	history, err := s.ListByClient(ctx, "c1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 || history[0].ID != entry.ID {
		t.Fatalf("history must include the new entry, got %+v", history)
	}
	if history[0].Channel != "email" || history[0].SentBy != "agent-7" {
		t.Fatalf("channel and sender must round-trip, got %+v", history[0])
	}
}

func TestSavedForLaterIsDistinguishable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RecordSent(ctx, "c1", "p1", 70, "email", "agent-7"); err != nil {
		t.Fatalf("record sent: %v", err)
	}
	saved, err := s.MarkSavedForLater(ctx, "c1", "p2", 65, "agent-7")
	if err != nil {
		t.Fatalf("mark saved: %v", err)
	}
	if !saved.Saved() {
		t.Fatalf("saved entry must carry the saved response")
	}

	history, err := s.ListByClient(ctx, "c1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}

	var pending, savedCount int
	for _, e := range history {
		switch e.ClientResponse {
		case domain.ResponsePending:
			pending++
		case domain.ResponseSaved:
			savedCount++
		}
	}
	if pending != 1 || savedCount != 1 {
		t.Fatalf("expected one pending and one saved entry, got %d/%d", pending, savedCount)
	}

	// A save-for-later is not a send.
	sent, err := s.AlreadySent(ctx, "c1", "p2")
	if err != nil {
		t.Fatalf("already sent: %v", err)
	}
	if sent {
		t.Fatalf("saved entries must not count as sent")
	}

	isSaved, err := s.SavedForLater(ctx, "c1", "p2")
	if err != nil {
		t.Fatalf("saved for later: %v", err)
	}
	if !isSaved {
		t.Fatalf("expected p2 to be saved for later")
	}
}

func TestAlreadySentDetectsDelivery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sent, err := s.AlreadySent(ctx, "c1", "p1")
	if err != nil {
		t.Fatalf("already sent: %v", err)
	}
	if sent {
		t.Fatalf("nothing sent yet")
	}

	if _, err := s.RecordSent(ctx, "c1", "p1", 70, "whatsapp", "agent-7"); err != nil {
		t.Fatalf("record sent: %v", err)
	}

	sent, err = s.AlreadySent(ctx, "c1", "p1")
	if err != nil {
		t.Fatalf("already sent: %v", err)
	}
	if !sent {
		t.Fatalf("expected p1 to be marked as sent")
	}
}

func TestResendSamePairIsAllowed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.RecordSent(ctx, "c1", "p1", 70, "email", "agent-7")
	if err != nil {
		t.Fatalf("record sent: %v", err)
	}
	second, err := s.RecordSent(ctx, "c1", "p1", 72, "email", "agent-8")
	if err != nil {
		t.Fatalf("resend must be allowed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("resends must produce distinct entries")
	}

	history, err := s.ListByClient(ctx, "c1")
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("prior history must be preserved, got %d entries", len(history))
	}
}

func TestUpdateResponse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry, err := s.RecordSent(ctx, "c1", "p1", 70, "email", "agent-7")
	if err != nil {
		t.Fatalf("record sent: %v", err)
	}

	if err := s.UpdateResponse(ctx, entry.ID, domain.ResponseInterested); err != nil {
		t.Fatalf("update response: %v", err)
	}

	got, err := s.GetSentMatch(ctx, entry.ID)
	if err != nil {
		t.Fatalf("get sent match: %v", err)
	}
	if got.ClientResponse != domain.ResponseInterested {
		t.Fatalf("expected interested, got %s", got.ClientResponse)
	}

	if err := s.UpdateResponse(ctx, entry.ID, "confused"); err == nil {
		t.Fatalf("invalid response state must be rejected")
	}
	if err := s.UpdateResponse(ctx, "missing", domain.ResponseClosed); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestWeightProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored, err := s.UpsertWeightProfile(ctx, domain.WeightProfile{
		Name: "investors",
		Weights: domain.Weights{
			domain.CriterionPrice:    40,
			domain.CriterionLocation: 90,  // clamped to 50
			domain.CriterionArea:     -10, // clamped to 0
			"unknown":                10,  // dropped
		},
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if stored.Weights[domain.CriterionLocation] != domain.MaxCriterionWeight {
		t.Fatalf("weights above the cap must clamp, got %d", stored.Weights[domain.CriterionLocation])
	}
	if stored.Weights[domain.CriterionArea] != 0 {
		t.Fatalf("negative weights must clamp to 0, got %d", stored.Weights[domain.CriterionArea])
	}
	if _, ok := stored.Weights["unknown"]; ok {
		t.Fatalf("unknown criteria must be dropped")
	}
	if !stored.IsDefault {
		t.Fatalf("default flag must persist")
	}

	// Upserting by the same name updates in place and keeps the ID.
	updated, err := s.UpsertWeightProfile(ctx, domain.WeightProfile{
		Name:    "investors",
		Weights: domain.Weights{domain.CriterionPrice: 30},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if updated.ID != stored.ID {
		t.Fatalf("upsert by name must keep the profile ID")
	}
	if updated.Weights[domain.CriterionPrice] != 30 {
		t.Fatalf("expected updated price weight, got %d", updated.Weights[domain.CriterionPrice])
	}

	profiles, err := s.ListWeightProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected a single profile, got %d", len(profiles))
	}
}

func TestWeightProfileSingleDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertWeightProfile(ctx, domain.WeightProfile{Name: "a", IsDefault: true}); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if _, err := s.UpsertWeightProfile(ctx, domain.WeightProfile{Name: "b", IsDefault: true}); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	profiles, err := s.ListWeightProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	defaults := 0
	for _, p := range profiles {
		if p.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default profile, got %d", defaults)
	}
}

func TestWeightProfileDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertWeightProfile(ctx, domain.WeightProfile{Name: "tmp"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.DeleteWeightProfile(ctx, "tmp"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteWeightProfile(ctx, "tmp"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, err := s.GetWeightProfile(ctx, "tmp"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestSavedSearchLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	min := 200000.0
	created, err := s.CreateSavedSearch(ctx, domain.SavedSearch{
		ClientID: "c1",
		Name:     "lisbon sales",
		Criteria: domain.RequirementProfile{
			ListingType: domain.ListingSale,
			Locations:   []string{"Lisbon"},
			BudgetMin:   &min,
		},
		AlertsEnabled:  true,
		AlertFrequency: domain.AlertWeekly,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("creation must assign ID and timestamp: %+v", created)
	}

	got, err := s.GetSavedSearch(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Criteria.BudgetMin == nil || *got.Criteria.BudgetMin != min {
		t.Fatalf("criteria must round-trip, got %+v", got.Criteria)
	}
	if got.AlertFrequency != domain.AlertWeekly {
		t.Fatalf("expected weekly alerts, got %s", got.AlertFrequency)
	}

	weekly, err := s.ListAlertingSearches(ctx, domain.AlertWeekly)
	if err != nil {
		t.Fatalf("list alerting: %v", err)
	}
	if len(weekly) != 1 {
		t.Fatalf("expected the weekly search, got %d", len(weekly))
	}

	daily, err := s.ListAlertingSearches(ctx, domain.AlertDaily)
	if err != nil {
		t.Fatalf("list alerting: %v", err)
	}
	if len(daily) != 0 {
		t.Fatalf("daily scan must not pick up weekly searches")
	}

	if err := s.DeleteSavedSearch(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetSavedSearch(ctx, created.ID); !errors.Is(err, ErrSearchNotFound) {
		t.Fatalf("expected ErrSearchNotFound, got %v", err)
	}
}

func TestSavedSearchValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSavedSearch(ctx, domain.SavedSearch{Name: "nameless client"}); err == nil {
		t.Fatalf("missing client must be rejected")
	}
	if _, err := s.CreateSavedSearch(ctx, domain.SavedSearch{ClientID: "c1"}); err == nil {
		t.Fatalf("missing name must be rejected")
	}
	if _, err := s.CreateSavedSearch(ctx, domain.SavedSearch{ClientID: "c1", Name: "x", AlertFrequency: "hourly"}); err == nil {
		t.Fatalf("unknown frequency must be rejected")
	}

	created, err := s.CreateSavedSearch(ctx, domain.SavedSearch{ClientID: "c1", Name: "defaults"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.AlertFrequency != domain.AlertDaily {
		t.Fatalf("frequency must default to daily, got %s", created.AlertFrequency)
	}
}
