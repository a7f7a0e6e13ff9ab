package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

type activeStatusFilter struct{}

// NewActiveStatus creates a filter that removes listings no longer on the
// market.
func NewActiveStatus() Filter {
	return &activeStatusFilter{}
}

func (f *activeStatusFilter) Name() string { return "active_status" }

func (f *activeStatusFilter) Apply(_ context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()

	kept := make([]domain.Listing, 0, initial)
	for _, listing := range c.Items {
		if listing.Status == domain.StatusActive {
			kept = append(kept, listing)
		}
	}

	if dropped := initial - len(kept); dropped > 0 && deps.Logger != nil {
		deps.Logger.Debug("excluding inactive listings",
			zap.Int("excluded", dropped),
			zap.Int("listings_left", len(kept)),
		)
	}

	return &Candidates{Items: kept}, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

type rejectedHistoryFilter struct {
	clientID string
}

// NewRejectedHistory creates a filter that removes listings the client has
// rejected. A rejection excludes the listing until the feedback record is
// deleted.
func NewRejectedHistory(clientID string) Filter {
	return &rejectedHistoryFilter{clientID: clientID}
}

func (f *rejectedHistoryFilter) Name() string { return "rejected_history" }

func (f *rejectedHistoryFilter) Apply(ctx context.Context, deps Deps, c *Candidates) (*Candidates, Step, error) {
	initial := c.Len()
	if deps.Feedback == nil {
		return c, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	rejected, err := deps.Feedback.ListRejected(ctx, f.clientID)
	if err != nil {
		return nil, Step{}, fmt.Errorf("listing rejections: %w", err)
	}

	exclude := make(map[string]struct{}, len(rejected))
	for _, id := range rejected {
		exclude[id] = struct{}{}
	}

	kept := make([]domain.Listing, 0, initial)
	excluded := make([]string, 0)
	for _, listing := range c.Items {
		if _, ok := exclude[listing.ID]; ok {
			excluded = append(excluded, listing.ID)
			continue
		}
		kept = append(kept, listing)
	}

	if len(excluded) > 0 && deps.Logger != nil {
		deps.Logger.Debug("excluding listings rejected by client",
			zap.String("client_id", f.clientID),
			zap.Strings("excluded_listings", excluded),
			zap.Int("listings_left", len(kept)),
		)
	}

	return &Candidates{Items: kept}, Step{Initial: initial, Dropped: len(excluded), Left: len(kept)}, nil
}
