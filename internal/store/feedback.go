package store

import (
	"context"
	"fmt"
	"time"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

// SetFeedback upserts the client's signal on a listing. Last write wins per
// (client, property) pair; a rejection keeps the listing out of rankings
// until the record is deleted.
func (s *Store) SetFeedback(ctx context.Context, clientID, propertyID string, kind domain.FeedbackKind) error {
	if kind != domain.FeedbackFavorite && kind != domain.FeedbackRejected {
		return fmt.Errorf("unknown feedback kind: %s", kind)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO feedback (client_id, property_id, kind, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (client_id, property_id) DO UPDATE SET
  kind = excluded.kind,
  updated_at = excluded.updated_at
`, clientID, propertyID, string(kind), encodeTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}

// DeleteFeedback removes the pair's record, lifting a rejection or dropping
// a favorite.
func (s *Store) DeleteFeedback(ctx context.Context, clientID, propertyID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE client_id = ? AND property_id = ?`, clientID, propertyID); err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	return nil
}

// ListFavorites returns the property IDs the client has favorited.
func (s *Store) ListFavorites(ctx context.Context, clientID string) ([]string, error) {
	return s.listFeedbackIDs(ctx, clientID, domain.FeedbackFavorite)
}

// ListRejected returns the property IDs the client has rejected.
func (s *Store) ListRejected(ctx context.Context, clientID string) ([]string, error) {
	return s.listFeedbackIDs(ctx, clientID, domain.FeedbackRejected)
}

func (s *Store) listFeedbackIDs(ctx context.Context, clientID string, kind domain.FeedbackKind) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT property_id FROM feedback
WHERE client_id = ? AND kind = ?
ORDER BY property_id
`, clientID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFeedback returns every record for a client, favorites and rejections
// alike.
func (s *Store) ListFeedback(ctx context.Context, clientID string) ([]domain.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT client_id, property_id, kind, updated_at FROM feedback
WHERE client_id = ?
ORDER BY updated_at DESC
`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var records []domain.FeedbackRecord
	for rows.Next() {
		var rec domain.FeedbackRecord
		var kind, updatedAt string
		if err := rows.Scan(&rec.ClientID, &rec.PropertyID, &kind, &updatedAt); err != nil {
			return nil, err
		}
		rec.Kind = domain.FeedbackKind(kind)
		rec.UpdatedAt = decodeTime(updatedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}
