package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

// ErrEntryNotFound is returned when a ledger entry does not exist.
var ErrEntryNotFound = errors.New("sent match not found")

// RecordSent appends a dispatch ledger entry for a true send. The ledger is
// append-only and permissive: re-sending a pair that already has an entry is
// allowed; callers are expected to consult AlreadySent and warn first.
func (s *Store) RecordSent(ctx context.Context, clientID, propertyID string, score int, channel, sender string) (domain.SentMatch, error) {
	return s.insertEntry(ctx, clientID, propertyID, score, channel, sender, domain.ResponsePending)
}

// MarkSavedForLater records a save-for-later entry. It is distinguishable
// from a true send through its saved response state and stays re-sendable.
func (s *Store) MarkSavedForLater(ctx context.Context, clientID, propertyID string, score int, sender string) (domain.SentMatch, error) {
	return s.insertEntry(ctx, clientID, propertyID, score, "", sender, domain.ResponseSaved)
}

func (s *Store) insertEntry(ctx context.Context, clientID, propertyID string, score int, channel, sender string, response domain.ClientResponse) (domain.SentMatch, error) {
	entry := domain.SentMatch{
		ID:             uuid.NewString(),
		ClientID:       clientID,
		PropertyID:     propertyID,
		MatchScore:     score,
		Compatibility:  domain.CompatibilityFor(score),
		Channel:        channel,
		SentAt:         time.Now().UTC(),
		SentBy:         sender,
		ClientResponse: response,
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sent_matches (id, client_id, property_id, match_score, compatibility, channel, sent_at, sent_by, client_response)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		entry.ID, entry.ClientID, entry.PropertyID, entry.MatchScore, string(entry.Compatibility),
		entry.Channel, encodeTime(entry.SentAt), entry.SentBy, string(entry.ClientResponse),
	)
	if err != nil {
		return domain.SentMatch{}, fmt.Errorf("insert sent match: %w", err)
	}
	return entry, nil
}

// ListByClient returns every ledger entry for a client, newest first.
// Callers partition by response state to derive sent / saved / available
// sets.
func (s *Store) ListByClient(ctx context.Context, clientID string) ([]domain.SentMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, client_id, property_id, match_score, compatibility, channel, sent_at, sent_by, client_response
FROM sent_matches
WHERE client_id = ?
ORDER BY sent_at DESC, id
`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list sent matches: %w", err)
	}
	defer rows.Close()

	var entries []domain.SentMatch
	for rows.Next() {
		entry, err := scanSentMatch(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AlreadySent reports whether the pair has a non-saved ledger entry, i.e.
// the listing was truly delivered to the client at least once.
func (s *Store) AlreadySent(ctx context.Context, clientID, propertyID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM sent_matches
WHERE client_id = ? AND property_id = ? AND client_response != ?
`, clientID, propertyID, string(domain.ResponseSaved)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query sent matches: %w", err)
	}
	return n > 0, nil
}

// SavedForLater reports whether the pair has a saved entry.
func (s *Store) SavedForLater(ctx context.Context, clientID, propertyID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM sent_matches
WHERE client_id = ? AND property_id = ? AND client_response = ?
`, clientID, propertyID, string(domain.ResponseSaved)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query sent matches: %w", err)
	}
	return n > 0, nil
}

// UpdateResponse sets the client's response state on one ledger entry.
func (s *Store) UpdateResponse(ctx context.Context, id string, response domain.ClientResponse) error {
	if !response.Valid() {
		return fmt.Errorf("unknown client response: %s", response)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE sent_matches SET client_response = ? WHERE id = ?`, string(response), id)
	if err != nil {
		return fmt.Errorf("update sent match: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// GetSentMatch fetches one ledger entry by ID.
func (s *Store) GetSentMatch(ctx context.Context, id string) (domain.SentMatch, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, client_id, property_id, match_score, compatibility, channel, sent_at, sent_by, client_response
FROM sent_matches
WHERE id = ?
`, id)

	entry, err := scanSentMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SentMatch{}, ErrEntryNotFound
	}
	if err != nil {
		return domain.SentMatch{}, fmt.Errorf("get sent match: %w", err)
	}
	return entry, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSentMatch(row rowScanner) (domain.SentMatch, error) {
	var entry domain.SentMatch
	var compatibility, sentAt, response string

	if err := row.Scan(
		&entry.ID, &entry.ClientID, &entry.PropertyID, &entry.MatchScore,
		&compatibility, &entry.Channel, &sentAt, &entry.SentBy, &response,
	); err != nil {
		return domain.SentMatch{}, err
	}

	entry.Compatibility = domain.CompatibilityLevel(compatibility)
	entry.SentAt = decodeTime(sentAt)
	entry.ClientResponse = domain.ClientResponse(response)
	return entry, nil
}
