package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

// ErrSearchNotFound is returned when a saved search does not exist.
var ErrSearchNotFound = errors.New("saved search not found")

// CreateSavedSearch persists a named requirement profile with its alert
// preferences. The registry is read-only for the external alert scheduler.
func (s *Store) CreateSavedSearch(ctx context.Context, search domain.SavedSearch) (domain.SavedSearch, error) {
	if search.ClientID == "" {
		return domain.SavedSearch{}, errors.New("saved search client is required")
	}
	if search.Name == "" {
		return domain.SavedSearch{}, errors.New("saved search name is required")
	}
	if search.AlertFrequency == "" {
		search.AlertFrequency = domain.AlertDaily
	}
	if !search.AlertFrequency.Valid() {
		return domain.SavedSearch{}, fmt.Errorf("unknown alert frequency: %s", search.AlertFrequency)
	}

	if search.ID == "" {
		search.ID = uuid.NewString()
	}
	if search.CreatedAt.IsZero() {
		search.CreatedAt = time.Now().UTC()
	}

	criteriaJSON, err := json.Marshal(search.Criteria)
	if err != nil {
		return domain.SavedSearch{}, fmt.Errorf("marshal criteria: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO saved_searches (id, client_id, name, criteria_json, alerts_enabled, alert_frequency, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		search.ID, search.ClientID, search.Name, string(criteriaJSON),
		boolToInt(search.AlertsEnabled), string(search.AlertFrequency), encodeTime(search.CreatedAt),
	)
	if err != nil {
		return domain.SavedSearch{}, fmt.Errorf("insert saved search: %w", err)
	}
	return search, nil
}

// GetSavedSearch fetches one saved search by ID.
func (s *Store) GetSavedSearch(ctx context.Context, id string) (domain.SavedSearch, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, client_id, name, criteria_json, alerts_enabled, alert_frequency, created_at
FROM saved_searches WHERE id = ?
`, id)

	search, err := scanSavedSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SavedSearch{}, ErrSearchNotFound
	}
	if err != nil {
		return domain.SavedSearch{}, fmt.Errorf("get saved search: %w", err)
	}
	return search, nil
}

// ListSavedSearches returns a client's saved searches, newest first.
func (s *Store) ListSavedSearches(ctx context.Context, clientID string) ([]domain.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, client_id, name, criteria_json, alerts_enabled, alert_frequency, created_at
FROM saved_searches
WHERE client_id = ?
ORDER BY created_at DESC, id
`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list saved searches: %w", err)
	}
	defer rows.Close()

	var searches []domain.SavedSearch
	for rows.Next() {
		search, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

// ListAlertingSearches returns every search with alerts enabled, the set an
// external scheduler iterates at its own cadence.
func (s *Store) ListAlertingSearches(ctx context.Context, frequency domain.AlertFrequency) ([]domain.SavedSearch, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, client_id, name, criteria_json, alerts_enabled, alert_frequency, created_at
FROM saved_searches
WHERE alerts_enabled = 1 AND alert_frequency = ?
ORDER BY created_at, id
`, string(frequency))
	if err != nil {
		return nil, fmt.Errorf("list alerting searches: %w", err)
	}
	defer rows.Close()

	var searches []domain.SavedSearch
	for rows.Next() {
		search, err := scanSavedSearch(rows)
		if err != nil {
			return nil, err
		}
		searches = append(searches, search)
	}
	return searches, rows.Err()
}

// DeleteSavedSearch removes one saved search.
func (s *Store) DeleteSavedSearch(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_searches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete saved search: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSearchNotFound
	}
	return nil
}

func scanSavedSearch(row rowScanner) (domain.SavedSearch, error) {
	var search domain.SavedSearch
	var criteriaJSON, frequency, createdAt string
	var alertsEnabled int

	if err := row.Scan(
		&search.ID, &search.ClientID, &search.Name, &criteriaJSON,
		&alertsEnabled, &frequency, &createdAt,
	); err != nil {
		return domain.SavedSearch{}, err
	}

	if err := json.Unmarshal([]byte(criteriaJSON), &search.Criteria); err != nil {
		return domain.SavedSearch{}, fmt.Errorf("unmarshal criteria: %w", err)
	}
	search.AlertsEnabled = alertsEnabled != 0
	search.AlertFrequency = domain.AlertFrequency(frequency)
	search.CreatedAt = decodeTime(createdAt)
	return search, nil
}
