package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

// ErrProfileNotFound is returned when a weight profile does not exist.
var ErrProfileNotFound = errors.New("weight profile not found")

// UpsertWeightProfile stores a named weight set, keyed by name. Weights are
// clamped into the 0..50 range and unknown criteria are dropped. When the
// profile is marked default, the flag is cleared on every other profile;
// it is informational only and never resolved implicitly by the engine.
func (s *Store) UpsertWeightProfile(ctx context.Context, profile domain.WeightProfile) (domain.WeightProfile, error) {
	if profile.Name == "" {
		return domain.WeightProfile{}, errors.New("weight profile name is required")
	}

	cleaned := make(domain.Weights, len(profile.Weights))
	for _, criterion := range domain.Criteria {
		w, ok := profile.Weights[criterion]
		if !ok {
			continue
		}
		if w < 0 {
			w = 0
		}
		if w > domain.MaxCriterionWeight {
			w = domain.MaxCriterionWeight
		}
		cleaned[criterion] = w
	}
	profile.Weights = cleaned

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}

	weightsJSON, err := json.Marshal(profile.Weights)
	if err != nil {
		return domain.WeightProfile{}, fmt.Errorf("marshal weights: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WeightProfile{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if profile.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE weight_profiles SET is_default = 0`); err != nil {
			return domain.WeightProfile{}, fmt.Errorf("clear default flags: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO weight_profiles (id, name, weights_json, is_default)
VALUES (?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
  weights_json = excluded.weights_json,
  is_default = excluded.is_default
`, profile.ID, profile.Name, string(weightsJSON), boolToInt(profile.IsDefault))
	if err != nil {
		return domain.WeightProfile{}, fmt.Errorf("upsert weight profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WeightProfile{}, err
	}

	// The stored row keeps its original ID on a name conflict.
	return s.GetWeightProfile(ctx, profile.Name)
}

// GetWeightProfile fetches a profile by name.
func (s *Store) GetWeightProfile(ctx context.Context, name string) (domain.WeightProfile, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, weights_json, is_default FROM weight_profiles WHERE name = ?
`, name)

	profile, err := scanWeightProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WeightProfile{}, ErrProfileNotFound
	}
	if err != nil {
		return domain.WeightProfile{}, fmt.Errorf("get weight profile: %w", err)
	}
	return profile, nil
}

// ListWeightProfiles returns every stored profile ordered by name.
func (s *Store) ListWeightProfiles(ctx context.Context) ([]domain.WeightProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, weights_json, is_default FROM weight_profiles ORDER BY name
`)
	if err != nil {
		return nil, fmt.Errorf("list weight profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.WeightProfile
	for rows.Next() {
		profile, err := scanWeightProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

// DeleteWeightProfile removes a profile by name.
func (s *Store) DeleteWeightProfile(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weight_profiles WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete weight profile: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func scanWeightProfile(row rowScanner) (domain.WeightProfile, error) {
	var profile domain.WeightProfile
	var weightsJSON string
	var isDefault int

	if err := row.Scan(&profile.ID, &profile.Name, &weightsJSON, &isDefault); err != nil {
		return domain.WeightProfile{}, err
	}

	if err := json.Unmarshal([]byte(weightsJSON), &profile.Weights); err != nil {
		return domain.WeightProfile{}, fmt.Errorf("unmarshal weights: %w", err)
	}
	profile.IsDefault = isDefault != 0
	return profile, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
