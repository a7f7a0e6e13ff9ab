package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

// Repo reads the property inventory. The matching engine treats listings as
// external, read-only records; writes exist only to seed the table.
type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) EnsureSchema() error {
	const createTable = `
CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  country TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  listing_type TEXT NOT NULL DEFAULT 'sale',
  price REAL NOT NULL DEFAULT 0,
  bedrooms INTEGER,
  bathrooms INTEGER,
  area REAL,
  property_type TEXT NOT NULL DEFAULT '',
  amenities_json TEXT NOT NULL DEFAULT '[]',
  featured INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  listed_at TEXT NOT NULL DEFAULT ''
);
`
	if _, err := r.db.Exec(createTable); err != nil {
		return err
	}
	if _, err := r.db.Exec(`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);`); err != nil {
		return err
	}
	return nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n)
	return n, err
}

// UpsertMany seeds listings without duplicating by id.
func (r *Repo) UpsertMany(ctx context.Context, items []domain.Listing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO listings
(id, country, city, listing_type, price, bedrooms, bathrooms, area, property_type, amenities_json, featured, status, listed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range items {
		amenities, _ := json.Marshal(l.Amenities)

		featured := 0
		if l.Featured {
			featured = 1
		}
		status := l.Status
		if status == "" {
			status = domain.StatusActive
		}

		if _, err := stmt.ExecContext(ctx,
			l.ID, l.Country, l.City, string(l.ListingType), l.Price,
			l.Bedrooms, l.Bathrooms, l.Area, string(l.PropertyType),
			string(amenities), featured, status, encodeTime(l.ListedAt),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListActive returns the rankable inventory.
func (r *Repo) ListActive(ctx context.Context) ([]domain.Listing, error) {
	return r.list(ctx, `WHERE status = ?`, domain.StatusActive)
}

// ListAll returns the whole inventory regardless of status.
func (r *Repo) ListAll(ctx context.Context) ([]domain.Listing, error) {
	return r.list(ctx, ``)
}

func (r *Repo) list(ctx context.Context, where string, args ...any) ([]domain.Listing, error) {
	query := `
SELECT id, country, city, listing_type, price, bedrooms, bathrooms, area, property_type, amenities_json, featured, status, listed_at
FROM listings
` + where + `
ORDER BY listed_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		var l domain.Listing
		var listingType, propertyType, amenitiesJSON, listedAt string
		var featured int

		if err := rows.Scan(
			&l.ID, &l.Country, &l.City, &listingType, &l.Price,
			&l.Bedrooms, &l.Bathrooms, &l.Area, &propertyType,
			&amenitiesJSON, &featured, &l.Status, &listedAt,
		); err != nil {
			return nil, err
		}

		l.ListingType = domain.ListingType(listingType)
		l.PropertyType = domain.PropertyType(propertyType)
		l.Featured = featured != 0
		l.ListedAt = decodeTime(listedAt)
		_ = json.Unmarshal([]byte(amenitiesJSON), &l.Amenities)

		out = append(out, l)
	}
	return out, rows.Err()
}
