package domain

import (
	"strings"
	"time"
)

// ListingType distinguishes sale and rental listings. Profiles may also use
// ListingBoth to accept either.
type ListingType string

const (
	ListingSale ListingType = "sale"
	ListingRent ListingType = "rent"
	ListingBoth ListingType = "both"
)

type PropertyType string

const (
	PropertyApartment  PropertyType = "apartment"
	PropertyHouse      PropertyType = "house"
	PropertyTownhouse  PropertyType = "townhouse"
	PropertyCondo      PropertyType = "condo"
	PropertyLand       PropertyType = "land"
	PropertyCommercial PropertyType = "commercial"
	PropertyBuilding   PropertyType = "building"
)

const StatusActive = "active"

// Listing is a property record from the inventory provider. It is read-only
// for the matching engine. Numeric attributes the provider may omit are
// pointers; a nil value makes the related criterion not applicable.
type Listing struct {
	ID           string       `json:"id"`
	Country      string       `json:"country"`
	City         string       `json:"city"`
	ListingType  ListingType  `json:"listing_type"`
	Price        float64      `json:"price"`
	Bedrooms     *int         `json:"bedrooms,omitempty"`
	Bathrooms    *int         `json:"bathrooms,omitempty"`
	Area         *float64     `json:"area,omitempty"`
	PropertyType PropertyType `json:"property_type"`
	Amenities    []string     `json:"amenities,omitempty"`
	Featured     bool         `json:"featured"`
	Status       string       `json:"status"`
	ListedAt     time.Time    `json:"listed_at"`
}

// RequirementProfile describes what a client wants. Every bound is optional;
// an absent bound means the criterion is skipped, not penalized.
type RequirementProfile struct {
	ListingType      ListingType    `json:"listing_type,omitempty"`
	Locations        []string       `json:"locations,omitempty"`
	PropertyTypes    []PropertyType `json:"property_types,omitempty"`
	BudgetMin        *float64       `json:"budget_min,omitempty"`
	BudgetMax        *float64       `json:"budget_max,omitempty"`
	BedroomsMin      *int           `json:"bedrooms_min,omitempty"`
	BedroomsMax      *int           `json:"bedrooms_max,omitempty"`
	BathroomsMin     *int           `json:"bathrooms_min,omitempty"`
	AreaMin          *float64       `json:"area_min,omitempty"`
	AreaMax          *float64       `json:"area_max,omitempty"`
	DesiredAmenities []string       `json:"desired_amenities,omitempty"`
	// Countries is a mandatory filter: when non-empty, listings from other
	// countries score zero regardless of weights.
	Countries       []string `json:"countries,omitempty"`
	AdditionalNotes string   `json:"additional_notes,omitempty"`
}

// AllowsCountry reports whether the profile's country filter admits the
// given country. An empty filter admits everything.
func (p RequirementProfile) AllowsCountry(country string) bool {
	if len(p.Countries) == 0 {
		return true
	}
	for _, c := range p.Countries {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(country)) {
			return true
		}
	}
	return false
}

// Criterion names a scorable attribute of a listing.
type Criterion string

const (
	CriterionLocation     Criterion = "location"
	CriterionPrice        Criterion = "price"
	CriterionBedrooms     Criterion = "bedrooms"
	CriterionBathrooms    Criterion = "bathrooms"
	CriterionArea         Criterion = "area"
	CriterionPropertyType Criterion = "property_type"
	CriterionListingType  Criterion = "listing_type"
	CriterionAmenities    Criterion = "amenities"
)

// Criteria lists every known criterion in a stable order.
var Criteria = []Criterion{
	CriterionLocation,
	CriterionPrice,
	CriterionBedrooms,
	CriterionBathrooms,
	CriterionArea,
	CriterionPropertyType,
	CriterionListingType,
	CriterionAmenities,
}

// MaxCriterionWeight bounds a single criterion weight.
const MaxCriterionWeight = 50

// Weights maps criteria to their advisory scoring weight (0..50). Profiles
// need not cover every criterion; the engine normalizes by the sum of
// applicable weights.
type Weights map[Criterion]int

// WeightProfile is a named, reusable weight set.
type WeightProfile struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Weights   Weights `json:"weights"`
	IsDefault bool    `json:"is_default"`
}

type FeedbackKind string

const (
	FeedbackFavorite FeedbackKind = "favorite"
	FeedbackRejected FeedbackKind = "rejected"
)

// FeedbackRecord is a client's signal on a listing. One record per
// (client, property) pair, last write wins.
type FeedbackRecord struct {
	ClientID   string       `json:"client_id"`
	PropertyID string       `json:"property_id"`
	Kind       FeedbackKind `json:"kind"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type ClientResponse string

const (
	ResponsePending     ClientResponse = "pending"
	ResponseSaved       ClientResponse = "saved"
	ResponseInterested  ClientResponse = "interested"
	ResponseVisited     ClientResponse = "visited"
	ResponseNegotiating ClientResponse = "negotiating"
	ResponseClosed      ClientResponse = "closed"
	ResponseRejected    ClientResponse = "rejected"
)

// ClientResponses lists the valid response states.
var ClientResponses = []ClientResponse{
	ResponsePending,
	ResponseSaved,
	ResponseInterested,
	ResponseVisited,
	ResponseNegotiating,
	ResponseClosed,
	ResponseRejected,
}

func (r ClientResponse) Valid() bool {
	for _, known := range ClientResponses {
		if r == known {
			return true
		}
	}
	return false
}

type CompatibilityLevel string

const (
	CompatibilityExcellent CompatibilityLevel = "excellent"
	CompatibilityGood      CompatibilityLevel = "good"
	CompatibilityModerate  CompatibilityLevel = "moderate"
)

// CompatibilityFor buckets a match score into a level.
func CompatibilityFor(score int) CompatibilityLevel {
	switch {
	case score >= 80:
		return CompatibilityExcellent
	case score >= 60:
		return CompatibilityGood
	default:
		return CompatibilityModerate
	}
}

// SentMatch is a dispatch ledger entry: one listing shown, sent or saved for
// a client, with the client's response state.
type SentMatch struct {
	ID             string             `json:"id"`
	ClientID       string             `json:"client_id"`
	PropertyID     string             `json:"property_id"`
	MatchScore     int                `json:"match_score"`
	Compatibility  CompatibilityLevel `json:"compatibility"`
	Channel        string             `json:"channel,omitempty"`
	SentAt         time.Time          `json:"sent_at"`
	SentBy         string             `json:"sent_by,omitempty"`
	ClientResponse ClientResponse     `json:"client_response"`
}

// Saved reports whether the entry is a save-for-later rather than a true
// send. Saved entries stay re-sendable.
func (m SentMatch) Saved() bool { return m.ClientResponse == ResponseSaved }

type AlertFrequency string

const (
	AlertInstant AlertFrequency = "instant"
	AlertDaily   AlertFrequency = "daily"
	AlertWeekly  AlertFrequency = "weekly"
)

func (f AlertFrequency) Valid() bool {
	return f == AlertInstant || f == AlertDaily || f == AlertWeekly
}

// SavedSearch is a persisted requirement profile with alert preferences,
// consumed read-only by an external scheduler.
type SavedSearch struct {
	ID             string             `json:"id"`
	ClientID       string             `json:"client_id"`
	Name           string             `json:"name"`
	Criteria       RequirementProfile `json:"criteria"`
	AlertsEnabled  bool               `json:"alerts_enabled"`
	AlertFrequency AlertFrequency     `json:"alert_frequency"`
	CreatedAt      time.Time          `json:"created_at"`
}

// MatchResult pairs a listing with its compatibility score. Reason is only
// populated by the AI ranking path.
type MatchResult struct {
	Listing Listing `json:"listing"`
	Score   int     `json:"score"`
	Reason  string  `json:"reason,omitempty"`
}
