package scoring

import (
	"math"
	"strings"

	"github.com/marciobastos-droid/propmatch/internal/domain"
)

const (
	featuredBonus = 5
	favoriteBonus = 10

	// Defaults when the profile carries no usable criterion.
	neutralScore          = 50
	neutralFavoritedScore = 80
)

// DefaultWeights is the hard-coded fallback used when the caller supplies no
// weight profile.
func DefaultWeights() domain.Weights {
	return domain.Weights{
		domain.CriterionLocation:     20,
		domain.CriterionPrice:        15,
		domain.CriterionBedrooms:     25,
		domain.CriterionBathrooms:    5,
		domain.CriterionArea:         5,
		domain.CriterionPropertyType: 10,
		domain.CriterionListingType:  15,
		domain.CriterionAmenities:    5,
	}
}

// Score computes the 0..100 compatibility of a listing with a requirement
// profile. Criteria absent from the profile (or missing on the listing) are
// skipped: they contribute to neither the score nor the applicable maximum.
// Featured and favorite bonuses are added after normalization and the result
// is clamped to 100. The function is pure and deterministic.
func Score(listing domain.Listing, profile domain.RequirementProfile, weights domain.Weights, favorited bool) int {
	// Country is a hard veto, never weighted.
	if !profile.AllowsCountry(listing.Country) {
		return 0
	}

	if weights == nil {
		weights = DefaultWeights()
	}

	var score, maxScore float64

	credit := func(c domain.Criterion, fraction float64) {
		w := weights[c]
		if w <= 0 {
			return
		}
		if w > domain.MaxCriterionWeight {
			w = domain.MaxCriterionWeight
		}
		maxScore += float64(w)
		score += float64(w) * fraction
	}

	if len(profile.Locations) > 0 {
		credit(domain.CriterionLocation, locationCredit(profile.Locations, listing.City))
	}

	if profile.ListingType != "" {
		fraction := 0.0
		if profile.ListingType == domain.ListingBoth || profile.ListingType == listing.ListingType {
			fraction = 1
		}
		credit(domain.CriterionListingType, fraction)
	}

	if profile.BudgetMin != nil || profile.BudgetMax != nil {
		credit(domain.CriterionPrice, priceCredit(listing.Price, profile.BudgetMin, profile.BudgetMax))
	}

	if (profile.BedroomsMin != nil || profile.BedroomsMax != nil) && listing.Bedrooms != nil {
		credit(domain.CriterionBedrooms, bedroomsCredit(*listing.Bedrooms, profile.BedroomsMin, profile.BedroomsMax))
	}

	if profile.BathroomsMin != nil && listing.Bathrooms != nil {
		credit(domain.CriterionBathrooms, bathroomsCredit(*listing.Bathrooms, *profile.BathroomsMin))
	}

	if (profile.AreaMin != nil || profile.AreaMax != nil) && listing.Area != nil {
		credit(domain.CriterionArea, areaCredit(*listing.Area, profile.AreaMin, profile.AreaMax))
	}

	if len(profile.PropertyTypes) > 0 && listing.PropertyType != "" {
		fraction := 0.0
		for _, t := range profile.PropertyTypes {
			if t == listing.PropertyType {
				fraction = 1
				break
			}
		}
		credit(domain.CriterionPropertyType, fraction)
	}

	if len(profile.DesiredAmenities) > 0 {
		credit(domain.CriterionAmenities, amenitiesCredit(profile.DesiredAmenities, listing.Amenities))
	}

	if maxScore <= 0 {
		if favorited {
			return neutralFavoritedScore
		}
		return neutralScore
	}

	result := 100 * score / maxScore
	if listing.Featured {
		result += featuredBonus
	}
	if favorited {
		result += favoriteBonus
	}

	return int(math.Round(math.Min(100, result)))
}

// locationCredit grants full credit when any requested location is a
// case-insensitive substring of the city or vice-versa.
func locationCredit(locations []string, city string) float64 {
	c := strings.ToLower(strings.TrimSpace(city))
	if c == "" {
		return 0
	}
	for _, loc := range locations {
		l := strings.ToLower(strings.TrimSpace(loc))
		if l == "" {
			continue
		}
		if strings.Contains(c, l) || strings.Contains(l, c) {
			return 1
		}
	}
	return 0
}

// priceCredit grades distance from the budget band: inside the band is full
// credit, within 15% outside it 0.6, within 30% outside it 0.3, else zero.
// A missing bound is treated as 0 / unbounded.
func priceCredit(price float64, budgetMin, budgetMax *float64) float64 {
	lo := 0.0
	hi := math.Inf(1)
	if budgetMin != nil {
		lo = *budgetMin
	}
	if budgetMax != nil {
		hi = *budgetMax
	}

	switch {
	case price >= lo && price <= hi:
		return 1
	case price >= lo*0.85 && price <= hi*1.15:
		return 0.6
	case price >= lo*0.70 && price <= hi*1.30:
		return 0.3
	default:
		return 0
	}
}

func bedroomsCredit(bedrooms int, min, max *int) float64 {
	lo := 0
	hi := math.MaxInt
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}

	switch {
	case bedrooms >= lo && bedrooms <= hi:
		return 1
	case bedrooms == lo-1 || (hi < math.MaxInt && bedrooms == hi+1):
		return 0.5
	default:
		return 0
	}
}

func bathroomsCredit(bathrooms, min int) float64 {
	switch {
	case bathrooms >= min:
		return 1
	case bathrooms == min-1:
		return 0.5
	default:
		return 0
	}
}

func areaCredit(area float64, min, max *float64) float64 {
	lo := 0.0
	hi := math.Inf(1)
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}

	switch {
	case area >= lo && area <= hi:
		return 1
	case area >= lo*0.85:
		return 0.5
	default:
		return 0
	}
}

// amenitiesCredit scales credit by the share of desired amenities present on
// the listing, matching each by case-insensitive substring.
func amenitiesCredit(desired, available []string) float64 {
	requested := 0
	matched := 0

	for _, want := range desired {
		w := strings.ToLower(strings.TrimSpace(want))
		if w == "" {
			continue
		}
		requested++
		for _, have := range available {
			h := strings.ToLower(strings.TrimSpace(have))
			if h == "" {
				continue
			}
			if strings.Contains(h, w) || strings.Contains(w, h) {
				matched++
				break
			}
		}
	}

	if requested == 0 {
		return 0
	}
	return float64(matched) / float64(requested)
}
