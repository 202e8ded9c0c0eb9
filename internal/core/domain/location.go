package domain

import (
	"encoding/json"
	"time"
)

// LocationSource tags where a LocationOption came from.
type LocationSource string

const (
	SourceGeocoder          LocationSource = "geocoder"
	SourceDatabaseFrequency LocationSource = "database-frequency"
	SourceMapClick          LocationSource = "map-click"
	SourceListing           LocationSource = "listing"
)

// LocationOption is a geocoding or proximity result offered to a caller.
// Its coordinates are either the requester's own input or the output of the
// privacy generalizer, never the raw stored coordinates of a third party.
type LocationOption struct {
	Lat         float64        `json:"latitude"`
	Lon         float64        `json:"longitude"`
	DisplayName string         `json:"displayName"`
	Source      LocationSource `json:"source"`
}

// PrivacyLevel controls how coarsely a location is revealed to others.
// Levels are ordered from most precise (Exact) to least precise (District).
type PrivacyLevel int

const (
	PrivacyExact PrivacyLevel = iota
	PrivacyNeighborhood
	PrivacyZipCode
	PrivacyDistrict
)

// GeneralizationRadiusMeters is the grid size used for both display jitter
// and the privacy circle shown to the requester about their own location.
func (p PrivacyLevel) GeneralizationRadiusMeters() float64 {
	switch p {
	case PrivacyNeighborhood:
		return 500
	case PrivacyZipCode:
		return 1500
	case PrivacyDistrict:
		return 5000
	default:
		return 100
	}
}

func (p PrivacyLevel) String() string {
	switch p {
	case PrivacyNeighborhood:
		return "neighborhood"
	case PrivacyZipCode:
		return "zipcode"
	case PrivacyDistrict:
		return "district"
	default:
		return "exact"
	}
}

// AccuracyLabel is the human-readable band attached to generalized coordinates.
func (p PrivacyLevel) AccuracyLabel() string {
	switch p {
	case PrivacyNeighborhood:
		return "within ~500 m"
	case PrivacyZipCode:
		return "within ~1.5 km"
	case PrivacyDistrict:
		return "within ~5 km"
	default:
		return "within ~100 m"
	}
}

// DistanceBand is a bucketed distance range used instead of an exact distance.
// Bands are ordered; a larger value never means a shorter distance.
type DistanceBand int

const (
	BandUnder1km DistanceBand = iota
	Band1to5km
	Band5to20km
	BandOver20km
)

func (b DistanceBand) String() string {
	switch b {
	case Band1to5km:
		return "1-5km"
	case Band5to20km:
		return "5-20km"
	case BandOver20km:
		return ">20km"
	default:
		return "<1km"
	}
}

// MarshalJSON serializes the band label, never a numeric distance.
func (b DistanceBand) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// ListingKind discriminates tools from bundles in the spatial store.
type ListingKind string

const (
	KindTool   ListingKind = "tool"
	KindBundle ListingKind = "bundle"
)

// Listing is a marketplace entity with a stored coordinate. Location is the
// raw owner coordinate and must never be serialized; it only feeds distance
// computation and the generalizer.
type Listing struct {
	ID               string       `json:"id"`
	Kind             ListingKind  `json:"kind"`
	Name             string       `json:"name"`
	OwnerDisplayName string       `json:"owner_display_name"`
	OwnerPrivacy     PrivacyLevel `json:"owner_privacy"`
	Location         GeoPoint     `json:"-"`
	Rating           float64      `json:"rating"`
}

// ProximityResult is a listing found within a search radius, reduced to what
// the caller is allowed to see: a distance band and a generalized location.
type ProximityResult struct {
	EntityID            string         `json:"entityId"`
	Name                string         `json:"name"`
	OwnerDisplayName    string         `json:"ownerDisplayName"`
	DistanceBand        DistanceBand   `json:"distanceBand"`
	ApproximateLocation LocationOption `json:"approximateLocation"`
}

// NearbyTool is the proximity DTO for tools.
type NearbyTool struct {
	ToolID              string         `json:"toolId"`
	Name                string         `json:"name"`
	OwnerDisplayName    string         `json:"ownerDisplayName"`
	DistanceBand        DistanceBand   `json:"distanceBand"`
	ApproximateLocation LocationOption `json:"approximateLocation"`
}

// NearbyBundle is the proximity DTO for bundles.
type NearbyBundle struct {
	BundleID            string         `json:"bundleId"`
	Name                string         `json:"name"`
	OwnerDisplayName    string         `json:"ownerDisplayName"`
	DistanceBand        DistanceBand   `json:"distanceBand"`
	ApproximateLocation LocationOption `json:"approximateLocation"`
}

// SearchEvent records a successful forward geocode for frequency analysis.
type SearchEvent struct {
	Query  string         `json:"query"`
	Option LocationOption `json:"option"`
	At     time.Time      `json:"at"`
}

// AbuseEvent records a throttling or suspicious-pattern decision for
// server-side analysis. It is never returned to the caller.
type AbuseEvent struct {
	Identity string    `json:"identity"`
	Op       string    `json:"op"`
	Reason   string    `json:"reason"` // "rate_limit" | "suspicious_pattern"
	Query    string    `json:"query,omitempty"`
	Center   *GeoPoint `json:"center,omitempty"`
	RadiusKm float64   `json:"radius_km,omitempty"`
	At       time.Time `json:"at"`
}
