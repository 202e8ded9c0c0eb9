package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/gearshare/location-api/internal/core/domain"
	"github.com/gearshare/location-api/internal/core/usecases"
)

// --- Mock ListingRepository ---

type mockListingRepo struct {
	findInBoundsFn func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error)
}

func (m *mockListingRepo) Upsert(ctx context.Context, l *domain.Listing) error { return nil }

func (m *mockListingRepo) FindInBounds(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
	if m.findInBoundsFn != nil {
		return m.findInBoundsFn(ctx, kind, b, limit)
	}
	return nil, nil
}

// Two tools near the test center (40.0, -83.0): one ~0.5 km north, one
// ~15 km north. 0.0045 degrees of latitude is ~500 m.
func centerFixtures() []domain.Listing {
	return []domain.Listing{
		{
			ID: "tool-far", Kind: domain.KindTool, Name: "Tile Saw",
			OwnerDisplayName: "Pat", OwnerPrivacy: domain.PrivacyNeighborhood,
			Location: domain.GeoPoint{Lat: 40.135, Lon: -83.0}, Rating: 4.9,
		},
		{
			ID: "tool-near", Kind: domain.KindTool, Name: "Pressure Washer",
			OwnerDisplayName: "Sam", OwnerPrivacy: domain.PrivacyNeighborhood,
			Location: domain.GeoPoint{Lat: 40.0045, Lon: -83.0}, Rating: 4.2,
		},
	}
}

func TestFindNearby_OrdersByBand(t *testing.T) {
	repo := &mockListingRepo{
		findInBoundsFn: func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
			return centerFixtures(), nil
		},
	}
	engine := usecases.NewProximityEngine(repo)

	results, err := engine.FindNearby(context.Background(), 40.0, -83.0, 20, domain.KindTool, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// The 0.5 km tool's band sorts before the 15 km tool's band, even though
	// the far tool has the higher rating.
	if results[0].EntityID != "tool-near" {
		t.Errorf("first result = %s, want tool-near", results[0].EntityID)
	}
	if results[0].DistanceBand != domain.BandUnder1km {
		t.Errorf("near band = %s, want <1km", results[0].DistanceBand)
	}
	if results[1].DistanceBand != domain.Band5to20km {
		t.Errorf("far band = %s, want 5-20km", results[1].DistanceBand)
	}
}

func TestFindNearby_SmallRadiusExcludesFarTool(t *testing.T) {
	repo := &mockListingRepo{
		findInBoundsFn: func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
			return centerFixtures(), nil
		},
	}
	engine := usecases.NewProximityEngine(repo)

	results, err := engine.FindNearby(context.Background(), 40.0, -83.0, 5, domain.KindTool, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].EntityID != "tool-near" {
		t.Errorf("result = %s, want tool-near", results[0].EntityID)
	}
}

func TestFindNearby_RadiusBounds(t *testing.T) {
	repo := &mockListingRepo{}
	engine := usecases.NewProximityEngine(repo)
	ctx := context.Background()

	for _, radius := range []float64{0, 0.5, 101, -3} {
		_, err := engine.FindNearby(ctx, 40.0, -83.0, radius, domain.KindTool, 10)
		if !errors.Is(err, domain.ErrInvalidRadius) {
			t.Errorf("radius %f: want ErrInvalidRadius, got %v", radius, err)
		}
	}
	for _, radius := range []float64{1, 100} {
		if _, err := engine.FindNearby(ctx, 40.0, -83.0, radius, domain.KindTool, 10); err != nil {
			t.Errorf("radius %f: unexpected error %v", radius, err)
		}
	}
}

func TestFindNearby_InvalidCoordinates(t *testing.T) {
	engine := usecases.NewProximityEngine(&mockListingRepo{
		findInBoundsFn: func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
			t.Fatal("store must not be queried for invalid input")
			return nil, nil
		},
	})

	_, err := engine.FindNearby(context.Background(), 1000, 0, 10, domain.KindTool, 10)
	if !errors.Is(err, domain.ErrInvalidCoordinates) {
		t.Fatalf("want ErrInvalidCoordinates, got %v", err)
	}
}

func TestFindNearby_EmptyAreaIsNotAnError(t *testing.T) {
	engine := usecases.NewProximityEngine(&mockListingRepo{})

	results, err := engine.FindNearby(context.Background(), 40.0, -83.0, 10, domain.KindTool, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %d", len(results))
	}
}

func TestFindNearby_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	engine := usecases.NewProximityEngine(&mockListingRepo{
		findInBoundsFn: func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
			return nil, storeErr
		},
	})

	_, err := engine.FindNearby(context.Background(), 40.0, -83.0, 10, domain.KindTool, 10)
	if !errors.Is(err, storeErr) {
		t.Fatalf("store failure must propagate, got %v", err)
	}
}

func TestFindNearby_TruncatesToMaxResults(t *testing.T) {
	listings := make([]domain.Listing, 30)
	for i := range listings {
		listings[i] = domain.Listing{
			ID: string(rune('a' + i)), Kind: domain.KindTool, Name: "Drill",
			Location: domain.GeoPoint{Lat: 40.0, Lon: -83.0},
		}
	}
	engine := usecases.NewProximityEngine(&mockListingRepo{
		findInBoundsFn: func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
			return listings, nil
		},
	})

	results, err := engine.FindNearby(context.Background(), 40.0, -83.0, 10, domain.KindTool, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
}

func TestFindNearby_TieBreakByRatingThenID(t *testing.T) {
	sameSpot := domain.GeoPoint{Lat: 40.001, Lon: -83.0}
	engine := usecases.NewProximityEngine(&mockListingRepo{
		findInBoundsFn: func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
			return []domain.Listing{
				{ID: "b", Kind: domain.KindTool, Name: "Sander", Location: sameSpot, Rating: 4.0},
				{ID: "a", Kind: domain.KindTool, Name: "Router", Location: sameSpot, Rating: 4.0},
				{ID: "c", Kind: domain.KindTool, Name: "Jointer", Location: sameSpot, Rating: 5.0},
			}, nil
		},
	})

	results, err := engine.FindNearby(context.Background(), 40.0, -83.0, 10, domain.KindTool, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []string{results[0].EntityID, results[1].EntityID, results[2].EntityID}
	want := []string{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFindNearby_NeverExposesRawCoordinates(t *testing.T) {
	raw := domain.GeoPoint{Lat: 40.0045123, Lon: -83.0001987}
	engine := usecases.NewProximityEngine(&mockListingRepo{
		findInBoundsFn: func(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
			return []domain.Listing{{
				ID: "t1", Kind: domain.KindTool, Name: "Ladder",
				OwnerPrivacy: domain.PrivacyNeighborhood, Location: raw,
			}}, nil
		},
	})

	results, err := engine.FindNearby(context.Background(), 40.0, -83.0, 10, domain.KindTool, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc := results[0].ApproximateLocation
	if loc.Lat == raw.Lat && loc.Lon == raw.Lon {
		t.Fatal("approximate location equals the raw stored coordinate")
	}

	// The serialized result carries a band label and no numeric distance.
	data, err := json.Marshal(results[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(data)
	if !strings.Contains(body, `"distanceBand":"<1km"`) {
		t.Errorf("band not serialized as label: %s", body)
	}
	if strings.Contains(body, "distanceMeters") || strings.Contains(body, `"distance":`) {
		t.Errorf("raw distance leaked: %s", body)
	}
}
