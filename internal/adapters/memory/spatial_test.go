package memory

import (
	"context"
	"testing"

	"github.com/gearshare/location-api/internal/core/domain"
)

func seedIndex(t *testing.T) *ListingIndex {
	t.Helper()
	idx := NewListingIndex()
	ctx := context.Background()
	listings := []domain.Listing{
		{ID: "t1", Kind: domain.KindTool, Name: "Drill", Location: domain.GeoPoint{Lat: 40.00, Lon: -83.00}},
		{ID: "t2", Kind: domain.KindTool, Name: "Saw", Location: domain.GeoPoint{Lat: 40.05, Lon: -83.05}},
		{ID: "t3", Kind: domain.KindTool, Name: "Ladder", Location: domain.GeoPoint{Lat: 41.00, Lon: -84.00}},
		{ID: "b1", Kind: domain.KindBundle, Name: "Deck Kit", Location: domain.GeoPoint{Lat: 40.01, Lon: -83.01}},
	}
	for i := range listings {
		if err := idx.Upsert(ctx, &listings[i]); err != nil {
			t.Fatalf("upsert %s: %v", listings[i].ID, err)
		}
	}
	return idx
}

func TestListingIndex_FindInBoundsFiltersKindAndBox(t *testing.T) {
	idx := seedIndex(t)
	b := domain.Bounds{MinLat: 39.9, MinLon: -83.1, MaxLat: 40.1, MaxLon: -82.9}

	tools, err := idx.FindInBounds(context.Background(), domain.KindTool, b, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools in box, got %d", len(tools))
	}
	for _, l := range tools {
		if l.Kind != domain.KindTool {
			t.Errorf("bundle leaked into tool query: %+v", l)
		}
		if l.ID == "t3" {
			t.Error("listing outside the box was returned")
		}
	}

	bundles, err := idx.FindInBounds(context.Background(), domain.KindBundle, b, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bundles) != 1 || bundles[0].ID != "b1" {
		t.Fatalf("unexpected bundles: %+v", bundles)
	}
}

func TestListingIndex_UpsertReplaces(t *testing.T) {
	idx := seedIndex(t)
	ctx := context.Background()

	moved := domain.Listing{ID: "t1", Kind: domain.KindTool, Name: "Drill", Location: domain.GeoPoint{Lat: 45.0, Lon: -90.0}}
	if err := idx.Upsert(ctx, &moved); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if idx.Len() != 4 {
		t.Fatalf("expected 4 indexed listings after replace, got %d", idx.Len())
	}

	oldBox := domain.Bounds{MinLat: 39.99, MinLon: -83.01, MaxLat: 40.01, MaxLon: -82.99}
	tools, err := idx.FindInBounds(ctx, domain.KindTool, oldBox, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, l := range tools {
		if l.ID == "t1" {
			t.Fatal("stale index entry at old location")
		}
	}

	newBox := domain.Bounds{MinLat: 44.9, MinLon: -90.1, MaxLat: 45.1, MaxLon: -89.9}
	tools, err = idx.FindInBounds(ctx, domain.KindTool, newBox, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 1 || tools[0].ID != "t1" {
		t.Fatalf("moved listing not found at new location: %+v", tools)
	}
}

func TestListingIndex_LimitHonored(t *testing.T) {
	idx := seedIndex(t)
	b := domain.Bounds{MinLat: 39.0, MinLon: -85.0, MaxLat: 42.0, MaxLon: -82.0}

	tools, err := idx.FindInBounds(context.Background(), domain.KindTool, b, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(tools))
	}
}

func TestPopularLocations_OrderAndDedup(t *testing.T) {
	p := NewPopularLocations()
	ctx := context.Background()

	athens := domain.LocationOption{DisplayName: "Athens, GA", Lat: 33.95, Lon: -83.38}
	columbus := domain.LocationOption{DisplayName: "Columbus, OH", Lat: 39.96, Lon: -83.0}

	for i := 0; i < 3; i++ {
		_ = p.RecordSearch(ctx, &domain.SearchEvent{Option: athens})
	}
	_ = p.RecordSearch(ctx, &domain.SearchEvent{Option: columbus})

	top, err := p.TopSearched(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].DisplayName != "Athens, GA" {
		t.Errorf("busiest first: got %q", top[0].DisplayName)
	}
	if top[0].Source != domain.SourceDatabaseFrequency {
		t.Errorf("source = %q, want database-frequency", top[0].Source)
	}
}
