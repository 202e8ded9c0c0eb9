// Package memory provides an in-process ListingRepository backed by an
// R-tree. Used in development and tests where PostGIS is not available.
package memory

import (
	"context"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/gearshare/location-api/internal/core/domain"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50

	// tolerance turns a point into a tiny rect for indexing.
	tolerance = 1e-6
)

type spatialItem struct {
	listing domain.Listing
	rect    *rtreego.Rect
}

func (si *spatialItem) Bounds() *rtreego.Rect {
	return si.rect
}

// ListingIndex implements ports.ListingRepository over an rtreego tree.
// One tree holds both kinds; FindInBounds filters by kind after the
// intersection query.
type ListingIndex struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
	byID map[string]*spatialItem
}

// NewListingIndex creates an empty index.
func NewListingIndex() *ListingIndex {
	return &ListingIndex{
		tree: rtreego.NewTree(dimensions, minChildren, maxChildren),
		byID: make(map[string]*spatialItem),
	}
}

// Upsert inserts a listing, replacing any previous entry with the same ID.
func (x *ListingIndex) Upsert(ctx context.Context, l *domain.Listing) error {
	point := rtreego.Point{l.Location.Lat, l.Location.Lon}
	item := &spatialItem{listing: *l, rect: point.ToRect(tolerance)}

	x.mu.Lock()
	defer x.mu.Unlock()
	if prev, ok := x.byID[l.ID]; ok {
		x.tree.Delete(prev)
	}
	x.tree.Insert(item)
	x.byID[l.ID] = item
	return nil
}

// FindInBounds returns listings of the given kind inside the bounding box.
func (x *ListingIndex) FindInBounds(ctx context.Context, kind domain.ListingKind, b domain.Bounds, limit int) ([]domain.Listing, error) {
	bounds, err := rtreego.NewRect(
		rtreego.Point{b.MinLat, b.MinLon},
		[]float64{b.MaxLat - b.MinLat, b.MaxLon - b.MinLon},
	)
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var listings []domain.Listing
	for _, hit := range x.tree.SearchIntersect(bounds) {
		item, ok := hit.(*spatialItem)
		if !ok || item.listing.Kind != kind {
			continue
		}
		listings = append(listings, item.listing)
		if limit > 0 && len(listings) >= limit {
			break
		}
	}
	return listings, nil
}

// Len reports how many listings are indexed.
func (x *ListingIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byID)
}
