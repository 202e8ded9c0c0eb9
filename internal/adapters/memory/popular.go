package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/gearshare/location-api/internal/core/domain"
)

type popularEntry struct {
	option domain.LocationOption
	count  int
}

// PopularLocations implements ports.PopularLocationRepository in memory.
type PopularLocations struct {
	mu      sync.RWMutex
	entries map[string]*popularEntry
}

// NewPopularLocations creates an empty aggregator.
func NewPopularLocations() *PopularLocations {
	return &PopularLocations{entries: make(map[string]*popularEntry)}
}

// TopSearched returns the most frequently searched locations, busiest first.
func (p *PopularLocations) TopSearched(ctx context.Context, limit int) ([]domain.LocationOption, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]*popularEntry, 0, len(p.entries))
	for _, e := range p.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].option.DisplayName < all[j].option.DisplayName
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	opts := make([]domain.LocationOption, len(all))
	for i, e := range all {
		opts[i] = e.option
		opts[i].Source = domain.SourceDatabaseFrequency
	}
	return opts, nil
}

// RecordSearch bumps the frequency counter for the event's top result.
func (p *PopularLocations) RecordSearch(ctx context.Context, ev *domain.SearchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := ev.Option.DisplayName
	if e, ok := p.entries[key]; ok {
		e.count++
		e.option = ev.Option
		return nil
	}
	p.entries[key] = &popularEntry{option: ev.Option, count: 1}
	return nil
}
