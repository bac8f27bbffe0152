package metrics

import "strings"

// CacheStats summarizes hit/miss counters sharing a cache name, e.g. the
// video handler's metadata cache (cache → API → oembed) or the embedding
// cache.
type CacheStats struct {
	Name    string  `json:"name"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// HistogramStats summarizes an observed distribution without re-deriving
// per-bucket cumulative math on every read.
type HistogramStats struct {
	Name  string  `json:"name"`
	Count uint64  `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
}

// Snapshot is a point-in-time summary of the registry, cheap enough to
// attach to a trace or a status endpoint without rendering the full
// Prometheus text body.
type Snapshot struct {
	Counters   map[string]int64 `json:"counters"`
	Gauges     map[string]int64 `json:"gauges"`
	Histograms []HistogramStats `json:"histograms"`
	Caches     []CacheStats     `json:"caches"`
}

// cacheHitSuffix/cacheMissSuffix name the counter-naming convention a cache
// must follow for Snapshot to pick it up: "<cache>_hits_total" and
// "<cache>_misses_total".
const (
	cacheHitSuffix  = "_hits_total"
	cacheMissSuffix = "_misses_total"
)

// Snapshot collects every registered counter, gauge, and histogram into a
// single summary object, and derives a hit-rate entry for every counter pair
// following the "<cache>_hits_total" / "<cache>_misses_total" convention.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Counters: make(map[string]int64, len(r.counters)),
		Gauges:   make(map[string]int64, len(r.gauges)),
	}
	for name, c := range r.counters {
		snap.Counters[name] = c.Value()
	}
	for name, g := range r.gauges {
		snap.Gauges[name] = g.Value()
	}
	for name, h := range r.histograms {
		_, _, sum, count := h.snapshot()
		mean := 0.0
		if count > 0 {
			mean = sum / float64(count)
		}
		snap.Histograms = append(snap.Histograms, HistogramStats{
			Name: name, Count: count, Sum: sum, Mean: mean,
		})
	}

	for name, hits := range r.counters {
		base, ok := strings.CutSuffix(name, cacheHitSuffix)
		if !ok {
			continue
		}
		missName := base + cacheMissSuffix
		misses, ok := r.counters[missName]
		if !ok {
			continue
		}
		h, m := hits.Value(), misses.Value()
		total := h + m
		rate := 0.0
		if total > 0 {
			rate = float64(h) / float64(total)
		}
		snap.Caches = append(snap.Caches, CacheStats{
			Name: base, Hits: h, Misses: m, HitRate: rate,
		})
	}

	return snap
}
