package metrics

import "testing"

func TestSnapshotIncludesCountersGaugesHistograms(t *testing.T) {
	r := New()
	r.Counter("requests_total", "").Add(10)
	r.Gauge("active_connections", "").Set(5)
	h := r.Histogram("latency_seconds", "", []float64{0.1, 0.5})
	h.Observe(0.05)
	h.Observe(0.2)

	snap := r.Snapshot()

	if snap.Counters["requests_total"] != 10 {
		t.Fatalf("expected counter 10, got %d", snap.Counters["requests_total"])
	}
	if snap.Gauges["active_connections"] != 5 {
		t.Fatalf("expected gauge 5, got %d", snap.Gauges["active_connections"])
	}
	if len(snap.Histograms) != 1 {
		t.Fatalf("expected 1 histogram, got %d", len(snap.Histograms))
	}
	hs := snap.Histograms[0]
	if hs.Count != 2 {
		t.Fatalf("expected count 2, got %d", hs.Count)
	}
	if hs.Mean != (0.05+0.2)/2 {
		t.Fatalf("expected mean %v, got %v", (0.05+0.2)/2, hs.Mean)
	}
}

func TestSnapshotDerivesCacheHitRate(t *testing.T) {
	r := New()
	r.Counter("video_metadata_hits_total", "").Add(8)
	r.Counter("video_metadata_misses_total", "").Add(2)

	snap := r.Snapshot()

	if len(snap.Caches) != 1 {
		t.Fatalf("expected 1 cache entry, got %d: %+v", len(snap.Caches), snap.Caches)
	}
	c := snap.Caches[0]
	if c.Name != "video_metadata" {
		t.Fatalf("expected cache name 'video_metadata', got %q", c.Name)
	}
	if c.HitRate != 0.8 {
		t.Fatalf("expected hit rate 0.8, got %v", c.HitRate)
	}
}

func TestSnapshotSkipsUnpairedHitCounter(t *testing.T) {
	r := New()
	r.Counter("orphan_hits_total", "").Add(5)

	snap := r.Snapshot()

	if len(snap.Caches) != 0 {
		t.Fatalf("expected no cache entries without a matching misses counter, got %+v", snap.Caches)
	}
}

func TestSnapshotZeroTotalHasZeroRate(t *testing.T) {
	r := New()
	r.Counter("idle_hits_total", "")
	r.Counter("idle_misses_total", "")

	snap := r.Snapshot()

	if len(snap.Caches) != 1 || snap.Caches[0].HitRate != 0 {
		t.Fatalf("expected zero rate for a cache with no activity, got %+v", snap.Caches)
	}
}
