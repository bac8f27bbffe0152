package incident

import "time"

// averageFreshness returns the mean freshnessScore (1 at 0h, 0 at 72h+)
// across every evidence item's timestamp metadata. Evidence without a
// parseable timestamp is excluded; an evidence set with none yields 0
// (treated as stale).
func averageFreshness(evidence []Evidence) float64 {
	now := time.Now()
	var sum float64
	var n int
	for _, ev := range evidence {
		ts, ok := evidenceTimestamp(ev)
		if !ok {
			continue
		}
		sum += freshnessScore(now.Sub(ts).Hours())
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func evidenceTimestamp(ev Evidence) (time.Time, bool) {
	raw, ok := ev.Metadata["timestamp"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case int64:
		return time.Unix(v, 0), true
	case float64:
		return time.Unix(int64(v), 0), true
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
