package memory

import (
	"math"
	"time"
)

// DecayPerDay is the geometric decay factor applied to salience_score for
// each full day since an entry's last access. 0.97/day halves salience in
// roughly 23 days absent any further access, which keeps stale facts
// fading out of recall without vanishing after a single missed day.
const DecayPerDay = 0.97

// decaySalience applies DecayPerDay raised to the number of elapsed days
// since lastAccessed, floored at MinSalience so an entry never decays below
// the data model's documented 0.1 floor.
func decaySalience(score float64, lastAccessed, now time.Time) float64 {
	days := now.Sub(lastAccessed).Hours() / 24
	if days <= 0 {
		return clampSalience(score)
	}
	decayed := score * math.Pow(DecayPerDay, days)
	return clampSalience(decayed)
}

func clampSalience(score float64) float64 {
	if score < MinSalience {
		return MinSalience
	}
	if score > MaxSalience {
		return MaxSalience
	}
	return score
}

// isExpired reports whether an entry's TTL has elapsed as of now. Entries
// without a TTLDays never expire by age.
func isExpired(e MemoryEntry, now time.Time) bool {
	if e.TTLDays == nil {
		return false
	}
	deadline := e.CreatedAt.AddDate(0, 0, *e.TTLDays)
	return now.After(deadline)
}
