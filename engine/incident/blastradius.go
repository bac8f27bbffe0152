package incident

import "strings"

// sourceTrust is the fixed per-source-type trust lookup per spec §4.9.
var sourceTrust = map[string]float64{
	"scm": 1.0, "doc": 0.9, "issue": 0.85, "chat": 0.7, "graph": 0.65,
}

func trustFor(source string) float64 {
	if v, ok := sourceTrust[strings.ToLower(source)]; ok {
		return v
	}
	return 0.5 // unknown
}

// minF caps a to b.
func minF(a, b float64) float64 {
	if a > b {
		return b
	}
	return a
}

// blastRadiusInputs is the count/recency snapshot blastRadius blends.
type blastRadiusInputs struct {
	distinctSourceTypes []string
	components          int
	docs                int
	issues              int
	chatAndSCMEvidence  int
	avgFreshnessScore   float64 // 1 at 0h average age, 0 at 72h+
}

// blastRadius computes the 0-100 score and its severity label per spec
// §4.9's three-component formula: trust (capped 40) + scope (capped 35)
// + recency (capped 25).
func blastRadius(in blastRadiusInputs) (score float64, label string) {
	var trustSum float64
	for _, src := range in.distinctSourceTypes {
		trustSum += trustFor(src) * 8
	}
	trust := minF(trustSum, 40)

	scope := minF(
		6*float64(in.components)+4*float64(in.docs)+5*float64(in.issues)+3*float64(in.chatAndSCMEvidence),
		35,
	)

	recency := in.avgFreshnessScore * 25
	if recency > 25 {
		recency = 25
	}
	if recency < 0 {
		recency = 0
	}

	score = trust + scope + recency
	return score, labelForBlastScore(score)
}

func labelForBlastScore(score float64) string {
	switch {
	case score >= 80:
		return "critical"
	case score >= 60:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

// freshnessScore maps an age in hours to the 1-at-0h/0-at-72h+ curve used
// by both the blast-radius recency term and the severity engine's axes.
func freshnessScore(hours float64) float64 {
	if hours <= 0 {
		return 1
	}
	if hours >= 72 {
		return 0
	}
	return 1 - hours/72
}
