package severity

import "math"

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// recencyFromHours mirrors the blast-radius recency curve: 1 at 0h,
// linearly down to 0 at 72h+.
func recencyFromHours(hours float64) float64 {
	if hours < 0 {
		hours = 0
	}
	return clamp01(1 - hours/72)
}

// ChatFeatures is the 7-day chat activity snapshot for a set of channels.
type ChatFeatures struct {
	Messages           int
	Threads            int
	Authors            int
	MaxWeight          float64
	AvgWeight          float64
	HoursSinceLastSeen float64
	CriticalChannel    bool
	LabelCount         int
}

// ChatAxis scores 0-1 per spec §4.8: log-composed signal, clamped to
// ≤0.15 when there are zero messages in the window.
func ChatAxis(f ChatFeatures) float64 {
	sum := 0.3*math.Log1p(float64(f.Messages)) +
		0.2*math.Log1p(float64(f.Threads)) +
		0.2*math.Log1p(float64(f.Authors)) +
		0.2*recencyFromHours(f.HoursSinceLastSeen) +
		0.1*f.AvgWeight
	if f.CriticalChannel {
		sum += 0.1
	}
	score := clamp01(sum / 4)
	if f.Messages == 0 {
		score = minF(score, 0.15)
	}
	return score
}

// SCMFeatures is the 7-day SCM activity snapshot for a set of components.
type SCMFeatures struct {
	PRs                 int
	Commits             int
	Issues              int
	DocChanges          int
	BreakingLabelCount  int
	MaxWeight           float64
	HoursSinceLastSeen  float64
}

// SCMAxis scores 0-1: zero when the window has no PRs, commits, or
// issues, otherwise a log-composed blend analogous to ChatAxis. The exact
// term weights are not given in the source spec beyond "similarly
// log-composed"; these were chosen to sum to 1.0 across seven terms.
func SCMAxis(f SCMFeatures) float64 {
	if f.PRs == 0 && f.Commits == 0 && f.Issues == 0 {
		return 0
	}
	sum := 0.3*math.Log1p(float64(f.PRs)) +
		0.25*math.Log1p(float64(f.Commits)) +
		0.1*math.Log1p(float64(f.Issues)) +
		0.1*minF(float64(f.DocChanges)/5, 1) +
		0.1*(minF(float64(f.BreakingLabelCount), 3)/3) +
		0.1*f.MaxWeight +
		0.05*recencyFromHours(f.HoursSinceLastSeen)
	return clamp01(sum)
}

// severityEnumScore maps a severity/impact enum string to its 0-1 weight.
func severityEnumScore(level string) float64 {
	switch level {
	case "critical":
		return 1.0
	case "high":
		return 0.85
	case "medium":
		return 0.6
	case "low":
		return 0.3
	default:
		return 0
	}
}

// DocFeatures is the doc-issue's own declared severity signal.
type DocFeatures struct {
	BaseSeverity      string // low, medium, high, critical
	ImpactLevel       string // low, medium, high, critical
	HoursSinceUpdated float64
	ComponentCount    int
	HasCriticalLabel  bool
}

// DocAxis scores 0-1 exactly per spec §4.8.
func DocAxis(f DocFeatures) float64 {
	base := severityEnumScore(f.BaseSeverity)
	impact := severityEnumScore(f.ImpactLevel)
	score := 0.4*(0.7*base+0.3*impact) +
		0.3*minF(float64(f.ComponentCount)/4, 1) +
		0.3*recencyFromHours(f.HoursSinceUpdated)
	if f.HasCriticalLabel {
		score += 0.1
	}
	return clamp01(score)
}

// GraphFeatures is the structural/activity snapshot around the affected
// components.
type GraphFeatures struct {
	Components         int
	Docs                int
	Services            int
	RelatedDocIssues    int
	ChatSignals7d       int
	SCMSignals7d        int
	SupportCases        int
	DownstreamComponents int
}

// GraphAxis scores 0-1 per spec §4.8: blast/activity/related sub-scores
// blended 0.5/0.3/0.2. The sub-score normalizers aren't given in the
// source spec; chosen so a moderately-connected component (4 components,
// 5 activity signals, 2 related items) lands near 0.5.
func GraphAxis(f GraphFeatures) float64 {
	blast := minF(float64(f.Components+f.Services+f.DownstreamComponents)/8, 1)
	activity := minF(float64(f.ChatSignals7d+f.SCMSignals7d)/10, 1)
	related := minF(float64(f.RelatedDocIssues+f.SupportCases)/5, 1)
	return clamp01(0.5*blast + 0.3*activity + 0.2*related)
}

// SemanticAxis scores 0-1: weighted mean of (1 - similarity) drift across
// configured pairs.
func SemanticAxis(pairs []SemanticPairResult) float64 {
	var num, den float64
	for _, p := range pairs {
		drift := 1 - p.Similarity
		num += p.Weight * drift
		den += p.Weight
	}
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}
