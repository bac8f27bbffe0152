package severity

import (
	"context"
	"strings"
	"time"
)

// criticalLabels flag a doc issue as carrying a critical label, reusing
// the dissatisfaction/breaking-label convention from engine/modality/scm.go.
var criticalLabels = map[string]bool{
	"critical": true, "sev1": true, "p0": true, "urgent": true,
}

func hasCriticalLabel(labels []string) bool {
	for _, l := range labels {
		if criticalLabels[strings.ToLower(l)] {
			return true
		}
	}
	return false
}

// Config is the Severity Engine's declarative configuration.
type Config struct {
	Weights          Weights
	CriticalChannels map[string]bool
	SemanticPairs    []PairConfig
}

// Engine computes a Severity Payload for a doc-issue subject by
// extracting per-axis features and blending them per config.Weights.
type Engine struct {
	cfg      Config
	chat     ChatFeatureSource
	scm      SCMFeatureSource
	graphSrc GraphFeatureSource
	semantic SemanticFeatureSource
	now      func() time.Time
}

// New builds a Severity Engine over the given feature sources.
func New(cfg Config, chat ChatFeatureSource, scm SCMFeatureSource, g GraphFeatureSource, sem SemanticFeatureSource) *Engine {
	return &Engine{cfg: cfg, chat: chat, scm: scm, graphSrc: g, semantic: sem, now: time.Now}
}

// Score computes the full Severity Payload for subject.
func (e *Engine) Score(ctx context.Context, subject Subject) (Payload, error) {
	now := e.now()
	since7d := now.Add(-7 * 24 * time.Hour)

	chatFeatures, _ := e.chat.ChatFeatures(ctx, subject.ChatChannels, since7d, e.criticalChannels(subject))
	scmFeatures, _ := e.scm.SCMFeatures(ctx, subject.Components, since7d)
	graphFeatures, _ := e.graphSrc.GraphFeatures(ctx, subject.Components, since7d)
	pairs, _ := e.semantic.SemanticPairs(ctx, subject.QueryText)

	docFeatures := DocFeatures{
		BaseSeverity:      subject.BaseSeverity,
		ImpactLevel:       subject.ImpactLevel,
		HoursSinceUpdated: now.Sub(subject.UpdatedAt).Hours(),
		ComponentCount:    len(subject.Components),
		HasCriticalLabel:  hasCriticalLabel(subject.Labels),
	}

	axisScores := map[string]float64{
		AxisChat:     ChatAxis(chatFeatures),
		AxisSCM:      SCMAxis(scmFeatures),
		AxisDoc:      DocAxis(docFeatures),
		AxisGraph:    GraphAxis(graphFeatures),
		AxisSemantic: SemanticAxis(pairs),
	}

	weights := e.cfg.Weights.asMap()
	contributions := make(map[string]float64, len(axisScores))
	var blend float64
	for axis, score := range axisScores {
		c := weights[axis] * score
		contributions[axis] = c
		blend += c
	}

	// syntactic and relationship are reported alongside the blend inputs
	// but don't carry their own weight: syntactic is the average of the
	// chat/scm/doc heuristics, relationship mirrors the graph axis.
	breakdown := make(map[string]float64, len(axisScores)+2)
	for axis, score := range axisScores {
		breakdown[axis] = score
	}
	breakdown[AxisSyntactic] = (axisScores[AxisChat] + axisScores[AxisSCM] + axisScores[AxisDoc]) / 3
	breakdown[AxisRelationship] = axisScores[AxisGraph]

	scorePct := blend * 100
	payload := Payload{
		Score:      scorePct,
		Score0to10: scorePct / 10,
		Label:      LabelFor(scorePct),
		Breakdown:  breakdown,
		Details: map[string]any{
			AxisChat:     chatFeatures,
			AxisSCM:      scmFeatures,
			AxisDoc:      docFeatures,
			AxisGraph:    graphFeatures,
			AxisSemantic: pairs,
		},
		Contributions: contributions,
		Weights:       weights,
		SemanticPairs: pairs,
		Explanation:   explain(axisScores, weights, contributions, blend),
	}
	return payload, nil
}

func (e *Engine) criticalChannels(subject Subject) map[string]bool {
	if subject.CriticalChannels != nil {
		return subject.CriticalChannels
	}
	return e.cfg.CriticalChannels
}

func explain(scores, weights, contributions map[string]float64, final float64) Explanation {
	axes := []string{AxisChat, AxisSCM, AxisDoc, AxisGraph, AxisSemantic}
	terms := make([]ExplanationTerm, 0, len(axes))
	for _, axis := range axes {
		terms = append(terms, ExplanationTerm{
			Axis: axis, Score: scores[axis], Weight: weights[axis], Contribution: contributions[axis],
		})
	}
	return Explanation{
		Formula: "score = 100 * sum(weight[axis] * axis_score[axis])",
		Terms:   terms,
		Final:   final,
	}
}
