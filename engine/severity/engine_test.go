package severity

import (
	"context"
	"math"
	"testing"
	"time"
)

type fakeChatSource struct{ f ChatFeatures }

func (s fakeChatSource) ChatFeatures(context.Context, []string, time.Time, map[string]bool) (ChatFeatures, error) {
	return s.f, nil
}

type fakeSCMSource struct{ f SCMFeatures }

func (s fakeSCMSource) SCMFeatures(context.Context, []string, time.Time) (SCMFeatures, error) {
	return s.f, nil
}

type fakeGraphSource struct{ f GraphFeatures }

func (s fakeGraphSource) GraphFeatures(context.Context, []string, time.Time) (GraphFeatures, error) {
	return s.f, nil
}

type fakeSemanticSource struct{ pairs []SemanticPairResult }

func (s fakeSemanticSource) SemanticPairs(context.Context, string) ([]SemanticPairResult, error) {
	return s.pairs, nil
}

func TestScoreContributionsSumMatchesBlendWithinEpsilon(t *testing.T) {
	cfg := Config{Weights: Weights{Chat: 0.2, SCM: 0.25, Doc: 0.3, Graph: 0.15, Semantic: 0.1}}
	e := New(cfg,
		fakeChatSource{f: ChatFeatures{Messages: 10, Threads: 3, Authors: 4, AvgWeight: 0.8}},
		fakeSCMSource{f: SCMFeatures{PRs: 3, Commits: 5, MaxWeight: 1.2}},
		fakeGraphSource{f: GraphFeatures{Components: 3, Services: 1, ChatSignals7d: 4, SCMSignals7d: 2}},
		fakeSemanticSource{pairs: []SemanticPairResult{{Name: "doc_vs_chat", Similarity: 0.7, Weight: 1}}},
	)
	subject := Subject{
		DocIssueID: "doc-1", BaseSeverity: "high", ImpactLevel: "medium",
		UpdatedAt: time.Now().Add(-2 * time.Hour), Components: []string{"auth"}, QueryText: "auth outage",
	}

	payload, err := e.Score(context.Background(), subject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum float64
	for _, c := range payload.Contributions {
		sum += c
	}
	blend01 := payload.Score / 100
	if math.Abs(sum-blend01) > 1e-6 {
		t.Fatalf("contributions sum %v does not match blended score %v within epsilon", sum, blend01)
	}
	if payload.Score0to10 != payload.Score/10 {
		t.Fatalf("score_0_10 inconsistent with score")
	}
	if payload.Label != LabelFor(payload.Score) {
		t.Fatalf("label does not match score bucket")
	}
}

func TestScoreZeroActivityYieldsLowLabel(t *testing.T) {
	cfg := Config{Weights: Weights{Chat: 0.2, SCM: 0.2, Doc: 0.2, Graph: 0.2, Semantic: 0.2}}
	e := New(cfg, fakeChatSource{}, fakeSCMSource{}, fakeGraphSource{}, fakeSemanticSource{})
	subject := Subject{BaseSeverity: "low", ImpactLevel: "low", UpdatedAt: time.Now().Add(-400 * time.Hour)}

	payload, err := e.Score(context.Background(), subject)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Label != LabelLow {
		t.Fatalf("expected low label for zero-activity subject, got %v (score %v)", payload.Label, payload.Score)
	}
}

func TestScoreExplanationHasFiveTerms(t *testing.T) {
	cfg := Config{Weights: Weights{Chat: 1, SCM: 1, Doc: 1, Graph: 1, Semantic: 1}}
	e := New(cfg, fakeChatSource{}, fakeSCMSource{}, fakeGraphSource{}, fakeSemanticSource{})
	payload, err := e.Score(context.Background(), Subject{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payload.Explanation.Terms) != 5 {
		t.Fatalf("expected 5 explanation terms, got %d", len(payload.Explanation.Terms))
	}
}

func TestCriticalChannelOverridesConfigDefault(t *testing.T) {
	cfg := Config{Weights: Weights{Chat: 1}, CriticalChannels: map[string]bool{"incidents": true}}
	var seen map[string]bool
	chat := chatCapture{capture: &seen}
	e := New(cfg, chat, fakeSCMSource{}, fakeGraphSource{}, fakeSemanticSource{})
	_, _ = e.Score(context.Background(), Subject{ChatChannels: []string{"incidents"}})
	if !seen["incidents"] {
		t.Fatalf("expected config CriticalChannels to be passed through when subject doesn't override")
	}
}

type chatCapture struct{ capture *map[string]bool }

func (c chatCapture) ChatFeatures(_ context.Context, _ []string, _ time.Time, critical map[string]bool) (ChatFeatures, error) {
	*c.capture = critical
	return ChatFeatures{}, nil
}
