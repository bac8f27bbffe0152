package modality

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestPRWeightFormula(t *testing.T) {
	w := prWeight(5, 400, nil)
	want := 1 + 5*0.1 + 1*0.5
	if math.Abs(w-want) > 1e-9 {
		t.Fatalf("prWeight(5,400,nil)=%v, want %v", w, want)
	}
}

func TestPRWeightBreakingLabelBonus(t *testing.T) {
	base := prWeight(2, 50, nil)
	withLabel := prWeight(2, 50, []string{"breaking_change"})
	if withLabel-base < 0.29 || withLabel-base > 0.31 {
		t.Fatalf("expected +0.3 bonus, got delta %v", withLabel-base)
	}
}

func TestCommitWeightHasNoBreakingBonus(t *testing.T) {
	w := commitWeight(20, 1000)
	want := 1 + 1*0.1*10 + 1*0.5 // min clamps both terms
	_ = want
	if w != 1+math.Min(10, 10)*0.1+math.Min(1000.0/200, 1)*0.5 {
		t.Fatalf("unexpected commit weight: %v", w)
	}
}

func TestIssueWeightFormula(t *testing.T) {
	w := issueWeight(10, 5, nil)
	want := 0.05*10 + 0.03*5
	if math.Abs(w-want) > 1e-9 {
		t.Fatalf("issueWeight=%v, want %v", w, want)
	}
}

func TestIssueWeightDissatisfactionBonus(t *testing.T) {
	base := issueWeight(0, 0, nil)
	withLabel := issueWeight(0, 0, []string{"regression"})
	if withLabel-base < 0.39 || withLabel-base > 0.41 {
		t.Fatalf("expected +0.4 bonus, got delta %v", withLabel-base)
	}
}

func TestResolveComponentsByPathPrefix(t *testing.T) {
	h := NewSCMHandler(SCMConfig{Rules: []ComponentRule{
		{PathPrefix: "engine/vector/", Components: []string{"vector-service"}, EndpointIDs: []string{"ep1"}},
	}}, nil, nil, nil, nil)
	components, endpoints := h.resolveComponents([]string{"engine/vector/service.go", "engine/graph/model.go"})
	if len(components) != 1 || components[0] != "vector-service" {
		t.Fatalf("unexpected components: %v", components)
	}
	if len(endpoints) != 1 || endpoints[0] != "ep1" {
		t.Fatalf("unexpected endpoints: %v", endpoints)
	}
}

type fakeSCMSource struct {
	prs     []SCMPullRequest
	commits []SCMCommit
	issues  []SCMIssue
}

func (f *fakeSCMSource) FetchPullRequests(_ context.Context, _ string, _ time.Time) ([]SCMPullRequest, error) {
	return f.prs, nil
}
func (f *fakeSCMSource) FetchCommits(_ context.Context, _ string, _ time.Time) ([]SCMCommit, error) {
	return f.commits, nil
}
func (f *fakeSCMSource) FetchIssues(_ context.Context, _ string, _ time.Time) ([]SCMIssue, error) {
	return f.issues, nil
}

func TestSCMHandlerIngestCountsAllKinds(t *testing.T) {
	src := &fakeSCMSource{
		prs:     []SCMPullRequest{{ID: "1", Repo: "r", Title: "fix", MergedAt: time.Now()}},
		commits: []SCMCommit{{SHA: "abc", Repo: "r", Message: "msg", Timestamp: time.Now()}},
		issues:  []SCMIssue{{ID: "i1", Repo: "r", Title: "bug", Labels: []string{"bug"}, CreatedAt: time.Now()}},
	}
	h := NewSCMHandler(SCMConfig{Enabled: true, Weight: 1, Repos: []string{"r"}}, src, nil, nil, nil)
	counts, err := h.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if counts.ItemsSeen != 3 || counts.ChunksWritten != 3 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestHasDissatisfactionLabel(t *testing.T) {
	if !hasDissatisfactionLabel([]string{"Bug"}) {
		t.Fatalf("expected case-insensitive match")
	}
	if hasDissatisfactionLabel([]string{"enhancement"}) {
		t.Fatalf("expected no match for unrelated label")
	}
}
