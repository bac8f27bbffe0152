package planner

import (
	"reflect"
	"testing"

	"github.com/sentineleng/sentinel/engine/modality"
)

type fakeRegistry struct {
	primary  []modality.ID
	fallback []modality.ID
	enabled  map[modality.ID]bool
}

func (f *fakeRegistry) EnabledPrimary() []modality.ID  { return f.primary }
func (f *fakeRegistry) EnabledFallback() []modality.ID { return f.fallback }
func (f *fakeRegistry) IsEnabled(id modality.ID) bool   { return f.enabled[id] }

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		primary:  []modality.ID{modality.Chat, modality.SCM, modality.Docs, modality.Video},
		fallback: []modality.ID{modality.WebFallback},
		enabled: map[modality.ID]bool{
			modality.Chat: true, modality.SCM: true, modality.Docs: true,
			modality.Video: true, modality.WebFallback: true,
		},
	}
}

func TestPlanIncludeFallbackReturnsFallbackModalities(t *testing.T) {
	p := New(nil, newFakeRegistry())
	ids := p.Plan("anything", true, nil)
	if !reflect.DeepEqual(ids, []modality.ID{modality.WebFallback}) {
		t.Fatalf("expected fallback modalities, got %v", ids)
	}
}

func TestPlanNoRuleMatchReturnsAllEnabledPrimary(t *testing.T) {
	reg := newFakeRegistry()
	p := New([]Rule{{Keywords: []string{"deploy"}, Include: []modality.ID{modality.SCM}}}, reg)
	ids := p.Plan("what is the weather", false, nil)
	if !reflect.DeepEqual(ids, reg.primary) {
		t.Fatalf("expected all enabled primary modalities, got %v", ids)
	}
}

func TestPlanRuleMatchIntersectsWithEnabled(t *testing.T) {
	reg := newFakeRegistry()
	rules := []Rule{
		{Keywords: []string{"deploy", "rollout"}, Include: []modality.ID{modality.SCM, modality.Chat}},
	}
	p := New(rules, reg)
	ids := p.Plan("who did the last DEPLOY", false, nil)
	if len(ids) != 2 {
		t.Fatalf("expected 2 modalities from rule match, got %v", ids)
	}
}

func TestPlanCaseInsensitiveKeywordMatch(t *testing.T) {
	reg := newFakeRegistry()
	rules := []Rule{{Keywords: []string{"INCIDENT"}, Include: []modality.ID{modality.Chat}}}
	p := New(rules, reg)
	ids := p.Plan("active incident in prod", false, nil)
	if !reflect.DeepEqual(ids, []modality.ID{modality.Chat}) {
		t.Fatalf("expected chat only, got %v", ids)
	}
}

func TestPlanHintsAddModalitiesByTargetType(t *testing.T) {
	reg := newFakeRegistry()
	p := New(nil, reg)
	ids := p.Plan("xyz", false, &Hints{TargetTypes: []TargetType{TargetDoc}})
	found := false
	for _, id := range ids {
		if id == modality.Docs {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected docs added by doc target hint, got %v", ids)
	}
}

func TestPlanHintsIntentEnsuresChatAndSCM(t *testing.T) {
	reg := &fakeRegistry{
		primary: []modality.ID{modality.Video}, // rule output deliberately excludes chat/scm
		enabled: map[modality.ID]bool{modality.Video: true, modality.Chat: true, modality.SCM: true},
	}
	p := New([]Rule{{Keywords: []string{"xyz"}, Include: []modality.ID{modality.Video}}}, reg)
	ids := p.Plan("xyz", false, &Hints{Intent: IntentInvestigate})

	hasChat, hasSCM := false, false
	for _, id := range ids {
		if id == modality.Chat {
			hasChat = true
		}
		if id == modality.SCM {
			hasSCM = true
		}
	}
	if !hasChat || !hasSCM {
		t.Fatalf("expected INVESTIGATE intent to ensure chat+scm, got %v", ids)
	}
}

func TestPlanHintsSkipDisabledModalities(t *testing.T) {
	reg := &fakeRegistry{
		primary: []modality.ID{modality.Video},
		enabled: map[modality.ID]bool{modality.Video: true, modality.Chat: false},
	}
	p := New(nil, reg)
	ids := p.Plan("xyz", false, &Hints{TargetTypes: []TargetType{TargetSlackChannel}})
	for _, id := range ids {
		if id == modality.Chat {
			t.Fatalf("expected disabled chat to be excluded even with a matching hint")
		}
	}
}
