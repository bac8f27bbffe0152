// Package planner implements the Query Planner: a rule-driven decision
// of which modalities to consult for a given query, narrowed by structured
// plan hints. Grounded on the teacher's declarative-rule style used for
// ComponentRule path-prefix matching in engine/modality's SCM handler,
// generalized to keyword-substring matching over planner rules.
package planner

import (
	"strings"

	"github.com/sentineleng/sentinel/engine/modality"
)

// Rule maps a set of keywords to the modality set to consult when any
// keyword case-insensitively substring-matches the query.
type Rule struct {
	Keywords []string
	Include  []modality.ID
}

// Intent is a coarse classification of what the operator is trying to do.
type Intent string

const (
	IntentCompare    Intent = "COMPARE"
	IntentInvestigate Intent = "INVESTIGATE"
)

// TargetType is a hashtag-resolved entity type referenced by the query.
type TargetType string

const (
	TargetSlackChannel TargetType = "slack_channel"
	TargetIncident     TargetType = "incident"
	TargetComponent    TargetType = "component"
	TargetService      TargetType = "service"
	TargetRepository   TargetType = "repository"
	TargetDoc          TargetType = "doc"
	TargetDocIssue     TargetType = "doc_issue"
)

// Hints is the structured plan-hint input that narrows the planner's
// keyword-rule output.
type Hints struct {
	TargetTypes []TargetType
	Intent      Intent
	Keywords    []string
}

// registryView is the narrow slice of Registry the planner needs.
type registryView interface {
	EnabledPrimary() []modality.ID
	EnabledFallback() []modality.ID
	IsEnabled(id modality.ID) bool
}

// Planner evaluates declaration-ordered rules against a query and the
// registry's enabled-modality set.
type Planner struct {
	rules []Rule
	reg   registryView
}

// New builds a Planner over the given rule set and registry.
func New(rules []Rule, reg registryView) *Planner {
	return &Planner{rules: rules, reg: reg}
}

// Plan returns the ordered list of modality IDs to consult.
func (p *Planner) Plan(query string, includeFallback bool, hints *Hints) []modality.ID {
	if includeFallback {
		return p.reg.EnabledFallback()
	}

	enabledPrimary := p.reg.EnabledPrimary()
	ids, matched := matchRule(p.rules, query, enabledPrimary)
	if !matched {
		ids = enabledPrimary
	}

	return applyHints(ids, hints, p.reg)
}

func matchRule(rules []Rule, query string, enabledPrimary []modality.ID) (ids []modality.ID, matched bool) {
	lowerQuery := strings.ToLower(query)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowerQuery, strings.ToLower(kw)) {
				return intersect(rule.Include, enabledPrimary), true
			}
		}
	}
	return nil, false
}

func intersect(a, b []modality.ID) []modality.ID {
	set := make(map[modality.ID]bool, len(b))
	for _, id := range b {
		set[id] = true
	}
	var out []modality.ID
	for _, id := range a {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}

// applyHints widens the planner's selection per structured plan hints:
// hashtag-resolved target types each pull in a specific modality, and a
// COMPARE/INVESTIGATE intent ensures both chat and scm are present.
func applyHints(ids []modality.ID, hints *Hints, reg registryView) []modality.ID {
	if hints == nil {
		return ids
	}

	want := map[modality.ID]bool{}
	for _, id := range ids {
		want[id] = true
	}

	for _, t := range hints.TargetTypes {
		switch t {
		case TargetSlackChannel, TargetIncident:
			want[modality.Chat] = true
		}
		switch t {
		case TargetComponent, TargetService, TargetRepository, TargetIncident:
			want[modality.SCM] = true
		}
		switch t {
		case TargetDoc, TargetDocIssue:
			want[modality.Docs] = true
		}
	}

	if hints.Intent == IntentCompare || hints.Intent == IntentInvestigate {
		want[modality.Chat] = true
		want[modality.SCM] = true
	}

	// Preserve the rule/primary order first, then append any hint-added
	// modalities in a fixed priority order, so output ordering is
	// deterministic regardless of map iteration.
	out := make([]modality.ID, 0, len(want))
	seen := map[modality.ID]bool{}
	for _, id := range ids {
		if want[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, id := range []modality.ID{modality.Chat, modality.SCM, modality.Docs} {
		if want[id] && !seen[id] && reg.IsEnabled(id) {
			out = append(out, id)
			seen[id] = true
		}
	}
	// Any ids from the original selection not enabled anymore are dropped
	// implicitly by not having been added via seen; re-filter for safety.
	filtered := out[:0]
	for _, id := range out {
		if reg.IsEnabled(id) {
			filtered = append(filtered, id)
		}
	}
	return filtered
}
