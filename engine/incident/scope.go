package incident

import "strings"

// summarizeScope unions components from the input with component IDs
// discovered in evidence metadata, and collects doc/issue/chat-thread/
// scm-ref identifiers from evidence metadata conventions.
func summarizeScope(in ReasoningResult) Scope {
	components := newOrderedSet(in.Components...)
	docs := newOrderedSet()
	issues := newOrderedSet()
	chatThreads := newOrderedSet()
	scmRefs := newOrderedSet()

	for _, ev := range in.Evidence {
		if comp, ok := stringMeta(ev.Metadata, "component_id"); ok {
			components.add(comp)
		}
		switch strings.ToLower(ev.Source) {
		case "doc":
			if id, ok := stringMeta(ev.Metadata, "doc_id"); ok {
				docs.add(id)
			} else {
				docs.add(ev.EvidenceID)
			}
		case "issue", "doc_issue":
			if id, ok := stringMeta(ev.Metadata, "issue_id"); ok {
				issues.add(id)
			} else {
				issues.add(ev.EvidenceID)
			}
		case "chat":
			channel, hasChannel := stringMeta(ev.Metadata, "channel_id")
			threadTS, hasThread := stringMeta(ev.Metadata, "thread_ts")
			if hasChannel && hasThread {
				chatThreads.add(channel + ":" + threadTS)
			}
		case "scm":
			repo, hasRepo := stringMeta(ev.Metadata, "repo")
			ref, hasRef := stringMeta(ev.Metadata, "pr_or_sha")
			if hasRepo && hasRef {
				scmRefs.add(repo + ":" + ref)
			}
		}
	}

	for _, dp := range in.DocPriorities {
		docs.add(dp.DocID)
	}

	return Scope{
		ComponentIDs:  components.items,
		DocIDs:        docs.items,
		IssueIDs:      issues.items,
		ChatThreadIDs: chatThreads.items,
		SCMRefs:       scmRefs.items,
	}
}

func stringMeta(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// orderedSet preserves first-seen insertion order while deduping.
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func newOrderedSet(initial ...string) *orderedSet {
	s := &orderedSet{seen: map[string]bool{}}
	for _, v := range initial {
		s.add(v)
	}
	return s
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
