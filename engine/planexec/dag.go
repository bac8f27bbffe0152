package planexec

import (
	"fmt"
	"regexp"
)

// refPattern matches a $stepN reference and its dot/index path, with or
// without surrounding braces: `$step2.path.0.id` or `{$step2.path}`.
var refPattern = regexp.MustCompile(`\$step(\d+)((?:\.[A-Za-z0-9_]+|\.\d+)*)`)

// stepRef is one parsed `$stepN.path` reference.
type stepRef struct {
	StepID string // "step2"
	Path   string // "path.0.id", may be empty
	Raw    string // the full matched text, e.g. "$step2.path.0.id"
}

// scanRefs returns every $stepN reference found anywhere inside params,
// walking nested maps and slices. Used both for dependency analysis and
// for parameter resolution.
func scanRefs(params map[string]any) []stepRef {
	var out []stepRef
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			out = append(out, parseRefs(t)...)
		case map[string]any:
			for _, vv := range t {
				walk(vv)
			}
		case []any:
			for _, vv := range t {
				walk(vv)
			}
		}
	}
	for _, v := range params {
		walk(v)
	}
	return out
}

func parseRefs(s string) []stepRef {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	out := make([]stepRef, 0, len(matches))
	for _, m := range matches {
		path := m[2]
		if len(path) > 0 && path[0] == '.' {
			path = path[1:]
		}
		out = append(out, stepRef{StepID: "step" + m[1], Path: path, Raw: m[0]})
	}
	return out
}

// level is one BFS-leveled batch of independent steps.
type level struct {
	Steps []Step
}

// buildLevels runs dependency analysis (explicit deps unioned with scanned
// $stepN references) and groups steps into BFS execution levels: level 0
// has no dependencies, level n is 1 + max(level of its dependencies).
// Returns an error if a dependency cycle or an unknown step reference is
// found.
func buildLevels(steps []Step) ([]level, error) {
	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	deps := make(map[string]map[string]bool, len(steps))
	for _, s := range steps {
		set := map[string]bool{}
		for _, d := range s.Dependencies {
			set[d] = true
		}
		for _, ref := range scanRefs(s.Parameters) {
			set[ref.StepID] = true
		}
		delete(set, s.ID) // a step never depends on itself
		deps[s.ID] = set
	}

	for id, set := range deps {
		for dep := range set {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("planexec: step %q references unknown step %q", id, dep)
			}
		}
	}

	levelOf := make(map[string]int, len(steps))
	resolving := map[string]bool{}
	var resolve func(id string) (int, error)
	resolve = func(id string) (int, error) {
		if lv, ok := levelOf[id]; ok {
			return lv, nil
		}
		if resolving[id] {
			return 0, fmt.Errorf("planexec: dependency cycle detected at step %q", id)
		}
		resolving[id] = true
		defer delete(resolving, id)

		lv := 0
		for dep := range deps[id] {
			dlv, err := resolve(dep)
			if err != nil {
				return 0, err
			}
			if dlv+1 > lv {
				lv = dlv + 1
			}
		}
		levelOf[id] = lv
		return lv, nil
	}

	maxLevel := 0
	for _, s := range steps {
		lv, err := resolve(s.ID)
		if err != nil {
			return nil, err
		}
		if lv > maxLevel {
			maxLevel = lv
		}
	}

	levels := make([]level, maxLevel+1)
	for _, s := range steps {
		lv := levelOf[s.ID]
		levels[lv].Steps = append(levels[lv].Steps, s)
	}
	return levels, nil
}
