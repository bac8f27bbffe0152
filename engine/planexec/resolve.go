package planexec

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// resolveParams resolves every parameter of params against stepOutputs
// (step ID -> that step's raw tool output), per the single-reference
// passthrough / multi-token templating rule. Missing references are
// preserved as their literal text and logged, never silently dropped.
func resolveParams(params map[string]any, stepOutputs map[string]any, log *slog.Logger) map[string]any {
	if log == nil {
		log = slog.Default()
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = resolveValue(v, stepOutputs, log)
	}
	return out
}

func resolveValue(v any, stepOutputs map[string]any, log *slog.Logger) any {
	switch t := v.(type) {
	case string:
		return resolveString(t, stepOutputs, log)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = resolveValue(vv, stepOutputs, log)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = resolveValue(vv, stepOutputs, log)
		}
		return out
	default:
		return v
	}
}

// resolveString implements the two resolution modes: a string that is
// exactly one reference is replaced by the raw value (preserving type); a
// string containing one or more tokens ({$stepN.path} or bare $stepN.path)
// is template-resolved to a string.
func resolveString(s string, stepOutputs map[string]any, log *slog.Logger) any {
	if ref, ok := asSingleReference(s); ok {
		val, found := resolvePath(stepOutputs, ref)
		if !found {
			log.Warn("planexec: unresolved step reference, preserving literal placeholder", "ref", ref.Raw)
			return s
		}
		return val
	}

	refs := parseRefs(s)
	if len(refs) == 0 {
		return s
	}

	result := s
	for _, ref := range refs {
		val, ok := resolvePath(stepOutputs, ref)
		token := ref.Raw
		if strings.Contains(result, "{"+token+"}") {
			token = "{" + token + "}"
		}
		if !ok {
			log.Warn("planexec: unresolved step reference in template, preserving literal placeholder", "ref", ref.Raw)
			continue
		}
		result = strings.ReplaceAll(result, token, fmt.Sprint(val))
	}
	return result
}

func stripBraces(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s[1 : len(s)-1]
	}
	return s
}

// asSingleReference reports whether s (optionally wrapped in one pair of
// braces) is nothing but a single $stepN.path reference, as opposed to a
// larger template string one or more references are embedded in.
func asSingleReference(s string) (stepRef, bool) {
	trimmed := stripBraces(s)
	refs := parseRefs(trimmed)
	if len(refs) == 1 && refs[0].Raw == trimmed {
		return refs[0], true
	}
	return stepRef{}, false
}

// resolvePath navigates stepOutputs[ref.StepID] by ref.Path's dot-separated
// segments, indexing maps by key and slices by integer index.
func resolvePath(stepOutputs map[string]any, ref stepRef) (any, bool) {
	cur, ok := stepOutputs[ref.StepID]
	if !ok {
		return nil, false
	}
	if ref.Path == "" {
		return cur, true
	}
	for _, seg := range strings.Split(ref.Path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			nv, ok := v[seg]
			if !ok {
				return nil, false
			}
			cur = nv
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
