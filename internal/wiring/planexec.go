package wiring

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentineleng/sentinel/engine/modality"
	"github.com/sentineleng/sentinel/engine/planexec"
	"github.com/sentineleng/sentinel/engine/registry"
)

// SearchToolInvoker exposes each enabled, query-capable modality handler as
// a planexec tool named "search.<modality>", so a multi-step plan can pull
// evidence from Chat, SCM, Docs, Files, Video, or the web fallback the same
// way a direct /api/query fanout would.
type SearchToolInvoker struct {
	reg *registry.Registry
}

// NewSearchToolInvoker builds a ToolInvoker backed by reg's query handlers.
func NewSearchToolInvoker(reg *registry.Registry) *SearchToolInvoker {
	return &SearchToolInvoker{reg: reg}
}

// Invoke resolves "search.<modality>" against the matching handler's Query,
// reading "query" (required) and "limit" (optional, default 10) from params.
func (s *SearchToolInvoker) Invoke(ctx context.Context, tool string, params map[string]any) (any, error) {
	id, ok := strings.CutPrefix(tool, "search.")
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", tool)
	}

	handlers := s.reg.IterQueryHandlers(true, []modality.ID{modality.ID(id)})
	if len(handlers) == 0 {
		return nil, fmt.Errorf("modality %q is not enabled for query", id)
	}

	query, _ := params["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("%s requires a \"query\" parameter", tool)
	}
	limit := 10
	if l, ok := params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	return handlers[0].Query(ctx, query, limit)
}

// BuildToolContracts declares the required-parameter set for every enabled
// modality's search tool, so the Plan Executor rejects a step missing
// "query" before ever calling Invoke.
func BuildToolContracts(reg *registry.Registry) map[string]planexec.ToolContract {
	contracts := make(map[string]planexec.ToolContract)
	for _, id := range reg.EnabledPrimary() {
		tool := "search." + string(id)
		contracts[tool] = planexec.ToolContract{Tool: tool, RequiredParams: []string{"query"}}
	}
	for _, id := range reg.EnabledFallback() {
		tool := "search." + string(id)
		contracts[tool] = planexec.ToolContract{Tool: tool, RequiredParams: []string{"query"}}
	}
	return contracts
}
