// Package orchestrator implements the Retrieval Orchestrator: planner-driven
// concurrent fanout across modality handlers, result fusion, and the
// fallback re-plan trigger. Concurrency is grounded on the teacher's
// pkg/fn.ParMap bounded worker-pool primitive.
package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/sentineleng/sentinel/engine/modality"
	"github.com/sentineleng/sentinel/engine/planner"
	"github.com/sentineleng/sentinel/pkg/fn"
)

// ResponseCap is the maximum number of fused results returned per query.
const ResponseCap = 10

// HandlerOutcome records one handler's fanout execution for telemetry.
type HandlerOutcome struct {
	ModalityID modality.ID
	Results    []modality.Result
	Err        error
	TimedOut   bool
	Duration   time.Duration
}

// Response is the orchestrator's fused result set for one query.
type Response struct {
	Results        []modality.Result
	ModalitiesUsed []modality.ID
	Telemetry      []HandlerOutcome
}

// TraceRecorder is the narrow collaborator the orchestrator appends a
// query trace record to; the Incident/Trace Builder implements it.
type TraceRecorder interface {
	AppendQueryTrace(ctx context.Context, query string, resp Response)
}

// registryView is the slice of the Modality Registry the orchestrator needs.
type registryView interface {
	IterQueryHandlers(includeFallback bool, modalities []modality.ID) []modality.Handler
}

// handlerConfig supplies per-handler timeout/limit, since the registry owns
// config but handlers don't expose it directly.
type handlerConfig interface {
	TimeoutMs(id modality.ID) int
	MaxResults(id modality.ID) int
}

// Orchestrator wires the planner and registry into one query operation.
type Orchestrator struct {
	planner *planner.Planner
	reg     registryView
	cfg     handlerConfig
	trace   TraceRecorder
}

// New builds an Orchestrator.
func New(p *planner.Planner, reg registryView, cfg handlerConfig, trace TraceRecorder) *Orchestrator {
	return &Orchestrator{planner: p, reg: reg, cfg: cfg, trace: trace}
}

// Run executes one query: plan, fanout, fuse, and — if the primary fanout
// is empty — re-plan with fallback and repeat.
func (o *Orchestrator) Run(ctx context.Context, query string, hints *planner.Hints) Response {
	primaryIDs := o.planner.Plan(query, false, hints)
	results, telemetry := o.fanout(ctx, query, primaryIDs)
	used := dedupeOrdered(executedIDs(telemetry))

	if len(results) == 0 {
		fallbackIDs := o.planner.Plan(query, true, hints)
		fallbackResults, fallbackTelemetry := o.fanout(ctx, query, fallbackIDs)
		results = fallbackResults
		telemetry = append(telemetry, fallbackTelemetry...)
		used = dedupeOrdered(append(used, executedIDs(fallbackTelemetry)...))
	}

	results = fuse(results)

	resp := Response{Results: results, ModalitiesUsed: used, Telemetry: telemetry}
	if o.trace != nil {
		o.trace.AppendQueryTrace(ctx, query, resp)
	}
	return resp
}

func executedIDs(telemetry []HandlerOutcome) []modality.ID {
	ids := make([]modality.ID, len(telemetry))
	for i, t := range telemetry {
		ids[i] = t.ModalityID
	}
	return ids
}

func dedupeOrdered(ids []modality.ID) []modality.ID {
	seen := map[modality.ID]bool{}
	out := make([]modality.ID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// fanout concurrently invokes every selected handler's Query with an
// individual per-handler timeout. Concurrency is bounded by the number of
// selected handlers — no worker pool needed, per the teacher's
// ParMap(items, 0, f) "0 means one goroutine per item" convention.
func (o *Orchestrator) fanout(ctx context.Context, query string, ids []modality.ID) ([]modality.Result, []HandlerOutcome) {
	if len(ids) == 0 {
		return nil, nil
	}
	// The planner already decided primary-vs-fallback; ids is the actual
	// constraint here, so ask the registry to include fallback_only
	// handlers too and rely on the id filter to scope the set.
	handlers := o.reg.IterQueryHandlers(true, ids)
	if len(handlers) == 0 {
		return nil, nil
	}

	outcomes := fn.ParMap(handlers, 0, func(h modality.Handler) HandlerOutcome {
		return o.invoke(ctx, query, h)
	})

	var results []modality.Result
	for _, outc := range outcomes {
		results = append(results, outc.Results...)
	}
	return results, outcomes
}

func (o *Orchestrator) invoke(ctx context.Context, query string, h modality.Handler) HandlerOutcome {
	id := h.ModalityID()
	timeoutMs := 2000
	maxResults := 10
	if o.cfg != nil {
		if t := o.cfg.TimeoutMs(id); t > 0 {
			timeoutMs = t
		}
		if m := o.cfg.MaxResults(id); m > 0 {
			maxResults = m
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()

	start := time.Now()
	results, err := h.Query(callCtx, query, maxResults)
	duration := time.Since(start)

	outcome := HandlerOutcome{ModalityID: id, Duration: duration}
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			outcome.TimedOut = true
		}
		outcome.Err = err
		return outcome
	}
	outcome.Results = results
	return outcome
}

// fuse concatenates, sorts by score descending, and truncates to ResponseCap.
func fuse(results []modality.Result) []modality.Result {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > ResponseCap {
		results = results[:ResponseCap]
	}
	return results
}
