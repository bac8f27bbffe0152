package planexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentineleng/sentinel/pkg/fn"
)

// Config configures an Executor.
type Config struct {
	Contracts           map[string]ToolContract
	MaxParallelSteps    int
	Verifier            Verifier
	Critic              Critic
	VerificationTimeout time.Duration
	Log                 *slog.Logger
}

// Executor runs plans against a ToolInvoker per the DAG-leveled,
// contract-validated, optionally-verified execution algorithm.
type Executor struct {
	invoker ToolInvoker
	cfg     Config
}

// New builds an Executor.
func New(invoker ToolInvoker, cfg Config) *Executor {
	if cfg.MaxParallelSteps <= 0 {
		cfg.MaxParallelSteps = 4
	}
	if cfg.VerificationTimeout <= 0 {
		cfg.VerificationTimeout = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Executor{invoker: invoker, cfg: cfg}
}

type pendingVerification struct {
	step   Step
	output any
}

// Execute runs plan to completion or to its first terminating failure.
// stepOutputs accumulates between levels only — within a level, steps run
// concurrently and only read stepOutputs built by earlier (already
// completed) levels, so no synchronization is needed on that map itself.
func (e *Executor) Execute(ctx context.Context, plan Plan) ExecuteResult {
	levels, err := buildLevels(plan.Steps)
	if err != nil {
		return ExecuteResult{Status: StatusFailed, StepsTotal: len(plan.Steps), Error: err.Error()}
	}

	stepOutputs := map[string]any{}
	stepResults := map[string]StepResult{}
	var criticalPending []pendingVerification
	completed := 0

	for _, lvl := range levels {
		outcomes := fn.ParMap(lvl.Steps, e.cfg.MaxParallelSteps, func(s Step) StepResult {
			return e.runStep(ctx, plan.Goal, s, stepOutputs)
		})

		var failedStep Step
		var retryErr error
		failed := false

		for i, res := range outcomes {
			s := lvl.Steps[i]
			stepResults[s.ID] = res
			if res.Status == "failed" {
				failed = true
				failedStep = s
				if res.RetryPossible {
					retryErr = errors.New(res.Err)
				}
				continue
			}
			stepOutputs[s.ID] = res.Output
			completed++
			if s.Critical {
				criticalPending = append(criticalPending, pendingVerification{step: s, output: res.Output})
			}
		}

		if failed {
			verifications := e.collectVerifications(ctx, plan.Goal, criticalPending)
			if retryErr != nil {
				return ExecuteResult{
					Status: StatusNeedsReplan, StepsCompleted: completed, StepsTotal: len(plan.Steps),
					StepResults: stepResults, VerificationResults: verifications,
					NeedsReplan: true, ReplanReason: e.buildReplanReason(ctx, plan.Goal, failedStep, retryErr),
					Error: retryErr.Error(),
				}
			}
			return ExecuteResult{
				Status: StatusFailed, StepsCompleted: completed, StepsTotal: len(plan.Steps),
				StepResults: stepResults, VerificationResults: verifications,
				Error: stepResults[failedStep.ID].Err,
			}
		}
	}

	verifications := e.collectVerifications(ctx, plan.Goal, criticalPending)
	for stepID, v := range verifications {
		if !v.Valid && v.Confidence > 0.8 {
			return ExecuteResult{
				Status: StatusNeedsReplan, StepsCompleted: completed, StepsTotal: len(plan.Steps),
				StepResults: stepResults, VerificationResults: verifications,
				NeedsReplan:  true,
				ReplanReason: fmt.Sprintf("verification of %s failed with high confidence: %v", stepID, v.Issues),
			}
		}
	}

	status := StatusSuccess
	for _, v := range verifications {
		if !v.Valid {
			status = StatusPartialSuccess
		}
	}

	return ExecuteResult{
		Status: status, StepsCompleted: completed, StepsTotal: len(plan.Steps),
		StepResults: stepResults, VerificationResults: verifications,
		FinalOutput: finalOutput(levels, stepOutputs),
	}
}

func (e *Executor) runStep(ctx context.Context, goal string, s Step, stepOutputs map[string]any) StepResult {
	resolved := resolveParams(s.Parameters, stepOutputs, e.cfg.Log)

	if contract, ok := e.cfg.Contracts[s.Tool]; ok {
		if err := validateStep(contract, resolved); err != nil {
			return StepResult{StepID: s.ID, Status: "failed", Err: err.Error(), RetryPossible: false}
		}
	}

	output, err := e.invoker.Invoke(ctx, s.Tool, resolved)
	if err != nil {
		return StepResult{StepID: s.ID, Status: "failed", Err: err.Error(), RetryPossible: true}
	}
	return StepResult{StepID: s.ID, Status: "success", Output: output}
}

// collectVerifications runs every pending critical-step verification
// concurrently and awaits all of them (the "background verification ...
// collected before the final response" rule) within VerificationTimeout.
func (e *Executor) collectVerifications(ctx context.Context, goal string, pending []pendingVerification) map[string]VerificationResult {
	out := make(map[string]VerificationResult, len(pending))
	if e.cfg.Verifier == nil || len(pending) == 0 {
		return out
	}

	vctx, cancel := context.WithTimeout(ctx, e.cfg.VerificationTimeout)
	defer cancel()

	outcomes := fn.ParMap(pending, 0, func(p pendingVerification) VerificationResult {
		v, err := e.cfg.Verifier.Verify(vctx, goal, p.step, p.output)
		if err != nil {
			e.cfg.Log.Warn("planexec: verification failed, treating as valid", "step", p.step.ID, "error", err)
			return VerificationResult{Valid: true}
		}
		return v
	})

	for i, p := range pending {
		out[p.step.ID] = outcomes[i]
	}
	return out
}

func (e *Executor) buildReplanReason(ctx context.Context, goal string, step Step, stepErr error) string {
	reason := fmt.Sprintf("step %s (%s) failed: %v", step.ID, step.Tool, stepErr)
	if e.cfg.Critic == nil {
		return reason
	}
	rootCause, corrective := e.cfg.Critic.Annotate(ctx, goal, step, stepErr)
	if rootCause == "" && len(corrective) == 0 {
		return reason
	}
	return fmt.Sprintf("%s; root cause: %s; corrective actions: %v", reason, rootCause, corrective)
}

// finalOutput returns the last execution level's step outputs: the steps
// nothing in the plan depends on, by construction of the level assignment.
// A single final step returns its raw output directly; multiple final
// steps return a step-ID-keyed map.
func finalOutput(levels []level, stepOutputs map[string]any) any {
	if len(levels) == 0 {
		return nil
	}
	last := levels[len(levels)-1]
	if len(last.Steps) == 1 {
		return stepOutputs[last.Steps[0].ID]
	}
	out := make(map[string]any, len(last.Steps))
	for _, s := range last.Steps {
		out[s.ID] = stepOutputs[s.ID]
	}
	return out
}
