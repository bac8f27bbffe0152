// Package planexec implements the Plan Executor: dependency-ordered,
// level-parallel execution of a tool-call plan, parameter resolution
// across step results, tool-contract validation, background verification,
// and failure-driven replanning.
package planexec

import "context"

// Status is the terminal (or in-flight) state of one ExecutePlan run.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusSuccess        Status = "SUCCESS"
	StatusPartialSuccess Status = "PARTIAL_SUCCESS"
	StatusFailed         Status = "FAILED"
	StatusNeedsReplan    Status = "NEEDS_REPLAN"
)

// Step is one tool invocation in a plan. ID follows the "step1", "step2", ...
// convention so that `$stepN.path` references in Parameters resolve by
// position without a separate name-to-index table.
type Step struct {
	ID           string         `json:"id"`
	Tool         string         `json:"tool"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"` // explicit step IDs, unioned with scanned $stepN references
	Critical     bool           `json:"critical,omitempty"`     // submitted for background verification after success
}

// Plan is the ordered set of steps ExecutePlan resolves and runs.
type Plan struct {
	Goal  string `json:"goal"`
	Steps []Step `json:"steps"`
}

// StepResult is one step's outcome, preserved regardless of overall status.
type StepResult struct {
	StepID        string `json:"step_id"`
	Status        string `json:"status"` // success | failed
	Output        any    `json:"output,omitempty"`
	Err           string `json:"error,omitempty"`
	RetryPossible bool   `json:"retry_possible,omitempty"`
}

// VerificationResult is a verifier's judgment of one critical step's result.
type VerificationResult struct {
	Valid       bool     `json:"valid"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// ExecuteResult is the full return value of one ExecutePlan run.
type ExecuteResult struct {
	Status              Status                         `json:"status"`
	StepsCompleted      int                            `json:"steps_completed"`
	StepsTotal          int                            `json:"steps_total"`
	StepResults         map[string]StepResult          `json:"step_results"`
	VerificationResults map[string]VerificationResult  `json:"verification_results"`
	FinalOutput         any                            `json:"final_output,omitempty"`
	Error               string                         `json:"error,omitempty"`
	NeedsReplan         bool                           `json:"needs_replan"`
	ReplanReason        string                         `json:"replan_reason,omitempty"`
}

// ToolContract declares a tool's required-parameter set and (optionally) a
// JSON Schema for stricter validation.
type ToolContract struct {
	Tool           string
	RequiredParams []string
	Schema         *Schema // nil skips schema validation, required-params check still applies
}

// ToolInvoker calls a named tool with resolved parameters and returns its
// raw (already-unmarshaled) result.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool string, params map[string]any) (any, error)
}

// Verifier re-reads the user goal, the step definition, and its result, and
// judges whether the result satisfies the goal.
type Verifier interface {
	Verify(ctx context.Context, goal string, step Step, output any) (VerificationResult, error)
}

// Critic annotates a replan reason with a root cause and corrective actions
// when a step fails.
type Critic interface {
	Annotate(ctx context.Context, goal string, step Step, stepErr error) (rootCause string, correctiveActions []string)
}
