package planexec

import (
	"context"
	"errors"
	"testing"
)

type fakeInvoker struct {
	outputs map[string]any
	errs    map[string]error
	calls   []string
}

func (f *fakeInvoker) Invoke(ctx context.Context, tool string, params map[string]any) (any, error) {
	f.calls = append(f.calls, tool)
	if err, ok := f.errs[tool]; ok {
		return nil, err
	}
	return f.outputs[tool], nil
}

type fakeVerifier struct{ result VerificationResult }

func (f fakeVerifier) Verify(ctx context.Context, goal string, step Step, output any) (VerificationResult, error) {
	return f.result, nil
}

func TestExecuteRunsIndependentStepsThenDependent(t *testing.T) {
	invoker := &fakeInvoker{outputs: map[string]any{
		"search": map[string]any{"text": "payments-svc is down"},
		"notify": "sent",
	}}
	plan := Plan{
		Goal: "investigate outage",
		Steps: []Step{
			{ID: "step1", Tool: "search"},
			{ID: "step2", Tool: "notify", Parameters: map[string]any{"message": "$step1.text"}},
		},
	}
	ex := New(invoker, Config{})
	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %v (error=%v)", result.Status, result.Error)
	}
	if result.StepsCompleted != 2 {
		t.Fatalf("expected 2 completed steps, got %d", result.StepsCompleted)
	}
	if result.FinalOutput != "sent" {
		t.Fatalf("expected final output 'sent', got %#v", result.FinalOutput)
	}
}

func TestExecuteMissingParametersFailsWithoutInvokingTool(t *testing.T) {
	invoker := &fakeInvoker{outputs: map[string]any{}}
	plan := Plan{
		Steps: []Step{{ID: "step1", Tool: "notify", Parameters: map[string]any{}}},
	}
	ex := New(invoker, Config{Contracts: map[string]ToolContract{
		"notify": {Tool: "notify", RequiredParams: []string{"channel"}},
	}})

	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %v", result.Status)
	}
	if len(invoker.calls) != 0 {
		t.Fatalf("expected the tool to never be invoked, got calls: %v", invoker.calls)
	}
}

func TestExecuteRetryableFailureTriggersReplan(t *testing.T) {
	invoker := &fakeInvoker{errs: map[string]error{"search": errors.New("upstream timeout")}}
	plan := Plan{Steps: []Step{{ID: "step1", Tool: "search"}}}
	ex := New(invoker, Config{})

	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusNeedsReplan {
		t.Fatalf("expected NEEDS_REPLAN, got %v", result.Status)
	}
	if !result.NeedsReplan || result.ReplanReason == "" {
		t.Fatalf("expected a populated replan reason, got %+v", result)
	}
}

func TestExecuteCriticAnnotatesReplanReason(t *testing.T) {
	invoker := &fakeInvoker{errs: map[string]error{"search": errors.New("rate limited")}}
	plan := Plan{Goal: "find root cause", Steps: []Step{{ID: "step1", Tool: "search"}}}
	ex := New(invoker, Config{Critic: fakeCritic{rootCause: "rate limiter misconfigured", actions: []string{"lower rps"}}})

	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusNeedsReplan {
		t.Fatalf("expected NEEDS_REPLAN, got %v", result.Status)
	}
	if !contains(splitWords(result.ReplanReason), "rate") {
		t.Fatalf("expected critic annotation in replan reason, got %q", result.ReplanReason)
	}
}

type fakeCritic struct {
	rootCause string
	actions   []string
}

func (c fakeCritic) Annotate(ctx context.Context, goal string, step Step, stepErr error) (string, []string) {
	return c.rootCause, c.actions
}

func splitWords(s string) []string {
	var out []string
	word := ""
	for _, r := range s {
		if r == ' ' {
			if word != "" {
				out = append(out, word)
			}
			word = ""
			continue
		}
		word += string(r)
	}
	if word != "" {
		out = append(out, word)
	}
	return out
}

func contains(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}

func TestExecuteCollectsCriticalStepVerification(t *testing.T) {
	invoker := &fakeInvoker{outputs: map[string]any{"search": "ok"}}
	plan := Plan{Steps: []Step{{ID: "step1", Tool: "search", Critical: true}}}
	ex := New(invoker, Config{Verifier: fakeVerifier{result: VerificationResult{Valid: true, Confidence: 0.9}}})

	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %v", result.Status)
	}
	v, ok := result.VerificationResults["step1"]
	if !ok || !v.Valid {
		t.Fatalf("expected a recorded verification result for step1, got %+v", result.VerificationResults)
	}
}

func TestExecuteHighConfidenceInvalidVerificationTriggersReplan(t *testing.T) {
	invoker := &fakeInvoker{outputs: map[string]any{"search": "ok"}}
	plan := Plan{Steps: []Step{{ID: "step1", Tool: "search", Critical: true}}}
	ex := New(invoker, Config{Verifier: fakeVerifier{result: VerificationResult{Valid: false, Confidence: 0.95, Issues: []string{"wrong component"}}}})

	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusNeedsReplan {
		t.Fatalf("expected NEEDS_REPLAN from high-confidence invalid verification, got %v", result.Status)
	}
}

func TestExecuteLowConfidenceInvalidVerificationIsPartialSuccess(t *testing.T) {
	invoker := &fakeInvoker{outputs: map[string]any{"search": "ok"}}
	plan := Plan{Steps: []Step{{ID: "step1", Tool: "search", Critical: true}}}
	ex := New(invoker, Config{Verifier: fakeVerifier{result: VerificationResult{Valid: false, Confidence: 0.4}}})

	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusPartialSuccess {
		t.Fatalf("expected PARTIAL_SUCCESS, got %v", result.Status)
	}
}

func TestExecuteUnknownStepReferenceFailsFast(t *testing.T) {
	invoker := &fakeInvoker{}
	plan := Plan{Steps: []Step{{ID: "step1", Tool: "a", Parameters: map[string]any{"x": "$step9.missing"}}}}
	ex := New(invoker, Config{})

	result := ex.Execute(context.Background(), plan)

	if result.Status != StatusFailed {
		t.Fatalf("expected FAILED for an unresolvable dependency graph, got %v", result.Status)
	}
	if len(invoker.calls) != 0 {
		t.Fatalf("expected no tool invocations when the plan itself is invalid, got %v", invoker.calls)
	}
}
