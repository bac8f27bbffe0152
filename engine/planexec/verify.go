package planexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskTypeVerifyStep is the asynq task type a verification worker process
// registers a handler for.
const TaskTypeVerifyStep = "planexec:verify_step"

type verifyTaskPayload struct {
	JobID  string
	Goal   string
	Step   Step
	Output any
}

// ResultBroker lets an AsynqVerifier.Verify call block for the result a
// worker-side handler publishes, without round-tripping the result itself
// through Redis — only the work item travels through the queue. Valid
// within one process; a multi-process worker deployment needs its own
// result transport (e.g. a short-TTL Redis key per job) instead.
type ResultBroker struct {
	mu      sync.Mutex
	waiters map[string]chan VerificationResult
}

// NewResultBroker builds an empty ResultBroker.
func NewResultBroker() *ResultBroker {
	return &ResultBroker{waiters: map[string]chan VerificationResult{}}
}

func (b *ResultBroker) register(jobID string) chan VerificationResult {
	ch := make(chan VerificationResult, 1)
	b.mu.Lock()
	b.waiters[jobID] = ch
	b.mu.Unlock()
	return ch
}

func (b *ResultBroker) publish(jobID string, result VerificationResult) {
	b.mu.Lock()
	ch, ok := b.waiters[jobID]
	if ok {
		delete(b.waiters, jobID)
	}
	b.mu.Unlock()
	if ok {
		ch <- result
	}
}

// AsynqVerifier is a Verifier backed by an asynq task queue: Verify
// enqueues a verification job and blocks (up to ctx's deadline) for the
// worker-side handler to publish a result through the shared ResultBroker.
// The queue gives verification real background/worker-pool semantics
// (per the DOMAIN STACK's asynq dependency); the wait-group-style
// collection before the final response is Executor.collectVerifications,
// which simply calls Verify concurrently for every critical step.
type AsynqVerifier struct {
	client *asynq.Client
	broker *ResultBroker
	queue  string
}

// NewAsynqVerifier builds a queue-backed Verifier. queue names the asynq
// queue verification tasks are enqueued to; defaults to "verification".
func NewAsynqVerifier(client *asynq.Client, broker *ResultBroker, queue string) *AsynqVerifier {
	if queue == "" {
		queue = "verification"
	}
	return &AsynqVerifier{client: client, broker: broker, queue: queue}
}

// Verify implements Verifier.
func (v *AsynqVerifier) Verify(ctx context.Context, goal string, step Step, output any) (VerificationResult, error) {
	jobID := step.ID + ":" + uuid.NewString()
	payload, err := json.Marshal(verifyTaskPayload{JobID: jobID, Goal: goal, Step: step, Output: output})
	if err != nil {
		return VerificationResult{}, fmt.Errorf("planexec: marshal verification payload: %w", err)
	}

	waitCh := v.broker.register(jobID)
	task := asynq.NewTask(TaskTypeVerifyStep, payload)
	if _, err := v.client.EnqueueContext(ctx, task, asynq.Queue(v.queue), asynq.TaskID(jobID)); err != nil {
		return VerificationResult{}, fmt.Errorf("planexec: enqueue verification task: %w", err)
	}

	select {
	case result := <-waitCh:
		return result, nil
	case <-ctx.Done():
		return VerificationResult{}, ctx.Err()
	}
}

// NewVerifyStepHandler builds the asynq task handler a worker process
// registers for TaskTypeVerifyStep. inner performs the actual goal/step/
// result judgment; the handler publishes inner's result back through
// broker so a blocked AsynqVerifier.Verify call unblocks.
func NewVerifyStepHandler(broker *ResultBroker, inner Verifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload verifyTaskPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("planexec: unmarshal verification payload: %w", err)
		}
		result, err := inner.Verify(ctx, payload.Goal, payload.Step, payload.Output)
		if err != nil {
			result = VerificationResult{Valid: true, Issues: []string{"verifier error: " + err.Error()}}
		}
		broker.publish(payload.JobID, result)
		return nil
	}
}
