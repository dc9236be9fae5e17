// Package workflowrun implements the workflow-run coordinator, spec §4.5:
// "either a run row exists AND a queue job was accepted, or neither
// observable state exists." Grounded on the teacher's transactional
// create-then-compensate style (see internal/store/postgres's
// tx.Begin/Commit/Rollback discipline) generalized to a create-row /
// enqueue-job / compensating-delete sequence instead of a single SQL
// transaction, since the second step crosses a process boundary (the
// queue) that a DB transaction can't wrap.
package workflowrun

import (
	"context"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/queue"
	"github.com/vespid-ai/control-plane/internal/store"
)

const defaultMaxAttempts = 3

// Coordinator implements spec §4.5.
type Coordinator struct {
	Store store.Store
	Queue queue.Queue
}

func New(st store.Store, q queue.Queue) *Coordinator {
	return &Coordinator{Store: st, Queue: q}
}

// Create implements the manual-trigger path: load the workflow, require it
// published, create the run row, enqueue the job, and compensate on
// enqueue failure.
func (c *Coordinator) Create(ctx context.Context, tc store.TenantCtx, workflowID, requestedByUserID uuid.UUID, input map[string]any) (store.WorkflowRun, error) {
	return c.create(ctx, tc, workflowID, requestedByUserID, input, store.TriggerManual)
}

// CreateFromChannel implements the channel-triggered path, spec §4.5:
// "the same procedure with triggerType=channel; the caller must present the
// internal service token." Token verification happens at the HTTP layer;
// this coordinator only needs to know the resulting trigger type.
func (c *Coordinator) CreateFromChannel(ctx context.Context, tc store.TenantCtx, workflowID, requestedByUserID uuid.UUID, input map[string]any) (store.WorkflowRun, error) {
	return c.create(ctx, tc, workflowID, requestedByUserID, input, store.TriggerChannel)
}

func (c *Coordinator) create(ctx context.Context, tc store.TenantCtx, workflowID, requestedByUserID uuid.UUID, input map[string]any, triggerType store.WorkflowRunTriggerType) (store.WorkflowRun, error) {
	workflow, err := c.Store.GetWorkflow(ctx, tc, workflowID)
	if err != nil {
		return store.WorkflowRun{}, apperr.ErrNotFound("workflow not found")
	}
	if workflow.Status != store.WorkflowPublished {
		return store.WorkflowRun{}, apperr.ErrConflict("workflow must be published to run")
	}

	run, err := c.Store.CreateWorkflowRun(ctx, tc, store.WorkflowRun{
		ID:                uuid.New(),
		OrganizationID:    tc.OrganizationID,
		WorkflowID:        workflow.ID,
		TriggerType:       triggerType,
		Status:            store.RunQueued,
		AttemptCount:      0,
		MaxAttempts:       defaultMaxAttempts,
		Input:             input,
		RequestedByUserID: requestedByUserID,
	})
	if err != nil {
		return store.WorkflowRun{}, apperr.ErrInternal
	}

	if err := c.Queue.EnqueueWorkflowRun(queue.WorkflowRunJob{
		RunID:             run.ID,
		OrganizationID:    run.OrganizationID,
		WorkflowID:        run.WorkflowID,
		RequestedByUserID: requestedByUserID,
		MaxAttempts:       run.MaxAttempts,
	}); err != nil {
		// Compensate: the store only permits this delete while
		// status=queued and attemptCount=0, which is exactly the state we
		// just created the row in, so this should never itself fail on
		// the precondition — but a failure here still must not mask the
		// original QUEUE_UNAVAILABLE the caller needs to see.
		_ = c.Store.DeleteQueuedRun(ctx, tc, run.ID)
		return store.WorkflowRun{}, apperr.ErrQueueUnavailable
	}

	return run, nil
}

// Get and List round out the coordinator for the read-side routes spec §6
// lists alongside run creation.
func (c *Coordinator) Get(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (store.WorkflowRun, error) {
	run, err := c.Store.GetWorkflowRun(ctx, tc, id)
	if err != nil {
		return store.WorkflowRun{}, apperr.ErrNotFound("workflow run not found")
	}
	return run, nil
}

func (c *Coordinator) List(ctx context.Context, tc store.TenantCtx, workflowID uuid.UUID, cursor store.Cursor, limit int) ([]store.WorkflowRun, store.Cursor, bool, error) {
	runs, next, hasMore, err := c.Store.ListWorkflowRuns(ctx, tc, workflowID, cursor, limit)
	if err != nil {
		return nil, store.Cursor{}, false, apperr.ErrInternal
	}
	return runs, next, hasMore, nil
}
