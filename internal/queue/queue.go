// Package queue defines the job-queue contract the workflow-run coordinator
// enqueues onto. Spec §1 lists the job queue implementation itself as an
// out-of-scope external collaborator, so this package only owns the
// interface plus an in-memory double for tests — the same shape as
// secretvault.Catalog's injected-dependency pattern.
package queue

import "github.com/google/uuid"

// WorkflowRunJob is the payload the workflow-run coordinator enqueues, spec
// §4.5 step 3.
type WorkflowRunJob struct {
	RunID             uuid.UUID
	OrganizationID    uuid.UUID
	WorkflowID        uuid.UUID
	RequestedByUserID uuid.UUID
	MaxAttempts       int
}

// Queue accepts workflow-run jobs. EnqueueWorkflowRun returning an error
// means the job was not accepted; the caller (workflowrun.Coordinator) is
// responsible for compensating by deleting the run row it just created.
type Queue interface {
	EnqueueWorkflowRun(job WorkflowRunJob) error
}

// Memory is an in-process Queue double for tests and for running the
// server without a real broker wired in.
type Memory struct {
	Jobs []WorkflowRunJob
	// FailNext, when true, makes the next EnqueueWorkflowRun call return an
	// error and reset itself, which exercises a caller's compensating-delete
	// path.
	FailNext bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) EnqueueWorkflowRun(job WorkflowRunJob) error {
	if m.FailNext {
		m.FailNext = false
		return ErrUnavailable
	}
	m.Jobs = append(m.Jobs, job)
	return nil
}

// ErrUnavailable is returned by Memory when simulating a broker outage.
var ErrUnavailable = queueUnavailableError{}

type queueUnavailableError struct{}

func (queueUnavailableError) Error() string { return "queue: unavailable" }
