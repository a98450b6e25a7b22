package orchestration

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/task"
)

// Decision is the admission outcome for one queued task. Throttled is a
// first-class outcome, not an error: the consumer leaves the message on the
// queue and the visibility timeout schedules the retry.
type Decision int

const (
	// DecisionStarted means a workflow execution was launched for the task.
	DecisionStarted Decision = iota
	// DecisionAlreadyDone means the task is already running or finished;
	// the message is acknowledged without starting anything.
	DecisionAlreadyDone
	// DecisionThrottled means the concurrency limit is reached; the message
	// must resurface later.
	DecisionThrottled
)

func (d Decision) String() string {
	switch d {
	case DecisionStarted:
		return "started"
	case DecisionAlreadyDone:
		return "already_done"
	case DecisionThrottled:
		return "throttled"
	default:
		return "unknown"
	}
}

// TaskStore is the slice of the task store admission needs.
type TaskStore interface {
	GetTask(ctx context.Context, taskID string) (*task.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID string, to task.Status) error
}

// Workflow is the slice of the workflow engine admission needs.
type Workflow interface {
	CountRunning(ctx context.Context) (int, error)
	Start(ctx context.Context, taskID string) (string, error)
}

// DefaultConcurrencyLimit is the reference configuration: one full
// extraction workflow at a time.
const DefaultConcurrencyLimit = 1

// AdmissionController throttles how many tasks run the full extraction
// workflow concurrently.
type AdmissionController struct {
	Tasks TaskStore
	Flow  Workflow
	Limit int
}

// Admit decides what to do with one queued task. SQS delivers at least
// once, so every path must be safe to repeat: a task already in flight
// acknowledges without a second start, and a throttled task changes nothing.
func (c *AdmissionController) Admit(ctx context.Context, taskID string) (Decision, error) {
	t, err := c.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return DecisionThrottled, fmt.Errorf("load task %s: %w", taskID, err)
	}
	if t == nil {
		// Deleted between enqueue and delivery. Ack so the message does
		// not redeliver forever.
		log.Warn().Str("taskId", taskID).Msg("Queued task no longer exists")
		return DecisionAlreadyDone, nil
	}
	if t.Status.ActiveOrDone() {
		log.Info().Str("taskId", taskID).Str("status", string(t.Status)).Msg("Task already admitted")
		return DecisionAlreadyDone, nil
	}

	limit := c.Limit
	if limit <= 0 {
		limit = DefaultConcurrencyLimit
	}
	running, err := c.Flow.CountRunning(ctx)
	if err != nil {
		return DecisionThrottled, fmt.Errorf("count running executions: %w", err)
	}
	if running >= limit {
		log.Info().Str("taskId", taskID).Int("running", running).Int("limit", limit).Msg("Concurrency limit reached, task stays queued")
		return DecisionThrottled, nil
	}

	if _, err := c.Flow.Start(ctx, taskID); err != nil {
		return DecisionThrottled, fmt.Errorf("start workflow for task %s: %w", taskID, err)
	}
	if err := c.Tasks.UpdateTaskStatus(ctx, taskID, task.StatusProcessing); err != nil {
		// The execution is running; a lost status write self-heals when the
		// first stage reads the task, so log and ack rather than redeliver
		// and double-start.
		log.Warn().Err(err).Str("taskId", taskID).Msg("Workflow started but status update failed")
	}
	return DecisionStarted, nil
}
