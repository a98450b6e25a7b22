// Package deletion removes every trace of a task across the stores it
// touched. Each resource is cleaned independently so a half-deleted task
// from an earlier failed attempt still converges on a retry.
package deletion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/task"
)

// ObjectStore deletes a task's objects under its key prefix.
type ObjectStore interface {
	DeleteTaskObjects(ctx context.Context, taskID string) (int, error)
}

// TranscribeJobs deletes a task's transcription job.
type TranscribeJobs interface {
	DeleteJob(ctx context.Context, taskID string) error
}

// RecordStore deletes a task's database records.
type RecordStore interface {
	DeleteFramesByTask(ctx context.Context, taskID string) (int, error)
	DeleteAnalysisByType(ctx context.Context, taskID, analysisType string) (int, error)
	DeleteTranscription(ctx context.Context, taskID string) error
	DeleteTask(ctx context.Context, taskID string) error
}

// VectorStore deletes a task's frame vectors. May be nil when the vector
// index is not configured.
type VectorStore interface {
	DeleteTask(ctx context.Context, taskID string) (int64, error)
}

// Cascade coordinates a full task deletion.
type Cascade struct {
	Objects ObjectStore
	Jobs    TranscribeJobs
	Records RecordStore
	Vectors VectorStore
}

// Run deletes everything belonging to the task. Every step runs even when
// an earlier one fails; missing resources are not errors. The task record
// itself goes last so a partial failure leaves the task visible for another
// attempt. Returns the combined error of the failed steps, if any.
func (c *Cascade) Run(ctx context.Context, taskID string) error {
	var errs []error
	fail := func(step string, err error) {
		log.Warn().Err(err).Str("taskId", taskID).Str("step", step).Msg("Deletion step failed")
		errs = append(errs, fmt.Errorf("%s: %w", step, err))
	}

	if n, err := c.Objects.DeleteTaskObjects(ctx, taskID); err != nil {
		fail("delete objects", err)
	} else {
		log.Info().Str("taskId", taskID).Int("count", n).Msg("Task objects deleted")
	}

	if err := c.Jobs.DeleteJob(ctx, taskID); err != nil {
		fail("delete transcription job", err)
	}

	if c.Vectors != nil {
		if n, err := c.Vectors.DeleteTask(ctx, taskID); err != nil {
			fail("delete frame vectors", err)
		} else {
			log.Info().Str("taskId", taskID).Int64("count", n).Msg("Frame vectors deleted")
		}
	}

	if n, err := c.Records.DeleteFramesByTask(ctx, taskID); err != nil {
		fail("delete frames", err)
	} else {
		log.Info().Str("taskId", taskID).Int("count", n).Msg("Frame records deleted")
	}

	for _, at := range []string{task.AnalysisTypeShot, task.AnalysisTypeScene} {
		if _, err := c.Records.DeleteAnalysisByType(ctx, taskID, at); err != nil {
			fail("delete "+at+" records", err)
		}
	}

	if err := c.Records.DeleteTranscription(ctx, taskID); err != nil {
		fail("delete transcription record", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("delete task %s: %w", taskID, errors.Join(errs...))
	}
	if err := c.Records.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("delete task %s record: %w", taskID, err)
	}
	log.Info().Str("taskId", taskID).Msg("Task deleted")
	return nil
}
