package store

import (
	"context"
	"fmt"

	"github.com/mediaops/extraction-service/internal/task"
)

// PutTranscription writes the task-level transcription record.
func (s *Store) PutTranscription(ctx context.Context, tr *task.Transcription) error {
	if err := s.putRecord(ctx, s.tables.Transcription, tr); err != nil {
		return fmt.Errorf("put transcription for task %s: %w", tr.TaskID, err)
	}
	return nil
}

// GetTranscription reads the transcription record. Returns nil when the task
// has no transcription (transcription disabled, or the job has not finished).
func (s *Store) GetTranscription(ctx context.Context, taskID string) (*task.Transcription, error) {
	var tr task.Transcription
	found, err := s.getRecord(ctx, s.tables.Transcription, stringKey("task_id", taskID), &tr)
	if err != nil {
		return nil, fmt.Errorf("get transcription for task %s: %w", taskID, err)
	}
	if !found {
		return nil, nil
	}
	return &tr, nil
}

// DeleteTranscription removes the transcription record.
func (s *Store) DeleteTranscription(ctx context.Context, taskID string) error {
	if err := s.deleteRecord(ctx, s.tables.Transcription, stringKey("task_id", taskID)); err != nil {
		return fmt.Errorf("delete transcription for task %s: %w", taskID, err)
	}
	return nil
}
