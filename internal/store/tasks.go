package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/task"
)

// ErrStatusConflict is returned when a status update would move a task
// backward through its lifecycle, or when the stored status changed under us.
var ErrStatusConflict = errors.New("task status transition rejected")

// PutTask writes the full task record.
func (s *Store) PutTask(ctx context.Context, t *task.Task) error {
	if err := s.putRecord(ctx, s.tables.Task, t); err != nil {
		return fmt.Errorf("put task %s: %w", t.ID, err)
	}
	log.Debug().Str("taskId", t.ID).Str("status", string(t.Status)).Msg("Task persisted")
	return nil
}

// GetTask reads a task by ID. Returns nil when the task does not exist.
func (s *Store) GetTask(ctx context.Context, taskID string) (*task.Task, error) {
	var t task.Task
	found, err := s.getRecord(ctx, s.tables.Task, stringKey("Id", taskID), &t)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

// UpdateTaskStatus moves a task forward through its state machine. The write
// is conditional on the status still being what we read, so concurrent
// writers cannot interleave a backward move. Returns ErrStatusConflict for
// illegal or raced transitions.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID string, to task.Status) error {
	current, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("update status: task %s not found", taskID)
	}
	if !task.CanTransition(current.Status, to) {
		return fmt.Errorf("%w: %s -> %s (task %s)", ErrStatusConflict, current.Status, to, taskID)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           &s.tables.Task,
		Key:                 stringKey("Id", taskID),
		UpdateExpression:    aws.String("SET #s = :new"),
		ConditionExpression: aws.String("#s = :old"),
		ExpressionAttributeNames: map[string]string{
			"#s": "Status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": &types.AttributeValueMemberS{Value: string(to)},
			":old": &types.AttributeValueMemberS{Value: string(current.Status)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: task %s status changed concurrently", ErrStatusConflict, taskID)
		}
		return fmt.Errorf("update task %s status -> %s: %w", taskID, to, err)
	}

	log.Debug().Str("taskId", taskID).Str("from", string(current.Status)).Str("to", string(to)).Msg("Task status updated")
	return nil
}

// DeleteTask removes the task record itself. Frame/analysis/transcription
// cleanup is the delete cascade's job.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.deleteRecord(ctx, s.tables.Task, stringKey("Id", taskID)); err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	return nil
}

// ListTasks scans the task table, newest first is not guaranteed; callers
// sort by RequestTs. limit caps the number of returned tasks (0 = all).
func (s *Store) ListTasks(ctx context.Context, limit int) ([]task.Task, error) {
	var tasks []task.Task
	input := &dynamodb.ScanInput{TableName: &s.tables.Task}
	for {
		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan tasks: %w", err)
		}
		for _, item := range result.Items {
			var t task.Task
			if err := attributevalue.UnmarshalMap(item, &t); err != nil {
				return nil, fmt.Errorf("unmarshal task: %w", err)
			}
			tasks = append(tasks, t)
			if limit > 0 && len(tasks) >= limit {
				return tasks, nil
			}
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return tasks, nil
}
