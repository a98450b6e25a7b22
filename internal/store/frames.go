package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/task"
)

// frameTimestampIndex orders a task's frames by timestamp.
const frameTimestampIndex = "task_id-timestamp-index"

// PutFrame upserts a frame record. Frame writes are idempotent: the key is
// derived from (task_id, timestamp), so a retried chunk overwrites the same
// record instead of duplicating it.
func (s *Store) PutFrame(ctx context.Context, f *task.Frame) error {
	if f.ID == "" {
		f.ID = task.FrameID(f.TaskID, f.Timestamp)
	}
	if err := s.putRecord(ctx, s.tables.Frame, f); err != nil {
		return fmt.Errorf("put frame %s: %w", f.ID, err)
	}
	return nil
}

// GetFrame reads one frame by composite key. Returns nil when missing.
func (s *Store) GetFrame(ctx context.Context, taskID string, ts float64) (*task.Frame, error) {
	id := task.FrameID(taskID, ts)
	var f task.Frame
	found, err := s.getRecord(ctx, s.tables.Frame, compositeKey("id", id, "task_id", taskID), &f)
	if err != nil {
		return nil, fmt.Errorf("get frame %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}
	return &f, nil
}

// DeleteFrame removes one frame record. Used by the deduplicator when a
// sampled frame turns out to be a near-duplicate.
func (s *Store) DeleteFrame(ctx context.Context, taskID string, ts float64) error {
	id := task.FrameID(taskID, ts)
	if err := s.deleteRecord(ctx, s.tables.Frame, compositeKey("id", id, "task_id", taskID)); err != nil {
		return fmt.Errorf("delete frame %s: %w", id, err)
	}
	return nil
}

// UpdateFrameSimilarity backfills the similarity score and anchor pointer on
// a retained frame after the dedup comparison.
func (s *Store) UpdateFrameSimilarity(ctx context.Context, taskID string, ts, score, prevTS float64) error {
	id := task.FrameID(taskID, ts)
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tables.Frame,
		Key:              compositeKey("id", id, "task_id", taskID),
		UpdateExpression: aws.String("SET similarity_score = :score, prev_timestamp = :prev"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":score": &types.AttributeValueMemberN{Value: strconv.FormatFloat(score, 'f', -1, 64)},
			":prev":  &types.AttributeValueMemberN{Value: strconv.FormatFloat(prevTS, 'f', -1, 64)},
		},
	})
	if err != nil {
		return fmt.Errorf("update frame %s similarity: %w", id, err)
	}
	return nil
}

// FramesByTask returns every frame of a task ordered by timestamp ascending.
// The GSI sort key gives the order; we still sort defensively because the
// dedup anchor chain and shot detection both require it.
func (s *Store) FramesByTask(ctx context.Context, taskID string) ([]task.Frame, error) {
	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              &s.tables.Frame,
		IndexName:              aws.String(frameTimestampIndex),
		KeyConditionExpression: aws.String("task_id = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: taskID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("frames for task %s: %w", taskID, err)
	}

	frames := make([]task.Frame, 0, len(items))
	for _, item := range items {
		var f task.Frame
		if err := attributevalue.UnmarshalMap(item, &f); err != nil {
			return nil, fmt.Errorf("unmarshal frame for task %s: %w", taskID, err)
		}
		frames = append(frames, f)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })
	return frames, nil
}

// DeleteFramesByTask removes every frame record of a task.
func (s *Store) DeleteFramesByTask(ctx context.Context, taskID string) (int, error) {
	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              &s.tables.Frame,
		IndexName:              aws.String(frameTimestampIndex),
		KeyConditionExpression: aws.String("task_id = :tid"),
		ProjectionExpression:   aws.String("id, task_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: taskID},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("list frames for delete, task %s: %w", taskID, err)
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{
			"id":      item["id"],
			"task_id": item["task_id"],
		})
	}
	if err := s.batchDeleteKeys(ctx, s.tables.Frame, keys); err != nil {
		return 0, fmt.Errorf("delete frames, task %s: %w", taskID, err)
	}

	log.Debug().Str("taskId", taskID).Int("count", len(keys)).Msg("Frame records deleted")
	return len(keys), nil
}
