package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/task"
)

// analysisTypeIndex partitions a task's analysis records by kind (shot/scene).
const analysisTypeIndex = "task_id-analysis_type-index"

// PutShot writes one shot record.
func (s *Store) PutShot(ctx context.Context, shot *task.Shot) error {
	shot.AnalysisType = task.AnalysisTypeShot
	if err := s.putRecord(ctx, s.tables.Analysis, shot); err != nil {
		return fmt.Errorf("put shot %s: %w", shot.ID, err)
	}
	return nil
}

// PutScene writes one scene record.
func (s *Store) PutScene(ctx context.Context, scene *task.Scene) error {
	scene.AnalysisType = task.AnalysisTypeScene
	if err := s.putRecord(ctx, s.tables.Analysis, scene); err != nil {
		return fmt.Errorf("put scene %s: %w", scene.ID, err)
	}
	return nil
}

// ShotsByTask returns a task's shots ordered by start_ts.
func (s *Store) ShotsByTask(ctx context.Context, taskID string) ([]task.Shot, error) {
	items, err := s.queryAnalysis(ctx, taskID, task.AnalysisTypeShot)
	if err != nil {
		return nil, err
	}
	shots := make([]task.Shot, 0, len(items))
	for _, item := range items {
		var shot task.Shot
		if err := attributevalue.UnmarshalMap(item, &shot); err != nil {
			return nil, fmt.Errorf("unmarshal shot for task %s: %w", taskID, err)
		}
		shots = append(shots, shot)
	}
	sort.Slice(shots, func(i, j int) bool { return shots[i].StartTS < shots[j].StartTS })
	return shots, nil
}

// ScenesByTask returns a task's scenes ordered by start_ts.
func (s *Store) ScenesByTask(ctx context.Context, taskID string) ([]task.Scene, error) {
	items, err := s.queryAnalysis(ctx, taskID, task.AnalysisTypeScene)
	if err != nil {
		return nil, err
	}
	scenes := make([]task.Scene, 0, len(items))
	for _, item := range items {
		var scene task.Scene
		if err := attributevalue.UnmarshalMap(item, &scene); err != nil {
			return nil, fmt.Errorf("unmarshal scene for task %s: %w", taskID, err)
		}
		scenes = append(scenes, scene)
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].StartTS < scenes[j].StartTS })
	return scenes, nil
}

// DeleteAnalysisByType removes every shot or scene record of a task. The
// segmenter calls this before writing, so a recompute never leaves stale or
// duplicated segments behind.
func (s *Store) DeleteAnalysisByType(ctx context.Context, taskID, analysisType string) (int, error) {
	items, err := s.queryAnalysis(ctx, taskID, analysisType)
	if err != nil {
		return 0, err
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{
			"id":      item["id"],
			"task_id": item["task_id"],
		})
	}
	if err := s.batchDeleteKeys(ctx, s.tables.Analysis, keys); err != nil {
		return 0, fmt.Errorf("delete %s records, task %s: %w", analysisType, taskID, err)
	}

	log.Debug().Str("taskId", taskID).Str("type", analysisType).Int("count", len(keys)).Msg("Analysis records deleted")
	return len(keys), nil
}

func (s *Store) queryAnalysis(ctx context.Context, taskID, analysisType string) ([]map[string]types.AttributeValue, error) {
	items, err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              &s.tables.Analysis,
		IndexName:              aws.String(analysisTypeIndex),
		KeyConditionExpression: aws.String("task_id = :tid AND analysis_type = :at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: taskID},
			":at":  &types.AttributeValueMemberS{Value: analysisType},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s records for task %s: %w", analysisType, taskID, err)
	}
	return items, nil
}
