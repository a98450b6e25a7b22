package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/task"
)

// updateTaskField runs a single UpdateItem against the task table.
func (s *Store) updateTaskField(ctx context.Context, taskID, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.tables.Task,
		Key:                       stringKey("Id", taskID),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update task %s (%s): %w", taskID, expr, err)
	}
	return nil
}

// SetVideoMetadata records the probe results on the task. The submission
// flow writes an empty MetaData map, so the nested path always exists.
func (s *Store) SetVideoMetadata(ctx context.Context, taskID string, md *task.VideoMetadata) error {
	av, err := attributevalue.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal video metadata: %w", err)
	}
	return s.updateTaskField(ctx, taskID,
		"SET MetaData.VideoMetaData = :v",
		nil,
		map[string]types.AttributeValue{":v": av},
	)
}

// SetFrameStats initializes the sampling bookkeeping block on the task.
func (s *Store) SetFrameStats(ctx context.Context, taskID string, stats *task.FrameStats) error {
	av, err := attributevalue.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal frame stats: %w", err)
	}
	return s.updateTaskField(ctx, taskID,
		"SET MetaData.VideoFrameS3 = :v",
		nil,
		map[string]types.AttributeValue{":v": av},
	)
}

// AdvanceSampleCursor records one completed sampling chunk: the planned-frame
// counter grows by the chunk's candidate count and the resume cursor moves to
// the next window. Chunk stages run serially inside one workflow, so a plain
// write per chunk is race-free.
func (s *Store) AdvanceSampleCursor(ctx context.Context, taskID string, plannedDelta int, cursorS float64, completed bool) error {
	// ADD only works on top-level attributes, so nested counters use SET
	// with arithmetic.
	err := s.updateTaskField(ctx, taskID,
		"SET MetaData.VideoFrameS3.SampleStartS = :c, MetaData.VideoFrameS3.SampleCompleted = :done, MetaData.VideoFrameS3.TotalFramesPlaned = if_not_exists(MetaData.VideoFrameS3.TotalFramesPlaned, :zero) + :p",
		nil,
		map[string]types.AttributeValue{
			":c":    &types.AttributeValueMemberN{Value: strconv.FormatFloat(cursorS, 'f', -1, 64)},
			":done": &types.AttributeValueMemberBOOL{Value: completed},
			":p":    &types.AttributeValueMemberN{Value: strconv.Itoa(plannedDelta)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	)
	if err != nil {
		return err
	}
	log.Debug().Str("taskId", taskID).Float64("cursor", cursorS).Bool("completed", completed).Int("planned", plannedDelta).Msg("Sample cursor advanced")
	return nil
}

// AddSampledFrames grows the retained-frame counter after a dedup pass.
func (s *Store) AddSampledFrames(ctx context.Context, taskID string, retained int) error {
	if retained == 0 {
		return nil
	}
	return s.updateTaskField(ctx, taskID,
		"SET MetaData.VideoFrameS3.TotalFramesSampled = if_not_exists(MetaData.VideoFrameS3.TotalFramesSampled, :zero) + :n",
		nil,
		map[string]types.AttributeValue{
			":n":    &types.AttributeValueMemberN{Value: strconv.Itoa(retained)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	)
}

// SetTranscriptionOutput records the S3 key of the finished transcript.
func (s *Store) SetTranscriptionOutput(ctx context.Context, taskID, key string) error {
	return s.updateTaskField(ctx, taskID,
		"SET MetaData.TranscriptionOutput = :v",
		nil,
		map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: key}},
	)
}

// SetAggResult stores the detection rollups and the extraction completion time.
func (s *Store) SetAggResult(ctx context.Context, taskID string, agg *task.AggResult, completeTs string) error {
	av, err := attributevalue.Marshal(agg)
	if err != nil {
		return fmt.Errorf("marshal agg result: %w", err)
	}
	return s.updateTaskField(ctx, taskID,
		"SET AggResult = :v, ExtractionCompleteTs = :ts",
		nil,
		map[string]types.AttributeValue{
			":v":  av,
			":ts": &types.AttributeValueMemberS{Value: completeTs},
		},
	)
}

// SetEvalResult stores the policy evaluation verdict.
func (s *Store) SetEvalResult(ctx context.Context, taskID string, eval *task.EvalResult) error {
	av, err := attributevalue.Marshal(eval)
	if err != nil {
		return fmt.Errorf("marshal eval result: %w", err)
	}
	return s.updateTaskField(ctx, taskID,
		"SET EvalResult = :v",
		nil,
		map[string]types.AttributeValue{":v": av},
	)
}

// SetVectorLocations records where the task's frame vectors live so the
// delete cascade can find them later.
func (s *Store) SetVectorLocations(ctx context.Context, taskID string, loc *task.VectorLocations) error {
	av, err := attributevalue.Marshal(loc)
	if err != nil {
		return fmt.Errorf("marshal vector locations: %w", err)
	}
	return s.updateTaskField(ctx, taskID,
		"SET VectorMetaData = :v",
		nil,
		map[string]types.AttributeValue{":v": av},
	)
}

// SetFailureDetail records why a task moved to the failed status.
func (s *Store) SetFailureDetail(ctx context.Context, taskID, detail string) error {
	return s.updateTaskField(ctx, taskID,
		"SET FailureDetail = :v",
		nil,
		map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: detail}},
	)
}
