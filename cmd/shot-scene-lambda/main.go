// Package main provides the shot and scene segmentation Lambda.
//
// Invoked after extraction completes for tasks that asked for analysis. It
// recomputes shots from frame similarity scores, summarizes them with
// Claude, partitions the shots into scenes, and persists both levels. Prior
// shot and scene records and artifacts are deleted first, so a re-run never
// leaves stale segments behind.
//
// Memory: 512 MB
// Timeout: 15 minutes
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/bedrock"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/orchestration"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/segmenter"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
)

var (
	taskStore *store.Store
	artifacts lambdaboot.S3Clients
	llm       *bedrock.Client
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	artifacts = lambdaboot.InitS3(aws.Config, "ARTIFACT_BUCKET_NAME")
	llm = bedrock.New(bedrockruntime.NewFromConfig(aws.Config))

	logging.NewStartupLogger("shot-scene-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifacts.Bucket).
		Log()
}

func handler(ctx context.Context, input orchestration.WorkflowInput) error {
	rec := metrics.NewStage("segmentation", input.TaskID)
	defer rec.Flush()

	t, err := taskStore.GetTask(ctx, input.TaskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", input.TaskID)
	}
	setting := t.Request.AnalysisSetting
	if setting == nil || !setting.ShotDetection {
		log.Info().Str("taskId", input.TaskID).Msg("Shot detection not requested, skipping")
		return nil
	}

	frames, err := taskStore.FramesByTask(ctx, input.TaskID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		log.Warn().Str("taskId", input.TaskID).Msg("No frames to segment")
		return nil
	}

	if err := clearPrevious(ctx, input.TaskID); err != nil {
		return err
	}

	shots := segmenter.DetectShots(input.TaskID, frames, setting.ShotSimilarityThreshold)
	for i := range shots {
		shots[i].Summary = segmenter.SummarizeShot(ctx, llm, shots[i])
		if err := taskStore.PutShot(ctx, &shots[i]); err != nil {
			return err
		}
		if err := uploadSegment(ctx, input.TaskID, "shot", shots[i].ID, shots[i]); err != nil {
			return err
		}
	}
	rec.Count("ShotsDetected", len(shots))
	log.Info().Str("taskId", input.TaskID).Int("shots", len(shots)).Msg("Shots persisted")

	if !setting.SceneDetection {
		return nil
	}

	boundaries, err := segmenter.PartitionScenes(ctx, llm, segmenter.ShotsMetadata(shots))
	if err != nil {
		return fmt.Errorf("partition scenes: %w", err)
	}
	scenes := segmenter.AssembleScenes(input.TaskID, boundaries, shots)
	for i := range scenes {
		scenes[i].Summary = segmenter.SummarizeScene(ctx, llm, scenes[i])
		if err := taskStore.PutScene(ctx, &scenes[i]); err != nil {
			return err
		}
		if err := uploadSegment(ctx, input.TaskID, "scene", scenes[i].ID, scenes[i]); err != nil {
			return err
		}
	}
	rec.Count("ScenesDetected", len(scenes))
	log.Info().Str("taskId", input.TaskID).Int("scenes", len(scenes)).Msg("Scenes persisted")
	return nil
}

// clearPrevious removes the shot/scene records and artifacts of any earlier
// segmentation run.
func clearPrevious(ctx context.Context, taskID string) error {
	for _, at := range []string{task.AnalysisTypeShot, task.AnalysisTypeScene} {
		if _, err := taskStore.DeleteAnalysisByType(ctx, taskID, at); err != nil {
			return err
		}
		prefix := s3util.TaskPrefix(taskID) + at + "/"
		if _, err := s3util.DeletePrefix(ctx, artifacts.Client, artifacts.Bucket, prefix); err != nil {
			return err
		}
	}
	return nil
}

func uploadSegment(ctx context.Context, taskID, kind, id string, segment interface{}) error {
	data, err := json.Marshal(segment)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", kind, id, err)
	}
	key := fmt.Sprintf("%s%s/%s.json", s3util.TaskPrefix(taskID), kind, id)
	return s3util.UploadJSON(ctx, artifacts.Client, artifacts.Bucket, key, data)
}

func main() {
	lambda.Start(handler)
}
