// Package main provides the aggregation Lambda.
//
// Invoked by the state machine after every frame finished extraction. It
// folds per-frame detections into task-level rollups and marks extraction
// complete.
//
// Memory: 256 MB
// Timeout: 2 minutes
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/aggregate"
	evt "github.com/mediaops/extraction-service/internal/events"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/orchestration"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
)

var (
	taskStore *store.Store
	publisher *evt.Publisher
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	publisher = evt.New(eventbridge.NewFromConfig(aws.Config), os.Getenv("EVENT_BUS_NAME"))

	logging.NewStartupLogger("aggregate-lambda").
		InitDuration(time.Since(initStart)).
		Feature("events", publisher != nil).
		Log()
}

func handler(ctx context.Context, input orchestration.WorkflowInput) error {
	rec := metrics.NewStage("aggregate", input.TaskID)
	defer rec.Flush()

	t, err := taskStore.GetTask(ctx, input.TaskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", input.TaskID)
	}

	setting := t.Request.ExtractionSetting
	if setting.AggregateResult == nil || *setting.AggregateResult {
		frames, err := taskStore.FramesByTask(ctx, input.TaskID)
		if err != nil {
			return err
		}
		agg := aggregate.Detections(frames)
		completeTs := time.Now().UTC().Format(time.RFC3339)
		if err := taskStore.SetAggResult(ctx, input.TaskID, agg, completeTs); err != nil {
			return err
		}
		rec.Count("FramesAggregated", len(frames))
	}

	if err := taskStore.UpdateTaskStatus(ctx, input.TaskID, task.StatusExtractionCompleted); err != nil {
		return err
	}
	publisher.PublishStatus(ctx, evt.StatusChange{
		TaskID: input.TaskID,
		Status: string(task.StatusExtractionCompleted),
		Stage:  "aggregate",
	})
	log.Info().Str("taskId", input.TaskID).Msg("Extraction completed")
	return nil
}

func main() {
	lambda.Start(handler)
}
