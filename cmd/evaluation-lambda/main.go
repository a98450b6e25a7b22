// Package main provides the policy evaluation Lambda, the final pipeline
// stage.
//
// Tasks carrying an evaluation prompt get one Claude call over everything
// the pipeline extracted; the structured verdict lands on the task record.
// Tasks without one just advance to their terminal status.
//
// Memory: 256 MB
// Timeout: 5 minutes
package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/bedrock"
	"github.com/mediaops/extraction-service/internal/evaluation"
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
	evaluator *evaluation.Evaluator
	publisher *evt.Publisher
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	evaluator = &evaluation.Evaluator{LLM: bedrock.New(bedrockruntime.NewFromConfig(aws.Config))}
	publisher = evt.New(eventbridge.NewFromConfig(aws.Config), os.Getenv("EVENT_BUS_NAME"))

	logging.NewStartupLogger("evaluation-lambda").
		InitDuration(time.Since(initStart)).
		Feature("events", publisher != nil).
		Log()
}

func handler(ctx context.Context, input orchestration.WorkflowInput) error {
	rec := metrics.NewStage("evaluation", input.TaskID)
	defer rec.Flush()

	t, err := taskStore.GetTask(ctx, input.TaskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", input.TaskID)
	}

	setting := t.Request.EvaluationSetting
	if setting == nil || strings.TrimSpace(setting.PromptTemplate) == "" {
		log.Info().Str("taskId", input.TaskID).Msg("No evaluation requested")
		return nil
	}

	in, err := buildInput(ctx, t)
	if err != nil {
		return err
	}
	result, err := evaluator.Evaluate(ctx, setting, in)
	if err != nil {
		return fmt.Errorf("evaluate task %s: %w", input.TaskID, err)
	}
	if err := taskStore.SetEvalResult(ctx, input.TaskID, result); err != nil {
		return err
	}
	if err := taskStore.UpdateTaskStatus(ctx, input.TaskID, task.StatusEvaluationCompleted); err != nil {
		return err
	}

	publisher.PublishStatus(ctx, evt.StatusChange{
		TaskID: input.TaskID,
		Status: string(task.StatusEvaluationCompleted),
		Stage:  "evaluation",
	})
	rec.Count("TaskEvaluated", 1)
	log.Info().Str("taskId", input.TaskID).Str("verdict", result.Verdict).Msg("Evaluation completed")
	return nil
}

// buildInput gathers the extraction outputs the verdict may draw on.
func buildInput(ctx context.Context, t *task.Task) (evaluation.Input, error) {
	in := evaluation.Input{Aggregates: t.AggResult}

	in.FileName = t.Request.FileName
	if in.FileName == "" {
		in.FileName = path.Base(t.Request.Video.S3Object.Key)
	}

	tr, err := taskStore.GetTranscription(ctx, t.ID)
	if err != nil {
		return in, err
	}
	if tr != nil {
		lines := make([]string, 0, len(tr.Subtitles))
		for _, s := range tr.Subtitles {
			if s.Transcription != "" {
				lines = append(lines, s.Transcription)
			}
		}
		in.Transcription = strings.Join(lines, " ")
	}

	scenes, err := taskStore.ScenesByTask(ctx, t.ID)
	if err != nil {
		return in, err
	}
	for _, scene := range scenes {
		in.SceneSummaries = append(in.SceneSummaries, scene.Summary)
	}
	return in, nil
}

func main() {
	lambda.Start(handler)
}
