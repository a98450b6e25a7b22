// Package main provides the workflow admission Lambda.
//
// Consumes the admission SQS queue. Each message names a submitted task; the
// admission controller starts a Step Functions execution when the running
// count is below the concurrency limit. Throttled messages are reported as
// batch item failures so the SQS visibility timeout schedules the retry; no
// timer infrastructure exists beyond the queue itself.
//
// Memory: 128 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/rs/zerolog/log"

	evt "github.com/mediaops/extraction-service/internal/events"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/orchestration"
	"github.com/mediaops/extraction-service/internal/queue"
	"github.com/mediaops/extraction-service/internal/task"
)

var (
	controller *orchestration.AdmissionController
	publisher  *evt.Publisher
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore := lambdaboot.InitStore(aws.Config)
	stateMachineARN := lambdaboot.MustEnv("STATE_MACHINE_ARN")

	limit := orchestration.DefaultConcurrencyLimit
	if v := os.Getenv("WORKFLOW_CONCURRENCY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatal().Str("value", v).Msg("WORKFLOW_CONCURRENCY_LIMIT must be a positive integer")
		}
		limit = n
	}

	controller = &orchestration.AdmissionController{
		Tasks: taskStore,
		Flow:  orchestration.New(sfn.NewFromConfig(aws.Config), stateMachineARN),
		Limit: limit,
	}
	publisher = evt.New(eventbridge.NewFromConfig(aws.Config), os.Getenv("EVENT_BUS_NAME"))

	logging.NewStartupLogger("invoke-flow-lambda").
		InitDuration(time.Since(initStart)).
		StateMachine("workflow", stateMachineARN).
		Config("concurrencyLimit", strconv.Itoa(limit)).
		Log()
}

func handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var response events.SQSEventResponse

	for _, record := range sqsEvent.Records {
		submission, err := queue.ParseSubmission(record.Body)
		if err != nil {
			// A malformed body never becomes valid; ack it instead of
			// letting it redeliver until the DLQ.
			log.Error().Err(err).Str("messageId", record.MessageId).Msg("Dropping malformed admission message")
			continue
		}

		rec := metrics.NewStage("admission", submission.TaskID)
		decision, err := controller.Admit(ctx, submission.TaskID)
		rec.Property("decision", decision.String())
		if err != nil {
			log.Error().Err(err).Str("taskId", submission.TaskID).Msg("Admission failed, message will redeliver")
		}
		switch decision {
		case orchestration.DecisionStarted:
			rec.Count("WorkflowStarted", 1)
			publisher.PublishStatus(ctx, evt.StatusChange{
				TaskID: submission.TaskID,
				Status: string(task.StatusProcessing),
				Stage:  "admission",
			})
		case orchestration.DecisionThrottled:
			rec.Count("AdmissionThrottled", 1)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		rec.Flush()
	}

	return response, nil
}

func main() {
	lambda.Start(handler)
}
