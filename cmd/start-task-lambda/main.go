// Package main provides the task submission Lambda.
//
// Invoked through API Gateway (Lambda proxy integration) on POST /tasks. It
// validates the extraction request synchronously, persists the task record,
// and kicks off the asynchronous pipeline: tasks wanting transcription start
// an Amazon Transcribe job and wait for its S3 trigger; everything else goes
// straight onto the admission queue.
//
// Memory: 256 MB
// Timeout: 30 seconds
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	evt "github.com/mediaops/extraction-service/internal/events"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/queue"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
	"github.com/mediaops/extraction-service/internal/transcript"
)

var (
	taskStore        *store.Store
	admissionQueue   *queue.Client
	transcribeClient *transcribe.Client
	publisher        *evt.Publisher
	artifactBucket   string
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	artifactBucket = lambdaboot.MustEnv("ARTIFACT_BUCKET_NAME")

	queueURL := lambdaboot.MustEnv("ADMISSION_QUEUE_URL")
	admissionQueue = queue.New(sqs.NewFromConfig(aws.Config), queueURL)
	transcribeClient = transcribe.NewFromConfig(aws.Config)
	publisher = evt.New(eventbridge.NewFromConfig(aws.Config), os.Getenv("EVENT_BUS_NAME"))

	logging.NewStartupLogger("start-task-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifactBucket).
		Queue("admission", queueURL).
		Feature("events", publisher != nil).
		Log()
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	rec := metrics.NewStage("submit", "")
	defer rec.Flush()

	var req task.Request
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return respondError(400, "invalid JSON body: "+err.Error()), nil
	}
	if err := req.Validate(); err != nil {
		log.Warn().Err(err).Msg("Rejected invalid submission")
		rec.Count("InvalidSubmission", 1)
		return respondError(400, err.Error()), nil
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	if req.ExtractionSetting.AggregateResult == nil {
		aggregate := true
		req.ExtractionSetting.AggregateResult = &aggregate
	}

	t := &task.Task{
		ID:        taskID,
		Request:   &req,
		RequestTs: time.Now().UTC().Format(time.RFC3339),
		RequestBy: req.RequestBy,
		Status:    task.StatusEnqueuing,
		MetaData:  &task.MetaData{},
	}
	if err := taskStore.PutTask(ctx, t); err != nil {
		log.Error().Err(err).Str("taskId", taskID).Msg("Failed to persist task")
		return respondError(500, "failed to persist task"), nil
	}

	status := task.StatusEnqueuing
	if req.ExtractionSetting.Transcription {
		video := req.Video.S3Object
		if err := transcript.StartJob(ctx, transcribeClient, taskID, video.Bucket, video.Key, artifactBucket); err != nil {
			log.Error().Err(err).Str("taskId", taskID).Msg("Failed to start transcription job")
			return respondError(500, "failed to start transcription"), nil
		}
		status = task.StatusStartTranscription
		if err := taskStore.UpdateTaskStatus(ctx, taskID, status); err != nil {
			log.Error().Err(err).Str("taskId", taskID).Msg("Failed to update task status")
			return respondError(500, "failed to update task status"), nil
		}
	} else {
		if err := admissionQueue.Enqueue(ctx, taskID); err != nil {
			log.Error().Err(err).Str("taskId", taskID).Msg("Failed to enqueue task")
			return respondError(500, "failed to enqueue task"), nil
		}
	}

	publisher.PublishStatus(ctx, evt.StatusChange{TaskID: taskID, Status: string(status), Stage: "submit"})
	rec.Count("TaskSubmitted", 1)
	log.Info().Str("taskId", taskID).Str("status", string(status)).Msg("Task submitted")
	return respondJSON(200, submitResponse{TaskID: taskID, Status: string(status)}), nil
}

func respondJSON(code int, body interface{}) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return respondError(500, "failed to encode response")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}

func respondError(code int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: code,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func main() {
	lambda.Start(handler)
}
