// Package main provides the task deletion Lambda.
//
// Consumes the deletion SQS queue. Each message names a task whose removal
// the API accepted; the cascade cleans object storage, the Transcribe job,
// the vector index, and every database record. Failed messages redeliver,
// and the cascade tolerates whatever an earlier attempt already removed.
//
// Memory: 256 MB
// Timeout: 5 minutes
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/deletion"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/queue"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/transcript"
	"github.com/mediaops/extraction-service/internal/vectorstore"
)

// s3Objects adapts the artifact bucket to the cascade's object store.
type s3Objects struct {
	clients lambdaboot.S3Clients
}

func (o s3Objects) DeleteTaskObjects(ctx context.Context, taskID string) (int, error) {
	return s3util.DeletePrefix(ctx, o.clients.Client, o.clients.Bucket, s3util.TaskPrefix(taskID))
}

// transcribeJobs adapts the Transcribe client to the cascade.
type transcribeJobs struct {
	client *transcribe.Client
}

func (j transcribeJobs) DeleteJob(ctx context.Context, taskID string) error {
	return transcript.DeleteJob(ctx, j.client, taskID)
}

var cascade *deletion.Cascade

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	artifacts := lambdaboot.InitS3(aws.Config, "ARTIFACT_BUCKET_NAME")

	cascade = &deletion.Cascade{
		Objects: s3Objects{clients: artifacts},
		Jobs:    transcribeJobs{client: transcribe.NewFromConfig(aws.Config)},
		Records: lambdaboot.InitStore(aws.Config),
	}
	if dsn := lambdaboot.LoadVectorDSN(aws.SSM); dsn != "" {
		vectors, err := vectorstore.New(context.Background(), dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to vector store")
		}
		cascade.Vectors = vectors
	}

	logging.NewStartupLogger("delete-task-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifacts.Bucket).
		Feature("vectorIndex", cascade.Vectors != nil).
		Log()
}

func handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var response events.SQSEventResponse

	for _, record := range sqsEvent.Records {
		submission, err := queue.ParseSubmission(record.Body)
		if err != nil {
			log.Error().Err(err).Str("messageId", record.MessageId).Msg("Dropping malformed deletion message")
			continue
		}

		rec := metrics.NewStage("deletion", submission.TaskID)
		if err := cascade.Run(ctx, submission.TaskID); err != nil {
			log.Error().Err(err).Str("taskId", submission.TaskID).Msg("Deletion incomplete, message will redeliver")
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		} else {
			rec.Count("TaskDeleted", 1)
		}
		rec.Flush()
	}

	return response, nil
}

func main() {
	lambda.Start(handler)
}
