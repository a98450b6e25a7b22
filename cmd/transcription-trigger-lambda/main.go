// Package main provides the transcription completion Lambda.
//
// Amazon Transcribe writes its JSON transcript and VTT subtitles to the
// task's transcribe prefix; the bucket notification on the JSON object
// invokes this function. It parses both files into timestamped subtitle
// rows, persists the transcription record, and enqueues the task for
// workflow admission.
//
// Memory: 256 MB
// Timeout: 1 minute
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	evt "github.com/mediaops/extraction-service/internal/events"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/queue"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
	"github.com/mediaops/extraction-service/internal/transcript"
)

var (
	taskStore      *store.Store
	artifacts      lambdaboot.S3Clients
	admissionQueue *queue.Client
	publisher      *evt.Publisher
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	artifacts = lambdaboot.InitS3(aws.Config, "ARTIFACT_BUCKET_NAME")

	queueURL := lambdaboot.MustEnv("ADMISSION_QUEUE_URL")
	admissionQueue = queue.New(sqs.NewFromConfig(aws.Config), queueURL)
	publisher = evt.New(eventbridge.NewFromConfig(aws.Config), os.Getenv("EVENT_BUS_NAME"))

	logging.NewStartupLogger("transcription-trigger-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifacts.Bucket).
		Queue("admission", queueURL).
		Log()
}

func handler(ctx context.Context, s3Event events.S3Event) error {
	for _, record := range s3Event.Records {
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			key = record.S3.Object.Key
		}
		if err := processTranscript(ctx, record.S3.Bucket.Name, key); err != nil {
			return err
		}
	}
	return nil
}

func processTranscript(ctx context.Context, bucket, key string) error {
	taskID, err := taskIDFromKey(key)
	if err != nil {
		log.Warn().Str("key", key).Msg("Ignoring object outside the transcribe layout")
		return nil
	}
	rec := metrics.NewStage("transcription", taskID)
	defer rec.Flush()

	data, err := s3util.GetObjectBytes(ctx, artifacts.Client, bucket, key)
	if err != nil {
		return fmt.Errorf("download transcript: %w", err)
	}
	languageCode, fullText, err := transcript.ParseTranscriptJSON(data)
	if err != nil {
		return fmt.Errorf("parse transcript %s: %w", key, err)
	}

	subtitles := loadSubtitles(ctx, bucket, key, fullText)
	if err := taskStore.PutTranscription(ctx, &task.Transcription{
		TaskID:       taskID,
		LanguageCode: languageCode,
		Subtitles:    subtitles,
	}); err != nil {
		return err
	}
	if err := taskStore.SetTranscriptionOutput(ctx, taskID, key); err != nil {
		return err
	}
	if err := taskStore.UpdateTaskStatus(ctx, taskID, task.StatusTranscriptionCompleted); err != nil {
		return err
	}
	if err := admissionQueue.Enqueue(ctx, taskID); err != nil {
		return err
	}

	publisher.PublishStatus(ctx, evt.StatusChange{
		TaskID: taskID,
		Status: string(task.StatusTranscriptionCompleted),
		Stage:  "transcription",
	})
	rec.Count("SubtitleRows", len(subtitles))
	log.Info().Str("taskId", taskID).Str("language", languageCode).
		Int("subtitles", len(subtitles)).Msg("Transcription recorded")
	return nil
}

// loadSubtitles reads the VTT written alongside the JSON transcript. When it
// is missing the full transcript text becomes a single untimed row, which
// still lets frames without precise alignment carry the speech context.
func loadSubtitles(ctx context.Context, bucket, jsonKey, fullText string) []task.Subtitle {
	vttKey := strings.TrimSuffix(jsonKey, ".json") + ".vtt"
	data, err := s3util.GetObjectBytes(ctx, artifacts.Client, bucket, vttKey)
	if err != nil {
		log.Warn().Err(err).Str("key", vttKey).Msg("VTT subtitles unavailable")
		if fullText == "" {
			return nil
		}
		return []task.Subtitle{{Transcription: fullText}}
	}
	return transcript.ParseVTT(string(data))
}

// taskIDFromKey parses tasks/{id}/transcribe/{id}_transcribe.json.
func taskIDFromKey(key string) (string, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != "tasks" || parts[2] != "transcribe" || !strings.HasSuffix(parts[3], ".json") {
		return "", fmt.Errorf("unexpected transcript key %q", key)
	}
	return parts[1], nil
}

func main() {
	lambda.Start(handler)
}
