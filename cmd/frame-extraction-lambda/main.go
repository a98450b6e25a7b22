// Package main provides the per-frame extraction Lambda.
//
// Invoked by the state machine once per retained frame. It runs the
// Rekognition detectors the task asked for, captions the frame with Gemini,
// aligns the transcription rows covering the frame's window, and writes the
// enriched frame record back. Raw provider responses are archived under the
// task's debug prefix for offline inspection.
//
// Memory: 512 MB
// Timeout: 2 minutes
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/mediaops/extraction-service/internal/caption"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
	"github.com/mediaops/extraction-service/internal/transcript"
	"github.com/mediaops/extraction-service/internal/vision"
)

var (
	taskStore    *store.Store
	artifacts    lambdaboot.S3Clients
	detector     *vision.Client
	geminiClient *genai.Client
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	artifacts = lambdaboot.InitS3(aws.Config, "ARTIFACT_BUCKET_NAME")
	detector = vision.New(rekognition.NewFromConfig(aws.Config))

	lambdaboot.LoadGeminiKey(aws.SSM)
	var err error
	geminiClient, err = caption.NewClient(context.Background(), os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	logging.NewStartupLogger("frame-extraction-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifacts.Bucket).
		Config("captionModel", caption.GetModelName()).
		Log()
}

// Input identifies one frame of one task.
type Input struct {
	TaskID    string  `json:"task_id"`
	Timestamp float64 `json:"timestamp"`
}

func handler(ctx context.Context, input Input) error {
	rec := metrics.NewStage("extraction", input.TaskID)
	defer rec.Flush()

	t, err := taskStore.GetTask(ctx, input.TaskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", input.TaskID)
	}
	f, err := taskStore.GetFrame(ctx, input.TaskID, input.Timestamp)
	if err != nil {
		return err
	}
	if f == nil {
		// Dropped by dedup after the state machine snapshot; nothing to do.
		log.Warn().Str("taskId", input.TaskID).Float64("ts", input.Timestamp).Msg("Frame no longer exists")
		return nil
	}

	setting := t.Request.ExtractionSetting
	if err := runDetectors(ctx, f, setting); err != nil {
		return err
	}

	if setting.ImageCaption {
		imageJPEG, err := s3util.GetObjectBytes(ctx, artifacts.Client, f.S3Bucket, f.S3Key)
		if err != nil {
			return fmt.Errorf("download frame image: %w", err)
		}
		f.ImageCaption = caption.Generate(ctx, geminiClient, imageJPEG, setting.ImageCaptionPromptTemplate)
		if f.ImageCaption == "" {
			rec.Count("CaptionEmpty", 1)
		}
	}

	if setting.Transcription {
		tr, err := taskStore.GetTranscription(ctx, input.TaskID)
		if err != nil {
			return err
		}
		if tr != nil {
			f.Subtitles = transcript.SubtitlesInRange(tr.Subtitles, f.PrevTimestamp, f.Timestamp)
		}
	}

	if err := taskStore.PutFrame(ctx, f); err != nil {
		return err
	}
	log.Info().Str("frameId", f.ID).Int("labels", len(f.DetectLabel)).
		Int("textLines", len(f.DetectText)).Int("subtitles", len(f.Subtitles)).
		Msg("Frame extracted")
	return nil
}

// runDetectors fills the frame's detection lists per the task settings and
// archives each raw provider response.
func runDetectors(ctx context.Context, f *task.Frame, setting *task.ExtractionSetting) error {
	if setting.DetectLabel {
		detections, raw, err := detector.DetectLabels(ctx, f.S3Bucket, f.S3Key, setting.DetectLabelConfidenceThreshold)
		if err != nil {
			return fmt.Errorf("detect labels: %w", err)
		}
		f.DetectLabel = detections
		archiveRaw(ctx, f, "detect_label", raw)
	}
	if setting.DetectText {
		detections, raw, err := detector.DetectText(ctx, f.S3Bucket, f.S3Key, setting.DetectTextConfidenceThreshold)
		if err != nil {
			return fmt.Errorf("detect text: %w", err)
		}
		f.DetectText = detections
		archiveRaw(ctx, f, "detect_text", raw)
	}
	if setting.DetectCelebrity {
		detections, raw, err := detector.DetectCelebrities(ctx, f.S3Bucket, f.S3Key, setting.DetectCelebrityConfidenceThreshold)
		if err != nil {
			return fmt.Errorf("detect celebrities: %w", err)
		}
		f.DetectCelebrity = detections
		archiveRaw(ctx, f, "detect_celebrity", raw)
	}
	if setting.DetectModeration {
		detections, raw, err := detector.DetectModeration(ctx, f.S3Bucket, f.S3Key, setting.DetectModerationConfidenceThreshold)
		if err != nil {
			return fmt.Errorf("detect moderation: %w", err)
		}
		f.DetectModeration = detections
		archiveRaw(ctx, f, "detect_moderation", raw)
	}
	return nil
}

// archiveRaw best-effort stores the raw detector response; a failed archive
// never fails the frame.
func archiveRaw(ctx context.Context, f *task.Frame, kind string, raw []byte) {
	key := fmt.Sprintf("%sdebug/%s/%s.json", s3util.TaskPrefix(f.TaskID), kind, f.ID)
	if err := s3util.UploadJSON(ctx, artifacts.Client, artifacts.Bucket, key, raw); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to archive raw detector response")
	}
}

func main() {
	lambda.Start(handler)
}
