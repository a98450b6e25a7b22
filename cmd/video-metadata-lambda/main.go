// Package main provides the video metadata Lambda, the first pipeline stage.
//
// Invoked by the extraction state machine with a task ID. It probes the
// uploaded video with ffprobe, captures a representative thumbnail, records
// the metadata on the task, and returns the chunk plan the state machine
// iterates for sampling.
//
// Container: Heavy (includes ffmpeg/ffprobe)
// Memory: 2 GB
// Timeout: 5 minutes
package main

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/mediainfo"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/orchestration"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/sampling"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
)

// thumbnailScanLimitS bounds the search for a non-blank thumbnail frame.
const thumbnailScanLimitS = 30

var (
	taskStore *store.Store
	artifacts lambdaboot.S3Clients
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	artifacts = lambdaboot.InitS3(aws.Config, "ARTIFACT_BUCKET_NAME")

	logging.NewStartupLogger("video-metadata-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifacts.Bucket).
		Log()
}

// Output feeds the state machine's chunk Map state.
type Output struct {
	TaskID    string       `json:"task_id"`
	DurationS float64      `json:"duration_s"`
	Chunks    []task.Chunk `json:"chunks"`
}

func handler(ctx context.Context, input orchestration.WorkflowInput) (Output, error) {
	rec := metrics.NewStage("metadata", input.TaskID)
	defer rec.Flush()

	t, err := taskStore.GetTask(ctx, input.TaskID)
	if err != nil {
		return Output{}, err
	}
	if t == nil {
		return Output{}, fmt.Errorf("task %s not found", input.TaskID)
	}

	video := t.Request.Video.S3Object
	videoPath, cleanup, err := s3util.DownloadToTempFile(ctx, artifacts.Client, video.Bucket, video.Key)
	if err != nil {
		return Output{}, fmt.Errorf("download video: %w", err)
	}
	defer cleanup()

	probe, err := mediainfo.Probe(ctx, videoPath)
	if err != nil {
		return Output{}, fmt.Errorf("probe video: %w", err)
	}
	rec.Metric("VideoDuration", probe.DurationS, metrics.UnitSeconds)

	md := &task.VideoMetadata{
		Size:       probe.SizeBytes,
		DurationS:  probe.DurationS,
		Width:      probe.Width,
		Height:     probe.Height,
		FPS:        probe.FPS,
		NameFormat: strings.TrimPrefix(path.Ext(video.Key), "."),
	}

	if key, err := captureThumbnail(ctx, t.ID, videoPath, probe.DurationS); err != nil {
		// Thumbnails are cosmetic; the pipeline proceeds without one.
		log.Warn().Err(err).Str("taskId", t.ID).Msg("Thumbnail capture failed")
	} else {
		md.ThumbnailS3Bucket = artifacts.Bucket
		md.ThumbnailS3Key = key
	}

	if err := taskStore.SetVideoMetadata(ctx, t.ID, md); err != nil {
		return Output{}, err
	}
	stats := &task.FrameStats{
		S3Bucket: artifacts.Bucket,
		S3Prefix: s3util.TaskPrefix(t.ID) + "frames/",
	}
	if err := taskStore.SetFrameStats(ctx, t.ID, stats); err != nil {
		return Output{}, err
	}

	chunks := sampling.PlanChunks(t.ID, probe.DurationS, sampling.DefaultChunkDurationS)
	rec.Count("ChunksPlanned", len(chunks))
	log.Info().Str("taskId", t.ID).Float64("durationS", probe.DurationS).
		Str("resolution", probe.Resolution()).Int("chunks", len(chunks)).
		Msg("Video metadata recorded")

	return Output{TaskID: t.ID, DurationS: probe.DurationS, Chunks: chunks}, nil
}

// captureThumbnail grabs the first visually meaningful frame, scanning whole
// seconds from the start. Blank frames (solid colors, fades) are skipped.
func captureThumbnail(ctx context.Context, taskID, videoPath string, durationS float64) (string, error) {
	limit := thumbnailScanLimitS
	if durationS < float64(limit) {
		limit = int(durationS)
	}
	var lastErr error
	for ts := 0; ts <= limit; ts++ {
		frame, err := mediainfo.CaptureFrame(ctx, videoPath, float64(ts))
		if err != nil {
			lastErr = err
			continue
		}
		blank, err := mediainfo.IsBlankFrame(frame)
		if err != nil || blank {
			lastErr = err
			continue
		}
		key := s3util.TaskPrefix(taskID) + "thumbnail.jpg"
		if err := s3util.UploadJPEG(ctx, artifacts.Client, artifacts.Bucket, key, frame); err != nil {
			return "", err
		}
		return key, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no non-blank frame in the first %d seconds", limit)
	}
	return "", lastErr
}

func main() {
	lambda.Start(handler)
}
