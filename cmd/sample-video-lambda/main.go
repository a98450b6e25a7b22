// Package main provides the frame sampling Lambda.
//
// Invoked once per chunk by the extraction state machine. It grabs every
// candidate frame in the chunk's window with ffmpeg, uploads the stills, and
// writes one frame record per candidate. The sampling cursor on the task
// advances at the end of the chunk, so a crashed invocation replays its own
// window and nothing else.
//
// Container: Heavy (includes ffmpeg)
// Memory: 2 GB
// Timeout: 15 minutes
package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/mediainfo"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/sampling"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
)

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

	logging.NewStartupLogger("sample-video-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifacts.Bucket).
		Log()
}

// Output reports one sampled chunk back to the state machine.
type Output struct {
	Chunk           task.Chunk `json:"chunk"`
	Candidates      []float64  `json:"candidates"`
	SampleCompleted bool       `json:"sample_completed"`
}

func handler(ctx context.Context, chunk task.Chunk) (Output, error) {
	rec := metrics.NewStage("sample", chunk.TaskID)
	defer rec.Flush()

	t, err := taskStore.GetTask(ctx, chunk.TaskID)
	if err != nil {
		return Output{}, err
	}
	if t == nil {
		return Output{}, fmt.Errorf("task %s not found", chunk.TaskID)
	}
	md := t.MetaData.VideoMetaData
	if md == nil {
		return Output{}, fmt.Errorf("task %s has no video metadata", chunk.TaskID)
	}
	interval := t.Request.PreProcessSetting.SampleIntervalS

	video := t.Request.Video.S3Object
	videoPath, cleanup, err := s3util.DownloadToTempFile(ctx, artifacts.Client, video.Bucket, video.Key)
	if err != nil {
		return Output{}, fmt.Errorf("download video: %w", err)
	}
	defer cleanup()

	candidates := sampling.Timestamps(chunk, interval, md.DurationS)
	sampleStart := time.Now()
	for _, ts := range candidates {
		if err := sampleFrame(ctx, t, videoPath, ts, interval); err != nil {
			return Output{}, fmt.Errorf("sample frame at %gs: %w", ts, err)
		}
	}
	rec.Count("FramesSampled", len(candidates))
	rec.Metric("SampleDuration", float64(time.Since(sampleStart).Milliseconds()), metrics.UnitMilliseconds)

	completed := sampling.Completed(chunk.EndTS, md.DurationS)
	if err := taskStore.AdvanceSampleCursor(ctx, chunk.TaskID, len(candidates), chunk.EndTS, completed); err != nil {
		return Output{}, err
	}

	log.Info().Str("taskId", chunk.TaskID).Float64("startTs", chunk.StartTS).
		Float64("endTs", chunk.EndTS).Int("frames", len(candidates)).
		Bool("completed", completed).Msg("Chunk sampled")
	return Output{Chunk: chunk, Candidates: candidates, SampleCompleted: completed}, nil
}

// sampleFrame captures, uploads, and records a single candidate frame.
// Uploads are keyed by task and timestamp, so a replayed chunk overwrites
// its own objects instead of duplicating them.
func sampleFrame(ctx context.Context, t *task.Task, videoPath string, ts, interval float64) error {
	frameJPEG, err := mediainfo.CaptureFrame(ctx, videoPath, ts)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%sframes/frame_%s.jpg", s3util.TaskPrefix(t.ID),
		strconv.FormatFloat(ts, 'f', -1, 64))
	if err := s3util.UploadJPEG(ctx, artifacts.Client, artifacts.Bucket, key, frameJPEG); err != nil {
		return err
	}

	prev := ts - interval
	if prev < 0 {
		prev = 0
	}
	return taskStore.PutFrame(ctx, &task.Frame{
		ID:            task.FrameID(t.ID, ts),
		TaskID:        t.ID,
		Timestamp:     ts,
		PrevTimestamp: prev,
		S3Bucket:      artifacts.Bucket,
		S3Key:         key,
	})
}

func main() {
	lambda.Start(handler)
}
