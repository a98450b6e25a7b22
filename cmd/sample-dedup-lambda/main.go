// Package main provides the frame deduplication Lambda.
//
// Invoked once per chunk after sampling. When the task enables smart
// sampling, each candidate frame is embedded (via the shared embedding
// function) and compared against the last frame retained in this chunk;
// near-duplicates are deleted from both S3 and the frame table. The anchor
// never advances past a dropped frame, so a slow pan cannot hide a scene
// change behind a chain of small diffs, and it resets at every chunk
// boundary, so the chunk's first frame is always kept.
//
// Memory: 512 MB
// Timeout: 15 minutes
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/dedup"
	"github.com/mediaops/extraction-service/internal/embedding"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
)

var (
	taskStore *store.Store
	artifacts lambdaboot.S3Clients
	embedder  *embedding.Client
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	artifacts = lambdaboot.InitS3(aws.Config, "ARTIFACT_BUCKET_NAME")

	embedFunction := lambdaboot.MustEnv("EMBEDDING_FUNCTION_NAME")
	embedder = embedding.New(lambdasvc.NewFromConfig(aws.Config), embedFunction)

	logging.NewStartupLogger("sample-dedup-lambda").
		InitDuration(time.Since(initStart)).
		S3Bucket("artifacts", artifacts.Bucket).
		LambdaFunc("embedding", embedFunction).
		Log()
}

// Output lists the frames that survived dedup; the state machine maps the
// per-frame extraction stage over them.
type Output struct {
	Chunk    task.Chunk `json:"chunk"`
	Retained []float64  `json:"retained"`
	Dropped  int        `json:"dropped"`
}

func handler(ctx context.Context, chunk task.Chunk) (Output, error) {
	rec := metrics.NewStage("dedup", chunk.TaskID)
	defer rec.Flush()

	t, err := taskStore.GetTask(ctx, chunk.TaskID)
	if err != nil {
		return Output{}, err
	}
	if t == nil {
		return Output{}, fmt.Errorf("task %s not found", chunk.TaskID)
	}
	setting := t.Request.PreProcessSetting

	frames, err := taskStore.FramesByTask(ctx, chunk.TaskID)
	if err != nil {
		return Output{}, err
	}

	out := Output{Chunk: chunk}
	if !setting.SmartSample {
		// Nothing to compare; every sampled frame counts.
		retainedInChunk := 0
		for _, f := range frames {
			if f.Timestamp > chunk.StartTS && f.Timestamp <= chunk.EndTS {
				out.Retained = append(out.Retained, f.Timestamp)
				retainedInChunk++
			}
		}
		if err := taskStore.AddSampledFrames(ctx, chunk.TaskID, retainedInChunk); err != nil {
			return Output{}, err
		}
		return out, nil
	}

	// The anchor starts empty in every chunk, so the chunk's first frame is
	// always retained and chunks stay independently retryable.
	var anchor dedup.Anchor

	for _, f := range frames {
		if f.Timestamp <= chunk.StartTS || f.Timestamp > chunk.EndTS {
			continue
		}
		emb, err := embedFrame(ctx, f)
		if err != nil {
			return Output{}, fmt.Errorf("embed frame %s: %w", f.ID, err)
		}
		decision := dedup.Evaluate(anchor, emb, true, setting.SimilarityThreshold)
		if !decision.Retain {
			log.Debug().Str("frameId", f.ID).Float64("score", decision.Score).Msg("Dropping near-duplicate frame")
			if err := s3util.DeleteObject(ctx, artifacts.Client, f.S3Bucket, f.S3Key); err != nil {
				return Output{}, err
			}
			if err := taskStore.DeleteFrame(ctx, chunk.TaskID, f.Timestamp); err != nil {
				return Output{}, err
			}
			out.Dropped++
			continue
		}
		if err := taskStore.UpdateFrameSimilarity(ctx, chunk.TaskID, f.Timestamp, decision.Score, anchor.Timestamp); err != nil {
			return Output{}, err
		}
		anchor = dedup.Anchor{Embedding: emb, Timestamp: f.Timestamp}
		out.Retained = append(out.Retained, f.Timestamp)
	}

	if err := taskStore.AddSampledFrames(ctx, chunk.TaskID, len(out.Retained)); err != nil {
		return Output{}, err
	}
	rec.Count("FramesRetained", len(out.Retained))
	rec.Count("FramesDropped", out.Dropped)
	log.Info().Str("taskId", chunk.TaskID).Int("retained", len(out.Retained)).
		Int("dropped", out.Dropped).Msg("Chunk deduplicated")
	return out, nil
}

func embedFrame(ctx context.Context, f task.Frame) ([]float32, error) {
	imageJPEG, err := s3util.GetObjectBytes(ctx, artifacts.Client, f.S3Bucket, f.S3Key)
	if err != nil {
		return nil, err
	}
	resp, err := embedder.Embed(ctx, embedding.Request{
		ImageBase64: embedding.EncodeImage(imageJPEG),
		Multimodal:  true,
	})
	if err != nil {
		return nil, err
	}
	return resp.MultimodalEmbedding, nil
}

func main() {
	lambda.Start(handler)
}
