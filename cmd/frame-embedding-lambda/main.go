// Package main provides the frame embedding Lambda.
//
// Invoked once per retained frame after extraction. It assembles the frame's
// embedding text from everything extraction produced, obtains Titan vectors
// through the shared embedding function, and saves them to the pgvector
// index. When no vector database is configured the stage is a no-op.
//
// Memory: 512 MB
// Timeout: 2 minutes
package main

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/embedding"
	"github.com/mediaops/extraction-service/internal/lambdaboot"
	"github.com/mediaops/extraction-service/internal/logging"
	"github.com/mediaops/extraction-service/internal/metrics"
	"github.com/mediaops/extraction-service/internal/s3util"
	"github.com/mediaops/extraction-service/internal/store"
	"github.com/mediaops/extraction-service/internal/task"
	"github.com/mediaops/extraction-service/internal/vectorstore"
)

var (
	taskStore *store.Store
	artifacts lambdaboot.S3Clients
	embedder  *embedding.Client
	vectors   *vectorstore.Store
)

func init() {
	initStart := time.Now()
	logging.Init()

	aws := lambdaboot.InitAWS()
	taskStore = lambdaboot.InitStore(aws.Config)
	artifacts = lambdaboot.InitS3(aws.Config, "ARTIFACT_BUCKET_NAME")

	embedFunction := lambdaboot.MustEnv("EMBEDDING_FUNCTION_NAME")
	embedder = embedding.New(lambdasvc.NewFromConfig(aws.Config), embedFunction)

	if dsn := lambdaboot.LoadVectorDSN(aws.SSM); dsn != "" {
		var err error
		vectors, err = vectorstore.New(context.Background(), dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to vector store")
		}
	}

	logging.NewStartupLogger("frame-embedding-lambda").
		InitDuration(time.Since(initStart)).
		LambdaFunc("embedding", embedFunction).
		Feature("vectorIndex", vectors != nil).
		Log()
}

// Input identifies one frame of one task.
type Input struct {
	TaskID    string  `json:"task_id"`
	Timestamp float64 `json:"timestamp"`
}

func handler(ctx context.Context, input Input) error {
	rec := metrics.NewStage("embedding", input.TaskID)
	defer rec.Flush()

	if vectors == nil {
		log.Info().Str("taskId", input.TaskID).Msg("Vector index disabled, skipping embedding stage")
		return nil
	}

	t, err := taskStore.GetTask(ctx, input.TaskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s not found", input.TaskID)
	}
	setting := t.Request.EmbeddingSetting
	if setting == nil || (!setting.MultiModal && !setting.Text) {
		return nil
	}

	f, err := taskStore.GetFrame(ctx, input.TaskID, input.Timestamp)
	if err != nil {
		return err
	}
	if f == nil {
		log.Warn().Str("taskId", input.TaskID).Float64("ts", input.Timestamp).Msg("Frame no longer exists")
		return nil
	}

	fileName := t.Request.FileName
	if fileName == "" {
		fileName = path.Base(t.Request.Video.S3Object.Key)
	}
	f.EmbeddingText = f.BuildEmbeddingText(fileName)

	req := embedding.Request{
		Text:       f.EmbeddingText,
		Multimodal: setting.MultiModal,
		TextVector: setting.Text,
	}
	if setting.MultiModal {
		imageJPEG, err := s3util.GetObjectBytes(ctx, artifacts.Client, f.S3Bucket, f.S3Key)
		if err != nil {
			return fmt.Errorf("download frame image: %w", err)
		}
		req.ImageBase64 = embedding.EncodeImage(imageJPEG)
	}
	resp, err := embedder.Embed(ctx, req)
	if err != nil {
		return fmt.Errorf("embed frame %s: %w", f.ID, err)
	}

	err = vectors.SaveFrame(ctx, f.TaskID, f.ID, f.Timestamp,
		resp.MultimodalEmbedding, resp.TextEmbedding, f.EmbeddingText)
	if err != nil {
		return fmt.Errorf("save frame vectors: %w", err)
	}
	if err := taskStore.PutFrame(ctx, f); err != nil {
		return err
	}
	if err := taskStore.SetVectorLocations(ctx, f.TaskID, &task.VectorLocations{Table: vectorstore.TableName}); err != nil {
		return err
	}

	rec.Count("FrameEmbedded", 1)
	log.Info().Str("frameId", f.ID).Bool("multimodal", setting.MultiModal).
		Bool("text", setting.Text).Msg("Frame embedded")
	return nil
}

func main() {
	lambda.Start(handler)
}
