// Package main provides the shared embedding Lambda.
//
// Other stages invoke this function synchronously whenever they need a Titan
// embedding: sampling dedup for frame similarity, and the frame embedding
// stage for the vector index. Keeping the Bedrock calls in one function keeps
// model IDs and request shaping in one deployable unit.
//
// Memory: 256 MB
// Timeout: 1 minute
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/bedrock"
	"github.com/mediaops/extraction-service/internal/embedding"
	"github.com/mediaops/extraction-service/internal/logging"
)

var (
	llm *bedrock.Client

	mmModelID   string
	textModelID string
)

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	llm = bedrock.New(bedrockruntime.NewFromConfig(cfg))

	mmModelID = os.Getenv("BEDROCK_MM_EMBED_MODEL")
	textModelID = os.Getenv("BEDROCK_TEXT_EMBED_MODEL")

	logging.NewStartupLogger("generate-embedding-lambda").
		InitDuration(time.Since(initStart)).
		Config("mmModel", mmModelID).
		Config("textModel", textModelID).
		Log()
}

func handler(ctx context.Context, req embedding.Request) (embedding.Response, error) {
	var resp embedding.Response

	if req.Multimodal {
		// Titan's multimodal model accepts text-only input, which puts
		// search queries in the same vector space as frame images.
		if req.ImageBase64 == "" && req.Text == "" {
			return resp, fmt.Errorf("multimodal embedding requires image_base64 or text")
		}
		var imageJPEG []byte
		if req.ImageBase64 != "" {
			var err error
			imageJPEG, err = base64.StdEncoding.DecodeString(req.ImageBase64)
			if err != nil {
				return resp, fmt.Errorf("decode image: %w", err)
			}
		}
		vec, err := llm.MultimodalEmbedding(ctx, mmModelID, imageJPEG, req.Text)
		if err != nil {
			return resp, err
		}
		resp.MultimodalEmbedding = vec
	}

	if req.TextVector {
		if req.Text == "" {
			return resp, fmt.Errorf("text embedding requires text")
		}
		vec, err := llm.TextEmbedding(ctx, textModelID, req.Text)
		if err != nil {
			return resp, err
		}
		resp.TextEmbedding = vec
	}

	return resp, nil
}

func main() {
	lambda.Start(handler)
}
