// Package bedrock wraps the Bedrock runtime models the pipeline calls: Titan
// embeddings for frame dedup and the vector index, and Claude for shot and
// scene summarization.
package bedrock

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"
)

// Default model IDs, overridable per call site via env config.
const (
	DefaultMultimodalEmbedModel = "amazon.titan-embed-image-v1"
	DefaultTextEmbedModel       = "amazon.titan-embed-text-v2:0"
	DefaultSummaryModel         = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultSceneModel           = "anthropic.claude-3-sonnet-20240229-v1:0"

	// EmbedDimensions is the vector width for both Titan models, chosen to
	// match the pgvector column definition.
	EmbedDimensions = 1024
)

// Client invokes Bedrock models.
type Client struct {
	runtime *bedrockruntime.Client
}

// New wraps a bedrockruntime client.
func New(runtime *bedrockruntime.Client) *Client {
	return &Client{runtime: runtime}
}

type titanMultimodalRequest struct {
	InputText   string            `json:"inputText,omitempty"`
	InputImage  string            `json:"inputImage,omitempty"`
	EmbedConfig *titanEmbedConfig `json:"embeddingConfig,omitempty"`
}

type titanEmbedConfig struct {
	OutputEmbeddingLength int `json:"outputEmbeddingLength"`
}

type titanTextRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions"`
	Normalize  bool   `json:"normalize"`
}

type titanEmbedResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// MultimodalEmbedding embeds a JPEG frame, optionally biased by extracted
// text (caption, labels, subtitles), with Titan multimodal. A nil image with
// non-empty text embeds the text alone into the same vector space, which is
// how search queries are matched against frame vectors.
func (c *Client) MultimodalEmbedding(ctx context.Context, modelID string, imageJPEG []byte, text string) ([]float32, error) {
	if modelID == "" {
		modelID = DefaultMultimodalEmbedModel
	}
	req := titanMultimodalRequest{
		InputText:   text,
		EmbedConfig: &titanEmbedConfig{OutputEmbeddingLength: EmbedDimensions},
	}
	if len(imageJPEG) > 0 {
		req.InputImage = base64.StdEncoding.EncodeToString(imageJPEG)
	}
	return c.invokeEmbed(ctx, modelID, req)
}

// TextEmbedding embeds the assembled frame text with Titan text v2.
func (c *Client) TextEmbedding(ctx context.Context, modelID, text string) ([]float32, error) {
	if modelID == "" {
		modelID = DefaultTextEmbedModel
	}
	req := titanTextRequest{
		InputText:  text,
		Dimensions: EmbedDimensions,
		Normalize:  true,
	}
	return c.invokeEmbed(ctx, modelID, req)
}

func (c *Client) invokeEmbed(ctx context.Context, modelID string, request interface{}) ([]float32, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	result, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		log.Error().Err(err).Str("modelId", modelID).Msg("Bedrock InvokeModel failed")
		return nil, fmt.Errorf("InvokeModel %s: %w", modelID, err)
	}

	var resp titanEmbedResponse
	if err := json.NewDecoder(bytes.NewReader(result.Body)).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("model %s returned empty embedding", modelID)
	}

	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}
