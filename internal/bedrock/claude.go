package bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog/log"

	"github.com/mediaops/extraction-service/internal/jsonutil"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 4096
)

// Message is one turn of a Claude conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	TopK             int       `json:"top_k"`
	StopSequences    []string  `json:"stop_sequences,omitempty"`
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// CompleteJSON sends a conversation to Claude with the assistant's final
// turn prefilled with "{", so the model answers with a bare JSON object. The
// returned text has the brace restored; callers unmarshal into their own
// shape and decide whether to retry.
func (c *Client) CompleteJSON(ctx context.Context, modelID, system string, messages []Message, maxTokens int) (string, error) {
	if modelID == "" {
		modelID = DefaultSummaryModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      0.1,
		TopP:             0.7,
		TopK:             20,
		StopSequences:    []string{"\n\nHuman:"},
		System:           system,
		Messages:         append(append([]Message{}, messages...), Message{Role: "assistant", Content: "{"}),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	result, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		log.Error().Err(err).Str("modelId", modelID).Msg("Bedrock InvokeModel failed")
		return "", fmt.Errorf("InvokeModel %s: %w", modelID, err)
	}

	var resp claudeResponse
	if err := json.NewDecoder(bytes.NewReader(result.Body)).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("model %s returned no content", modelID)
	}

	text := jsonutil.RestoreBracePrefix(resp.Content[0].Text)
	log.Debug().Str("modelId", modelID).Str("stopReason", resp.StopReason).Int("chars", len(text)).Msg("Completion received")
	return text, nil
}
