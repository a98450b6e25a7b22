// Package caption generates one-sentence frame descriptions with Gemini.
// Captioning is an enrichment step: it biases the frame embedding toward
// semantic content, so a failed caption degrades to an empty string instead
// of failing the frame.
package caption

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	// DefaultModelName can be overridden via GEMINI_MODEL.
	DefaultModelName = "gemini-2.5-flash-lite"

	// DefaultPromptTemplate is used when the task carries no override.
	DefaultPromptTemplate = "Describe this video frame in one concise sentence. " +
		"Focus on the visible subjects and action; do not speculate about what happens before or after."

	maxAttempts   = 3
	retryInterval = time.Second
)

// GetModelName resolves the caption model from GEMINI_MODEL or the default.
func GetModelName() string {
	if m := os.Getenv("GEMINI_MODEL"); m != "" {
		return m
	}
	return DefaultModelName
}

// NewClient creates a Gemini client from an API key.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

// Generate captions a JPEG frame. Transient failures retry with a fixed
// pause; after the attempts are exhausted the caption degrades to "".
func Generate(ctx context.Context, client *genai.Client, imageJPEG []byte, promptTemplate string) string {
	prompt := promptTemplate
	if prompt == "" {
		prompt = DefaultPromptTemplate
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: imageJPEG}},
			{Text: prompt},
		},
	}}

	modelName := GetModelName()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callStart := time.Now()
		resp, err := client.Models.GenerateContent(ctx, modelName, contents, nil)
		if err == nil {
			text := strings.TrimSpace(resp.Text())
			log.Debug().
				Str("model", modelName).
				Int("attempt", attempt).
				Dur("elapsed", time.Since(callStart)).
				Int("chars", len(text)).
				Msg("Caption generated")
			return text
		}
		lastErr = err
		log.Warn().Err(err).Str("model", modelName).Int("attempt", attempt).Msg("Caption attempt failed")
		if attempt < maxAttempts {
			select {
			case <-time.After(retryInterval):
			case <-ctx.Done():
				log.Warn().Err(ctx.Err()).Msg("Caption canceled, continuing without one")
				return ""
			}
		}
	}

	log.Warn().Err(lastErr).Str("model", modelName).Msg("Captioning exhausted retries, continuing without a caption")
	return ""
}
