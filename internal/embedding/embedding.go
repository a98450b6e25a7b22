// Package embedding defines the request/response contract of the shared
// embedding Lambda and a client for invoking it. Sampling dedup and the
// frame embedding stage both go through this function so Titan model IDs
// and request shaping live in one place.
package embedding

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasvc "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/rs/zerolog/log"
)

// Request asks for one or both embedding kinds. ImageBase64 is required for
// a multimodal embedding; Text is optional context for the multimodal
// embedding and required for a text embedding.
type Request struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	Text        string `json:"text,omitempty"`
	Multimodal  bool   `json:"multimodal"`
	TextVector  bool   `json:"text_vector"`
}

// Response carries the requested vectors. Unrequested kinds are nil.
type Response struct {
	MultimodalEmbedding []float32 `json:"multimodal_embedding,omitempty"`
	TextEmbedding       []float32 `json:"text_embedding,omitempty"`
}

// EncodeImage prepares raw JPEG bytes for a Request.
func EncodeImage(imageJPEG []byte) string {
	return base64.StdEncoding.EncodeToString(imageJPEG)
}

// Client invokes the shared embedding Lambda synchronously.
type Client struct {
	lambda       *lambdasvc.Client
	functionName string
}

// New returns a client bound to the embedding function name.
func New(lambdaClient *lambdasvc.Client, functionName string) *Client {
	return &Client{lambda: lambdaClient, functionName: functionName}
}

// Embed invokes the embedding function and decodes its response. A function
// error (an unhandled exception inside the Lambda) is surfaced as an error
// here, not as a payload.
func (c *Client) Embed(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal embedding request: %w", err)
	}

	result, err := c.lambda.Invoke(ctx, &lambdasvc.InvokeInput{
		FunctionName: aws.String(c.functionName),
		Payload:      payload,
	})
	if err != nil {
		return Response{}, fmt.Errorf("invoke %s: %w", c.functionName, err)
	}
	if result.FunctionError != nil {
		log.Error().Str("function", c.functionName).Str("errorType", *result.FunctionError).Msg("Embedding function failed")
		return Response{}, fmt.Errorf("embedding function error: %s", *result.FunctionError)
	}

	var resp Response
	if err := json.Unmarshal(result.Payload, &resp); err != nil {
		return Response{}, fmt.Errorf("decode embedding response: %w", err)
	}
	return resp, nil
}
